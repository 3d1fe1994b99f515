package web

import (
	"errors"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/dto"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/services"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/session"
	"github.com/gofiber/fiber/v2"
)

func (h *Handler) SignInPage(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "signin", fiber.Map{"Title": "Sign in"})
}

func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}

	resp, err := h.auth.Login(c.UserContext(), &req)
	if err != nil {
		status, msg := fiber.StatusInternalServerError, "Something went wrong. Please try again."
		if errors.Is(err, services.ErrInvalidCredentials) {
			status, msg = fiber.StatusUnauthorized, "Invalid email or password"
		} else {
			slog.Error("sign-in failed", "action", "web.signin", "error", err)
		}
		return h.render(c, status, "signin", fiber.Map{
			"Title": "Sign in", "Error": msg, "Email": req.Email,
		})
	}

	return h.establish(c, resp)
}

func (h *Handler) SignUpPage(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "signup", fiber.Map{"Title": "Create account"})
}

func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}

	resp, err := h.auth.Register(c.UserContext(), &req)
	if err != nil {
		status, msg := fiber.StatusInternalServerError, "Something went wrong. Please try again."
		switch {
		case errors.Is(err, services.ErrEmailTaken), errors.Is(err, services.ErrInvalidSignup):
			status, msg = fiber.StatusBadRequest, err.Error()
		default:
			slog.Error("sign-up failed", "action", "web.signup", "error", err)
		}
		return h.render(c, status, "signup", fiber.Map{
			"Title": "Create account", "Error": msg,
			"Email": req.Email, "FirstName": req.FirstName, "LastName": req.LastName,
		})
	}

	return h.establish(c, resp)
}

// establish stores the identity on the device and opens the profile page.
func (h *Handler) establish(c *fiber.Ctx, resp *dto.AuthResponse) error {
	id := middleware.GetDeviceID(c)
	err := h.session(id).SignIn(c.UserContext(), session.Identity{
		Email:        resp.User.Email,
		FirstName:    resp.User.FirstName,
		LastName:     resp.User.LastName,
		Token:        resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	})
	if err != nil {
		return err
	}
	h.views.Forget(id)
	return c.Redirect("/profile", fiber.StatusSeeOther)
}

func (h *Handler) SignOut(c *fiber.Ctx) error {
	id := middleware.GetDeviceID(c)
	ctx := c.UserContext()
	sessions := h.session(id)

	if current, err := sessions.Current(ctx); err == nil && current.RefreshToken != "" {
		if err := h.auth.Logout(ctx, &dto.LogoutRequest{RefreshToken: current.RefreshToken}); err != nil {
			slog.Warn("failed to revoke refresh token", "action", "web.signout", "email", current.Email, "error", err)
		}
	}
	if err := sessions.SignOut(ctx); err != nil {
		return err
	}
	h.views.Forget(id)
	return c.Redirect("/", fiber.StatusSeeOther)
}
