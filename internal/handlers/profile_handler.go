package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/dto"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/services"
	"github.com/gofiber/fiber/v2"
)

// ProfileStore is the backing service of the users API.
type ProfileStore interface {
	GetProfile(ctx context.Context, email string) (*profile.Profile, error)
	UpdateProfile(ctx context.Context, email string, fields profile.Fields) (*profile.UpdateResult, error)
}

type ProfileHandler struct {
	profiles ProfileStore
}

func NewProfileHandler(profiles ProfileStore) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) Get(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid email",
		})
	}

	p, err := h.profiles.GetProfile(c.UserContext(), email)
	if errors.Is(err, services.ErrProfileNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Profile not found",
		})
	}
	if err != nil {
		slog.Error("profile fetch failed", "email", email, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}

	return c.JSON(p)
}

// Update answers 200 with {success:true} or 422 with the rejection message.
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	email, err := url.PathUnescape(c.Params("email"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid email",
		})
	}

	var fields profile.Fields
	if err := c.BodyParser(&fields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	res, err := h.profiles.UpdateProfile(c.UserContext(), email, fields)
	if err != nil {
		slog.Error("profile update failed", "email", email, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Internal server error",
		})
	}
	if !res.Success {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(res)
	}
	return c.JSON(res)
}
