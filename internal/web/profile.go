package web

import (
	"errors"
	"html/template"
	"strings"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/settings"
	"github.com/gofiber/fiber/v2"
)

type profileForm struct {
	FirstName string `form:"firstName"`
	LastName  string `form:"lastName"`
	Phone     string `form:"phone"`
	Address   string `form:"address"`
	Location  string `form:"location"`
}

func (f profileForm) fields() profile.Fields {
	return profile.Fields{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Address:   f.Address,
		Location:  profile.Location(strings.TrimSpace(f.Location)),
	}
}

// view resolves the device's view. ok is false when the response has already
// been written, which happens when nobody is signed in.
func (h *Handler) view(c *fiber.Ctx) (*settings.View, bool, error) {
	v, err := h.views.Get(c.UserContext(), middleware.GetDeviceID(c))
	if settings.IsAuthError(err) {
		return nil, false, c.Redirect("/signin", fiber.StatusSeeOther)
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (h *Handler) Profile(c *fiber.Ctx) error {
	v, ok, err := h.view(c)
	if !ok {
		return err
	}

	state := v.Snapshot()
	return h.render(c, fiber.StatusOK, "profile", fiber.Map{
		"Title":         "Profile settings",
		"View":          state,
		"Avatar":        trustedAvatar(state.AvatarURL),
		"Notifications": v.Notifications(),
		"Locations":     profile.Locations,
	})
}

func (h *Handler) SaveProfile(c *fiber.Ctx) error {
	v, ok, err := h.view(c)
	if !ok {
		return err
	}

	var form profileForm
	if err := c.BodyParser(&form); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
	}
	if err := v.UpdateDraft(form.fields()); err != nil {
		if errors.Is(err, settings.ErrInvalidLocation) {
			return fiber.NewError(fiber.StatusBadRequest, "Unsupported location")
		}
		return err
	}

	return h.afterAction(c, v.Save(c.UserContext()))
}

func (h *Handler) CancelProfile(c *fiber.Ctx) error {
	v, ok, err := h.view(c)
	if !ok {
		return err
	}
	return h.afterAction(c, v.Cancel(c.UserContext()))
}

func (h *Handler) ChangeAvatar(c *fiber.Ctx) error {
	v, ok, err := h.view(c)
	if !ok {
		return err
	}

	fh, err := c.FormFile("avatar")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "No image selected")
	}
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	err = v.ChangeAvatar(c.UserContext(), settings.AvatarFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Content:     f,
	})
	if avatarRejected(err) {
		err = nil
	}
	return h.afterAction(c, err)
}

// avatarRejected reports whether err was already shown to the user as a
// notification on the profile page.
func avatarRejected(err error) bool {
	return errors.Is(err, settings.ErrAvatarTooLarge) ||
		errors.Is(err, settings.ErrAvatarNotImage) ||
		errors.Is(err, settings.ErrAvatarUnreadable)
}

func (h *Handler) RemoveAvatar(c *fiber.Ctx) error {
	v, ok, err := h.view(c)
	if !ok {
		return err
	}
	return h.afterAction(c, v.RemoveAvatar(c.UserContext()))
}

// afterAction redirects back to the profile page once an action completed.
func (h *Handler) afterAction(c *fiber.Ctx, err error) error {
	switch {
	case err == nil:
		return c.Redirect("/profile", fiber.StatusSeeOther)
	case settings.IsAuthError(err):
		return c.Redirect("/signin", fiber.StatusSeeOther)
	case errors.Is(err, settings.ErrSaveInProgress):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}

// trustedAvatar lets image data URLs through template escaping.
func trustedAvatar(url string) template.URL {
	if strings.HasPrefix(url, "data:image/") {
		return template.URL(url)
	}
	return ""
}
