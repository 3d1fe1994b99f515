package web

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/devicestore"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/dto"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/preferences"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/session"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/settings"
	"github.com/gofiber/fiber/v2"
)

// Authenticator issues and revokes token pairs for the sign-in pages.
type Authenticator interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
	Logout(ctx context.Context, req *dto.LogoutRequest) error
}

type Handler struct {
	auth      Authenticator
	devices   devicestore.Backend
	views     *settings.Registry
	hub       *preferences.Hub
	heartbeat time.Duration
	done      chan struct{}
}

func NewHandler(auth Authenticator, devices devicestore.Backend, views *settings.Registry, hub *preferences.Hub) *Handler {
	return &Handler{
		auth:      auth,
		devices:   devices,
		views:     views,
		hub:       hub,
		heartbeat: 25 * time.Second,
		done:      make(chan struct{}),
	}
}

// Close ends open event streams so the server can shut down.
func (h *Handler) Close() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *Handler) session(deviceID string) *session.DeviceProvider {
	return session.NewDeviceProvider(h.devices.ForDevice(deviceID))
}

func (h *Handler) location(deviceID string) *preferences.LocationPreference {
	return preferences.NewLocationPreference(deviceID, h.devices.ForDevice(deviceID), h.hub)
}

// render fills in the header fields shared by every page.
func (h *Handler) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	data["Location"] = profile.AllIndia
	data["SignedIn"] = false

	// routes outside the device scope, such as unknown paths, have no device
	if id := middleware.GetDeviceID(c); id != "" {
		ctx := c.UserContext()
		data["Location"] = h.location(id).Current(ctx)
		_, err := h.session(id).Current(ctx)
		data["SignedIn"] = err == nil
	}

	return c.Status(status).Render(name, data, layout)
}

func (h *Handler) Landing(c *fiber.Ctx) error {
	return h.render(c, fiber.StatusOK, "landing", fiber.Map{"Title": "Welcome"})
}
