package middleware

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	DeviceCookie = "device_id"
	deviceLocal  = "device_id"
	deviceMaxAge = 400 * 24 * time.Hour
)

// DeviceScope identifies the browser device behind a request by its
// device_id cookie, issuing a new id when the cookie is missing or not a UUID.
func DeviceScope(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Cookies(DeviceCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		c.Cookie(&fiber.Cookie{
			Name:     DeviceCookie,
			Value:    id,
			Path:     "/",
			Expires:  time.Now().Add(deviceMaxAge),
			HTTPOnly: true,
			Secure:   cfg.CookieSecure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(deviceLocal, id)
		return c.Next()
	}
}

// GetDeviceID returns the id set by DeviceScope.
func GetDeviceID(c *fiber.Ctx) string {
	if id, ok := c.Locals(deviceLocal).(string); ok {
		return id
	}
	return ""
}
