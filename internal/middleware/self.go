package middleware

import (
	"net/url"
	"strings"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// SelfOnly lets a request through only when the :email route parameter names
// the authenticated caller. Must run after JWTProtected.
func SelfOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, err := GetEmail(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		param, err := url.PathUnescape(c.Params("email"))
		if err != nil || !strings.EqualFold(strings.TrimSpace(param), email) {
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
				Error: true, Message: "You can only access your own profile",
			})
		}
		return c.Next()
	}
}
