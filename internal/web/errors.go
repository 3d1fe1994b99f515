package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders failures of page routes as an HTML page and passes
// everything under /api to api.
func (h *Handler) ErrorHandler(api fiber.ErrorHandler) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if strings.HasPrefix(c.Path(), "/api") {
			return api(c, err)
		}

		code := fiber.StatusInternalServerError
		message := "Something went wrong. Please try again."
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			if code < 500 {
				message = fe.Message
			}
		}
		if code >= 500 {
			slog.Error("page request failed",
				"method", c.Method(),
				"path", c.Path(),
				"request_id", c.Locals("requestid"),
				"error", err.Error(),
			)
		}

		rerr := h.render(c, code, "error", fiber.Map{
			"Title":   http.StatusText(code),
			"Status":  code,
			"Message": message,
		})
		if rerr != nil {
			slog.Error("failed to render error page", "path", c.Path(), "error", rerr)
			return c.Status(code).SendString(message)
		}
		return nil
	}
}
