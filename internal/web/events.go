package web

import (
	"bufio"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/profile"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// LocationEvents streams the device's active location as server-sent events:
// the current value first, then every change saved from any tab.
func (h *Handler) LocationEvents(c *fiber.Ctx) error {
	pref := h.location(middleware.GetDeviceID(c))
	current := pref.Current(c.UserContext())
	updates, cancel := pref.Subscribe()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	done := h.done
	heartbeat := h.heartbeat
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		if writeLocation(w, current) != nil {
			return
		}
		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case loc, ok := <-updates:
				if !ok || writeLocation(w, loc) != nil {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				if w.Flush() != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeLocation(w *bufio.Writer, loc profile.Location) error {
	fmt.Fprintf(w, "event: location\ndata: %s\n\n", loc)
	return w.Flush()
}
