package handlers

import (
	"context"
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/dto"
	"github.com/gofiber/fiber/v2"
)

// Pinger is anything whose liveness the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	db      Pinger
	devices Pinger
	views   func() int
}

func NewHealthHandler(db, devices Pinger, views func() int) *HealthHandler {
	return &HealthHandler{db: db, devices: devices, views: views}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "ok"
	dbStatus := "ok"
	if err := h.db.Ping(ctx); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}
	storeStatus := "ok"
	if err := h.devices.Ping(ctx); err != nil {
		storeStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	return c.JSON(dto.HealthResponse{
		Status:      status,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		DB:          dbStatus,
		DeviceStore: storeStatus,
		Views:       h.views(),
	})
}
