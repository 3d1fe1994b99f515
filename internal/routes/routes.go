package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/config"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/skyreserve/internal/web"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	healthHandler *handlers.HealthHandler,
	pages *web.Handler,
) {
	api := app.Group("/api")

	// General API rate limiter: 60 req/min per IP
	api.Use(limiter.New(limiter.Config{
		Max:               60,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))

	api.Get("/health", healthHandler.Check)

	// Auth-specific rate limit: 10 req/min per IP (stricter)
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/refresh", authHandler.Refresh)

	// Protected routes (JWT required) - apply middleware to individual routes
	api.Post("/auth/logout", middleware.JWTProtected(cfg), authHandler.Logout)

	// Users may only read and write their own profile
	api.Get("/users/:email/profile", middleware.JWTProtected(cfg), middleware.SelfOnly(), profileHandler.Get)
	api.Put("/users/:email/profile", middleware.JWTProtected(cfg), middleware.SelfOnly(), profileHandler.Update)

	// Pages, scoped to the browser device
	device := middleware.DeviceScope(cfg)
	app.Get("/", device, pages.Landing)
	app.Get("/signin", device, pages.SignInPage)
	app.Post("/signin", device, pages.SignIn)
	app.Get("/signup", device, pages.SignUpPage)
	app.Post("/signup", device, pages.SignUp)
	app.Post("/signout", device, pages.SignOut)

	app.Get("/profile", device, pages.Profile)
	app.Post("/profile", device, pages.SaveProfile)
	app.Post("/profile/cancel", device, pages.CancelProfile)
	app.Post("/profile/avatar", device, pages.ChangeAvatar)
	app.Post("/profile/avatar/remove", device, pages.RemoveAvatar)

	app.Get("/events/location", device, pages.LocationEvents)
}
