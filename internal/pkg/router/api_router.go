package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/minivisionary/creditwallet/app/controllers"
	"github.com/minivisionary/creditwallet/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{Max: 120}))

	api.Get("/health", controllers.HandleHealth)

	// Webhook deliveries are authenticated by signature, not by session
	api.Post("/stripe-webhook", controllers.HandleStripeWebhook)

	auth := api.Group("/auth")
	auth.Post("/register", controllers.HandleRegister)
	auth.Post("/login", controllers.HandleLogin)
	auth.Get("/me", middleware.RequireAuth(), controllers.HandleMe)

	payments := api.Group("/payments")
	payments.Get("/products", controllers.HandleProducts)
	payments.Post("/checkout", middleware.RequireAuth(), controllers.HandleCreateCheckout)
	payments.Get("/wallet", middleware.RequireAuth(), controllers.HandleWallet)

	posters := api.Group("/posters", middleware.RequireAuth())
	posters.Post("/", controllers.HandleGeneratePoster)
	posters.Get("/", controllers.HandleListPosters)
	posters.Get("/:id", controllers.HandleGetPoster)
	posters.Post("/:id/publish", controllers.HandlePublishPoster)

	api.Get("/gallery", controllers.HandleGallery)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
