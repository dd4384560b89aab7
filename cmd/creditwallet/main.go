package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/minivisionary/creditwallet/app/repository"
	"github.com/minivisionary/creditwallet/internal/pkg/cache"
	"github.com/minivisionary/creditwallet/internal/pkg/database"
	"github.com/minivisionary/creditwallet/internal/pkg/env"
	"github.com/minivisionary/creditwallet/internal/pkg/jobqueue"
	"github.com/minivisionary/creditwallet/internal/pkg/poster"
	"github.com/minivisionary/creditwallet/internal/pkg/router"
	"github.com/minivisionary/creditwallet/internal/pkg/storage"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "8080")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	// Wire the poster pipeline into the job queue before workers start
	imageStore, err := storage.NewStoreFromEnv()
	if err != nil {
		log.Fatalf("storage setup failed: %v", err)
	}
	manager := jobqueue.GetManager()
	manager.GetQueue().SetPosterHandler(
		poster.NewProcessorFromDB(database.GetDB(), poster.NewImageClientFromEnv(), imageStore),
	)
	manager.Start()

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName: "creditwallet",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			"admin": env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
