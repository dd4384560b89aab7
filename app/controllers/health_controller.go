package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/minivisionary/creditwallet/internal/pkg/cache"
	"github.com/minivisionary/creditwallet/internal/pkg/database"
)

// HandleHealth reports service health including DB and cache connectivity
func HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := fiber.StatusOK
	dbStatus := "ok"
	cacheStatus := "ok"

	db := database.GetDB()
	if db == nil {
		dbStatus = "unavailable"
		status = fiber.StatusServiceUnavailable
	} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unreachable"
		status = fiber.StatusServiceUnavailable
	}

	if client := cache.GetClient(); client == nil {
		cacheStatus = "unavailable"
		status = fiber.StatusServiceUnavailable
	} else if err := client.Ping(ctx).Err(); err != nil {
		cacheStatus = "unreachable"
		status = fiber.StatusServiceUnavailable
	}

	overall := "healthy"
	if status != fiber.StatusOK {
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbStatus,
		"cache":    cacheStatus,
	})
}
