package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
	"github.com/minivisionary/creditwallet/app/repository"
	"github.com/minivisionary/creditwallet/internal/pkg/database"
	"github.com/minivisionary/creditwallet/internal/pkg/env"
	"github.com/minivisionary/creditwallet/internal/pkg/jobqueue"
	"github.com/minivisionary/creditwallet/internal/pkg/usercontext"
	"github.com/minivisionary/creditwallet/internal/pkg/wallet"
)

type generatePosterRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Size   string `json:"size"`
}

// HandleGeneratePoster charges the wallet and enqueues a generation job. The
// spend happens before the enqueue; a permanently failed job refunds it under
// the same reference.
func HandleGeneratePoster(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req generatePosterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" || len(prompt) > 2000 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Prompt is required"})
	}
	size := req.Size
	if size == "" {
		size = "1024x1024"
	}

	cost := env.GetEnvInt("CREDITS_PER_POSTER", 10)
	spendRef := "poster:" + uuid.New().String()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := wallet.NewServiceFromDB(database.GetDB())
	balance, err := svc.Spend(ctx, userCtx.UserID, cost, spendRef, "poster generation")
	if err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_balance", "required": cost})
		}
		log.Errorf("poster spend failed for account %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	poster := &models.Poster{
		AccountID:      userCtx.UserID,
		Prompt:         prompt,
		Style:          strings.TrimSpace(req.Style),
		Size:           size,
		Status:         models.PosterStatusPending,
		SpendReference: spendRef,
		SpendAmount:    cost,
	}
	posterRepo := repository.GetGlobalFactory().GetPosterRepository()
	if err := posterRepo.Create(poster); err != nil {
		log.Errorf("poster creation failed: %v", err)
		// The spend is already in the ledger; reverse it
		if _, rerr := svc.Refund(ctx, userCtx.UserID, cost, spendRef, "poster creation failed"); rerr != nil {
			log.Errorf("refund after failed poster creation failed for account %d: %v", userCtx.UserID, rerr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	payload := jobqueue.PosterGenerationJobPayload{PosterID: poster.ID, AccountID: userCtx.UserID}
	job, err := jobqueue.GetManager().GetQueue().EnqueueJob(jobqueue.JobTypePosterGeneration, payload.ToMap())
	if err != nil {
		log.Errorf("poster job enqueue failed: %v", err)
		poster.Status = models.PosterStatusFailed
		poster.ErrorMessage = "job enqueue failed"
		_ = posterRepo.Update(poster)
		if _, rerr := svc.Refund(ctx, userCtx.UserID, cost, spendRef, "poster enqueue failed"); rerr != nil {
			log.Errorf("refund after failed enqueue failed for account %d: %v", userCtx.UserID, rerr)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	poster.JobID = job.ID
	if err := posterRepo.Update(poster); err != nil {
		log.Errorf("poster job id update failed: %v", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"poster":  poster,
		"balance": balance,
	})
}

// HandleGetPoster returns one of the caller's posters
func HandleGetPoster(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	poster, err := repository.GetGlobalFactory().GetPosterRepository().GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Errorf("poster lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if poster.AccountID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}

	return c.JSON(poster)
}

// HandleListPosters returns the caller's posters, newest first
func HandleListPosters(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	posters, err := repository.GetGlobalFactory().GetPosterRepository().GetByAccountID(userCtx.UserID, offset, limit)
	if err != nil {
		log.Errorf("poster list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"posters": posters})
}

// HandlePublishPoster spends credits to publish a completed poster to the
// public gallery
func HandlePublishPoster(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	posterRepo := repository.GetGlobalFactory().GetPosterRepository()
	poster, err := posterRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
		}
		log.Errorf("poster lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
	if poster.AccountID != userCtx.UserID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found"})
	}
	if poster.Status != models.PosterStatusCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "poster_not_completed"})
	}
	if poster.IsPublic {
		return c.JSON(poster)
	}

	cost := env.GetEnvInt("GALLERY_POST_CREDITS", 3)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc := wallet.NewServiceFromDB(database.GetDB())
	if _, err := svc.Spend(ctx, userCtx.UserID, cost, "gallery:"+strconv.FormatUint(uint64(poster.ID), 10), "gallery publish"); err != nil {
		if errors.Is(err, wallet.ErrInsufficientBalance) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "insufficient_balance", "required": cost})
		}
		log.Errorf("gallery spend failed for account %d: %v", userCtx.UserID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	poster.IsPublic = true
	if err := posterRepo.Update(poster); err != nil {
		log.Errorf("poster publish update failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(poster)
}

// HandleGallery lists published posters
func HandleGallery(c *fiber.Ctx) error {
	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	posters, err := repository.GetGlobalFactory().GetPosterRepository().GetPublicPosters(offset, limit)
	if err != nil {
		log.Errorf("gallery list failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{"posters": posters})
}
