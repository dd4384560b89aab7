package controllers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/minivisionary/creditwallet/app/models"
	"github.com/minivisionary/creditwallet/app/repository"
	"github.com/minivisionary/creditwallet/internal/pkg/database"
	"github.com/minivisionary/creditwallet/internal/pkg/env"
	"github.com/minivisionary/creditwallet/internal/pkg/token"
	"github.com/minivisionary/creditwallet/internal/pkg/usercontext"
	"github.com/minivisionary/creditwallet/internal/pkg/wallet"
)

type registerRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account and grants the signup bonus through the
// wallet so the ledger records it like any other credit event.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": "Password must be at least 8 characters"})
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	account, err := models.CreateAccount(email, strings.TrimSpace(req.DisplayName), req.Password)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request", "message": err.Error()})
	}

	repo := repository.GetGlobalFactory().GetAccountRepository()
	if _, err := repo.GetByEmail(email); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email_taken"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Errorf("account lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if err := repo.Create(account); err != nil {
		log.Errorf("account creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	bonus := env.GetEnvInt("SIGNUP_BONUS_CREDITS", 20)
	if bonus > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc := wallet.NewServiceFromDB(database.GetDB())
		if _, err := svc.Grant(ctx, account.ID, bonus, models.CreditEventBonus, "signup", "signup bonus"); err != nil {
			// The account exists; a missing bonus is recoverable by support
			log.Errorf("signup bonus grant failed for account %d: %v", account.ID, err)
		}
	}

	accessToken, err := token.Generate(account.ID, account.Email)
	if err != nil {
		log.Errorf("token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":   accessToken,
		"account": accountResponse(account.ID),
	})
}

// HandleLogin verifies credentials and issues an access token
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_request"})
	}

	repo := repository.GetGlobalFactory().GetAccountRepository()
	account, err := repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials"})
		}
		log.Errorf("account lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	if !models.CheckPasswordHash(req.Password, account.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid_credentials"})
	}
	if account.Status != models.STATUS_ACTIVE {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "account_disabled"})
	}

	accessToken, err := token.Generate(account.ID, account.Email)
	if err != nil {
		log.Errorf("token generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}

	return c.JSON(fiber.Map{
		"token":   accessToken,
		"account": accountResponse(account.ID),
	})
}

// HandleMe returns the authenticated account profile
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	return c.JSON(accountResponse(userCtx.UserID))
}

func accountResponse(accountID uint) fiber.Map {
	account, err := repository.GetGlobalFactory().GetAccountRepository().GetByID(accountID)
	if err != nil {
		return fiber.Map{"id": accountID}
	}
	return fiber.Map{
		"id":           account.ID,
		"email":        account.Email,
		"display_name": account.DisplayName,
		"balance":      account.Balance,
		"ad_free":      account.AdFree,
		"created_at":   account.CreatedAt,
	}
}
