package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/minivisionary/creditwallet/internal/pkg/env"
)

var ErrInvalidToken = errors.New("token is invalid or expired")

// Claims carried in an access token.
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func secret() []byte {
	return []byte(env.GetEnv("JWT_SECRET", ""))
}

func lifetime() time.Duration {
	hours := env.GetEnvInt("JWT_LIFETIME_HOURS", 72)
	return time.Duration(hours) * time.Hour
}

// Generate signs a new HS256 access token for the given account.
func Generate(userID uint, email string) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", errors.New("JWT_SECRET is not configured")
	}
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime())),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// Parse validates a signed token and returns its claims.
func Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret(), nil
	})
	if err != nil || !parsed.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
