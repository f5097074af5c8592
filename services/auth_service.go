package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthService authenticates the single config-backed admin account and
// issues the bearer tokens the admin routes expect.
type AuthService interface {
	Login(ctx context.Context, input LoginInput) (string, error)
}

type authService struct {
	adminUsername     string
	adminPasswordHash string
	jwtSecret         []byte
}

func NewAuthService(adminUsername, adminPasswordHash, jwtSecret string) AuthService {
	return &authService{
		adminUsername:     adminUsername,
		adminPasswordHash: adminPasswordHash,
		jwtSecret:         []byte(jwtSecret),
	}
}

func (s *authService) Login(ctx context.Context, input LoginInput) (string, error) {
	if input.Username != s.adminUsername {
		return "", ErrInvalidCredentials
	}
	err := bcrypt.CompareHashAndPassword([]byte(s.adminPasswordHash), []byte(input.Password))
	if err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"username": s.adminUsername,
		"role":     "admin",
		"exp":      now.Add(tokenTTL).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
