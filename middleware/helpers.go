package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

func claimsFromContext(ctx context.Context) (jwt.MapClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(jwt.MapClaims)
	if !ok {
		return nil, errors.New("token claims not found in context")
	}
	return claims, nil
}

// GetUsernameFromContext returns the authenticated account name, for audit
// fields like manual_penalties.applied_by.
func GetUsernameFromContext(ctx context.Context) (string, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, ok := claims[claimUsername]
	if !ok {
		return "", fmt.Errorf("missing %q claim in token", claimUsername)
	}
	username, ok := raw.(string)
	if !ok || username == "" {
		return "", fmt.Errorf("invalid %q claim in token", claimUsername)
	}
	return username, nil
}

func GetRoleFromContext(ctx context.Context) (string, error) {
	claims, err := claimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	raw, ok := claims[claimRole]
	if !ok {
		return "", fmt.Errorf("missing %q claim in token", claimRole)
	}
	role, ok := raw.(string)
	if !ok || role == "" {
		return "", fmt.Errorf("invalid %q claim in token", claimRole)
	}
	return role, nil
}
