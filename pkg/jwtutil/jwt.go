package jwtutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/EUDYDEV/eproject-saas/pkg/config"
)

var cfg *config.JWTConfig

// SessionClaims represents the JWT claims for an authenticated back-office session.
// ScopeBranchID and UIMode carry the platform admin's session-scoped drill-down
// state; they travel with the token instead of living in server-side session
// storage.
type SessionClaims struct {
	Email         string `json:"email"`
	UserID        uint   `json:"user_id"`
	Username      string `json:"username,omitempty"`
	Role          string `json:"role,omitempty"`
	PlatformRole  string `json:"platform_role,omitempty"`
	BranchID      *uint  `json:"branch_id,omitempty"`
	ScopeBranchID *uint  `json:"scope_branch_id,omitempty"`
	UIMode        string `json:"ui_mode,omitempty"`
	jwt.RegisteredClaims
}

// Initialize sets the JWT configuration for the package
func Initialize(jwtConfig *config.JWTConfig) {
	cfg = jwtConfig
}

// GenerateToken creates a signed session token from the given claims. The
// registered claims are always overwritten here so callers only fill the
// session fields.
func GenerateToken(claims SessionClaims) (string, error) {
	if cfg == nil {
		return "", errors.New("JWT configuration not provided")
	}

	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(cfg.ExpirationHours) * time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.SigningKey))
}

// ValidateToken validates and parses the session token
func ValidateToken(tokenString string) (*SessionClaims, error) {
	if cfg == nil {
		return nil, errors.New("JWT configuration not provided")
	}

	token, err := jwt.ParseWithClaims(
		tokenString,
		&SessionClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(cfg.SigningKey), nil
		},
	)

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
