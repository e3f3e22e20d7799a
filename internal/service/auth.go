package service

import (
	"context"
	"fmt"
	"time"

	"budget-service/internal/config"
	"budget-service/internal/models"
	"budget-service/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Auth issues, validates and rotates access/refresh tokens, and verifies
// user credentials against the configured credential record.
type Auth struct {
	repo   *repository.Repository
	log    *logrus.Logger
	cfg    *config.Config
	method jwt.SigningMethod
}

// NewAuth initializes the token service
func NewAuth(repo *repository.Repository, log *logrus.Logger, cfg *config.Config) (*Auth, error) {
	method := jwt.GetSigningMethod(cfg.Secrets.Algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", cfg.Secrets.Algorithm)
	}
	return &Auth{repo: repo, log: log, cfg: cfg, method: method}, nil
}

// CreateToken mints a signed access/refresh token pair for username and
// whitelists the refresh token with its expiry epoch.
func (a *Auth) CreateToken(ctx context.Context, username string) (*models.Token, error) {
	now := time.Now().UTC()

	access, err := a.sign(username, now, a.cfg.Secrets.AccessTokenTTL, a.cfg.Secrets.AccessTokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := a.sign(username, now, a.cfg.Secrets.RefreshTokenTTL, a.cfg.Secrets.RefreshTokenKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	refreshExpiry := now.Add(time.Duration(a.cfg.Secrets.RefreshTokenTTL) * time.Second).Unix()
	if err := a.repo.AddRefreshToken(ctx, refresh, refreshExpiry); err != nil {
		return nil, err
	}

	a.log.Infof("Token pair issued for %s", username)
	return &models.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

// ValidateAccessToken verifies signature and expiry with the access-token
// key and returns the subject.
func (a *Auth) ValidateAccessToken(token string) (string, error) {
	return a.validate(token, a.cfg.Secrets.AccessTokenKey)
}

// ValidateRefreshToken consumes a whitelisted refresh token and returns its
// subject. Whitelist membership is checked first; absence covers never
// issued, already used and explicitly revoked uniformly. The row is deleted
// and committed before the signature check, so a replay of an
// already-validated token fails even when its signature would still verify.
func (a *Auth) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	found, err := a.repo.ConsumeRefreshToken(ctx, token)
	if err != nil {
		return "", err
	}
	if !found {
		return "", models.ErrUnauthorized
	}
	return a.validate(token, a.cfg.Secrets.RefreshTokenKey)
}

// VerifyCredential compares password against the stored bcrypt hash for
// username. Unknown users and mismatches are indistinguishable.
func (a *Auth) VerifyCredential(username, password string) bool {
	hash, ok := a.cfg.Secrets.Users[username]
	if !ok {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// sign mints a token with a fresh jti so repeated issuance for the same
// subject within one second still produces distinct tokens.
func (a *Auth) sign(username string, now time.Time, ttlSeconds int64, key string) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlSeconds) * time.Second)),
	}
	return jwt.NewWithClaims(a.method, claims).SignedString([]byte(key))
}

// validate collapses every decode failure (malformed token, wrong key,
// expired, bad claims, subject missing from the credential record) into
// ErrUnauthorized.
func (a *Auth) validate(raw, key string) (string, error) {
	parsed, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{},
		func(*jwt.Token) (any, error) { return []byte(key), nil },
		jwt.WithValidMethods([]string{a.cfg.Secrets.Algorithm}))
	if err != nil || !parsed.Valid {
		return "", models.ErrUnauthorized
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", models.ErrUnauthorized
	}
	if _, ok := a.cfg.Secrets.Users[claims.Subject]; !ok {
		return "", models.ErrUnauthorized
	}
	return claims.Subject, nil
}
