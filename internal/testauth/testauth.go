// Package testauth provides session helpers for tests and local development.
// This package should NEVER be used in production code.
//
// Tokens are signed with a well-known development secret unless one is given.
package testauth

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/whitecross/gateway/internal/auth"
)

const (
	// DevJWTSecret matches the JWT_SECRET in the sample development env file.
	DevJWTSecret = "dev-jwt-secret-change-me-in-production-0000"
	DevIssuer    = "white-cross"
	DevSubject   = "00000000-0000-4000-8000-000000000001"
)

// Config configures the test authenticator.
type Config struct {
	// JWTSecret defaults to DEV_JWT_SECRET or DevJWTSecret.
	JWTSecret string
	JWTIssuer string
	Role      auth.Role
	Subject   string
	Email     string
	SchoolID  string
}

// TestAuthenticator adds a signed session to outgoing test requests.
type TestAuthenticator struct {
	token  string
	claims *auth.Claims
}

func NewTestAuthenticator(cfg Config) (*TestAuthenticator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		secret = os.Getenv("DEV_JWT_SECRET")
	}
	if secret == "" {
		secret = DevJWTSecret
	}
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = DevIssuer
	}
	if cfg.Role == "" {
		cfg.Role = auth.RoleAdmin
	}
	if cfg.Subject == "" {
		cfg.Subject = DevSubject
	}

	manager := auth.NewJWTManager(secret, time.Hour, cfg.JWTIssuer)
	token, err := manager.Generate(auth.Identity{
		Subject:  cfg.Subject,
		Email:    cfg.Email,
		Role:     cfg.Role,
		SchoolID: cfg.SchoolID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	claims, err := manager.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("failed to validate generated JWT: %w", err)
	}
	return &TestAuthenticator{token: token, claims: claims}, nil
}

func (ta *TestAuthenticator) Token() string {
	return ta.token
}

func (ta *TestAuthenticator) Claims() *auth.Claims {
	return ta.claims
}

// AddAuth sets a Bearer Authorization header.
func (ta *TestAuthenticator) AddAuth(req *http.Request) {
	if req != nil {
		req.Header.Set("Authorization", "Bearer "+ta.token)
	}
}

// AddCookie attaches the session cookie, as a browser would.
func (ta *TestAuthenticator) AddCookie(req *http.Request, cookieName string) {
	if req == nil {
		return
	}
	if cookieName == "" {
		cookieName = auth.DefaultCookieName
	}
	req.AddCookie(&http.Cookie{Name: cookieName, Value: ta.token})
}

// Context returns ctx carrying this authenticator's session.
func (ta *TestAuthenticator) Context(ctx context.Context) context.Context {
	return auth.WithSession(ctx, ta.claims, ta.token)
}

// Session builds a context for subject and role without signing a token.
func Session(ctx context.Context, subject string, role auth.Role) context.Context {
	claims := &auth.Claims{Role: role}
	claims.Subject = subject
	return auth.WithSession(ctx, claims, "test-token-"+subject)
}
