package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/whitecross/gateway/internal/api/middleware"
	"github.com/whitecross/gateway/internal/api/problem"
	"github.com/whitecross/gateway/internal/apiclient"
	"github.com/whitecross/gateway/internal/audit"
	"github.com/whitecross/gateway/internal/auth"
	"github.com/whitecross/gateway/internal/endpoints"
)

// AuthHandler handles login, logout and session introspection.
type AuthHandler struct {
	Client      *apiclient.Client
	JWT         *auth.JWTManager
	Audit       *audit.Logger
	CookieName  string
	Secure      bool
	Env         string
	MaxBody     int64
	CSRFEnabled bool
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

func (in *loginRequest) Normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
}

type sessionUser struct {
	ID         string    `json:"id"`
	Email      string    `json:"email,omitempty"`
	Role       auth.Role `json:"role"`
	SchoolID   string    `json:"schoolId,omitempty"`
	DistrictID string    `json:"districtId,omitempty"`
}

func userFromClaims(claims *auth.Claims) sessionUser {
	return sessionUser{
		ID:         claims.Subject,
		Email:      claims.Email,
		Role:       claims.Role,
		SchoolID:   claims.SchoolID,
		DistrictID: claims.DistrictID,
	}
}

// Login exchanges credentials for a backend session and stores the token in
// an HttpOnly cookie. The token itself is never returned in the body.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeBody(r, h.MaxBody, &in, false); err != nil {
		writeError(w, r, err, h.Env)
		return
	}

	resp, err := h.Client.Do(r.Context(), apiclient.Request{
		Method:  http.MethodPost,
		Path:    endpoints.AuthLogin,
		Body:    in,
		NoRetry: true,
	})
	if err != nil {
		h.auditLoginFailure(r, in.Email, string(apiclient.CategoryOf(err)))
		if apiclient.CategoryOf(err) == apiclient.CategoryUnauthorized {
			problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid credentials", err, h.Env)
			return
		}
		writeError(w, r, err, h.Env)
		return
	}

	token := apiclient.Extract(resp.Body, "data.token")
	claims, err := h.JWT.Validate(token)
	if err != nil {
		h.auditLoginFailure(r, in.Email, "invalid_token")
		problem.Write(w, r, http.StatusBadGateway, problem.TypeBackendUnavailable, "Backend returned an unusable session", err, h.Env)
		return
	}

	ctx := auth.WithSession(r.Context(), claims, token)
	zerolog.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("user_id", claims.Subject)
	})
	entry := audit.FromRequest(r.WithContext(ctx), "auth.login", "session", claims.Subject)
	h.Audit.Log(ctx, entry)

	http.SetCookie(w, auth.SessionCookie(h.cookieName(), token, h.JWT.Expiry(), h.Secure))

	var user any = userFromClaims(claims)
	if raw := gjson.GetBytes(resp.Body, "data.user"); raw.IsObject() {
		user = json.RawMessage(raw.Raw)
	}
	expiresAt := time.Now().Add(h.JWT.Expiry())
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"user":      user,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	}})
}

func (h *AuthHandler) auditLoginFailure(r *http.Request, email, reason string) {
	entry := audit.FromRequest(r, "auth.login", "session", "")
	entry.Status = audit.StatusFailure
	entry.Details = map[string]string{"email": email, "error": reason}
	h.Audit.Log(r.Context(), entry)
}

// Logout clears the session cookie. The backend is told on a best-effort
// basis; a failure there does not keep the browser signed in.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if auth.TokenFromContext(ctx) != "" {
		_, err := h.Client.Do(ctx, apiclient.Request{
			Method:  http.MethodPost,
			Path:    endpoints.AuthLogout,
			NoRetry: true,
		})
		if err != nil && ctx.Err() == nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("backend logout failed")
		}
		h.Audit.Log(ctx, audit.FromRequest(r, "auth.logout", "session", auth.Subject(ctx)))
	}

	http.SetCookie(w, auth.ClearSessionCookie(h.cookieName(), h.Secure))
	writeData(w, http.StatusOK, "loggedOut", true)
}

// Me returns the caller's session claims.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TypeUnauthorized, "Authentication required", problem.ErrUnauthorized, h.Env)
		return
	}
	writeData(w, http.StatusOK, "user", userFromClaims(claims))
}

// CSRF returns the token to echo in X-CSRF-Token. The token is empty when
// CSRF protection is disabled.
func (h *AuthHandler) CSRF(w http.ResponseWriter, r *http.Request) {
	token := ""
	if h.CSRFEnabled {
		token = middleware.CSRFToken(r)
	}
	writeData(w, http.StatusOK, "csrfToken", token)
}

func (h *AuthHandler) cookieName() string {
	if h.CookieName == "" {
		return auth.DefaultCookieName
	}
	return h.CookieName
}
