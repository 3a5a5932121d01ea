package auth

import (
	"net/http"
	"time"
)

const DefaultCookieName = "wc_auth_token"

// SessionCookie builds the session cookie. Secure is off only for local development.
func SessionCookie(name, token string, maxAge time.Duration, secure bool) *http.Cookie {
	if name == "" {
		name = DefaultCookieName
	}
	return &http.Cookie{
		Name:     name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie expires the session cookie immediately.
func ClearSessionCookie(name string, secure bool) *http.Cookie {
	c := SessionCookie(name, "", 0, secure)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

// TokenFromRequest prefers the session cookie and falls back to a Bearer header.
// The boolean reports whether the token came from the cookie.
func TokenFromRequest(r *http.Request, cookieName string) (string, bool, error) {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true, nil
	}
	token, err := TokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		return "", false, err
	}
	return token, false, nil
}
