package middleware

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gorilla/csrf"

	"github.com/whitecross/gateway/internal/api/problem"
)

// CSRFHeader carries the token on state-changing requests.
const CSRFHeader = "X-CSRF-Token"

const csrfCookieName = "wc_csrf"

var errCSRF = errors.New("csrf validation failed")

// CSRFProtection guards cookie sessions with gorilla/csrf's double-submit
// token. Safe requests always pass through it so the token cookie is issued.
// Unsafe requests that are not authenticated by the session cookie (Bearer
// callers, anonymous login) skip the check since a browser cannot attach
// those credentials cross-site.
//
// secure=false marks requests as plaintext HTTP so local development without
// TLS is not rejected by the strict Referer check.
func CSRFProtection(authKey []byte, secure bool, trustedOrigins []string, env string) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.CookieName(csrfCookieName),
		csrf.RequestHeader(CSRFHeader),
		csrf.TrustedOrigins(originHosts(trustedOrigins)),
		csrf.ErrorHandler(csrfErrorHandler(env)),
	}
	protect := csrf.Protect(authKey, opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isSafeMethod(r.Method) && !FromCookie(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !secure {
				r = csrf.PlaintextHTTPRequest(r)
			}
			protected.ServeHTTP(w, r)
		})
	}
}

func csrfErrorHandler(env string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := errCSRF
		if reason := csrf.FailureReason(r); reason != nil {
			err = reason
		}
		problem.Write(w, r, http.StatusForbidden, problem.TypeCSRF, "CSRF token validation failed", err, env)
	})
}

// CSRFToken returns the masked token for the current request. Only valid
// inside CSRFProtection.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

// originHosts reduces configured origins to the host[:port] form gorilla/csrf
// compares against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}
