package testauth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/whitecross/gateway/internal/auth"
)

func TestNewTestAuthenticator_Defaults(t *testing.T) {
	t.Setenv("DEV_JWT_SECRET", "")
	ta, err := NewTestAuthenticator(Config{})
	if err != nil {
		t.Fatalf("NewTestAuthenticator: %v", err)
	}

	claims, err := auth.NewJWTManager(DevJWTSecret, time.Hour, DevIssuer).Validate(ta.Token())
	if err != nil {
		t.Fatalf("token should validate with dev secret: %v", err)
	}
	if claims.Role != auth.RoleAdmin || claims.Subject != DevSubject {
		t.Fatalf("unexpected claims %#v", claims)
	}
}

func TestAddAuthAndCookie(t *testing.T) {
	ta, err := NewTestAuthenticator(Config{Role: auth.RoleNurse, Subject: "nurse-1"})
	if err != nil {
		t.Fatalf("NewTestAuthenticator: %v", err)
	}

	req := httptest.NewRequest("GET", "/", nil)
	ta.AddAuth(req)
	if got := req.Header.Get("Authorization"); !strings.HasPrefix(got, "Bearer ") {
		t.Fatalf("Authorization = %q", got)
	}

	req = httptest.NewRequest("GET", "/", nil)
	ta.AddCookie(req, "")
	c, err := req.Cookie(auth.DefaultCookieName)
	if err != nil || c.Value != ta.Token() {
		t.Fatalf("cookie = %v, err %v", c, err)
	}

	ctx := ta.Context(context.Background())
	if auth.Subject(ctx) != "nurse-1" {
		t.Fatalf("subject = %q", auth.Subject(ctx))
	}
}

func TestSession(t *testing.T) {
	ctx := Session(context.Background(), "u-2", auth.RoleViewer)
	claims := auth.ClaimsFromContext(ctx)
	if claims == nil || claims.Role != auth.RoleViewer || auth.TokenFromContext(ctx) == "" {
		t.Fatalf("unexpected session %#v", claims)
	}
}
