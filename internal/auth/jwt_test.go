package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-that-is-at-least-32-characters"

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager(testSecret, time.Hour, "white-cross")
	jwtToken, err := manager.Generate(Identity{
		Subject:  "user-1",
		Email:    "nurse@school.test",
		Role:     "nurse",
		SchoolID: "school-9",
	})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := manager.Validate(jwtToken)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != RoleNurse || claims.SchoolID != "school-9" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if claims.Email != "nurse@school.test" {
		t.Fatalf("email = %q", claims.Email)
	}
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager(testSecret, time.Hour, "white-cross")
	if _, err := manager.Generate(Identity{Role: RoleAdmin}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
	if _, err := manager.Generate(Identity{Subject: "u", Role: "janitor"}); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token error for unknown role, got %v", err)
	}
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager(testSecret, time.Hour, "white-cross")
	if _, err := manager.Validate(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}

func TestJWTValidateRejectsWrongSecretAndIssuer(t *testing.T) {
	issuer := NewJWTManager(testSecret, time.Hour, "white-cross")
	token, err := issuer.Generate(Identity{Subject: "u", Role: RoleViewer})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	other := NewJWTManager("another-secret-that-is-also-32-chars-long", time.Hour, "white-cross")
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong secret, got %v", err)
	}

	wrongIssuer := NewJWTManager(testSecret, time.Hour, "someone-else")
	if _, err := wrongIssuer.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token for wrong issuer, got %v", err)
	}
}

func TestJWTValidateRejectsExpired(t *testing.T) {
	manager := NewJWTManager(testSecret, -time.Minute, "white-cross")
	token, err := manager.Generate(Identity{Subject: "u", Role: RoleStaff})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestJWTValidateRejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{Role: RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u",
		Issuer:    "white-cross",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	manager := NewJWTManager(testSecret, time.Hour, "white-cross")
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected HS512 token to be rejected, got %v", err)
	}
}

func TestTokenFromHeader(t *testing.T) {
	if _, err := TokenFromHeader("nope"); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
	if token, err := TokenFromHeader("Bearer token"); err != nil || token != "token" {
		t.Fatalf("expected token, got %s err %v", token, err)
	}
}
