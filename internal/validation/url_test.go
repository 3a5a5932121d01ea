package validation

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		requireHTTPS bool
		wantErr      bool
	}{
		{"http with path", "http://backend:3001/api/v1", false, false},
		{"https", "https://api.whitecross.health", true, false},
		{"empty", "", false, true},
		{"relative", "/api/v1", false, true},
		{"ftp", "ftp://files.example.com", false, true},
		{"no host", "http://", false, true},
		{"http when https required", "http://api.whitecross.health", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url, "BACKEND_URL", tt.requireHTTPS)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err != nil {
				if _, ok := err.(URLValidationError); !ok {
					t.Fatalf("expected URLValidationError, got %T", err)
				}
			}
		})
	}
}

func TestValidateOrigin(t *testing.T) {
	valid := []string{"https://app.whitecross.health", "http://localhost:3000", "https://app.whitecross.health/"}
	for _, origin := range valid {
		if err := ValidateOrigin(origin, "CORS_ALLOWED_ORIGINS"); err != nil {
			t.Errorf("ValidateOrigin(%q) unexpected error: %v", origin, err)
		}
	}

	invalid := []string{"https://app.whitecross.health/dashboard", "https://app.whitecross.health?x=1", "app.whitecross.health"}
	for _, origin := range invalid {
		if err := ValidateOrigin(origin, "CORS_ALLOWED_ORIGINS"); err == nil {
			t.Errorf("ValidateOrigin(%q) expected error", origin)
		}
	}
}
