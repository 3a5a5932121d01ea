package metrics

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"static path", "/api/v1/students", "/api/v1/students"},
		{"uuid param", "/api/v1/students/6f1c2a57-2d4b-4c8e-9a51-0d9f3b7e4c21", "/api/v1/students/{id}"},
		{"numeric param", "/medications/42/administrations", "/medications/{id}/administrations"},
		{"query stripped", "/students?page=2", "/students"},
		{"empty path", "", ""},
		{"non-path input", "api/v1/students/1", "api/v1/students/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePath(tt.input); got != tt.expected {
				t.Fatalf("NormalizePath(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
