package httpmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/api/v1/auth/login", "/api/v1/auth/login"},
		{"/api/v1/users/3f1c2f6e-8a3b-4c52-9d0e-1f2a3b4c5d6e", "/api/v1/users/{id}"},
		{"/api/v1/users/42/sessions", "/api/v1/users/{param}/sessions"},
		{"/api/v1/tokens/9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", "/api/v1/tokens/{param}"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePath(tt.in), tt.in)
	}
}
