package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPath(t *testing.T) {
	tests := []struct {
		name  string
		base  string
		paths []string
		want  string
	}{
		{
			name:  "simple join",
			base:  "https://auth.example.com",
			paths: []string{"oauth2", "auth"},
			want:  "https://auth.example.com/oauth2/auth",
		},
		{
			name:  "trailing slash on base",
			base:  "https://auth.example.com/",
			paths: []string{"/oauth2/token"},
			want:  "https://auth.example.com/oauth2/token",
		},
		{
			name:  "base with path",
			base:  "https://id.example.com/api",
			paths: []string{"sessions", "whoami"},
			want:  "https://id.example.com/api/sessions/whoami",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JoinPath(tt.base, tt.paths...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMustJoinPath(t *testing.T) {
	assert.Equal(t,
		"https://id.example.com/self-service/login/browser",
		MustJoinPath("https://id.example.com", "self-service", "login", "browser"),
	)

	assert.Panics(t, func() {
		MustJoinPath("://bad-url")
	})
}
