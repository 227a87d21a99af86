package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "valid password", password: "circulation-desk-1"},
		{name: "too short", password: "short", wantErr: ErrPasswordTooShort},
		{name: "minimum length", password: "123456789012"},
		{name: "too long", password: strings.Repeat("a", 73), wantErr: ErrPasswordTooLong},
		{name: "maximum length", password: strings.Repeat("a", 72)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, 4)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, hash)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash, "the password is never stored in clear")
			assert.NoError(t, CheckPassword(tt.password, hash))
		})
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("librarian-secret", 4)
	require.NoError(t, err)

	assert.NoError(t, CheckPassword("librarian-secret", hash))
	assert.ErrorIs(t, CheckPassword("librarian-secreT", hash), ErrInvalidPassword)
	assert.ErrorIs(t, CheckPassword("", hash), ErrInvalidPassword)
	assert.Error(t, CheckPassword("librarian-secret", "not-a-bcrypt-hash"))
}

func TestHashPassword_DefaultCost(t *testing.T) {
	hash, err := HashPassword("librarian-secret", 0)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$10$"), "zero cost falls back to bcrypt.DefaultCost")
}

func TestGenerateSessionSecret(t *testing.T) {
	secret, err := GenerateSessionSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)

	other, err := GenerateSessionSecret()
	require.NoError(t, err)
	assert.NotEqual(t, secret, other)
}
