package utils

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		query   string
		want    string
		wantErr error
	}{
		{name: "bearer header", header: "Bearer abc", want: "abc"},
		{name: "query token", query: "?token=xyz", want: "xyz"},
		{name: "header wins over query", header: "Bearer abc", query: "?token=xyz", want: "abc"},
		{name: "malformed header", header: "Basic abc", wantErr: ErrMissingToken},
		{name: "empty bearer", header: "Bearer ", wantErr: ErrMissingToken},
		{name: "nothing", wantErr: ErrMissingToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/ws"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := CredentialFromRequest(req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("test-secret")
	tok, err := GenerateToken("alice", secret, time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken(tok, secret)
	require.NoError(t, err)

	key, err := UserKeyFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "alice", key)
}

func TestParseTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	tok, err := GenerateToken("alice", []byte("one"), time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(tok, []byte("two"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("alice", []byte("one"), -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, []byte("one"))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserKeyFromClaims(t *testing.T) {
	key, err := UserKeyFromClaims(jwt.MapClaims{"sub": float64(42)})
	require.NoError(t, err)
	assert.Equal(t, "42", key)

	_, err = UserKeyFromClaims(jwt.MapClaims{})
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = UserKeyFromClaims(jwt.MapClaims{"sub": true})
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger("loud")
	assert.Error(t, err)
}
