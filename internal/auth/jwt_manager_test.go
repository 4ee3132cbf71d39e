package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTManager(t *testing.T) {
	manager, err := NewJWTManager("test-key")
	require.NoError(t, err)
	assert.NotNil(t, manager)

	_, err = NewJWTManager("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signing key is required")
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager, err := NewJWTManager("test-key")
	require.NoError(t, err)

	token, err := manager.GenerateToken(context.Background(), "user-123", "alice", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "nexus-server", claims.Issuer)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestJWTManager_ValidateToken_Errors(t *testing.T) {
	manager, err := NewJWTManager("test-key")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "garbage_token",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
		{
			name: "wrong_signing_key",
			token: func(t *testing.T) string {
				other, err := NewJWTManager("different-key")
				require.NoError(t, err)
				token, err := other.GenerateToken(context.Background(), "user-123", "alice", time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "expired_token",
			token: func(t *testing.T) string {
				token, err := manager.GenerateToken(context.Background(), "user-123", "alice", -time.Minute)
				require.NoError(t, err)
				return token
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.ValidateToken(context.Background(), tt.token(t))
			assert.Error(t, err)
		})
	}
}

func TestJWTManager_RefreshToken(t *testing.T) {
	manager, err := NewJWTManager("test-key")
	require.NoError(t, err)

	token, err := manager.GenerateToken(context.Background(), "user-123", "alice", time.Hour)
	require.NoError(t, err)

	refreshed, err := manager.RefreshToken(context.Background(), token, 2*time.Hour)
	require.NoError(t, err)

	claims, err := manager.ValidateToken(context.Background(), refreshed)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTManager_RefreshToken_RejectsInvalid(t *testing.T) {
	manager, err := NewJWTManager("test-key")
	require.NoError(t, err)

	_, err = manager.RefreshToken(context.Background(), "garbage", time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot refresh invalid token")
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"well_formed", "Bearer abc123", "abc123"},
		{"empty_header", "", ""},
		{"missing_prefix", "abc123", ""},
		{"prefix_only", "Bearer ", ""},
		{"trailing_space_trimmed", "Bearer abc123  ", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractBearerToken(tt.header))
		})
	}
}
