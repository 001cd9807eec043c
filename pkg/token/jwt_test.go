package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_RoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)

	tokenString, err := manager.GenerateToken(15, "coach", "ADMIN")
	require.NoError(t, err)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(15), claims.UserID)
	assert.Equal(t, "coach", claims.Username)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestJWTManager_WrongSecretRejected(t *testing.T) {
	manager := NewJWTManager("secret-a", 1, 7)
	other := NewJWTManager("secret-b", 1, 7)

	tokenString, err := manager.GenerateToken(1, "user", "USER")
	require.NoError(t, err)

	_, err = other.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestJWTManager_GarbageTokenRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", 1, 7)
	_, err := manager.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}

func TestGenerateRandomString_LengthAndUniqueness(t *testing.T) {
	a := GenerateRandomString(16)
	b := GenerateRandomString(16)
	// 16 字节十六进制编码为 32 个字符
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
