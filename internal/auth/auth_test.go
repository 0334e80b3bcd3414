package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTService(accessTTL time.Duration) *JWTService {
	return NewJWTService(&JWTConfig{
		SecretKey:            []byte("test-secret"),
		AccessTokenDuration:  accessTTL,
		RefreshTokenDuration: 24 * time.Hour,
		Issuer:               "LinkTrace-Backend",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := testJWTService(15 * time.Minute)

	token, err := svc.GenerateAccessToken(42, "admin@example.com")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.OperatorID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "LinkTrace-Backend", claims.Issuer)
}

func TestJWTService_Invalid(t *testing.T) {
	svc := testJWTService(15 * time.Minute)

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong_key", func(t *testing.T) {
		other := NewJWTService(&JWTConfig{
			SecretKey:           []byte("other-secret"),
			AccessTokenDuration: 15 * time.Minute,
		})
		token, err := other.GenerateAccessToken(1, "x@example.com")
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		short := testJWTService(-time.Minute)
		token, err := short.GenerateAccessToken(1, "x@example.com")
		require.NoError(t, err)

		_, err = short.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc123", ExtractTokenFromBearer("Bearer abc123"))
	assert.Empty(t, ExtractTokenFromBearer("abc123"))
	assert.Empty(t, ExtractTokenFromBearer(""))
	assert.Empty(t, ExtractTokenFromBearer("Bearer "))
}

func TestPasswordService(t *testing.T) {
	svc := NewPasswordServiceWithCost(4)

	t.Run("hash_and_verify", func(t *testing.T) {
		hash, err := svc.HashPassword("correct horse battery staple")
		require.NoError(t, err)
		assert.NotEqual(t, "correct horse battery staple", hash)

		assert.NoError(t, svc.VerifyPassword(hash, "correct horse battery staple"))
		assert.Error(t, svc.VerifyPassword(hash, "wrong password"))
	})

	t.Run("empty_password", func(t *testing.T) {
		_, err := svc.HashPassword("")
		assert.ErrorIs(t, err, ErrInvalidPassword)
	})
}

func TestIsValidPassword(t *testing.T) {
	assert.Error(t, IsValidPassword("short"))
	assert.NoError(t, IsValidPassword("longenough"))
	assert.Error(t, IsValidPassword(string(make([]byte, 129))))
}
