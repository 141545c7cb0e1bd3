package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-access-secret-key-for-testing-purposes"

func TestNewService(t *testing.T) {
	service := NewService(testSecret, time.Hour)

	assert.NotNil(t, service)
	assert.Equal(t, testSecret, service.secret)
	assert.Equal(t, time.Hour, service.accessTokenExpiry)
}

func TestGenerateAccessToken(t *testing.T) {
	service := NewService(testSecret, time.Hour)
	userID := uuid.New()
	roles := []string{"user", "admin"}

	token, err := service.GenerateAccessToken(userID, roles)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, roles, claims.Roles)
	assert.Equal(t, Issuer, claims.Issuer)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, err := NewService(testSecret, time.Hour).GenerateAccessToken(uuid.New(), nil)
	require.NoError(t, err)

	_, err = NewService("another-secret", time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	service := NewService(testSecret, time.Minute)
	service.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := service.GenerateAccessToken(uuid.New(), nil)
	require.NoError(t, err)

	service.now = time.Now
	_, err = service.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateAccessToken_Malformed(t *testing.T) {
	service := NewService(testSecret, time.Hour)

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := service.ValidateAccessToken(token)
		assert.Error(t, err, token)
	}
}

func TestValidateAccessToken_WrongIssuer(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewService(testSecret, time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestValidateAccessToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewService(testSecret, time.Hour).ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestGetTokenExpiry(t *testing.T) {
	service := NewService(testSecret, 2*time.Hour)
	before := time.Now()

	token, err := service.GenerateAccessToken(uuid.New(), nil)
	require.NoError(t, err)

	expiry, err := service.GetTokenExpiry(token)
	require.NoError(t, err)
	assert.WithinDuration(t, before.Add(2*time.Hour), expiry, 2*time.Second)

	_, err = service.GetTokenExpiry("garbage")
	assert.Error(t, err)
}
