package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidate(t *testing.T) {
	v := NewVerifier("test-secret", "classroom-chat")

	token, err := v.Issue("user-123", "student", time.Minute)
	require.NoError(t, err)

	userID, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("other", "classroom-chat").Issue("user-123", "", time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("test-secret", "classroom-chat").ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	token, err := NewVerifier("test-secret", "someone-else").Issue("user-123", "", time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("test-secret", "classroom-chat").ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpired(t *testing.T) {
	v := NewVerifier("test-secret", "")
	v.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := v.Issue("user-123", "", time.Minute)
	require.NoError(t, err)

	v.now = time.Now
	_, err = v.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = NewVerifier("test-secret", "").ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsMissingSubject(t *testing.T) {
	v := NewVerifier("test-secret", "")
	token, err := v.Issue("", "", time.Minute)
	require.NoError(t, err)

	_, err = v.ValidateToken(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateGarbage(t *testing.T) {
	_, err := NewVerifier("test-secret", "").ValidateToken(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
