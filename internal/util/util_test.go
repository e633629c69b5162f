package util

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: course 1", ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: not yours", ErrUnauthorized), http.StatusForbidden},
		{fmt.Errorf("%w: ended", ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: 1 of 2", ErrCourseNotComplete), http.StatusBadRequest},
		{fmt.Errorf("%w: bad id", ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestParseID(t *testing.T) {
	id, err := ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, s := range []string{"", "0", "-1", "abc", "99999999999"} {
		_, err := ParseID(s)
		assert.ErrorIs(t, err, ErrValidation, s)
	}
}

func TestJWTRoundTrip(t *testing.T) {
	secret := "test-secret"
	tok, err := GenerateJWT(Claims{
		Name:             "Ada",
		Email:            "ada@example.com",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1", Issuer: "idp"},
	}, secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, secret, "idp")
	require.NoError(t, err)
	assert.Equal(t, "user_1", claims.Subject)
	assert.Equal(t, "Ada", claims.Name)

	_, err = ParseJWT(tok, secret, "other-idp")
	assert.Error(t, err)
	_, err = ParseJWT(tok, "wrong-secret", "")
	assert.Error(t, err)
}

func TestParseJWTRejectsExpiredAndSubjectless(t *testing.T) {
	secret := "test-secret"
	expired, err := GenerateJWT(Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user_1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}, secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(expired, secret, "")
	assert.Error(t, err)

	anonymous, err := GenerateJWT(Claims{Name: "nobody"}, secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseJWT(anonymous, secret, "")
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user_1"}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseJWT(unsigned, secret, "")
	assert.Error(t, err)
}
