package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-jwt-secret"

func testClaims() Claims {
	return Claims{UserID: uuid.New(), OrganizationID: uuid.New(), Email: "manager@test.com"}
}

func TestGenerateAndValidateToken(t *testing.T) {
	want := testClaims()

	token, err := GenerateToken(want, testSecret, 24*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := ValidateToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestValidateToken(t *testing.T) {
	validToken, err := GenerateToken(testClaims(), testSecret, 24*time.Hour)
	require.NoError(t, err)

	expiredToken, err := GenerateToken(testClaims(), testSecret, -1*time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name      string
		token     string
		secret    string
		wantErrIs error
	}{
		{
			name:      "expired token",
			token:     expiredToken,
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenExpired,
		},
		{
			name:      "wrong secret",
			token:     validToken,
			secret:    "wrong-secret",
			wantErrIs: jwt.ErrTokenSignatureInvalid,
		},
		{
			name:      "malformed token",
			token:     "not.a.valid.jwt",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
		{
			name:      "empty token",
			token:     "",
			secret:    testSecret,
			wantErrIs: jwt.ErrTokenMalformed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateToken(tc.token, tc.secret)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantErrIs)
		})
	}
}

func TestValidateToken_RequiresOrganization(t *testing.T) {
	c := testClaims()
	c.OrganizationID = uuid.Nil

	token, err := GenerateToken(c, testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken(token, testSecret)
	require.Error(t, err)
}

func TestValidateToken_RejectsNonHMAC(t *testing.T) {
	// a token signed with "none" must never validate
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID:         uuid.NewString(),
		OrganizationID: uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(signed, testSecret)
	require.Error(t, err)
}

func TestContextWithClaims(t *testing.T) {
	c := testClaims()
	ctx := ContextWithClaims(context.Background(), &c)

	org, ok := OrganizationIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, c.OrganizationID, org)

	user, ok := UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, c.UserID, user)

	_, ok = OrganizationIDFromContext(context.Background())
	assert.False(t, ok)
}
