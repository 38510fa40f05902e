package membership

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	auth := NewAuthenticator("secret", "lagc")
	token, err := auth.Issue(domain.User{ID: "user-1", Email: "ama@example.com", IsAdmin: true}, time.Hour, time.Now())
	require.NoError(t, err)

	u, err := auth.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, &domain.User{ID: "user-1", Email: "ama@example.com", IsAdmin: true}, u)
}

func TestAuthenticator_Rejects(t *testing.T) {
	auth := NewAuthenticator("secret", "lagc")
	now := time.Now()

	expired, err := auth.Issue(domain.User{ID: "user-1"}, time.Minute, now.Add(-time.Hour))
	require.NoError(t, err)

	otherKey, err := NewAuthenticator("other", "lagc").Issue(domain.User{ID: "user-1"}, time.Hour, now)
	require.NoError(t, err)

	otherIssuer, err := NewAuthenticator("secret", "someone-else").Issue(domain.User{ID: "user-1"}, time.Hour, now)
	require.NoError(t, err)

	noSubject, err := auth.Issue(domain.User{}, time.Hour, now)
	require.NoError(t, err)

	guestSubject, err := auth.Issue(domain.User{ID: domain.NewGuestCartID()}, time.Hour, now)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user-1", "iss": "lagc"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":       expired,
		"other key":     otherKey,
		"other issuer":  otherIssuer,
		"no subject":    noSubject,
		"guest subject": guestSubject,
		"alg none":      none,
		"garbage":       "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := auth.Parse(token)
			assert.ErrorIs(t, err, domain.ErrUnauthorized)
		})
	}
}

func TestCurrentUserAndRequireAdmin(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, CurrentUser(ctx))

	_, err := RequireAdmin(ctx)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = RequireAdmin(WithUser(ctx, &domain.User{ID: "u"}))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	u, err := RequireAdmin(WithUser(ctx, &domain.User{ID: "a", IsAdmin: true}))
	require.NoError(t, err)
	assert.Equal(t, "a", u.ID)
}
