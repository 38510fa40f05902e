package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

type Claims struct {
	Email string `json:"email"`
	Admin bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens.
type Authenticator struct {
	secret []byte
	issuer string
}

func NewAuthenticator(secret, issuer string) *Authenticator {
	return &Authenticator{secret: []byte(secret), issuer: issuer}
}

func (a *Authenticator) Issue(u domain.User, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Email: u.Email,
		Admin: u.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse verifies the token and returns the caller it names.
func (a *Authenticator) Parse(token string) (*domain.User, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	if strings.HasPrefix(claims.Subject, domain.GuestCartPrefix) {
		return nil, fmt.Errorf("%w: reserved subject", domain.ErrUnauthorized)
	}
	return &domain.User{ID: claims.Subject, Email: claims.Email, IsAdmin: claims.Admin}, nil
}

type userKey struct{}

func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// CurrentUser returns the authenticated caller, or nil for guests.
func CurrentUser(ctx context.Context) *domain.User {
	u, _ := ctx.Value(userKey{}).(*domain.User)
	return u
}

func RequireAdmin(ctx context.Context) (*domain.User, error) {
	u := CurrentUser(ctx)
	if u == nil {
		return nil, domain.ErrUnauthorized
	}
	if !u.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return u, nil
}
