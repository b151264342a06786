package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleStaff    Role = "STAFF"
	RoleCustomer Role = "CUSTOMER"
)

func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleAdmin, RoleStaff, RoleCustomer:
		return r, true
	}
	return "", false
}

// Actor is the authenticated caller of a booking operation.
type Actor struct {
	UserID string
	Role   Role
}

func (a Actor) IsZero() bool {
	return a.UserID == ""
}

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	Role string `json:"role"`
	jwtlib.RegisteredClaims
}

// Verifier validates HS256 tokens issued by the identity provider. The subject claim is the user id.
type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewVerifier(secret, issuer string, ttl time.Duration) *Verifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (v *Verifier) Verify(token string) (Actor, error) {
	opts := []jwtlib.ParserOption{jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(v.issuer))
	}

	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Actor{}, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return Actor{}, ErrInvalidToken
	}
	role, ok := ParseRole(claims.Role)
	if !ok {
		return Actor{}, ErrInvalidToken
	}
	return Actor{UserID: claims.Subject, Role: role}, nil
}

// Issue signs a token for actor. Used by tooling and tests; production tokens come from the provider.
func (v *Verifier) Issue(actor Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   actor.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(v.ttl)),
		},
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok && !a.IsZero()
}
