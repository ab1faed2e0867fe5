// Package verifier checks external identity assertions (signed ID tokens) issued by an upstream provider.
package verifier

import (
	"context"
	"crypto"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"interview-analyzer/internal/identity/domain"
	"interview-analyzer/internal/security"
)

var (
	// ErrInvalidAssertion is returned for malformed, badly signed, expired or mis-addressed assertions.
	ErrInvalidAssertion = errors.New("invalid identity assertion")
	// ErrEmailNotVerified is returned when the provider has not verified the asserted email.
	ErrEmailNotVerified = errors.New("email not verified by identity provider")
)

// Verifier turns an assertion into a verified profile.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*domain.Profile, error)
}

// AssertionClaims are the ID token claims read from an assertion.
type AssertionClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

// JWTVerifier verifies ID-token style assertions signed with a shared secret or a provider key.
type JWTVerifier struct {
	provider domain.IdentityProvider
	method   jwt.SigningMethod
	key      any
	issuer   string
	audience string
	nowF     func() time.Time
}

// NewHMACVerifier returns a verifier for HS256 assertions signed with secret.
func NewHMACVerifier(secret []byte, issuer, audience string, provider domain.IdentityProvider) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, security.ErrInvalidSigningConfig
	}
	return &JWTVerifier{
		provider: provider,
		method:   jwt.SigningMethodHS256,
		key:      append([]byte(nil), secret...),
		issuer:   issuer,
		audience: audience,
		nowF:     time.Now,
	}, nil
}

// NewPublicKeyVerifier returns a verifier for RS256 or ES256 assertions signed by the holder of pub.
func NewPublicKeyVerifier(pub crypto.PublicKey, issuer, audience string, provider domain.IdentityProvider) (*JWTVerifier, error) {
	method := security.SigningMethodFor(pub)
	if method == nil {
		return nil, security.ErrInvalidSigningConfig
	}
	return &JWTVerifier{
		provider: provider,
		method:   method,
		key:      pub,
		issuer:   issuer,
		audience: audience,
		nowF:     time.Now,
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (v *JWTVerifier) WithClock(now func() time.Time) *JWTVerifier {
	if now != nil {
		v.nowF = now
	}
	return v
}

// Verify checks signature, issuer, audience and expiry, then requires a subject, an email and
// a provider-verified email.
func (v *JWTVerifier) Verify(ctx context.Context, assertion string) (*domain.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, ErrInvalidAssertion
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.nowF),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	token, err := jwt.NewParser(opts...).ParseWithClaims(assertion, &AssertionClaims{}, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, ErrInvalidAssertion
	}
	claims, ok := token.Claims.(*AssertionClaims)
	if !ok || !token.Valid || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidAssertion
	}
	if !claims.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return &domain.Profile{
		Provider:      v.provider,
		Subject:       claims.Subject,
		Email:         strings.ToLower(claims.Email),
		EmailVerified: true,
		Name:          claims.Name,
		PictureURL:    claims.Picture,
	}, nil
}

// SignAssertion mints an HS256 assertion for p. It stands in for the upstream provider in
// development and tests.
func SignAssertion(secret []byte, issuer, audience string, p domain.Profile, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", security.ErrInvalidSigningConfig
	}
	now := time.Now().UTC()
	claims := AssertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Name:          p.Name,
		Picture:       p.PictureURL,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
