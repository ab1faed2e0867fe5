package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a credential is malformed, badly signed, or past its own expiry.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidSigningConfig is returned when a TokenService cannot be built from the given keys.
	ErrInvalidSigningConfig = errors.New("invalid signing configuration")
)

// DisplayClaims are the minimal identity claims carried for display purposes.
type DisplayClaims struct {
	Name  string
	Email string
}

// CredentialClaims holds JWT claims for the bearer credential.
type CredentialClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Credential is the structurally verified content of a bearer credential.
// It says nothing about whether the referenced session is still valid.
type Credential struct {
	ID        string
	UserID    string
	SessionID string
	Claims    DisplayClaims
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService issues and verifies signed bearer credentials. It never consults session state.
type TokenService struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	nowF      func() time.Time
}

// NewHMACTokenService returns a TokenService that signs with HS256 using secret.
func NewHMACTokenService(secret []byte, issuer, audience string) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, ErrInvalidSigningConfig
	}
	key := append([]byte(nil), secret...)
	return &TokenService{
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
		issuer:    issuer,
		audience:  audience,
		nowF:      time.Now,
	}, nil
}

// NewKeyPairTokenService returns a TokenService that signs with the given private key (RS256 or ES256)
// and verifies with publicKey.
func NewKeyPairTokenService(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) (*TokenService, error) {
	if privateKey == nil || publicKey == nil {
		return nil, ErrInvalidSigningConfig
	}
	method := SigningMethodFor(privateKey.Public())
	if method == nil || SigningMethodFor(publicKey) != method {
		return nil, ErrInvalidSigningConfig
	}
	return &TokenService{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		nowF:      time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and expiry checks. Intended for tests.
func (p *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		p.nowF = now
	}
	return p
}

// Algorithm returns the JWT alg used by this service (HS256, RS256 or ES256).
func (p *TokenService) Algorithm() string {
	return p.method.Alg()
}

// Issue signs a credential for userID and sessionID whose embedded expiration is now+ttl.
// Returns the token string and its expiration time.
func (p *TokenService) Issue(userID, sessionID string, claims DisplayClaims, ttl time.Duration) (string, time.Time, error) {
	if userID == "" || sessionID == "" || ttl <= 0 {
		return "", time.Time{}, ErrInvalidToken
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.nowF().UTC()
	expiresAt := now.Add(ttl)
	c := CredentialClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		Email:     claims.Email,
		Name:      claims.Name,
	}
	token, err := jwt.NewWithClaims(p.method, c).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks signature, algorithm, issuer, audience and expiry of tokenString.
// Every failure is reported as ErrInvalidToken.
func (p *TokenService) Verify(tokenString string) (*Credential, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.nowF),
	)
	token, err := parser.ParseWithClaims(tokenString, &CredentialClaims{}, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*CredentialClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	cred := &Credential{
		ID:        claims.ID,
		UserID:    claims.Subject,
		SessionID: claims.SessionID,
		Claims:    DisplayClaims{Name: claims.Name, Email: claims.Email},
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		cred.IssuedAt = claims.IssuedAt.Time
	}
	return cred, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
