package verifier

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"interview-analyzer/internal/identity/domain"
)

var (
	testSecret = []byte("identity-test-secret")
	testIss    = "https://idp.example.com"
	testAud    = "interview-analyzer"
)

func profile() domain.Profile {
	return domain.Profile{Subject: "sub-1", Email: "Ada@Example.com", EmailVerified: true, Name: "Ada", PictureURL: "https://example.com/a.png"}
}

func TestJWTVerifier_HMAC(t *testing.T) {
	v, err := NewHMACVerifier(testSecret, testIss, testAud, domain.IdentityProviderGoogle)
	if err != nil {
		t.Fatalf("NewHMACVerifier: %v", err)
	}
	a, err := SignAssertion(testSecret, testIss, testAud, profile(), time.Hour)
	if err != nil {
		t.Fatalf("SignAssertion: %v", err)
	}
	p, err := v.Verify(context.Background(), a)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Subject != "sub-1" || p.Email != "ada@example.com" || p.Provider != domain.IdentityProviderGoogle {
		t.Errorf("profile = %+v", p)
	}
	if p.ExternalID() != "google:sub-1" {
		t.Errorf("ExternalID = %q", p.ExternalID())
	}
	if p.PictureURL != "https://example.com/a.png" || p.Name != "Ada" {
		t.Errorf("display fields lost: %+v", p)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v, _ := NewHMACVerifier(testSecret, testIss, testAud, domain.IdentityProviderDev)
	good, _ := SignAssertion(testSecret, testIss, testAud, profile(), time.Hour)
	wrongSecret, _ := SignAssertion([]byte("other"), testIss, testAud, profile(), time.Hour)
	wrongIss, _ := SignAssertion(testSecret, "https://evil.example.com", testAud, profile(), time.Hour)
	wrongAud, _ := SignAssertion(testSecret, testIss, "someone-else", profile(), time.Hour)
	expired, _ := SignAssertion(testSecret, testIss, testAud, profile(), -time.Minute)
	noEmail := profile()
	noEmail.Email = ""
	missingEmail, _ := SignAssertion(testSecret, testIss, testAud, noEmail, time.Hour)
	noSub := profile()
	noSub.Subject = ""
	missingSub, _ := SignAssertion(testSecret, testIss, testAud, noSub, time.Hour)

	testCases := []struct {
		name      string
		assertion string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", wrongSecret},
		{"wrong issuer", wrongIss},
		{"wrong audience", wrongAud},
		{"expired", expired},
		{"missing email", missingEmail},
		{"missing subject", missingSub},
		{"truncated", good[:len(good)-4]},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tc.assertion); !errors.Is(err, ErrInvalidAssertion) {
				t.Errorf("Verify %s = %v, want ErrInvalidAssertion", tc.name, err)
			}
		})
	}
}

func TestJWTVerifier_UnverifiedEmail(t *testing.T) {
	v, _ := NewHMACVerifier(testSecret, testIss, testAud, domain.IdentityProviderDev)
	p := profile()
	p.EmailVerified = false
	a, _ := SignAssertion(testSecret, testIss, testAud, p, time.Hour)
	if _, err := v.Verify(context.Background(), a); !errors.Is(err, ErrEmailNotVerified) {
		t.Errorf("Verify = %v, want ErrEmailNotVerified", err)
	}
}

func TestJWTVerifier_PublicKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	v, err := NewPublicKeyVerifier(&key.PublicKey, testIss, testAud, domain.IdentityProviderOIDC)
	if err != nil {
		t.Fatalf("NewPublicKeyVerifier: %v", err)
	}
	now := time.Now()
	claims := AssertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sub-ec",
			Issuer:    testIss,
			Audience:  jwt.ClaimStrings{testAud},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:         "ec@example.com",
		EmailVerified: true,
	}
	a, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	p, err := v.Verify(context.Background(), a)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Subject != "sub-ec" {
		t.Errorf("Subject = %q", p.Subject)
	}

	hmacSigned, _ := SignAssertion(testSecret, testIss, testAud, profile(), time.Hour)
	if _, err := v.Verify(context.Background(), hmacSigned); !errors.Is(err, ErrInvalidAssertion) {
		t.Errorf("HS256 assertion against ES256 verifier = %v, want ErrInvalidAssertion", err)
	}
}

func TestJWTVerifier_Clock(t *testing.T) {
	v, _ := NewHMACVerifier(testSecret, testIss, testAud, domain.IdentityProviderDev)
	a, _ := SignAssertion(testSecret, testIss, testAud, profile(), time.Hour)
	v.WithClock(func() time.Time { return time.Now().Add(2 * time.Hour) })
	if _, err := v.Verify(context.Background(), a); !errors.Is(err, ErrInvalidAssertion) {
		t.Errorf("Verify in the future = %v, want ErrInvalidAssertion", err)
	}
}

func TestNewVerifier_InvalidConfig(t *testing.T) {
	if _, err := NewHMACVerifier(nil, testIss, testAud, domain.IdentityProviderDev); err == nil {
		t.Error("empty secret should fail")
	}
	if _, err := NewPublicKeyVerifier([]byte("x"), testIss, testAud, domain.IdentityProviderDev); err == nil {
		t.Error("unsupported key type should fail")
	}
	if _, err := SignAssertion(nil, testIss, testAud, profile(), time.Hour); err == nil {
		t.Error("SignAssertion with empty secret should fail")
	}
}
