package usertoken

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-test-secret-test-secret"

func signToken(t *testing.T, secret, issuer, audience, sub, email, name string, expiresIn time.Duration) string {
	t.Helper()
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss":   issuer,
		"aud":   audience,
		"sub":   sub,
		"email": email,
		"name":  name,
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestVerifyIdentityExtractsClaims(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token := signToken(t, testSecret, defaultIssuer, defaultAudience, "u1", "alice@example.com", "Alice", time.Hour)

	id, err := v.VerifyIdentity(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.ID != "u1" || id.Email != "alice@example.com" || id.DisplayName != "Alice" {
		t.Fatalf("identity = %+v", id)
	}
}

func TestVerifyIdentityRejectsWrongSecret(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token := signToken(t, "other-secret-other-secret-other-1234", defaultIssuer, defaultAudience, "u1", "", "", time.Hour)
	if _, err := v.VerifyIdentity(token); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestVerifyIdentityEnforcesAudienceAndIssuer(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Issuer: "issuer-a", Audience: "aud-a"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := v.VerifyIdentity(signToken(t, testSecret, "issuer-b", "aud-a", "u1", "", "", time.Hour)); err == nil {
		t.Fatalf("expected issuer mismatch to fail")
	}
	if _, err := v.VerifyIdentity(signToken(t, testSecret, "issuer-a", "aud-b", "u1", "", "", time.Hour)); err == nil {
		t.Fatalf("expected audience mismatch to fail")
	}
}

func TestVerifyIdentityRejectsExpiredAndMissingSubject(t *testing.T) {
	v, err := NewVerifier(Config{Secret: testSecret, Leeway: time.Millisecond})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := v.VerifyIdentity(signToken(t, testSecret, defaultIssuer, defaultAudience, "u1", "", "", -time.Hour)); err == nil {
		t.Fatalf("expected expired token to fail")
	}
	if _, err := v.VerifyIdentity(signToken(t, testSecret, defaultIssuer, defaultAudience, "", "", "", time.Hour)); err == nil {
		t.Fatalf("expected missing subject to fail")
	}
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	if _, err := NewVerifier(Config{}); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
