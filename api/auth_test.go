package api

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func localAuth(t *testing.T, secret string) *Auth {
	t.Helper()
	t.Setenv(envLocalAuthMode, "hs256")
	t.Setenv(envLocalAuthSecret, secret)
	return NewAuth(nil, "board-api", "https://auth.example/")
}

func TestPrincipalFromAuthHeaderLocalMode(t *testing.T) {
	a := localAuth(t, "shared")
	token := signedToken(t, "shared", jwt.MapClaims{
		"sub":   "u1",
		"email": "u1@example.com",
		"aud":   "board-api",
		"iss":   "https://auth.example/",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	p, err := a.PrincipalFromAuthHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != "u1" || p.Email != "u1@example.com" {
		t.Fatalf("principal = %+v", p)
	}
}

func TestPrincipalFromAuthHeaderWrongSecret(t *testing.T) {
	a := localAuth(t, "shared")
	token := signedToken(t, "other", jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.PrincipalFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("token under the wrong secret must be rejected")
	}
}

func TestPrincipalFromAuthHeaderExpired(t *testing.T) {
	a := localAuth(t, "shared")
	token := signedToken(t, "shared", jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := a.PrincipalFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("expired token must be rejected")
	}
}

func TestPrincipalFromAuthHeaderMissingSub(t *testing.T) {
	a := localAuth(t, "shared")
	token := signedToken(t, "shared", jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.PrincipalFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("token without sub must be rejected")
	}
}

func TestPrincipalFromAuthHeaderWrongAudience(t *testing.T) {
	a := localAuth(t, "shared")
	token := signedToken(t, "shared", jwt.MapClaims{
		"sub": "u1",
		"aud": "someone-else",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	if _, err := a.PrincipalFromAuthHeader("Bearer " + token); err == nil {
		t.Fatal("token for another audience must be rejected")
	}
}

func TestBearerToken(t *testing.T) {
	if _, err := bearerToken(""); !errors.Is(err, errMissingAuthorization) {
		t.Errorf("empty header: %v", err)
	}
	if _, err := bearerToken("Basic abc"); !errors.Is(err, errBadAuthorization) {
		t.Errorf("wrong scheme: %v", err)
	}
	if _, err := bearerToken("Bearer "); !errors.Is(err, errBadAuthorization) {
		t.Errorf("empty token: %v", err)
	}
	if _, err := bearerToken("Bearer not-a-jwt"); !errors.Is(err, errBadAuthorization) {
		t.Errorf("malformed token: %v", err)
	}
	token, err := bearerToken("Bearer aa.bb.cc")
	if err != nil || token != "aa.bb.cc" {
		t.Errorf("got %q, %v", token, err)
	}
}
