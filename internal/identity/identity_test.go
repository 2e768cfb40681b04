package identity_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/StrahinjaMijatovic/EUprava25/internal/identity"
)

const secret = "test-secret"

func TestIssueParseRoundTrip(t *testing.T) {
	want := identity.Claim{
		SubjectID: "roditelj-1",
		Role:      identity.RoleRoditelj,
		Email:     "ana@example.rs",
		FirstName: "Ana",
		LastName:  "Jovanović",
	}
	token, err := identity.Issue(want, secret, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	got, err := identity.Parse(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != want {
		t.Fatalf("claim = %+v, want %+v", got, want)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := identity.Issue(identity.Claim{SubjectID: "u-1", Role: identity.RoleUcenik},
		secret, time.Hour, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := identity.Parse(token, secret); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	token, _ := identity.Issue(identity.Claim{SubjectID: "u-1", Role: identity.RoleUcenik},
		secret, time.Hour, time.Now())
	if _, err := identity.Parse(token, "other-secret"); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	token, _ := identity.Issue(identity.Claim{SubjectID: "u-1", Role: identity.RoleUcenik},
		secret, time.Hour, time.Now())
	parts := strings.Split(token, ".")
	parts[1] = parts[1][:len(parts[1])-2] + "xx"
	if _, err := identity.Parse(strings.Join(parts, "."), secret); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestNoneAlgorithmRejected(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "u-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := identity.Parse(token, secret); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestMissingRoleRejected(t *testing.T) {
	token, _ := identity.Issue(identity.Claim{SubjectID: "u-1"}, secret, time.Hour, time.Now())
	if _, err := identity.Parse(token, secret); !errors.Is(err, identity.ErrInvalidToken) {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestEmptySecretRefused(t *testing.T) {
	token, _ := identity.Issue(identity.Claim{SubjectID: "u-1", Role: identity.RoleUcenik},
		secret, time.Hour, time.Now())
	if _, err := identity.Parse(token, " "); err == nil {
		t.Fatal("blank secret must refuse to verify anything")
	}
}
