package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/mahaj/streamfeed/pkg/errs"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("u1", "alice", true)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "u1" || claims.Handle != "alice" || !claims.Moderator {
		t.Fatalf("bad claims: %+v", claims)
	}
}

func TestValidateGarbage(t *testing.T) {
	_, err := ValidateToken("not.a.token")
	if !errs.IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/messages", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	if got := TokenFromRequest(r); got != "abc123" {
		t.Fatalf("header token: got %q", got)
	}

	r = httptest.NewRequest("GET", "/messages/stream?token=xyz", nil)
	if got := TokenFromRequest(r); got != "xyz" {
		t.Fatalf("query token: got %q", got)
	}

	r = httptest.NewRequest("GET", "/messages", nil)
	if got := TokenFromRequest(r); got != "" {
		t.Fatalf("absent token: got %q", got)
	}
}
