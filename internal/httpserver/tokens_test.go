package httpserver

import (
	"testing"
	"time"
)

func TestSessionTokens_RoundTrip(t *testing.T) {
	tokens := NewSessionTokens("secret", time.Hour)
	raw, exp, err := tokens.Issue("session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expected expiry in the future, got %s", exp)
	}
	id, err := tokens.Parse(raw)
	if err != nil || id != "session-1" {
		t.Fatalf("expected session-1, got %q err=%v", id, err)
	}
}

func TestSessionTokens_Rejects(t *testing.T) {
	tokens := NewSessionTokens("secret", time.Minute)
	raw, _, err := tokens.Issue("session-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewSessionTokens("other", time.Minute).Parse(raw); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	later := NewSessionTokens("secret", time.Minute)
	later.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := later.Parse(raw); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := tokens.Parse("not-a-jwt"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}
