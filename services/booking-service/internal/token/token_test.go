package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestVerifier(now time.Time) *Verifier {
	v := NewVerifier("test-secret", 5*time.Minute)
	v.now = func() time.Time { return now }
	return v
}

func TestVerify_RoundTrip(t *testing.T) {
	v := newTestVerifier(time.Unix(1700000000, 0))
	if err := v.Verify(v.Generate()); err != nil {
		t.Fatalf("fresh token should verify: %v", err)
	}
}

func TestVerify_Missing(t *testing.T) {
	v := newTestVerifier(time.Unix(1700000000, 0))
	if err := v.Verify(""); !errors.Is(err, ErrMissing) {
		t.Fatalf("expected ErrMissing, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	v := newTestVerifier(time.Unix(1700000000, 0))
	for _, raw := range []string{"nocolon", ":", "123:", ":abc", "abc:def"} {
		if err := v.Verify(raw); !errors.Is(err, ErrInvalid) {
			t.Errorf("Verify(%q) = %v, want ErrInvalid", raw, err)
		}
	}
}

func TestVerify_TamperedSignature(t *testing.T) {
	v := newTestVerifier(time.Unix(1700000000, 0))
	tok := v.Generate()
	bad := tok[:len(tok)-1]
	if strings.HasSuffix(tok, "0") {
		bad += "1"
	} else {
		bad += "0"
	}
	if err := v.Verify(bad); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	issuer := newTestVerifier(now)
	other := NewVerifier("other-secret", 5*time.Minute)
	other.now = func() time.Time { return now }
	if err := other.Verify(issuer.Generate()); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	v := newTestVerifier(issued)
	tok := v.Generate()

	v.now = func() time.Time { return issued.Add(5*time.Minute + time.Second) }
	if err := v.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	v.now = func() time.Time { return issued.Add(5 * time.Minute) }
	if err := v.Verify(tok); err != nil {
		t.Fatalf("token at the age bound should verify: %v", err)
	}
}

func TestVerify_DisabledWithoutSecret(t *testing.T) {
	v := NewVerifier("", 5*time.Minute)
	if v.Enabled() {
		t.Fatal("empty secret must disable enforcement")
	}
	if v.Generate() != "" {
		t.Fatal("disabled verifier must not mint tokens")
	}
	if err := v.Verify(""); err != nil {
		t.Fatalf("disabled verifier must accept anything: %v", err)
	}
	if err := v.Verify("junk"); err != nil {
		t.Fatalf("disabled verifier must accept anything: %v", err)
	}
}

func TestVerify_FutureTimestampRejected(t *testing.T) {
	issued := time.Unix(1700000000, 0)
	v := newTestVerifier(issued)
	tok := v.Generate()

	// A verifier whose clock lags far behind the issuer sees a token from
	// the future; skew past the bound is rejected either way.
	v.now = func() time.Time { return issued.Add(-6 * time.Minute) }
	if err := v.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}
