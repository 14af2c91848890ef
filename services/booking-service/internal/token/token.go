// Package token issues and checks the short-lived form tokens the public
// booking endpoint requires. A token is "<unix-ts>:<hex hmac-sha256>" over
// the timestamp; it proves the client fetched the booking form recently and
// makes blind scripted POSTs cheap to reject.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMissing = errors.New("token missing")
	ErrInvalid = errors.New("token invalid")
	ErrExpired = errors.New("token expired")
)

const defaultMaxAge = 5 * time.Minute

type Verifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewVerifier(secret string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	return &Verifier{secret: []byte(secret), maxAge: maxAge, now: time.Now}
}

// Enabled reports whether tokens are enforced at all. An empty secret turns
// the whole mechanism off rather than silently accepting forgeable tokens.
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Generate mints a token for the current instant.
func (v *Verifier) Generate() string {
	if !v.Enabled() {
		return ""
	}
	ts := strconv.FormatInt(v.now().Unix(), 10)
	return ts + ":" + v.sign(ts)
}

// Verify checks shape, signature, then age. Signature first: an expired
// token with a bad signature is a forgery, not a slow client. Clock skew in
// either direction counts against the age bound.
func (v *Verifier) Verify(raw string) error {
	if !v.Enabled() {
		return nil
	}
	if raw == "" {
		return ErrMissing
	}
	ts, sig, ok := strings.Cut(raw, ":")
	if !ok || ts == "" || sig == "" {
		return ErrInvalid
	}
	if !hmac.Equal([]byte(v.sign(ts)), []byte(sig)) {
		return ErrInvalid
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalid
	}
	age := v.now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > v.maxAge {
		return ErrExpired
	}
	return nil
}

func (v *Verifier) sign(ts string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(ts))
	return hex.EncodeToString(mac.Sum(nil))
}
