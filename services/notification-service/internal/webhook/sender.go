// Package webhook fans booking events out to subscriber endpoints. Each
// delivery is a JSON POST signed with HMAC-SHA256 over the body so the
// receiver can verify origin without a shared session.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventHeader     = "X-Webhook-Event"
)

type Sender struct {
	urls   []string
	secret []byte
	http   *http.Client
}

// NewSender parses a comma-separated URL list. An empty list is valid and
// makes Send a no-op.
func NewSender(rawURLs, secret string) *Sender {
	var urls []string
	for _, u := range strings.Split(rawURLs, ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			urls = append(urls, u)
		}
	}
	return &Sender{
		urls:   urls,
		secret: []byte(secret),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send posts the payload to every endpoint. One slow or broken subscriber
// must not starve the rest, so all endpoints are attempted and the failures
// come back joined.
func (s *Sender) Send(ctx context.Context, eventType string, payload []byte) error {
	var errs []error
	for _, url := range s.urls {
		if err := s.post(ctx, url, eventType, payload); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", url, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Sender) post(ctx context.Context, url, eventType string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, eventType)
	req.Header.Set(SignatureHeader, Signature(s.secret, payload))

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (s *Sender) Configured() bool {
	return len(s.urls) > 0
}

func Signature(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
