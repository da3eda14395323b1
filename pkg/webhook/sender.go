package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sender POSTs signed JSON payloads with retries.
type Sender struct {
	client     *http.Client
	secret     string
	timeout    time.Duration
	maxRetries int
	backoff    BackoffStrategy
	userAgent  string
	now        func() time.Time
}

// SenderOption configures a Sender.
type SenderOption func(*Sender)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithSecret enables request signing.
func WithSecret(secret string) SenderOption {
	return func(s *Sender) {
		s.secret = secret
	}
}

// WithTimeout bounds each attempt. Default 10s.
func WithTimeout(d time.Duration) SenderOption {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetries sets how many times a failed delivery is retried and how long
// to wait in between. Default 3 retries with DefaultBackoff.
func WithRetries(n int, backoff BackoffStrategy) SenderOption {
	return func(s *Sender) {
		if n >= 0 {
			s.maxRetries = n
		}
		if backoff != nil {
			s.backoff = backoff
		}
	}
}

func NewSender(opts ...SenderOption) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout:    10 * time.Second,
		maxRetries: 3,
		backoff:    DefaultBackoff(),
		userAgent:  "billingkit-webhook/1.0",
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers payload to endpoint. 4xx answers other than 408, 425 and 429
// are permanent and not retried.
func (s *Sender) Send(ctx context.Context, endpoint string, payload []byte, id string) error {
	if err := validateEndpoint(endpoint); err != nil {
		return err
	}
	if len(payload) == 0 {
		return ErrInvalidPayload
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrDeliveryFailed, ctx.Err(), lastErr)
			case <-time.After(s.backoff.NextInterval(attempt)):
			}
		}

		status, err := s.attempt(ctx, endpoint, payload, id)
		if err == nil {
			return nil
		}
		lastErr = err
		if isPermanent(status) {
			return errors.Join(ErrPermanentFailure, err)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

func (s *Sender) attempt(ctx context.Context, endpoint string, payload []byte, id string) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if s.secret != "" {
		sig, err := Sign(s.secret, payload, id, s.now())
		if err != nil {
			return 0, err
		}
		sig.Apply(req.Header)
	} else if id != "" {
		req.Header.Set(HeaderID, id)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " "))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return resp.StatusCode, fmt.Errorf("endpoint answered %d: %s", resp.StatusCode, msg)
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}

func isPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
