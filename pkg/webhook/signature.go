package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Header names carrying the delivery signature.
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// Signature authenticates one delivery. ID is the lifecycle event ID, so
// receivers can use it to drop duplicates.
type Signature struct {
	Value     string
	Timestamp int64
	ID        string
}

// Apply sets the signature headers on h.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	h.Set(HeaderID, s.ID)
}

// Sign computes hex(HMAC-SHA256(secret, "<unix timestamp>.<payload>")).
func Sign(secret string, payload []byte, id string, at time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, ErrMissingSecret
	}
	if len(payload) == 0 {
		return Signature{}, ErrInvalidPayload
	}
	ts := at.Unix()
	return Signature{Value: computeSignature(secret, ts, payload), Timestamp: ts, ID: id}, nil
}

// Verify checks the signature headers of a received delivery against payload.
// Timestamps further than tolerance from now are rejected; a zero tolerance
// disables the check.
func Verify(secret string, payload []byte, h http.Header, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	value := h.Get(HeaderSignature)
	rawTS := h.Get(HeaderTimestamp)
	if value == "" || rawTS == "" {
		return ErrMissingSignature
	}
	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
	}

	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrSignatureExpired
		}
	}

	expected := computeSignature(secret, ts, payload)
	if !hmac.Equal([]byte(expected), []byte(value)) {
		return ErrInvalidSignature
	}
	return nil
}

func computeSignature(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte{'.'})
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
