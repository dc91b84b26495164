package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/meetbridge/meetbridge/internal/errs"
)

// Request headers carrying the sender's signature material.
const (
	HeaderSignature = "x-zm-signature"
	HeaderTimestamp = "x-zm-request-timestamp"
)

const (
	signaturePrefix = "v0"

	// maxTimestampAge bounds replay exposure; futureSkew tolerates sender
	// clock drift.
	maxTimestampAge = 5 * time.Minute
	futureSkew      = time.Minute
)

// Validator checks inbound webhook signatures against the shared secret.
type Validator struct {
	secret []byte
	now    func() time.Time
}

// NewValidator creates a signature validator for the shared webhook secret.
func NewValidator(secret string) (*Validator, error) {
	if secret == "" {
		return nil, errs.NewConfiguration("webhook secret is required")
	}
	return &Validator{secret: []byte(secret), now: time.Now}, nil
}

// Validate verifies the signature and timestamp headers against the raw
// request body. Any failure means the request must be rejected before its
// body is acted on.
func (v *Validator) Validate(body []byte, signature, timestamp string) error {
	if signature == "" || timestamp == "" {
		return errs.NewSignature("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return errs.NewSignature("malformed request timestamp")
	}
	sent := time.Unix(ts, 0)
	now := v.now()
	if now.Sub(sent) > maxTimestampAge {
		return errs.NewSignature("request timestamp too old")
	}
	if sent.Sub(now) > futureSkew {
		return errs.NewSignature("request timestamp in the future")
	}

	expected := signaturePrefix + "=" + v.digest(signaturePrefix+":"+timestamp+":"+string(body))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errs.NewSignature("signature mismatch")
	}
	return nil
}

// Challenge answers a URL-validation handshake by signing the sender's
// plain token.
func (v *Validator) Challenge(plainToken string) ChallengeResponse {
	return ChallengeResponse{
		PlainToken:     plainToken,
		EncryptedToken: v.digest(plainToken),
	}
}

func (v *Validator) digest(message string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
