package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hookline/internal/platform/models"
)

const (
	HeaderElevenLabsSignature = "ElevenLabs-Signature"
	HeaderSignature           = "X-Signature"

	defaultSignatureTolerance = 30 * time.Minute
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignTimestamped produces an ElevenLabs style header value for payload.
func SignTimestamped(secret string, ts time.Time, payload []byte) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v0=" + Sign(secret, append([]byte(t+"."), payload...))
}

// SignatureVerifier checks provider HMAC headers. A source with an empty
// secret is accepted unverified.
type SignatureVerifier struct {
	Secrets   map[models.Source]string
	Tolerance time.Duration
	Now       func() time.Time
}

func (v SignatureVerifier) Verify(source models.Source, header http.Header, body []byte) error {
	secret := strings.TrimSpace(v.Secrets[source])
	if secret == "" {
		return nil
	}

	if source == models.SourceElevenLabs {
		return v.verifyTimestamped(secret, header.Get(HeaderElevenLabsSignature), body)
	}

	got := strings.TrimSpace(header.Get(HeaderSignature))
	if got == "" || !hmac.Equal([]byte(got), []byte(Sign(secret, body))) {
		return ErrInvalidSignature
	}
	return nil
}

func (v SignatureVerifier) verifyTimestamped(secret, value string, body []byte) error {
	var ts, sig string
	for _, part := range strings.Split(value, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = val
		case "v0":
			sig = val
		}
	}
	if ts == "" || sig == "" {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}

	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = defaultSignatureTolerance
	}
	if delta := now.Sub(time.Unix(unix, 0)); delta > tolerance || delta < -tolerance {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
	}

	expected := Sign(secret, append([]byte(ts+"."), body...))
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}
