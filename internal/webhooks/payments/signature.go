package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/ordercore-backend/pkg/errors"
)

// SignatureHeader carries "t=<unix seconds>,v1=<hex hmac-sha256>" computed over
// "<t>.<raw body>" with the shared webhook secret.
const SignatureHeader = "X-Payment-Signature"

// DefaultTolerance bounds how old a signed timestamp may be.
const DefaultTolerance = 5 * time.Minute

// Sign builds a signature header value for payload at ts.
func Sign(secret string, payload []byte, ts time.Time) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + unix + ",v1=" + computeMAC(secret, unix, payload)
}

// VerifySignature checks header against payload. Any failure is reported as
// Unauthorized so callers never learn which part was wrong.
func VerifySignature(secret, header string, payload []byte, now time.Time, tolerance time.Duration) error {
	if strings.TrimSpace(secret) == "" {
		return pkgerrors.New(pkgerrors.CodeInternal, "webhook secret is not configured")
	}
	var (
		timestamp  string
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return unauthorized()
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return unauthorized()
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(unix, 0))
		if age > tolerance || age < -tolerance {
			return unauthorized()
		}
	}

	expected := computeMAC(secret, timestamp, payload)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return unauthorized()
}

func computeMAC(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func unauthorized() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
}
