package webhook

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// Verifier checks the authenticity and freshness of provider callbacks.
// The signature scheme is ECDSA-SHA256 over timestamp||rawBody, signed
// with the provider's key and sent base64-encoded in ASN.1 form. Requests
// older or newer than the tolerance window are rejected regardless of
// signature validity.
type Verifier struct {
	PublicKey *ecdsa.PublicKey
	Tolerance time.Duration
	// Enforce may be false only outside production.
	Enforce bool
	Now     func() time.Time
}

func NewVerifier(publicKeyB64 string, tolerance time.Duration, enforce bool) (*Verifier, error) {
	v := &Verifier{Tolerance: tolerance, Enforce: enforce, Now: time.Now}
	if !enforce {
		return v, nil
	}
	key, err := ParsePublicKey(publicKeyB64)
	if err != nil {
		return nil, err
	}
	v.PublicKey = key
	return v, nil
}

// ParsePublicKey decodes a base64 DER (PKIX) ECDSA public key.
func ParsePublicKey(b64 string) (*ecdsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("webhook public key: invalid base64: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("webhook public key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("webhook public key: not an ECDSA key")
	}
	return key, nil
}

// Verify validates the timestamp window first, then the signature.
func (v *Verifier) Verify(signature, timestamp string, body []byte) error {
	if !v.Enforce {
		return nil
	}
	if signature == "" || timestamp == "" {
		return fmt.Errorf("missing signature or timestamp header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp header: %w", err)
	}
	age := v.Now().Sub(time.Unix(ts, 0))
	if age > v.Tolerance || age < -v.Tolerance {
		return fmt.Errorf("timestamp outside the replay window")
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	digest := sha256.Sum256(append([]byte(timestamp), body...))
	if !ecdsa.VerifyASN1(v.PublicKey, digest[:], sig) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
