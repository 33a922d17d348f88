package kalshi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Signer produces the RSA-PSS request signatures Kalshi's trade API
// requires. The signed payload is timestamp + method + path (no query
// string, no body).
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

func NewSigner(keyID string, key *rsa.PrivateKey) *Signer {
	return &Signer{keyID: keyID, key: key}
}

// NewSignerFromPEM parses a PKCS#1 or PKCS#8 PEM private key.
func NewSignerFromPEM(keyID string, pemData []byte) (*Signer, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("kalshi.NewSignerFromPEM: no PEM block found")
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return NewSigner(keyID, key), nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("kalshi.NewSignerFromPEM: parse key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kalshi.NewSignerFromPEM: key is %T, want *rsa.PrivateKey", parsed)
	}
	return NewSigner(keyID, key), nil
}

// NewSignerFromFile loads the PEM key from disk.
func NewSignerFromFile(keyID, path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kalshi.NewSignerFromFile: %w", err)
	}
	return NewSignerFromPEM(keyID, data)
}

// Headers returns the three auth headers for one request. The timestamp
// is milliseconds since epoch and must match the signed payload exactly.
func (s *Signer) Headers(method, path string, now time.Time) (map[string]string, error) {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	msg := ts + method + path

	digest := sha256.Sum256([]byte(msg))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return nil, fmt.Errorf("kalshi.Signer: sign: %w", err)
	}

	return map[string]string{
		"KALSHI-ACCESS-KEY":       s.keyID,
		"KALSHI-ACCESS-SIGNATURE": base64.StdEncoding.EncodeToString(sig),
		"KALSHI-ACCESS-TIMESTAMP": ts,
	}, nil
}
