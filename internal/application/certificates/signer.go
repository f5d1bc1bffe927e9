package certificates

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const idPrefix = "CERT-CSX"

// NewCertificateID returns CERT-CSX-<year>-<8 uppercase hex> from 4 random bytes.
func NewCertificateID(year int) (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("certificate id: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", idPrefix, year, strings.ToUpper(hex.EncodeToString(b[:]))), nil
}

// Payload is the signed content of a certificate. Field order is part of the signature.
type Payload struct {
	CertificateID string `json:"certificateId"`
	CompanyName   string `json:"companyName"`
	Score         string `json:"score"`
	IssueDate     string `json:"issueDate"`
}

// NewPayload normalizes score to two decimals and issueDate to RFC3339 UTC seconds.
func NewPayload(certificateID, companyName string, score decimal.Decimal, issueDate time.Time) Payload {
	return Payload{
		CertificateID: certificateID,
		CompanyName:   companyName,
		Score:         score.StringFixed(2),
		IssueDate:     issueDate.UTC().Truncate(time.Second).Format(time.RFC3339),
	}
}

// Signer computes keyed hashes over certificate payloads.
type Signer struct {
	Secret []byte
}

// Sign returns hex(HMAC-SHA256(secret, canonical JSON of p)).
func (s Signer) Sign(p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, s.Secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify recomputes the signature and compares it byte for byte in constant time.
// Sign only emits lowercase hex, so any other spelling of the stored value is a mismatch.
func (s Signer) Verify(p Payload, signature string) bool {
	expected, err := s.Sign(p)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}
