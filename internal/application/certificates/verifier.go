package certificates

import (
	"context"
	"errors"
	"time"

	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/metrics"

	"gorm.io/gorm"
)

const (
	MessageValid     = "valid"
	MessageNotFound  = "not found"
	MessageTampered  = "tampering detected"
	MessageExpired   = "expired"
	messageStatusFmt = "certificate is "
)

// VerificationResult is the public answer for one certificate id. Details depend on the outcome.
type VerificationResult struct {
	Valid   bool                   `json:"valid"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Verifier is read-only: it never changes stored status, even for date-expired certificates.
type Verifier struct {
	DB     *gorm.DB
	Signer Signer
	Now    func() time.Time
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Verify checks existence, signature, stored status and validity window, in that order.
// An error is returned only when the store itself fails.
func (v *Verifier) Verify(ctx context.Context, certificateID string) (*VerificationResult, error) {
	res, err := v.verify(ctx, certificateID)
	if err == nil {
		metrics.CertificateVerifications.WithLabelValues(res.Message).Inc()
	}
	return res, err
}

func (v *Verifier) verify(ctx context.Context, certificateID string) (*VerificationResult, error) {
	var cert domain.Certificate
	err := v.DB.WithContext(ctx).
		Preload("Company").
		Preload("Score").
		Where("certificate_id = ?", certificateID).
		Take(&cert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &VerificationResult{Valid: false, Message: MessageNotFound}, nil
	}
	if err != nil {
		return nil, err
	}

	if cert.Company == nil || cert.Score == nil {
		return &VerificationResult{Valid: false, Message: MessageTampered}, nil
	}
	payload := NewPayload(cert.CertificateID, cert.Company.CompanyName, cert.Score.Score, cert.IssueDate)
	if !v.Signer.Verify(payload, cert.SignatureHash) {
		return &VerificationResult{Valid: false, Message: MessageTampered}, nil
	}

	if cert.Status != domain.CertificateActive {
		return &VerificationResult{
			Valid:   false,
			Message: messageStatusFmt + cert.Status,
			Details: map[string]interface{}{
				"status":     cert.Status,
				"issueDate":  cert.IssueDate.UTC(),
				"validUntil": cert.ValidUntil.UTC(),
			},
		}, nil
	}

	if v.now().After(cert.ValidUntil) {
		return &VerificationResult{
			Valid:   false,
			Message: MessageExpired,
			Details: map[string]interface{}{"expiredOn": cert.ValidUntil.UTC()},
		}, nil
	}

	return &VerificationResult{
		Valid:   true,
		Message: MessageValid,
		Details: map[string]interface{}{
			"certificateId":      cert.CertificateID,
			"companyName":        cert.Company.CompanyName,
			"registrationNumber": cert.Company.RegistrationNumber,
			"industry":           cert.Company.Industry,
			"score":              cert.Score.Score.StringFixed(2),
			"category":           cert.Score.Category,
			"scoredAt":           cert.Score.ScoredAt.UTC(),
			"issueDate":          cert.IssueDate.UTC(),
			"validUntil":         cert.ValidUntil.UTC(),
			"status":             cert.Status,
		},
	}, nil
}
