package certificates

import (
	"context"
	"fmt"
	"strings"
	"time"

	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/artifacts"
	"csx-backend/internal/infrastructure/database"
	"csx-backend/internal/infrastructure/locks"
	"csx-backend/internal/infrastructure/metrics"
	"csx-backend/internal/infrastructure/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	validity      = 365 * 24 * time.Hour
	issueAttempts = 3
)

// IssueRequest carries the already-stored score being certified.
type IssueRequest struct {
	CompanyID          uuid.UUID
	ScoreID            uuid.UUID
	CompanyName        string
	RegistrationNumber string
	Industry           string
	Score              decimal.Decimal
	Category           string
}

// Issuer creates certificates. Each issuance supersedes the company's previous active certificate.
type Issuer struct {
	DB          *gorm.DB
	Locks       *locks.KeyedLocker
	Signer      Signer
	Renderer    Renderer
	Store       artifacts.Store
	Notifier    notify.Publisher
	BaseURL     string
	LockTimeout time.Duration
	Now         func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// VerificationURL is the public link printed on the certificate.
func (i *Issuer) VerificationURL(certificateID string) string {
	return strings.TrimRight(i.BaseURL, "/") + "/verify/" + certificateID
}

// Issue renders and stores the artifact, then expires prior active certificates and inserts the
// new one in a single transaction. No record is written when rendering or storage fails.
func (i *Issuer) Issue(ctx context.Context, req IssueRequest) (*domain.Certificate, error) {
	if req.CompanyID == uuid.Nil || req.ScoreID == uuid.Nil {
		return nil, fmt.Errorf("%w: company and score are required", domain.ErrInvalidArgument)
	}
	if req.CompanyName == "" {
		return nil, fmt.Errorf("%w: company name is required", domain.ErrInvalidArgument)
	}

	var lastErr error
	for attempt := 0; attempt < issueAttempts; attempt++ {
		cert, err := i.issueOnce(ctx, req)
		if err == nil {
			metrics.CertificatesIssued.WithLabelValues("ok").Inc()
			log.Info().Str("certificate_id", cert.CertificateID).Str("company_id", req.CompanyID.String()).Msg("certificate issued")
			if i.Notifier != nil {
				i.Notifier.Publish(ctx, notify.Event{Type: notify.EventCertificateIssued, CompanyID: req.CompanyID.String(), Data: cert})
			}
			return cert, nil
		}
		lastErr = err
		if !database.IsUniqueViolation(err) {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).Msg("certificate id collision, retrying")
	}
	metrics.CertificatesIssued.WithLabelValues("error").Inc()
	return nil, lastErr
}

func (i *Issuer) issueOnce(ctx context.Context, req IssueRequest) (*domain.Certificate, error) {
	issueDate := i.now().UTC().Truncate(time.Second)
	id, err := NewCertificateID(issueDate.Year())
	if err != nil {
		return nil, err
	}
	score := req.Score.Round(2)
	signature, err := i.Signer.Sign(NewPayload(id, req.CompanyName, score, issueDate))
	if err != nil {
		return nil, err
	}

	cert := &domain.Certificate{
		CertificateID:   id,
		CompanyID:       req.CompanyID,
		ScoreID:         req.ScoreID,
		IssueDate:       issueDate,
		ValidUntil:      issueDate.Add(validity),
		Status:          domain.CertificateActive,
		SignatureHash:   signature,
		VerificationURL: i.VerificationURL(id),
	}

	data, contentType, err := i.Renderer.Render(ctx, Document{
		CertificateID:      id,
		CompanyName:        req.CompanyName,
		RegistrationNumber: req.RegistrationNumber,
		Industry:           req.Industry,
		Score:              score.StringFixed(2),
		Category:           req.Category,
		IssueDate:          cert.IssueDate,
		ValidUntil:         cert.ValidUntil,
		VerificationURL:    cert.VerificationURL,
		Signature:          signature,
	})
	if err != nil {
		return nil, err
	}
	path, err := i.Store.Put(ctx, id+i.Renderer.Extension(), contentType, data)
	if err != nil {
		return nil, fmt.Errorf("store certificate artifact: %w", err)
	}
	cert.ArtifactPath = path

	err = i.Locks.Do(ctx, []string{locks.CompanyKey(req.CompanyID)}, func() error {
		return database.InTx(ctx, i.DB, i.LockTimeout, func(tx *gorm.DB) error {
			if err := tx.Model(&domain.Certificate{}).
				Where("company_id = ? AND status = ?", req.CompanyID, domain.CertificateActive).
				Update("status", domain.CertificateExpired).Error; err != nil {
				return err
			}
			return tx.Create(cert).Error
		})
	})
	if err != nil {
		if delErr := i.Store.Delete(context.WithoutCancel(ctx), path); delErr != nil {
			log.Error().Err(delErr).Str("path", path).Msg("orphaned certificate artifact")
		}
		return nil, err
	}
	return cert, nil
}
