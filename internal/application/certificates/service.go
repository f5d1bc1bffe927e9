package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/artifacts"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const auditLogLimit = 100

// ErrUnavailable means the certificate exists but is superseded or past its validity window.
var ErrUnavailable = &domain.Error{Kind: domain.KindInvalidState, Message: "certificate is no longer valid"}

// Service answers read-side certificate queries.
type Service struct {
	DB    *gorm.DB
	Store artifacts.Store
	Now   func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ListByCompany returns every certificate of the company, newest first.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]domain.Certificate, error) {
	var certs []domain.Certificate
	err := s.DB.WithContext(ctx).
		Preload("Score").
		Where("company_id = ?", companyID).
		Order("issue_date DESC").
		Find(&certs).Error
	return certs, err
}

// AuditLog returns the latest certificates across all companies for regulators.
func (s *Service) AuditLog(ctx context.Context) ([]domain.Certificate, error) {
	var certs []domain.Certificate
	err := s.DB.WithContext(ctx).
		Preload("Company").
		Preload("Score").
		Order("issue_date DESC").
		Limit(auditLogLimit).
		Find(&certs).Error
	return certs, err
}

// Artifact is a downloadable certificate document.
type Artifact struct {
	Certificate domain.Certificate
	Data        []byte
}

// Download returns the stored document of an active, unexpired certificate.
func (s *Service) Download(ctx context.Context, certificateID string) (*Artifact, error) {
	var cert domain.Certificate
	if err := s.DB.WithContext(ctx).Where("certificate_id = ?", certificateID).Take(&cert).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: certificate %s", domain.ErrNotFound, certificateID)
		}
		return nil, err
	}
	if !cert.EffectivelyValid(s.now()) {
		return nil, ErrUnavailable
	}
	data, err := s.Store.Get(ctx, cert.ArtifactPath)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, fmt.Errorf("%w: certificate document %s", domain.ErrNotFound, certificateID)
	}
	if err != nil {
		return nil, err
	}
	return &Artifact{Certificate: cert, Data: data}, nil
}
