package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"csx-backend/internal/application/certificates"
	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 12
	maxHistoryLimit     = 100
)

// CertificateIssuer is satisfied by *certificates.Issuer.
type CertificateIssuer interface {
	Issue(ctx context.Context, req certificates.IssueRequest) (*domain.Certificate, error)
}

type Service struct {
	DB       *gorm.DB
	Scorer   Scorer
	Issuer   CertificateIssuer
	Notifier notify.Publisher
}

// SubmitResult is returned even when certificate issuance failed; CertificateError then says why.
type SubmitResult struct {
	DataRecord       domain.CompanyDataRecord `json:"dataRecord"`
	CarbonScore      domain.CarbonScore       `json:"carbonScore"`
	Certificate      *domain.Certificate      `json:"certificate,omitempty"`
	CertificateError string                   `json:"certificateError,omitempty"`
}

// SubmitData scores a submission for a company owned by requester, stores the data record and
// score together, then issues a certificate for the new score.
func (s *Service) SubmitData(ctx context.Context, requester, companyID uuid.UUID, data Data) (*SubmitResult, error) {
	var company domain.Company
	if err := s.DB.WithContext(ctx).Where("company_id = ?", companyID).Take(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: company %s", domain.ErrNotFound, companyID)
		}
		return nil, err
	}
	if company.OwnerUserID != requester {
		return nil, fmt.Errorf("%w: not authorized to submit data for this company", domain.ErrForbidden)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	res, err := s.Scorer.Score(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("calculate carbon score: %w", err)
	}
	explanation := res.Explanation
	if explanation == nil {
		explanation = map[string]interface{}{}
	}
	explanationJSON, err := json.Marshal(explanation)
	if err != nil {
		return nil, err
	}

	value := decimal.NewFromFloat(res.Score).Round(2)
	out := &SubmitResult{
		DataRecord: domain.CompanyDataRecord{CompanyID: companyID, Data: datatypes.JSON(raw)},
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&out.DataRecord).Error; err != nil {
			return err
		}
		out.CarbonScore = domain.CarbonScore{
			CompanyID:    companyID,
			Score:        value,
			Category:     domain.CategoryFor(value),
			Explanation:  datatypes.JSON(explanationJSON),
			DataRecordID: out.DataRecord.RecordID,
		}
		return tx.Create(&out.CarbonScore).Error
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("company_id", companyID.String()).Str("score", value.StringFixed(2)).Str("source", res.Source).Msg("carbon score recorded")

	if s.Issuer != nil {
		cert, err := s.Issuer.Issue(ctx, certificates.IssueRequest{
			CompanyID:          companyID,
			ScoreID:            out.CarbonScore.ScoreID,
			CompanyName:        company.CompanyName,
			RegistrationNumber: company.RegistrationNumber,
			Industry:           company.Industry,
			Score:              out.CarbonScore.Score,
			Category:           out.CarbonScore.Category,
		})
		if err != nil {
			log.Error().Err(err).Str("company_id", companyID.String()).Msg("failed to generate certificate")
			out.CertificateError = err.Error()
		} else {
			out.Certificate = cert
		}
	}

	if s.Notifier != nil {
		s.Notifier.Publish(ctx, notify.Event{
			Type:      notify.EventScoreUpdated,
			CompanyID: companyID.String(),
			Data: map[string]interface{}{
				"score":    out.CarbonScore.Score,
				"category": out.CarbonScore.Category,
				"scoredAt": out.CarbonScore.ScoredAt,
			},
		})
	}
	return out, nil
}

// ScoreView is the latest score with the company's display fields.
type ScoreView struct {
	domain.CarbonScore
	CompanyName string `json:"company_name"`
	Industry    string `json:"industry"`
}

// LatestScore returns the company's current score.
func (s *Service) LatestScore(ctx context.Context, companyID uuid.UUID) (*ScoreView, error) {
	var company domain.Company
	if err := s.DB.WithContext(ctx).Where("company_id = ?", companyID).Take(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: company %s", domain.ErrNotFound, companyID)
		}
		return nil, err
	}
	var score domain.CarbonScore
	err := s.DB.WithContext(ctx).Where("company_id = ?", companyID).Order("scored_at DESC").Take(&score).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no carbon score found for this company", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ScoreView{CarbonScore: score, CompanyName: company.CompanyName, Industry: company.Industry}, nil
}

// ScoreHistory returns up to limit scores, newest first.
func (s *Service) ScoreHistory(ctx context.Context, companyID uuid.UUID, limit int) ([]domain.CarbonScore, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	var scores []domain.CarbonScore
	err := s.DB.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("scored_at DESC").
		Limit(limit).
		Find(&scores).Error
	return scores, err
}
