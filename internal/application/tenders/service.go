// Package tenders runs government tenders that companies bid on with their carbon score.
package tenders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"csx-backend/internal/application/ledger"
	"csx-backend/internal/application/scoring"
	"csx-backend/internal/domain"
	"csx-backend/internal/infrastructure/database"
	"csx-backend/internal/infrastructure/metrics"
	"csx-backend/internal/infrastructure/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var maxScore = decimal.NewFromInt(100)

type Service struct {
	DB       *gorm.DB
	Notifier notify.Publisher
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type CreateInput struct {
	Title       string
	Description string
	MinScore    decimal.Decimal
	Budget      *decimal.Decimal
	Deadline    time.Time
}

// Create opens a tender. The deadline must lie in the future.
func (s *Service) Create(ctx context.Context, creator uuid.UUID, in CreateInput) (*domain.Tender, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", domain.ErrInvalidArgument)
	}
	if in.MinScore.IsNegative() || in.MinScore.GreaterThan(maxScore) {
		return nil, fmt.Errorf("%w: minScore must be between 0 and 100", domain.ErrInvalidArgument)
	}
	if in.Budget != nil && in.Budget.IsNegative() {
		return nil, fmt.Errorf("%w: budget must not be negative", domain.ErrInvalidArgument)
	}
	if !in.Deadline.After(s.now()) {
		return nil, fmt.Errorf("%w: deadline must be in the future", domain.ErrInvalidArgument)
	}

	t := &domain.Tender{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		MinScore:    in.MinScore,
		Budget:      in.Budget,
		Deadline:    in.Deadline.UTC(),
		Status:      domain.TenderOpen,
		CreatedBy:   creator,
	}
	if err := s.DB.WithContext(ctx).Create(t).Error; err != nil {
		return nil, err
	}
	log.Info().Str("tender_id", t.TenderID.String()).Str("min_score", t.MinScore.String()).Msg("tender created")
	s.publish(ctx, notify.Event{Type: notify.EventTenderCreated, Data: t})
	return t, nil
}

// TenderView is a tender with its creator's display name.
type TenderView struct {
	domain.Tender
	CreatedByName string `json:"created_by_name"`
}

// ListOpen returns open tenders whose deadline has not passed, nearest deadline first.
func (s *Service) ListOpen(ctx context.Context) ([]TenderView, error) {
	var rows []domain.Tender
	if err := s.DB.WithContext(ctx).
		Where("status = ?", domain.TenderOpen).
		Order("deadline ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	now := s.now()
	open := rows[:0]
	creators := make([]uuid.UUID, 0, len(rows))
	for _, t := range rows {
		if t.Deadline.After(now) {
			open = append(open, t)
			creators = append(creators, t.CreatedBy)
		}
	}
	names, err := ledger.UserNames(ctx, s.DB, creators...)
	if err != nil {
		return nil, err
	}
	out := make([]TenderView, 0, len(open))
	for _, t := range open {
		out = append(out, TenderView{Tender: t, CreatedByName: names[t.CreatedBy]})
	}
	return out, nil
}

// Close stops a tender from taking further applications.
func (s *Service) Close(ctx context.Context, tenderID uuid.UUID) (*domain.Tender, error) {
	var t domain.Tender
	err := database.InTx(ctx, s.DB, 0, func(tx *gorm.DB) error {
		if err := database.ForUpdate(tx).Where("tender_id = ?", tenderID).Take(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: tender %s", domain.ErrNotFound, tenderID)
			}
			return err
		}
		if t.Status != domain.TenderOpen {
			return fmt.Errorf("%w: tender is %s", domain.ErrInvalidState, t.Status)
		}
		t.Status = domain.TenderClosed
		return tx.Model(&t).Update("status", t.Status).Error
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{Type: notify.EventTenderClosed, Data: t})
	return &t, nil
}

// Apply submits the requester's company to a tender. The company's latest score must reach
// the tender's minimum, the tender must be open and before its deadline, and a company applies once.
func (s *Service) Apply(ctx context.Context, requester, tenderID uuid.UUID, data json.RawMessage) (*domain.TenderApplication, error) {
	var company domain.Company
	if err := s.DB.WithContext(ctx).Where("owner_user_id = ?", requester).Order(`"createdAt" ASC`).Take(&company).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no company registered for this account", domain.ErrNotFound)
		}
		return nil, err
	}

	app := &domain.TenderApplication{CompanyID: company.CompanyID, TenderID: tenderID, AppliedAt: s.now().UTC()}
	if len(data) > 0 && string(data) != "null" {
		app.ApplicationData = datatypes.JSON(data)
	}
	err := database.InTx(ctx, s.DB, 0, func(tx *gorm.DB) error {
		var t domain.Tender
		if err := tx.Where("tender_id = ?", tenderID).Take(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: tender %s", domain.ErrNotFound, tenderID)
			}
			return err
		}
		if t.Status != domain.TenderOpen {
			return fmt.Errorf("%w: tender is not open", domain.ErrInvalidState)
		}
		if t.Deadline.Before(s.now()) {
			return fmt.Errorf("%w: tender deadline has passed", domain.ErrInvalidState)
		}

		latest, err := scoring.LatestByCompany(ctx, tx, company.CompanyID)
		if err != nil {
			return err
		}
		score, ok := latest[company.CompanyID]
		if !ok {
			return fmt.Errorf("%w: company must have a carbon score to apply", domain.ErrNotEligible)
		}
		if score.Score.LessThan(t.MinScore) {
			return fmt.Errorf("%w: company score (%s) is below minimum requirement (%s)",
				domain.ErrNotEligible, score.Score.StringFixed(2), t.MinScore.StringFixed(2))
		}

		var n int64
		if err := tx.Model(&domain.TenderApplication{}).
			Where("tender_id = ? AND company_id = ?", tenderID, company.CompanyID).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errAlreadyApplied
		}
		if err := tx.Create(app).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return errAlreadyApplied
			}
			return err
		}
		return nil
	})
	metrics.TenderApplications.WithLabelValues(applyOutcome(err)).Inc()
	if err != nil {
		return nil, err
	}
	s.publish(ctx, notify.Event{Type: notify.EventTenderApplication, CompanyID: company.CompanyID.String(), Data: app})
	return app, nil
}

var errAlreadyApplied = fmt.Errorf("%w: already applied to this tender", domain.ErrInvalidState)

func applyOutcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, errAlreadyApplied):
		return "duplicate"
	default:
		return "error"
	}
}

// CompanyApplication is an application with the tender it targets.
type CompanyApplication struct {
	domain.TenderApplication
	TenderTitle string           `json:"tender_title"`
	Budget      *decimal.Decimal `json:"budget"`
	Deadline    time.Time        `json:"deadline"`
}

// ApplicationsOf lists the applications of every company owned by requester, newest first.
func (s *Service) ApplicationsOf(ctx context.Context, requester uuid.UUID) ([]CompanyApplication, error) {
	var companyIDs []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&domain.Company{}).Where("owner_user_id = ?", requester).Pluck("company_id", &companyIDs).Error; err != nil {
		return nil, err
	}
	out := []CompanyApplication{}
	if len(companyIDs) == 0 {
		return out, nil
	}
	var apps []domain.TenderApplication
	if err := s.DB.WithContext(ctx).Where("company_id IN ?", companyIDs).Order("applied_at DESC").Find(&apps).Error; err != nil {
		return nil, err
	}
	tenders, err := s.tendersByID(ctx, apps)
	if err != nil {
		return nil, err
	}
	for _, a := range apps {
		t := tenders[a.TenderID]
		out = append(out, CompanyApplication{TenderApplication: a, TenderTitle: t.Title, Budget: t.Budget, Deadline: t.Deadline})
	}
	return out, nil
}

func (s *Service) tendersByID(ctx context.Context, apps []domain.TenderApplication) (map[uuid.UUID]domain.Tender, error) {
	ids := make([]uuid.UUID, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.TenderID)
	}
	out := make(map[uuid.UUID]domain.Tender, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.Tender
	if err := s.DB.WithContext(ctx).Where("tender_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, t := range rows {
		out[t.TenderID] = t
	}
	return out, nil
}

// RankedApplication is an application with the applicant's current score.
type RankedApplication struct {
	domain.TenderApplication
	CompanyName  string           `json:"company_name"`
	CompanyScore *decimal.Decimal `json:"company_score"`
}

// Applications lists a tender's applicants ranked by their current score, unscored last.
func (s *Service) Applications(ctx context.Context, tenderID uuid.UUID) ([]RankedApplication, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&domain.Tender{}).Where("tender_id = ?", tenderID).Count(&n).Error; err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: tender %s", domain.ErrNotFound, tenderID)
	}

	var apps []domain.TenderApplication
	if err := s.DB.WithContext(ctx).Where("tender_id = ?", tenderID).Order("applied_at ASC").Find(&apps).Error; err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.CompanyID)
	}
	out := make([]RankedApplication, 0, len(apps))
	if len(ids) == 0 {
		return out, nil
	}
	var companies []domain.Company
	if err := s.DB.WithContext(ctx).Where("company_id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(companies))
	for _, c := range companies {
		names[c.CompanyID] = c.CompanyName
	}
	latest, err := scoring.LatestByCompany(ctx, s.DB, ids...)
	if err != nil {
		return nil, err
	}

	for _, a := range apps {
		r := RankedApplication{TenderApplication: a, CompanyName: names[a.CompanyID]}
		if sc, ok := latest[a.CompanyID]; ok {
			v := sc.Score
			r.CompanyScore = &v
		}
		out = append(out, r)
	}
	// Stable keeps earlier applicants first among equal scores.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CompanyScore, out[j].CompanyScore
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.GreaterThan(*b)
	})
	return out, nil
}

func (s *Service) publish(ctx context.Context, ev notify.Event) {
	if s.Notifier != nil {
		s.Notifier.Publish(ctx, ev)
	}
}
