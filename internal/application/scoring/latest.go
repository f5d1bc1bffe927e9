package scoring

import (
	"context"
	"sort"
	"time"

	"csx-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LatestByCompany returns the newest CarbonScore of each listed company; with no ids, of every
// scored company. Companies without a score are absent from the map.
func LatestByCompany(ctx context.Context, db *gorm.DB, companyIDs ...uuid.UUID) (map[uuid.UUID]domain.CarbonScore, error) {
	q := db.WithContext(ctx).Order("scored_at DESC")
	if len(companyIDs) > 0 {
		q = q.Where("company_id IN ?", companyIDs)
	}
	var rows []domain.CarbonScore
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]domain.CarbonScore, len(rows))
	for _, r := range rows {
		if _, seen := out[r.CompanyID]; !seen {
			out[r.CompanyID] = r
		}
	}
	return out, nil
}

// DirectoryEntry is a company with its current score, if any.
type DirectoryEntry struct {
	CompanyID          uuid.UUID        `json:"company_id"`
	CompanyName        string           `json:"company_name"`
	Industry           string           `json:"industry"`
	RegistrationNumber string           `json:"registration_number"`
	Score              *decimal.Decimal `json:"score"`
	Category           *string          `json:"score_category"`
	ScoredAt           *time.Time       `json:"scored_at"`
}

// Directory lists every company, best current score first; unscored companies come last by name.
func (s *Service) Directory(ctx context.Context) ([]DirectoryEntry, error) {
	var companies []domain.Company
	if err := s.DB.WithContext(ctx).Find(&companies).Error; err != nil {
		return nil, err
	}
	latest, err := LatestByCompany(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	out := make([]DirectoryEntry, 0, len(companies))
	for _, c := range companies {
		e := DirectoryEntry{
			CompanyID:          c.CompanyID,
			CompanyName:        c.CompanyName,
			Industry:           c.Industry,
			RegistrationNumber: c.RegistrationNumber,
		}
		if sc, ok := latest[c.CompanyID]; ok {
			score, category, at := sc.Score, sc.Category, sc.ScoredAt
			e.Score, e.Category, e.ScoredAt = &score, &category, &at
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Score != nil && b.Score != nil && !a.Score.Equal(*b.Score):
			return a.Score.GreaterThan(*b.Score)
		case (a.Score == nil) != (b.Score == nil):
			return a.Score != nil
		default:
			return a.CompanyName < b.CompanyName
		}
	})
	return out, nil
}
