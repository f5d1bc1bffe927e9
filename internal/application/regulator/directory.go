package regulator

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"csx-backend/internal/domain"
	"csx-backend/internal/pkg/constants"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type CompanyQuery struct {
	Search    string
	SortOrder string // "asc" or "desc" by score, default desc
	Page      int
	Limit     int
}

type CompanyRow struct {
	CompanyID         uuid.UUID       `json:"id"`
	CompanyName       string          `json:"company_name"`
	Industry          string          `json:"industry"`
	Score             decimal.Decimal `json:"score"`
	Category          string          `json:"score_category"`
	ScoredAt          time.Time       `json:"scored_at"`
	CertificateID     *string         `json:"certificate_id"`
	CertificateStatus *string         `json:"certificate_status"`
}

type CompanyPage struct {
	Companies  []CompanyRow `json:"companies"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"totalPages"`
}

// Companies pages through scored companies by their latest score.
func (s *Service) Companies(ctx context.Context, q CompanyQuery) (*CompanyPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}

	latest, err := s.latestScores(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.companies(ctx, latest)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	matched := make([]domain.CarbonScore, 0, len(latest))
	for _, sc := range latest {
		if needle == "" || strings.Contains(strings.ToLower(companies[sc.CompanyID].CompanyName), needle) {
			matched = append(matched, sc)
		}
	}
	asc := strings.EqualFold(q.SortOrder, "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		if asc {
			return matched[i].Score.LessThan(matched[j].Score)
		}
		return matched[i].Score.GreaterThan(matched[j].Score)
	})

	page := &CompanyPage{
		Total:      len(matched),
		Page:       q.Page,
		Limit:      q.Limit,
		TotalPages: int(math.Ceil(float64(len(matched)) / float64(q.Limit))),
		Companies:  []CompanyRow{},
	}
	start := (q.Page - 1) * q.Limit
	if start >= len(matched) {
		return page, nil
	}
	window := matched[start:min(start+q.Limit, len(matched))]
	certs, err := s.activeCertificates(ctx, window)
	if err != nil {
		return nil, err
	}
	for _, sc := range window {
		c := companies[sc.CompanyID]
		row := CompanyRow{
			CompanyID:   sc.CompanyID,
			CompanyName: c.CompanyName,
			Industry:    c.Industry,
			Score:       sc.Score,
			Category:    sc.Category,
			ScoredAt:    sc.ScoredAt,
		}
		if cert, ok := certs[sc.ScoreID]; ok {
			id, status := cert.CertificateID, cert.Status
			row.CertificateID, row.CertificateStatus = &id, &status
		}
		page.Companies = append(page.Companies, row)
	}
	return page, nil
}

type IndividualRow struct {
	UserID        uuid.UUID       `json:"id"`
	FullName      string          `json:"full_name"`
	Email         string          `json:"email"`
	MemberSince   time.Time       `json:"member_since"`
	CreditBalance decimal.Decimal `json:"credit_balance"`
}

// Individuals lists individual users with their credit balance, richest first unless sortOrder is "asc".
func (s *Service) Individuals(ctx context.Context, search, sortOrder string) ([]IndividualRow, error) {
	db := s.DB.WithContext(ctx)
	q := db.Where("user_type = ?", constants.Individual)
	if needle := strings.ToLower(strings.TrimSpace(search)); needle != "" {
		q = q.Where("LOWER(full_name) LIKE ?", "%"+needle+"%")
	}
	var users []domain.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]IndividualRow, 0, len(users))
	if len(users) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.UserID)
	}
	var accounts []domain.Account
	if err := db.Where("owner_id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	balances := make(map[uuid.UUID]decimal.Decimal, len(accounts))
	for _, a := range accounts {
		balances[a.OwnerID] = a.Balance
	}
	for _, u := range users {
		out = append(out, IndividualRow{
			UserID:        u.UserID,
			FullName:      u.FullName,
			Email:         u.Email,
			MemberSince:   u.CreatedAt,
			CreditBalance: balances[u.UserID],
		})
	}
	asc := strings.EqualFold(sortOrder, "asc")
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreditBalance, out[j].CreditBalance
		if !a.Equal(b) {
			return a.LessThan(b) == asc
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

type ScoreBucket struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// ScoreDistribution counts scored companies per category band of their latest score.
func (s *Service) ScoreDistribution(ctx context.Context) ([]ScoreBucket, error) {
	latest, err := s.latestScores(ctx)
	if err != nil {
		return nil, err
	}
	out := []ScoreBucket{
		{Category: domain.CategoryExcellent},
		{Category: domain.CategoryGood},
		{Category: domain.CategoryFair},
		{Category: domain.CategoryPoor},
	}
	idx := make(map[string]int, len(out))
	for i, b := range out {
		idx[b.Category] = i
	}
	for _, sc := range latest {
		out[idx[domain.CategoryFor(sc.Score)]].Count++
	}
	return out, nil
}
