// Package regulator serves the government oversight views.
package regulator

import (
	"context"
	"sort"
	"time"

	"csx-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	leaderboardSize = 20
	recentSize      = 10
)

type Service struct {
	DB *gorm.DB
}

type Statistics struct {
	TotalCompanies       int64                      `json:"total_companies"`
	ScoredCompanies      int64                      `json:"scored_companies"`
	ExcellentCompanies   int64                      `json:"excellent_companies"`
	PoorCompanies        int64                      `json:"poor_companies"`
	AverageScore         decimal.Decimal            `json:"average_score"`
	TotalAccounts        int64                      `json:"total_accounts"`
	CreditsInCirculation decimal.Decimal            `json:"credits_in_circulation"`
	ActiveListings       int64                      `json:"active_listings"`
	CreditsListed        decimal.Decimal            `json:"credits_listed"`
	ActiveCertificates   int64                      `json:"active_certificates"`
	VolumeByType         map[string]decimal.Decimal `json:"volume_by_type"`
}

type LeaderboardEntry struct {
	CompanyID     uuid.UUID       `json:"company_id"`
	CompanyName   string          `json:"company_name"`
	Industry      string          `json:"industry"`
	Score         decimal.Decimal `json:"score"`
	Category      string          `json:"category"`
	ScoredAt      time.Time       `json:"scored_at"`
	CertificateID *string         `json:"certificate_id"`
}

type Activity struct {
	CompanyName string          `json:"company_name"`
	Score       decimal.Decimal `json:"score"`
	Category    string          `json:"category"`
	Timestamp   time.Time       `json:"timestamp"`
}

type Dashboard struct {
	Statistics         Statistics           `json:"statistics"`
	Leaderboard        []LeaderboardEntry   `json:"leaderboard"`
	RecentActivity     []Activity           `json:"recentActivity"`
	RecentTransactions []domain.Transaction `json:"recentTransactions"`
}

type IndustrySummary struct {
	Industry     string          `json:"industry"`
	CompanyCount int             `json:"company_count"`
	AverageScore decimal.Decimal `json:"avg_score"`
	MaxScore     decimal.Decimal `json:"max_score"`
	MinScore     decimal.Decimal `json:"min_score"`
}

// Dashboard aggregates ledger, marketplace and scoring state for regulators.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	db := s.DB.WithContext(ctx)
	out := &Dashboard{Statistics: Statistics{VolumeByType: map[string]decimal.Decimal{}}}
	st := &out.Statistics

	if err := db.Model(&domain.Company{}).Count(&st.TotalCompanies).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Account{}).Count(&st.TotalAccounts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Account{}).Select("COALESCE(SUM(balance), 0)").Row().Scan(&st.CreditsInCirculation); err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Listing{}).Where("status = ?", domain.ListingActive).Count(&st.ActiveListings).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Listing{}).Where("status = ?", domain.ListingActive).Select("COALESCE(SUM(amount), 0)").Row().Scan(&st.CreditsListed); err != nil {
		return nil, err
	}
	if err := db.Model(&domain.Certificate{}).Where("status = ?", domain.CertificateActive).Count(&st.ActiveCertificates).Error; err != nil {
		return nil, err
	}

	var volumes []struct {
		Type  string
		Total decimal.Decimal
	}
	if err := db.Model(&domain.Transaction{}).Select("type, SUM(amount) AS total").Group("type").Scan(&volumes).Error; err != nil {
		return nil, err
	}
	for _, v := range volumes {
		st.VolumeByType[v.Type] = v.Total
	}

	latest, err := s.latestScores(ctx)
	if err != nil {
		return nil, err
	}
	st.ScoredCompanies = int64(len(latest))
	sum := decimal.Zero
	for _, sc := range latest {
		sum = sum.Add(sc.Score)
		if sc.Score.GreaterThanOrEqual(decimal.NewFromInt(80)) {
			st.ExcellentCompanies++
		}
		if sc.Score.LessThan(decimal.NewFromInt(40)) {
			st.PoorCompanies++
		}
	}
	if len(latest) > 0 {
		st.AverageScore = sum.Div(decimal.NewFromInt(int64(len(latest)))).Round(2)
	}

	if out.Leaderboard, err = s.leaderboard(ctx, latest); err != nil {
		return nil, err
	}
	if out.RecentActivity, err = s.recentActivity(ctx); err != nil {
		return nil, err
	}
	if err := db.Order(`"createdAt" DESC`).Limit(recentSize).Find(&out.RecentTransactions).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// IndustryAnalysis summarizes latest scores per industry, best average first.
func (s *Service) IndustryAnalysis(ctx context.Context) ([]IndustrySummary, error) {
	latest, err := s.latestScores(ctx)
	if err != nil {
		return nil, err
	}
	companies, err := s.companies(ctx, latest)
	if err != nil {
		return nil, err
	}
	byIndustry := map[string]*IndustrySummary{}
	sums := map[string]decimal.Decimal{}
	for _, sc := range latest {
		c, ok := companies[sc.CompanyID]
		if !ok || c.Industry == "" {
			continue
		}
		summary, ok := byIndustry[c.Industry]
		if !ok {
			summary = &IndustrySummary{Industry: c.Industry, MaxScore: sc.Score, MinScore: sc.Score}
			byIndustry[c.Industry] = summary
		}
		summary.CompanyCount++
		sums[c.Industry] = sums[c.Industry].Add(sc.Score)
		summary.MaxScore = decimal.Max(summary.MaxScore, sc.Score)
		summary.MinScore = decimal.Min(summary.MinScore, sc.Score)
	}
	out := make([]IndustrySummary, 0, len(byIndustry))
	for name, summary := range byIndustry {
		summary.AverageScore = sums[name].Div(decimal.NewFromInt(int64(summary.CompanyCount))).Round(2)
		out = append(out, *summary)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AverageScore.Equal(out[j].AverageScore) {
			return out[i].AverageScore.GreaterThan(out[j].AverageScore)
		}
		return out[i].Industry < out[j].Industry
	})
	return out, nil
}

// latestScores returns the newest score of every scored company.
func (s *Service) latestScores(ctx context.Context) ([]domain.CarbonScore, error) {
	var rows []domain.CarbonScore
	err := s.DB.WithContext(ctx).
		Table(`"CarbonScores" AS cs`).
		Where(`cs.scored_at = (SELECT MAX(scored_at) FROM "CarbonScores" WHERE company_id = cs.company_id)`).
		Order("cs.score DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		if _, dup := seen[r.CompanyID]; dup {
			continue
		}
		seen[r.CompanyID] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) companies(ctx context.Context, scores []domain.CarbonScore) (map[uuid.UUID]domain.Company, error) {
	ids := make([]uuid.UUID, 0, len(scores))
	for _, sc := range scores {
		ids = append(ids, sc.CompanyID)
	}
	out := make(map[uuid.UUID]domain.Company, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var companies []domain.Company
	if err := s.DB.WithContext(ctx).Where("company_id IN ?", ids).Find(&companies).Error; err != nil {
		return nil, err
	}
	for _, c := range companies {
		out[c.CompanyID] = c
	}
	return out, nil
}

func (s *Service) leaderboard(ctx context.Context, latest []domain.CarbonScore) ([]LeaderboardEntry, error) {
	top := latest
	if len(top) > leaderboardSize {
		top = top[:leaderboardSize]
	}
	companies, err := s.companies(ctx, top)
	if err != nil {
		return nil, err
	}
	certByScore, err := s.activeCertificates(ctx, top)
	if err != nil {
		return nil, err
	}

	out := make([]LeaderboardEntry, 0, len(top))
	for _, sc := range top {
		c := companies[sc.CompanyID]
		e := LeaderboardEntry{
			CompanyID:   sc.CompanyID,
			CompanyName: c.CompanyName,
			Industry:    c.Industry,
			Score:       sc.Score,
			Category:    sc.Category,
			ScoredAt:    sc.ScoredAt,
		}
		if cert, ok := certByScore[sc.ScoreID]; ok {
			id := cert.CertificateID
			e.CertificateID = &id
		}
		out = append(out, e)
	}
	return out, nil
}

// activeCertificates maps score id to the active certificate issued for it.
func (s *Service) activeCertificates(ctx context.Context, scores []domain.CarbonScore) (map[uuid.UUID]domain.Certificate, error) {
	out := map[uuid.UUID]domain.Certificate{}
	if len(scores) == 0 {
		return out, nil
	}
	ids := make([]uuid.UUID, 0, len(scores))
	for _, sc := range scores {
		ids = append(ids, sc.ScoreID)
	}
	var certs []domain.Certificate
	if err := s.DB.WithContext(ctx).
		Where("score_id IN ? AND status = ?", ids, domain.CertificateActive).
		Find(&certs).Error; err != nil {
		return nil, err
	}
	for _, c := range certs {
		out[c.ScoreID] = c
	}
	return out, nil
}

func (s *Service) recentActivity(ctx context.Context) ([]Activity, error) {
	var scores []domain.CarbonScore
	if err := s.DB.WithContext(ctx).Order("scored_at DESC").Limit(recentSize).Find(&scores).Error; err != nil {
		return nil, err
	}
	companies, err := s.companies(ctx, scores)
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(scores))
	for _, sc := range scores {
		out = append(out, Activity{
			CompanyName: companies[sc.CompanyID].CompanyName,
			Score:       sc.Score,
			Category:    sc.Category,
			Timestamp:   sc.ScoredAt,
		})
	}
	return out, nil
}
