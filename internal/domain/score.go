package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompanyDataRecord is one environmental data submission.
type CompanyDataRecord struct {
	RecordID    uuid.UUID      `gorm:"column:record_id;type:uuid;primaryKey" json:"record_id"`
	CompanyID   uuid.UUID      `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Data        datatypes.JSON `gorm:"column:data;type:jsonb;not null" json:"data"`
	SubmittedAt time.Time      `gorm:"column:submitted_at;not null" json:"submitted_at"`
}

func (CompanyDataRecord) TableName() string {
	return "CompanyDataRecords"
}

func (r *CompanyDataRecord) BeforeCreate(tx *gorm.DB) error {
	if r.RecordID == uuid.Nil {
		r.RecordID = uuid.New()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
	return nil
}

// Score categories by lower bound.
const (
	CategoryExcellent = "Excellent"
	CategoryGood      = "Good"
	CategoryFair      = "Fair"
	CategoryPoor      = "Poor"
)

// CarbonScore is append-only; the latest row per company is the current score.
type CarbonScore struct {
	ScoreID      uuid.UUID       `gorm:"column:score_id;type:uuid;primaryKey" json:"score_id"`
	CompanyID    uuid.UUID       `gorm:"column:company_id;type:uuid;not null;index" json:"company_id"`
	Score        decimal.Decimal `gorm:"column:score;type:numeric(5,2);not null" json:"score"`
	Category     string          `gorm:"column:category;type:varchar(20);not null" json:"category"`
	Explanation  datatypes.JSON  `gorm:"column:explanation;type:jsonb" json:"explanation"`
	DataRecordID uuid.UUID       `gorm:"column:data_record_id;type:uuid;not null" json:"data_record_id"`
	ScoredAt     time.Time       `gorm:"column:scored_at;not null;index" json:"scored_at"`
}

func (CarbonScore) TableName() string {
	return "CarbonScores"
}

func (s *CarbonScore) BeforeCreate(tx *gorm.DB) error {
	if s.ScoreID == uuid.Nil {
		s.ScoreID = uuid.New()
	}
	if s.ScoredAt.IsZero() {
		s.ScoredAt = time.Now().UTC()
	}
	return nil
}

// CategoryFor maps a 0-100 score to its band.
func CategoryFor(score decimal.Decimal) string {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return CategoryExcellent
	case score.GreaterThanOrEqual(decimal.NewFromInt(60)):
		return CategoryGood
	case score.GreaterThanOrEqual(decimal.NewFromInt(40)):
		return CategoryFair
	default:
		return CategoryPoor
	}
}
