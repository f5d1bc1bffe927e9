package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tender statuses.
const (
	TenderOpen   = "open"
	TenderClosed = "closed"
)

const ApplicationPending = "pending"

// Tender is a government procurement call open to companies whose latest score reaches MinScore.
type Tender struct {
	TenderID    uuid.UUID        `gorm:"column:tender_id;type:uuid;primaryKey" json:"tender_id"`
	Title       string           `gorm:"column:title;not null" json:"title"`
	Description string           `gorm:"column:description" json:"description"`
	MinScore    decimal.Decimal  `gorm:"column:min_score;type:numeric(5,2);not null" json:"min_score"`
	Budget      *decimal.Decimal `gorm:"column:budget;type:numeric(20,2)" json:"budget"`
	Deadline    time.Time        `gorm:"column:deadline;not null;index" json:"deadline"`
	Status      string           `gorm:"column:status;type:varchar(20);not null;default:open;index" json:"status"`
	CreatedBy   uuid.UUID        `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
	CreatedAt   time.Time        `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Tender) TableName() string {
	return "Tenders"
}

func (t *Tender) BeforeCreate(tx *gorm.DB) error {
	if t.TenderID == uuid.Nil {
		t.TenderID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TenderOpen
	}
	return nil
}

// TenderApplication is one company's bid on a tender. A company applies at most once per tender.
type TenderApplication struct {
	ApplicationID   uuid.UUID      `gorm:"column:application_id;type:uuid;primaryKey" json:"application_id"`
	TenderID        uuid.UUID      `gorm:"column:tender_id;type:uuid;not null;uniqueIndex:uq_tender_applications_company,priority:1" json:"tender_id"`
	CompanyID       uuid.UUID      `gorm:"column:company_id;type:uuid;not null;index;uniqueIndex:uq_tender_applications_company,priority:2" json:"company_id"`
	ApplicationData datatypes.JSON `gorm:"column:application_data;type:jsonb" json:"application_data"`
	Status          string         `gorm:"column:status;type:varchar(20);not null;default:pending" json:"status"`
	AppliedAt       time.Time      `gorm:"column:applied_at;not null" json:"applied_at"`
}

func (TenderApplication) TableName() string {
	return "TenderApplications"
}

func (a *TenderApplication) BeforeCreate(tx *gorm.DB) error {
	if a.ApplicationID == uuid.Nil {
		a.ApplicationID = uuid.New()
	}
	if a.Status == "" {
		a.Status = ApplicationPending
	}
	if a.AppliedAt.IsZero() {
		a.AppliedAt = time.Now().UTC()
	}
	return nil
}
