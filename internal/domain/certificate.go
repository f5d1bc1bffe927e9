package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Certificate storage statuses. Expiry by date is computed at verification time and never written back.
const (
	CertificateActive  = "active"
	CertificateExpired = "expired"
)

// Certificate is a signed attestation of one CarbonScore. At most one row per company is active.
type Certificate struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CertificateID   string    `gorm:"column:certificate_id;type:varchar(32);uniqueIndex;not null" json:"certificate_id"`
	CompanyID       uuid.UUID `gorm:"column:company_id;type:uuid;not null;index;uniqueIndex:uq_certificates_one_active,where:status = 'active'" json:"company_id"`
	ScoreID         uuid.UUID `gorm:"column:score_id;type:uuid;not null" json:"score_id"`
	IssueDate       time.Time `gorm:"column:issue_date;not null" json:"issue_date"`
	ValidUntil      time.Time `gorm:"column:valid_until;not null" json:"valid_until"`
	Status          string    `gorm:"column:status;type:varchar(20);not null;default:'active'" json:"status"`
	SignatureHash   string    `gorm:"column:signature_hash;type:varchar(64);not null" json:"signature_hash"`
	ArtifactPath    string    `gorm:"column:artifact_path" json:"artifact_path"`
	VerificationURL string    `gorm:"column:verification_url" json:"verification_url"`
	CreatedAt       time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt       time.Time `gorm:"column:updatedAt" json:"updatedAt"`

	Company *Company     `gorm:"foreignKey:CompanyID;references:CompanyID" json:"company,omitempty"`
	Score   *CarbonScore `gorm:"foreignKey:ScoreID;references:ScoreID" json:"score,omitempty"`
}

func (Certificate) TableName() string {
	return "Certificates"
}

func (c *Certificate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// EffectivelyValid reports whether the certificate is active and not past valid_until at now.
func (c *Certificate) EffectivelyValid(now time.Time) bool {
	return c.Status == CertificateActive && !now.After(c.ValidUntil)
}
