package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User owns an Account. Role is one of the constants in internal/pkg/constants.
type User struct {
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	FullName  string    `gorm:"column:full_name;not null" json:"full_name"`
	Email     string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"column:user_type;type:varchar(20);not null" json:"user_type"`
	CreatedAt time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (User) TableName() string {
	return "Users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// Company is the scored entity. OwnerUserID is the company-role user that submits data for it.
type Company struct {
	CompanyID          uuid.UUID `gorm:"column:company_id;type:uuid;primaryKey" json:"company_id"`
	OwnerUserID        uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index" json:"owner_user_id"`
	CompanyName        string    `gorm:"column:company_name;not null" json:"company_name"`
	RegistrationNumber string    `gorm:"column:registration_number;uniqueIndex;not null" json:"registration_number"`
	Industry           string    `gorm:"column:industry" json:"industry"`
	CreatedAt          time.Time `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt          time.Time `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Company) TableName() string {
	return "Companies"
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	if c.CompanyID == uuid.Nil {
		c.CompanyID = uuid.New()
	}
	return nil
}
