package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Listing statuses. Active listings may be bought from; sold and cancelled are terminal.
const (
	ListingActive    = "active"
	ListingCancelled = "cancelled"
	ListingSold      = "sold"
)

// Listing is a sell offer. Amount is decremented in place by partial purchases.
type Listing struct {
	ListingID    uuid.UUID       `gorm:"column:listing_id;type:uuid;primaryKey" json:"listing_id"`
	SellerID     uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(20,4);not null" json:"amount"`
	PricePerUnit decimal.Decimal `gorm:"column:price_per_unit;type:numeric(20,4);not null" json:"price_per_unit"`
	Status       string          `gorm:"column:status;type:varchar(20);not null;default:'active';index" json:"status"`
	CreatedAt    time.Time       `gorm:"column:createdAt" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"column:updatedAt" json:"updatedAt"`
}

func (Listing) TableName() string {
	return "Listings"
}

// BeforeCreate sets listing_id if not already set (DBs without default uuid).
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ListingID == uuid.Nil {
		l.ListingID = uuid.New()
	}
	return nil
}

// Listing event types written alongside every listing state change.
const (
	ListingEventCreated   = "CREATED"
	ListingEventPurchased = "PURCHASED"
	ListingEventSold      = "SOLD"
	ListingEventCancelled = "CANCELLED"
)

// ListingEvent is the append-only audit trail of a listing.
type ListingEvent struct {
	EventID   uuid.UUID      `gorm:"column:event_id;type:uuid;primaryKey" json:"event_id"`
	ListingID uuid.UUID      `gorm:"column:listing_id;type:uuid;not null;index" json:"listing_id"`
	EventType string         `gorm:"column:event_type;type:varchar(30);not null" json:"event_type"`
	ActorID   uuid.UUID      `gorm:"column:actor_id;type:uuid;not null" json:"actor_id"`
	EventData datatypes.JSON `gorm:"column:event_data;type:jsonb;not null" json:"event_data"`
	CreatedAt time.Time      `gorm:"column:createdAt" json:"createdAt"`
}

func (ListingEvent) TableName() string {
	return "ListingEvents"
}

func (le *ListingEvent) BeforeCreate(tx *gorm.DB) error {
	if le.EventID == uuid.Nil {
		le.EventID = uuid.New()
	}
	return nil
}
