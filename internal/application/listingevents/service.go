package listingevents

import (
	"context"
	"fmt"

	"csx-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const defaultLimit = 200

type Service struct {
	DB *gorm.DB
}

// ListForSeller returns the audit trail of every listing the seller created, oldest first.
// eventType filters to one of the domain.ListingEvent* types when non-empty.
func (s *Service) ListForSeller(ctx context.Context, sellerID uuid.UUID, eventType string) ([]domain.ListingEvent, error) {
	if sellerID == uuid.Nil {
		return nil, fmt.Errorf("%w: seller id is required", domain.ErrInvalidArgument)
	}
	q := s.DB.WithContext(ctx).
		Table(`"ListingEvents" AS le`).
		Select("le.*").
		Joins(`JOIN "Listings" AS l ON l.listing_id = le.listing_id`).
		Where("l.seller_id = ?", sellerID)
	if eventType != "" {
		switch eventType {
		case domain.ListingEventCreated, domain.ListingEventPurchased, domain.ListingEventSold, domain.ListingEventCancelled:
		default:
			return nil, fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidArgument, eventType)
		}
		q = q.Where("le.event_type = ?", eventType)
	}
	events := []domain.ListingEvent{}
	if err := q.Order(`le."createdAt" ASC`).Limit(defaultLimit).Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
