// Package notify broadcasts state changes to live subscribers. Delivery is best effort:
// publishers never block on or fail because of slow or absent subscribers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	EventScoreUpdated       = "score_updated"
	EventCertificateIssued  = "certificate_issued"
	EventCreditsTransferred = "credits_transferred"
	EventCreditsPurchased   = "credits_purchased"
	EventCreditsGranted     = "credits_granted"
	EventListingCreated     = "listing_created"
	EventListingCancelled   = "listing_cancelled"
	EventTenderCreated      = "tender_created"
	EventTenderClosed       = "tender_closed"
	EventTenderApplication  = "tender_application"
)

// Event is the wire shape pushed to subscribers.
type Event struct {
	Type      string      `json:"type"`
	CompanyID string      `json:"companyId,omitempty"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher is called by services after commit.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Broker is a Publisher that live endpoints can subscribe to. The cancel func closes the channel.
type Broker interface {
	Publisher
	Subscribe(ctx context.Context) (<-chan Event, func())
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

const subscriberBuffer = 32

// Hub fans events out to in-process subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

func (h *Hub) Publish(_ context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("event", ev.Type).Msg("notify: subscriber buffer full, dropping event")
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
