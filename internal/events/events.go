package events

import (
	"context"
	"sync"
	"time"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
	"github.com/gisulro/jeju-sme-strategy-app/internal/rules"
)

// EventType represents the type of event.
type EventType string

const (
	// EventCouponIssued is emitted when a coupon rule is issued
	EventCouponIssued EventType = "coupon.issued"
	// EventCouponVerified is emitted when a transport token is verified
	EventCouponVerified EventType = "coupon.verified"
	// EventSeniorRegistered is emitted when a resident is registered
	EventSeniorRegistered EventType = "senior.registered"
	// EventVisitRecorded is emitted when a check-in succeeds
	EventVisitRecorded EventType = "visit.recorded"
	// EventFundEntryAppended is emitted when a fund ledger entry lands
	EventFundEntryAppended EventType = "fund.entry.appended"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// CouponIssuedData contains data for coupon issued events.
type CouponIssuedData struct {
	Rule rules.CouponRule
}

// CouponVerifiedData contains data for coupon verified events.
type CouponVerifiedData struct {
	Code       string
	CartAmount int64
	Result     rules.Result
	CheckedAt  time.Time
}

// SeniorRegisteredData contains data for senior registered events.
// The PIN never travels on the bus.
type SeniorRegisteredData struct {
	SeniorID string
	RiskTier models.RiskTier
}

// VisitRecordedData contains data for visit recorded events.
type VisitRecordedData struct {
	Visit        models.VisitRecord
	EarnedPoints int64
}

// FundEntryAppendedData contains data for fund entry appended events.
type FundEntryAppendedData struct {
	Entry models.FundEntry
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager manages event handlers and event publishing.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
}

// NewManager creates a new event manager.
func NewManager(enabled bool) *Manager {
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	if !m.enabled {
		return
	}

	m.mu.RLock()
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	// Execute handlers asynchronously to avoid blocking
	for _, handler := range handlers {
		go func(h Handler) {
			if err := h(ctx, event); err != nil {
				// In production, you might want to log this or send to error tracking
				_ = err
			}
		}(handler)
	}
}

// PublishCouponIssued publishes a coupon issued event.
func (m *Manager) PublishCouponIssued(ctx context.Context, rule rules.CouponRule) {
	m.Publish(ctx, EventCouponIssued, CouponIssuedData{Rule: rule})
}

// PublishCouponVerified publishes a coupon verified event.
func (m *Manager) PublishCouponVerified(ctx context.Context, code string, cartAmount int64, result rules.Result) {
	m.Publish(ctx, EventCouponVerified, CouponVerifiedData{
		Code:       code,
		CartAmount: cartAmount,
		Result:     result,
		CheckedAt:  time.Now(),
	})
}

// PublishSeniorRegistered publishes a senior registered event.
func (m *Manager) PublishSeniorRegistered(ctx context.Context, senior models.Senior) {
	m.Publish(ctx, EventSeniorRegistered, SeniorRegisteredData{
		SeniorID: senior.SeniorID,
		RiskTier: senior.RiskTier,
	})
}

// PublishVisitRecorded publishes a visit recorded event.
func (m *Manager) PublishVisitRecorded(ctx context.Context, visit models.VisitRecord, earnedPoints int64) {
	m.Publish(ctx, EventVisitRecorded, VisitRecordedData{
		Visit:        visit,
		EarnedPoints: earnedPoints,
	})
}

// PublishFundEntryAppended publishes a fund entry appended event.
func (m *Manager) PublishFundEntryAppended(ctx context.Context, entry models.FundEntry) {
	m.Publish(ctx, EventFundEntryAppended, FundEntryAppendedData{Entry: entry})
}

// Shutdown shuts down the event manager.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
}
