package welfare

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
)

// Vitals are the measurements collected at a store visit.
type Vitals struct {
	Store     string
	Systolic  int
	Diastolic int
	WeightKg  float64
	Notes     string
}

// CheckinStore is the durable visit collection. RecordCheckin must apply the
// visit append and the senior mutation atomically.
type CheckinStore interface {
	RecordCheckin(ctx context.Context, visit models.VisitRecord, earnedPoints int64, visitDate string) error
	ListVisits(ctx context.Context, limit int) ([]models.VisitRecord, error)
}

// CheckinLedger appends visit records gated by PIN match, updating the
// resident's last-visit date and welfare points alongside.
type CheckinLedger struct {
	registry *Registry
	store    CheckinStore
}

// NewCheckinLedger creates a check-in ledger over the registry and store.
func NewCheckinLedger(registry *Registry, s CheckinStore) *CheckinLedger {
	return &CheckinLedger{registry: registry, store: s}
}

// RecordVisit authenticates the resident by exact PIN comparison and, on
// success, appends a visit record stamped with now, sets the resident's
// last_visit_date to the date portion of now, and adds earnedPoints (which
// may be zero) to their welfare points. The three effects are one
// transaction: a failure leaves no partial state visible.
//
// Fails with ErrSeniorNotFound for an unknown id and ErrPINMismatch when the
// PIN differs, in that order, with no other authentication logic.
func (l *CheckinLedger) RecordVisit(ctx context.Context, seniorID, pin string, vitals Vitals, earnedPoints int64, now time.Time) (models.VisitRecord, error) {
	if earnedPoints < 0 {
		return models.VisitRecord{}, fmt.Errorf("earned points must be non-negative")
	}

	senior, err := l.registry.Find(ctx, seniorID)
	if err != nil {
		return models.VisitRecord{}, err
	}

	// Exact string equality, no normalization. Clear-text compare is the
	// contract; see ErrPINMismatch.
	if senior.PIN != pin {
		return models.VisitRecord{}, fmt.Errorf("%w for senior %s", ErrPINMismatch, seniorID)
	}

	visit := models.VisitRecord{
		ID:        uuid.New().String(),
		Timestamp: now,
		SeniorID:  senior.SeniorID,
		Name:      senior.Name,
		Store:     vitals.Store,
		Systolic:  vitals.Systolic,
		Diastolic: vitals.Diastolic,
		WeightKg:  vitals.WeightKg,
		Notes:     vitals.Notes,
	}

	visitDate := now.Format(models.DateLayout)
	if err := l.store.RecordCheckin(ctx, visit, earnedPoints, visitDate); err != nil {
		return models.VisitRecord{}, fmt.Errorf("failed to record visit: %w", err)
	}

	return visit, nil
}

// Visits returns visit records, newest first. limit <= 0 means all.
func (l *CheckinLedger) Visits(ctx context.Context, limit int) ([]models.VisitRecord, error) {
	return l.store.ListVisits(ctx, limit)
}
