package welfare

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
	"github.com/gisulro/jeju-sme-strategy-app/internal/store"
)

var (
	// ErrSeniorNotFound is returned when a senior id does not resolve.
	ErrSeniorNotFound = errors.New("senior not found")

	// ErrPINMismatch is returned when a supplied check-in PIN does not
	// exactly match the stored one. This is the sole authentication gate in
	// the system; there is no lockout, rate limiting or attempt counter.
	ErrPINMismatch = errors.New("pin mismatch")
)

// SeniorStore is the durable registry collection the welfare components
// consume.
type SeniorStore interface {
	InsertSenior(ctx context.Context, s models.Senior) error
	GetSenior(ctx context.Context, seniorID string) (models.Senior, error)
	ListSeniors(ctx context.Context) ([]models.Senior, error)
}

// Registry manages resident records and PIN-based identity.
type Registry struct {
	store SeniorStore

	// strictIDs layers a collision check over the best-effort random id
	// generator.
	strictIDs bool
}

// NewRegistry creates a registry over the given store.
func NewRegistry(s SeniorStore, strictIDs bool) *Registry {
	return &Registry{store: s, strictIDs: strictIDs}
}

const digits = "0123456789"

func randDigits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rand.IntN(len(digits))]
	}
	return string(b)
}

// NewSeniorID generates a registry identifier of the form "S<6 digits>".
// Uniqueness is best-effort, same caveat as coupon codes.
func NewSeniorID() string {
	return "S" + randDigits(6)
}

// NewPIN generates a default 4-digit check-in PIN.
func NewPIN() string {
	return randDigits(4)
}

// Register creates a resident record: assigns a fresh senior id, generates a
// PIN when none is supplied, and stores the record with the given starting
// points and an empty last-visit date. Returns the stored record including
// the PIN so the caller can surface it exactly once.
func (r *Registry) Register(ctx context.Context, req models.RegisterSeniorRequest) (models.Senior, error) {
	pin := req.PIN
	if pin == "" {
		pin = NewPIN()
	}

	tier := req.RiskTier
	if tier == "" {
		tier = models.RiskNormal
	}

	id, err := r.newID(ctx)
	if err != nil {
		return models.Senior{}, err
	}

	s := models.Senior{
		SeniorID:       id,
		Name:           req.Name,
		Phone:          req.Phone,
		Address:        req.Address,
		Caregiver:      req.Caregiver,
		CaregiverPhone: req.CaregiverPhone,
		RiskTier:       tier,
		WelfarePoints:  req.WelfarePoints,
		PIN:            pin,
		LastVisitDate:  "",
	}

	if err := r.store.InsertSenior(ctx, s); err != nil {
		return models.Senior{}, fmt.Errorf("failed to register senior: %w", err)
	}

	return s, nil
}

func (r *Registry) newID(ctx context.Context) (string, error) {
	if !r.strictIDs {
		return NewSeniorID(), nil
	}

	// Strict mode: re-draw on collision against the registry.
	for attempt := 0; attempt < 10; attempt++ {
		id := NewSeniorID()
		_, err := r.store.GetSenior(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check senior id: %w", err)
		}
	}
	return "", errors.New("failed to generate a unique senior id")
}

// Find looks up a resident by id.
func (r *Registry) Find(ctx context.Context, seniorID string) (models.Senior, error) {
	s, err := r.store.GetSenior(ctx, seniorID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Senior{}, fmt.Errorf("%w: %s", ErrSeniorNotFound, seniorID)
	}
	if err != nil {
		return models.Senior{}, err
	}
	return s, nil
}

// List returns the full registry in registration order.
func (r *Registry) List(ctx context.Context) ([]models.Senior, error) {
	return r.store.ListSeniors(ctx)
}
