// Package fund holds the care fund ledger: a signed (in/out) append-only
// transaction log with an on-demand balance.
package fund

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
)

var (
	// ErrNegativeAmount is returned for entries with a negative amount.
	// Direction is carried by the in/out tag, never by the sign.
	ErrNegativeAmount = errors.New("fund entry amount must be non-negative")

	// ErrInvalidEntryType is returned for entry types other than in/out.
	ErrInvalidEntryType = errors.New("fund entry type must be in or out")
)

// Store is the durable ledger collection the fund component consumes.
type Store interface {
	AppendFundEntry(ctx context.Context, e models.FundEntry) error
	ListFundEntries(ctx context.Context) ([]models.FundEntry, error)
	FundBalance(ctx context.Context) (int64, error)
}

// Ledger is the care fund transaction log.
type Ledger struct {
	store Store
}

// NewLedger creates a fund ledger over the given store.
func NewLedger(s Store) *Ledger {
	return &Ledger{store: s}
}

// Append records a fund transaction stamped with now. The only validation is
// amount >= 0 and a known type tag; rate is a display annotation that plays
// no part in balance math.
func (l *Ledger) Append(ctx context.Context, typ models.EntryType, amount int64, storeName, memo string, rate int, now time.Time) (models.FundEntry, error) {
	if !typ.Valid() {
		return models.FundEntry{}, ErrInvalidEntryType
	}
	if amount < 0 {
		return models.FundEntry{}, ErrNegativeAmount
	}

	entry := models.FundEntry{
		ID:           uuid.New().String(),
		Timestamp:    now,
		Type:         typ,
		Amount:       amount,
		Store:        storeName,
		Memo:         memo,
		DonationRate: rate,
	}

	if err := l.store.AppendFundEntry(ctx, entry); err != nil {
		return models.FundEntry{}, fmt.Errorf("failed to append fund entry: %w", err)
	}

	return entry, nil
}

// Entries returns the ledger, newest first.
func (l *Ledger) Entries(ctx context.Context) ([]models.FundEntry, error) {
	return l.store.ListFundEntries(ctx)
}

// Balance recomputes sum(in) - sum(out) over the full entry sequence on
// every call; it is never cached.
func (l *Ledger) Balance(ctx context.Context) (int64, error) {
	return l.store.FundBalance(ctx)
}
