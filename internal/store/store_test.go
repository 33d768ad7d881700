package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "store_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testSenior(id string) models.Senior {
	return models.Senior{
		SeniorID: id,
		Name:     "Test Resident",
		Phone:    "010-0000-0000",
		RiskTier: models.RiskNormal,
		PIN:      "1234",
	}
}

func TestInsertAndGetSenior(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	s := testSenior("S100001")
	if err := db.InsertSenior(ctx, s); err != nil {
		t.Fatalf("InsertSenior failed: %v", err)
	}

	got, err := db.GetSenior(ctx, "S100001")
	if err != nil {
		t.Fatalf("GetSenior failed: %v", err)
	}
	if got != s {
		t.Errorf("Expected %+v, got %+v", s, got)
	}
}

func TestGetSeniorNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetSenior(context.Background(), "S999999")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestInsertSeniorDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.InsertSenior(ctx, testSenior("S100001")); err != nil {
		t.Fatalf("InsertSenior failed: %v", err)
	}
	if err := db.InsertSenior(ctx, testSenior("S100001")); err == nil {
		t.Error("Expected error for duplicate senior_id")
	}
}

func TestRecordCheckinAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.InsertSenior(ctx, testSenior("S100001")); err != nil {
		t.Fatalf("InsertSenior failed: %v", err)
	}

	now := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)
	visit := models.VisitRecord{
		ID:        uuid.New().String(),
		Timestamp: now,
		SeniorID:  "S100001",
		Name:      "Test Resident",
		Store:     "Honjeo Coffee",
		Systolic:  120,
		Diastolic: 80,
		WeightKg:  55.0,
	}

	if err := db.RecordCheckin(ctx, visit, 100, "2025-11-03"); err != nil {
		t.Fatalf("RecordCheckin failed: %v", err)
	}

	s, err := db.GetSenior(ctx, "S100001")
	if err != nil {
		t.Fatalf("GetSenior failed: %v", err)
	}
	if s.LastVisitDate != "2025-11-03" {
		t.Errorf("Expected last visit date 2025-11-03, got %q", s.LastVisitDate)
	}
	if s.WelfarePoints != 100 {
		t.Errorf("Expected 100 welfare points, got %d", s.WelfarePoints)
	}

	visits, err := db.ListVisits(ctx, 0)
	if err != nil {
		t.Fatalf("ListVisits failed: %v", err)
	}
	if len(visits) != 1 {
		t.Fatalf("Expected 1 visit, got %d", len(visits))
	}
	if !visits[0].Timestamp.Equal(now) {
		t.Errorf("Expected timestamp %v, got %v", now, visits[0].Timestamp)
	}
}

func TestRecordCheckinUnknownSeniorRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	visit := models.VisitRecord{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		SeniorID:  "S999999",
		Name:      "Ghost",
	}

	err := db.RecordCheckin(ctx, visit, 100, "2025-11-03")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// The transaction must leave no visit behind.
	visits, err := db.ListVisits(ctx, 0)
	if err != nil {
		t.Fatalf("ListVisits failed: %v", err)
	}
	if len(visits) != 0 {
		t.Errorf("Expected no visits after rollback, got %d", len(visits))
	}
}

func TestListVisitsLimit(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.InsertSenior(ctx, testSenior("S100001")); err != nil {
		t.Fatalf("InsertSenior failed: %v", err)
	}

	base := time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		visit := models.VisitRecord{
			ID:        uuid.New().String(),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			SeniorID:  "S100001",
			Name:      "Test Resident",
		}
		if err := db.RecordCheckin(ctx, visit, 0, base.Format(models.DateLayout)); err != nil {
			t.Fatalf("RecordCheckin failed: %v", err)
		}
	}

	visits, err := db.ListVisits(ctx, 2)
	if err != nil {
		t.Fatalf("ListVisits failed: %v", err)
	}
	if len(visits) != 2 {
		t.Fatalf("Expected 2 visits, got %d", len(visits))
	}
	if !visits[0].Timestamp.After(visits[1].Timestamp) {
		t.Error("Expected visits ordered newest first")
	}
}

func TestFundBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	entries := []models.FundEntry{
		{ID: uuid.New().String(), Timestamp: now, Type: models.EntryIn, Amount: 1000},
		{ID: uuid.New().String(), Timestamp: now.Add(time.Minute), Type: models.EntryOut, Amount: 300},
		{ID: uuid.New().String(), Timestamp: now.Add(2 * time.Minute), Type: models.EntryIn, Amount: 50},
	}
	for _, e := range entries {
		if err := db.AppendFundEntry(ctx, e); err != nil {
			t.Fatalf("AppendFundEntry failed: %v", err)
		}
	}

	balance, err := db.FundBalance(ctx)
	if err != nil {
		t.Fatalf("FundBalance failed: %v", err)
	}
	if balance != 750 {
		t.Errorf("Expected balance 750, got %d", balance)
	}
}

func TestFundBalanceEmptyLedger(t *testing.T) {
	db := setupTestDB(t)

	balance, err := db.FundBalance(context.Background())
	if err != nil {
		t.Fatalf("FundBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected balance 0 on empty ledger, got %d", balance)
	}
}
