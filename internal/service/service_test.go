package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gisulro/jeju-sme-strategy-app/internal/cache"
	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
	"github.com/gisulro/jeju-sme-strategy-app/internal/rules"
	"github.com/gisulro/jeju-sme-strategy-app/internal/store"
	"github.com/gisulro/jeju-sme-strategy-app/internal/validation"
	"github.com/gisulro/jeju-sme-strategy-app/internal/welfare"
)

func setupTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "service_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db, nil, nil, nil, opts)
}

func couponRequest() models.IssueCouponRequest {
	return models.IssueCouponRequest{
		Segment:         rules.SegmentResident,
		Days:            []string{"Mon", "Tue", "Wed", "Thu", "Fri"},
		TimeFrom:        "08:00",
		TimeTo:          "10:00",
		DiscountPct:     15,
		MinSpend:        5000,
		CareFundRatePct: 1,
	}
}

func TestIssueCoupon(t *testing.T) {
	svc := setupTestService(t, Options{PublicURL: "https://board.example.com"})

	resp, err := svc.IssueCoupon(context.Background(), couponRequest())
	if err != nil {
		t.Fatalf("IssueCoupon failed: %v", err)
	}

	if !strings.HasPrefix(resp.Rule.Code, "JEJU-") {
		t.Errorf("Expected default JEJU- code prefix, got %q", resp.Rule.Code)
	}
	if resp.Token == "" {
		t.Error("Expected a non-empty token")
	}
	if want := "https://board.example.com/?verify=1&r=" + resp.Token; resp.VerifyURL != want {
		t.Errorf("Expected verify URL %q, got %q", want, resp.VerifyURL)
	}

	// The token must decode back to the issued rule.
	decoded, err := rules.Decode(resp.Token)
	if err != nil {
		t.Fatalf("Failed to decode issued token: %v", err)
	}
	if decoded.Code != resp.Rule.Code {
		t.Errorf("Expected decoded code %q, got %q", resp.Rule.Code, decoded.Code)
	}
}

func TestIssueCouponCustomPrefix(t *testing.T) {
	svc := setupTestService(t, Options{})

	req := couponRequest()
	req.Prefix = "HONJEO"
	resp, err := svc.IssueCoupon(context.Background(), req)
	if err != nil {
		t.Fatalf("IssueCoupon failed: %v", err)
	}
	if !strings.HasPrefix(resp.Rule.Code, "HONJEO-") {
		t.Errorf("Expected HONJEO- prefix, got %q", resp.Rule.Code)
	}
}

func TestIssueCouponValidation(t *testing.T) {
	svc := setupTestService(t, Options{})

	req := couponRequest()
	req.DiscountPct = 150
	_, err := svc.IssueCoupon(context.Background(), req)

	var ve *validation.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if ve.Field != "discount_pct" {
		t.Errorf("Expected discount_pct field error, got %q", ve.Field)
	}
}

func TestIssueThenVerify(t *testing.T) {
	svc := setupTestService(t, Options{})
	ctx := context.Background()

	issued, err := svc.IssueCoupon(ctx, couponRequest())
	if err != nil {
		t.Fatalf("IssueCoupon failed: %v", err)
	}

	// Tuesday 09:30, resident, 15000 won cart.
	now := time.Date(2025, 10, 21, 9, 30, 0, 0, time.UTC)
	verified, err := svc.VerifyCoupon(ctx, issued.Token, 15000, rules.SegmentResident, now)
	if err != nil {
		t.Fatalf("VerifyCoupon failed: %v", err)
	}

	if verified.Code != issued.Rule.Code {
		t.Errorf("Expected code %q, got %q", issued.Rule.Code, verified.Code)
	}
	if !verified.Result.Eligible {
		t.Fatalf("Expected eligible, got reason %q", verified.Result.Reason)
	}
	if verified.Result.Discount != 2250 {
		t.Errorf("Expected discount 2250, got %d", verified.Result.Discount)
	}
	if verified.Result.CareFund != 150 {
		t.Errorf("Expected care fund 150, got %d", verified.Result.CareFund)
	}
}

func TestVerifyCouponMalformedToken(t *testing.T) {
	svc := setupTestService(t, Options{})

	_, err := svc.VerifyCoupon(context.Background(), "not-a-token", 10000, "", time.Now())
	if !errors.Is(err, rules.ErrMalformedRule) {
		t.Errorf("Expected ErrMalformedRule, got %v", err)
	}
}

func TestVerifyCouponIsPure(t *testing.T) {
	svc := setupTestService(t, Options{})
	ctx := context.Background()

	issued, err := svc.IssueCoupon(ctx, couponRequest())
	if err != nil {
		t.Fatalf("IssueCoupon failed: %v", err)
	}

	now := time.Date(2025, 10, 21, 9, 30, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := svc.VerifyCoupon(ctx, issued.Token, 15000, rules.SegmentResident, now); err != nil {
			t.Fatalf("VerifyCoupon failed: %v", err)
		}
	}

	// Verification never touches the ledger.
	balance, err := svc.FundBalance(ctx)
	if err != nil {
		t.Fatalf("FundBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("Expected balance 0 after verifications, got %d", balance)
	}
	entries, err := svc.FundEntries(ctx)
	if err != nil {
		t.Fatalf("FundEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no fund entries after verifications, got %d", len(entries))
	}
}

func TestRegisterAndVisitFlow(t *testing.T) {
	svc := setupTestService(t, Options{StoreName: "Honjeo Coffee"})
	ctx := context.Background()

	reg, err := svc.RegisterSenior(ctx, models.RegisterSeniorRequest{
		Name:     "Kim Chunja",
		RiskTier: models.RiskHighRisk,
	})
	if err != nil {
		t.Fatalf("RegisterSenior failed: %v", err)
	}
	if reg.SeniorID == "" || reg.PIN == "" {
		t.Fatalf("Expected senior_id and pin, got %+v", reg)
	}

	now := time.Date(2025, 11, 3, 14, 0, 0, 0, time.UTC)
	visit, err := svc.RecordVisit(ctx, reg.SeniorID, models.CheckinRequest{
		PIN:          reg.PIN,
		Systolic:     128,
		Diastolic:    82,
		WeightKg:     54.5,
		EarnedPoints: 100,
	}, now)
	if err != nil {
		t.Fatalf("RecordVisit failed: %v", err)
	}

	// Default store name fills in when the request omits one.
	if visit.Store != "Honjeo Coffee" {
		t.Errorf("Expected default store name, got %q", visit.Store)
	}

	senior, err := svc.GetSenior(ctx, reg.SeniorID)
	if err != nil {
		t.Fatalf("GetSenior failed: %v", err)
	}
	if senior.WelfarePoints != 100 {
		t.Errorf("Expected 100 welfare points, got %d", senior.WelfarePoints)
	}
	if senior.LastVisitDate != "2025-11-03" {
		t.Errorf("Expected last visit date 2025-11-03, got %q", senior.LastVisitDate)
	}
}

func TestRecordVisitWrongPIN(t *testing.T) {
	svc := setupTestService(t, Options{})
	ctx := context.Background()

	reg, err := svc.RegisterSenior(ctx, models.RegisterSeniorRequest{Name: "Ko Okhee", PIN: "1234"})
	if err != nil {
		t.Fatalf("RegisterSenior failed: %v", err)
	}

	_, err = svc.RecordVisit(ctx, reg.SeniorID, models.CheckinRequest{PIN: "0000"}, time.Now())
	if !errors.Is(err, welfare.ErrPINMismatch) {
		t.Errorf("Expected ErrPINMismatch, got %v", err)
	}
}

func TestAtRiskDefaultThreshold(t *testing.T) {
	svc := setupTestService(t, Options{AlertThresholdDays: 7})
	ctx := context.Background()

	if _, err := svc.RegisterSenior(ctx, models.RegisterSeniorRequest{Name: "Never Visited"}); err != nil {
		t.Fatalf("RegisterSenior failed: %v", err)
	}

	// Zero threshold falls back to the configured default.
	atRisk, err := svc.AtRisk(ctx, 0, time.Now().UTC())
	if err != nil {
		t.Fatalf("AtRisk failed: %v", err)
	}
	if len(atRisk) != 1 {
		t.Fatalf("Expected 1 at-risk senior, got %d", len(atRisk))
	}
	if !atRisk[0].NeverVisited {
		t.Error("Expected never-visited flag")
	}
}

func TestFundLedgerFlow(t *testing.T) {
	svc := setupTestService(t, Options{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := svc.AppendFundEntry(ctx, models.EntryIn, 1000, "", "donation", 1, now); err != nil {
		t.Fatalf("AppendFundEntry failed: %v", err)
	}
	if _, err := svc.AppendFundEntry(ctx, models.EntryOut, 300, "", "meal delivery", 0, now.Add(time.Minute)); err != nil {
		t.Fatalf("AppendFundEntry failed: %v", err)
	}

	balance, err := svc.FundBalance(ctx)
	if err != nil {
		t.Fatalf("FundBalance failed: %v", err)
	}
	if balance != 700 {
		t.Errorf("Expected balance 700, got %d", balance)
	}
}

func TestDashboardMetrics(t *testing.T) {
	svc := setupTestService(t, Options{AlertThresholdDays: 7})
	ctx := context.Background()

	if _, err := svc.RegisterSenior(ctx, models.RegisterSeniorRequest{Name: "Kim Chunja"}); err != nil {
		t.Fatalf("RegisterSenior failed: %v", err)
	}
	if _, err := svc.AppendFundEntry(ctx, models.EntryIn, 500, "", "", 0, time.Now().UTC()); err != nil {
		t.Fatalf("AppendFundEntry failed: %v", err)
	}

	metrics, err := svc.DashboardMetrics(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("DashboardMetrics failed: %v", err)
	}
	if metrics.Seniors != 1 {
		t.Errorf("Expected 1 senior, got %d", metrics.Seniors)
	}
	if metrics.AtRisk != 1 {
		t.Errorf("Expected 1 at-risk senior, got %d", metrics.AtRisk)
	}
	if metrics.FundEntries != 1 {
		t.Errorf("Expected 1 fund entry, got %d", metrics.FundEntries)
	}
	if metrics.FundBalance != 500 {
		t.Errorf("Expected fund balance 500, got %d", metrics.FundBalance)
	}
}

func TestDashboardMetricsCaching(t *testing.T) {
	db, err := store.NewDB(filepath.Join(t.TempDir(), "service_test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	c := cache.NewMemoryCache()
	svc := NewService(db, nil, c, nil, Options{MetricsCacheTTL: time.Minute})
	ctx := context.Background()

	first, err := svc.DashboardMetrics(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("DashboardMetrics failed: %v", err)
	}

	// A write after the snapshot is invisible until the TTL expires.
	if _, err := svc.RegisterSenior(ctx, models.RegisterSeniorRequest{Name: "Kim Chunja"}); err != nil {
		t.Fatalf("RegisterSenior failed: %v", err)
	}

	second, err := svc.DashboardMetrics(ctx, time.Now().UTC())
	if err != nil {
		t.Fatalf("DashboardMetrics failed: %v", err)
	}
	if second.Seniors != first.Seniors {
		t.Errorf("Expected cached snapshot, got seniors=%d", second.Seniors)
	}
}
