package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gisulro/jeju-sme-strategy-app/internal/cache"
	"github.com/gisulro/jeju-sme-strategy-app/internal/events"
	"github.com/gisulro/jeju-sme-strategy-app/internal/fund"
	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
	"github.com/gisulro/jeju-sme-strategy-app/internal/roadmap"
	"github.com/gisulro/jeju-sme-strategy-app/internal/rules"
	"github.com/gisulro/jeju-sme-strategy-app/internal/store"
	"github.com/gisulro/jeju-sme-strategy-app/internal/tracing"
	"github.com/gisulro/jeju-sme-strategy-app/internal/validation"
	"github.com/gisulro/jeju-sme-strategy-app/internal/welfare"
)

const metricsCacheKey = "dashboard:metrics"

// Options tunes service behavior.
type Options struct {
	// PublicURL is the externally reachable base URL embedded in coupon
	// verify links.
	PublicURL string
	// StoreName is the default store attributed to visits and fund entries.
	StoreName string
	// CouponPrefix is the default coupon code prefix.
	CouponPrefix string
	// AlertThresholdDays is the default at-risk threshold for the dashboard.
	AlertThresholdDays int
	// MetricsCacheTTL bounds staleness of the dashboard snapshot. Zero
	// disables caching.
	MetricsCacheTTL time.Duration
	// StrictIDs turns on collision re-draw for senior id generation.
	StrictIDs bool
}

// Service provides the business operations of the board: coupon issue and
// verification, the welfare registry and check-ins, the care fund ledger and
// the roadmap.
type Service struct {
	db       *store.DB
	registry *welfare.Registry
	checkins *welfare.CheckinLedger
	monitor  *welfare.Monitor
	fund     *fund.Ledger
	roadmap  *roadmap.Service
	events   *events.Manager
	cache    cache.Cache
	logger   *zap.Logger
	opts     Options
}

// NewService wires the core components over a shared store.
func NewService(db *store.DB, em *events.Manager, c cache.Cache, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CouponPrefix == "" {
		opts.CouponPrefix = "JEJU"
	}
	if opts.AlertThresholdDays <= 0 {
		opts.AlertThresholdDays = 7
	}

	registry := welfare.NewRegistry(db, opts.StrictIDs)
	return &Service{
		db:       db,
		registry: registry,
		checkins: welfare.NewCheckinLedger(registry, db),
		monitor:  welfare.NewMonitor(db),
		fund:     fund.NewLedger(db),
		roadmap:  roadmap.NewService(db),
		events:   em,
		cache:    c,
		logger:   logger,
		opts:     opts,
	}
}

// IssueCoupon validates rule parameters, stamps a fresh coupon code and
// returns the rule with its transport token and verify URL. The rule is not
// stored: the token is the sole source of truth at verification time.
func (s *Service) IssueCoupon(ctx context.Context, req models.IssueCouponRequest) (models.IssueCouponResponse, error) {
	if err := validation.ValidateIssueCouponRequest(req); err != nil {
		return models.IssueCouponResponse{}, err
	}

	prefix := req.Prefix
	if prefix == "" {
		prefix = s.opts.CouponPrefix
	}

	rule := rules.CouponRule{
		Segment:         req.Segment,
		Days:            req.Days,
		TimeFrom:        req.TimeFrom,
		TimeTo:          req.TimeTo,
		DiscountPct:     req.DiscountPct,
		MinSpend:        req.MinSpend,
		CareFundRatePct: req.CareFundRatePct,
		Code:            rules.NewCode(prefix),
	}

	token, err := rules.Encode(rule)
	if err != nil {
		return models.IssueCouponResponse{}, err
	}

	s.logger.Info("coupon issued",
		zap.String("code", rule.Code),
		zap.Int("discount_pct", rule.DiscountPct),
		zap.String("segment", string(rule.Segment)),
	)
	if s.events != nil {
		s.events.PublishCouponIssued(ctx, rule)
	}

	return models.IssueCouponResponse{
		Rule:      rule,
		Token:     token,
		VerifyURL: s.verifyURL(token),
	}, nil
}

func (s *Service) verifyURL(token string) string {
	base := strings.TrimRight(s.opts.PublicURL, "/")
	return fmt.Sprintf("%s/?verify=1&r=%s", base, token)
}

// VerifyCoupon decodes a transport token and evaluates it against the
// presented cart. Pure and replay-safe: verification never writes, and whether
// an eligible care fund contribution actually lands in the ledger is a
// separate, explicit AppendFundEntry call by the caller.
func (s *Service) VerifyCoupon(ctx context.Context, token string, cartAmount int64, segment rules.Segment, now time.Time) (models.VerifyCouponResponse, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.VerifyCoupon")
	defer span.End()

	rule, err := rules.Decode(token)
	if err != nil {
		return models.VerifyCouponResponse{}, err
	}

	result := rules.Evaluate(rule, cartAmount, segment, now)

	s.logger.Info("coupon verified",
		zap.String("code", rule.Code),
		zap.Bool("eligible", result.Eligible),
		zap.String("reason", result.Reason),
	)
	if s.events != nil {
		s.events.PublishCouponVerified(ctx, rule.Code, cartAmount, result)
	}

	return models.VerifyCouponResponse{Code: rule.Code, Result: result}, nil
}

// RegisterSenior creates a registry entry and returns the assigned id and
// PIN, the single moment the PIN is ever surfaced.
func (s *Service) RegisterSenior(ctx context.Context, req models.RegisterSeniorRequest) (models.RegisterSeniorResponse, error) {
	if err := validation.ValidateRegisterSenior(req); err != nil {
		return models.RegisterSeniorResponse{}, err
	}

	senior, err := s.registry.Register(ctx, req)
	if err != nil {
		return models.RegisterSeniorResponse{}, err
	}

	s.logger.Info("senior registered",
		zap.String("senior_id", senior.SeniorID),
		zap.String("risk_tier", string(senior.RiskTier)),
	)
	if s.events != nil {
		s.events.PublishSeniorRegistered(ctx, senior)
	}

	return models.RegisterSeniorResponse{SeniorID: senior.SeniorID, PIN: senior.PIN}, nil
}

// GetSenior looks up a resident. The PIN never leaves the service boundary
// in serialized form.
func (s *Service) GetSenior(ctx context.Context, seniorID string) (models.Senior, error) {
	return s.registry.Find(ctx, seniorID)
}

// ListSeniors returns all registry entries.
func (s *Service) ListSeniors(ctx context.Context) ([]models.Senior, error) {
	return s.registry.List(ctx)
}

// RecordVisit performs a PIN-gated check-in at now.
func (s *Service) RecordVisit(ctx context.Context, seniorID string, req models.CheckinRequest, now time.Time) (models.VisitRecord, error) {
	ctx, span := tracing.GetTracer().StartSpan(ctx, "service.RecordVisit")
	defer span.End()

	if err := validation.ValidateCheckinRequest(req); err != nil {
		return models.VisitRecord{}, err
	}

	storeName := req.Store
	if storeName == "" {
		storeName = s.opts.StoreName
	}

	vitals := welfare.Vitals{
		Store:     storeName,
		Systolic:  req.Systolic,
		Diastolic: req.Diastolic,
		WeightKg:  req.WeightKg,
		Notes:     req.Notes,
	}

	visit, err := s.checkins.RecordVisit(ctx, seniorID, req.PIN, vitals, req.EarnedPoints, now)
	if err != nil {
		return models.VisitRecord{}, err
	}

	s.logger.Info("visit recorded",
		zap.String("senior_id", visit.SeniorID),
		zap.String("store", visit.Store),
		zap.Int64("earned_points", req.EarnedPoints),
	)
	if s.events != nil {
		s.events.PublishVisitRecorded(ctx, visit, req.EarnedPoints)
	}

	return visit, nil
}

// Visits returns visit records, newest first.
func (s *Service) Visits(ctx context.Context, limit int) ([]models.VisitRecord, error) {
	return s.checkins.Visits(ctx, limit)
}

// AtRisk returns the residents at or past the inactivity threshold,
// never-visited first, then descending by days since last visit.
func (s *Service) AtRisk(ctx context.Context, thresholdDays int, now time.Time) ([]models.AtRiskSenior, error) {
	if thresholdDays <= 0 {
		thresholdDays = s.opts.AlertThresholdDays
	}
	return s.monitor.AtRisk(ctx, thresholdDays, now)
}

// AppendFundEntry records a care fund transaction.
func (s *Service) AppendFundEntry(ctx context.Context, typ models.EntryType, amount int64, storeName, memo string, rate int, now time.Time) (models.FundEntry, error) {
	if err := validation.ValidateFundEntry(typ, amount, rate); err != nil {
		return models.FundEntry{}, err
	}

	if storeName == "" {
		storeName = s.opts.StoreName
	}

	entry, err := s.fund.Append(ctx, typ, amount, storeName, memo, rate, now)
	if err != nil {
		return models.FundEntry{}, err
	}

	s.logger.Info("fund entry appended",
		zap.String("type", string(entry.Type)),
		zap.Int64("amount", entry.Amount),
	)
	if s.events != nil {
		s.events.PublishFundEntryAppended(ctx, entry)
	}

	return entry, nil
}

// FundEntries returns the ledger, newest first.
func (s *Service) FundEntries(ctx context.Context) ([]models.FundEntry, error) {
	return s.fund.Entries(ctx)
}

// FundBalance recomputes the care fund balance.
func (s *Service) FundBalance(ctx context.Context) (int64, error) {
	return s.fund.Balance(ctx)
}

// AddAction stores a roadmap action.
func (s *Service) AddAction(ctx context.Context, a models.Action) (models.Action, error) {
	if err := validation.ValidateAction(a); err != nil {
		return models.Action{}, err
	}
	return s.roadmap.Add(ctx, a)
}

// ListActions returns roadmap actions matching the filter.
func (s *Service) ListActions(ctx context.Context, f roadmap.Filter) ([]models.Action, error) {
	return s.roadmap.List(ctx, f)
}

// DashboardMetrics builds the operations snapshot, served from cache within
// MetricsCacheTTL. The cached value is only this derived snapshot; ledger
// balance itself is always recomputed when the snapshot is rebuilt.
func (s *Service) DashboardMetrics(ctx context.Context, now time.Time) (models.DashboardMetrics, error) {
	if s.cache != nil && s.opts.MetricsCacheTTL > 0 {
		var cached models.DashboardMetrics
		if err := cache.GetJSON(ctx, s.cache, metricsCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	seniors, err := s.registry.List(ctx)
	if err != nil {
		return models.DashboardMetrics{}, err
	}

	visitCount, err := s.db.CountVisits(ctx)
	if err != nil {
		return models.DashboardMetrics{}, err
	}

	fundCount, err := s.db.CountFundEntries(ctx)
	if err != nil {
		return models.DashboardMetrics{}, err
	}

	balance, err := s.fund.Balance(ctx)
	if err != nil {
		return models.DashboardMetrics{}, err
	}

	atRisk, err := s.monitor.AtRisk(ctx, s.opts.AlertThresholdDays, now)
	if err != nil {
		return models.DashboardMetrics{}, err
	}

	metrics := models.DashboardMetrics{
		Seniors:     len(seniors),
		Visits:      visitCount,
		AtRisk:      len(atRisk),
		FundEntries: fundCount,
		FundBalance: balance,
		GeneratedAt: now,
	}

	if s.cache != nil && s.opts.MetricsCacheTTL > 0 {
		if err := cache.SetJSON(ctx, s.cache, metricsCacheKey, metrics, s.opts.MetricsCacheTTL); err != nil {
			s.logger.Warn("failed to cache dashboard metrics", zap.Error(err))
		}
	}

	return metrics, nil
}
