package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gisulro/jeju-sme-strategy-app/internal/fund"
	"github.com/gisulro/jeju-sme-strategy-app/internal/models"
	"github.com/gisulro/jeju-sme-strategy-app/internal/roadmap"
	"github.com/gisulro/jeju-sme-strategy-app/internal/rules"
	"github.com/gisulro/jeju-sme-strategy-app/internal/service"
	"github.com/gisulro/jeju-sme-strategy-app/internal/validation"
	"github.com/gisulro/jeju-sme-strategy-app/internal/welfare"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB is plenty for these payloads
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service) *Handler {
	return NewHandlerWithOptions(svc, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		maxBodySize: opts.MaxBodySize,
	}
}

// Routes mounts all API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Landing)

	r.Route("/coupons", func(r chi.Router) {
		r.Post("/", h.IssueCoupon)
		r.Get("/verify", h.VerifyCoupon)
	})

	r.Route("/seniors", func(r chi.Router) {
		r.Post("/", h.RegisterSenior)
		r.Get("/", h.ListSeniors)
		r.Get("/{senior_id}", h.GetSenior)
		r.Post("/{senior_id}/checkins", h.RecordVisit)
	})

	r.Get("/checkin", h.CheckinPreselect)
	r.Get("/checkins", h.ListVisits)
	r.Get("/alerts/at-risk", h.AtRisk)

	r.Route("/fund", func(r chi.Router) {
		r.Post("/entries", h.AppendFundEntry)
		r.Get("/entries", h.ListFundEntries)
		r.Get("/balance", h.FundBalance)
	})

	r.Route("/actions", func(r chi.Router) {
		r.Post("/", h.AddAction)
		r.Get("/", h.ListActions)
	})

	r.Get("/dashboard/metrics", h.DashboardMetrics)
}

// Landing handles GET /, the URL a scanned QR or shared link opens. Two
// transports arrive here: ?verify=1&r=<token> for coupon verification and
// ?mode=checkin&sid=<senior_id> for check-in pre-selection.
func (h *Handler) Landing(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if token := q.Get("r"); token != "" {
		rule, err := rules.Decode(token)
		if err != nil {
			h.respondServiceError(w, err)
			return
		}

		resp := models.DecodedCouponResponse{Rule: rule}

		// With a cart amount presented, evaluate on the spot.
		if amountStr := q.Get("amount"); amountStr != "" {
			amount, err := strconv.ParseInt(amountStr, 10, 64)
			if err != nil || amount < 0 {
				h.respondError(w, http.StatusBadRequest, "invalid 'amount' parameter")
				return
			}
			now, ok := h.parseNow(w, q.Get("now"))
			if !ok {
				return
			}
			verified, err := h.service.VerifyCoupon(r.Context(), token, amount, rules.Segment(q.Get("segment")), now)
			if err != nil {
				h.respondServiceError(w, err)
				return
			}
			resp.Result = &verified.Result
		}

		h.respondJSON(w, http.StatusOK, resp)
		return
	}

	if q.Get("mode") == "checkin" && q.Get("sid") != "" {
		h.preselect(w, r, q.Get("sid"))
		return
	}

	h.respondError(w, http.StatusNotFound, "not found")
}

// IssueCoupon handles POST /coupons
func (h *Handler) IssueCoupon(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.IssueCouponRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	req.TimeFrom = validation.SanitizeString(req.TimeFrom)
	req.TimeTo = validation.SanitizeString(req.TimeTo)
	req.Prefix = validation.SanitizeString(req.Prefix)
	for i := range req.Days {
		req.Days[i] = validation.SanitizeString(req.Days[i])
	}

	resp, err := h.service.IssueCoupon(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// VerifyCoupon handles GET /coupons/verify
func (h *Handler) VerifyCoupon(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	token := q.Get("r")
	if token == "" {
		h.respondError(w, http.StatusBadRequest, "'r' token parameter is required")
		return
	}

	amount, err := strconv.ParseInt(q.Get("amount"), 10, 64)
	if err != nil || amount < 0 {
		h.respondError(w, http.StatusBadRequest, "'amount' must be a non-negative integer")
		return
	}

	segment := rules.Segment(validation.SanitizeString(q.Get("segment")))
	if segment != "" && !segment.Valid() {
		h.respondError(w, http.StatusBadRequest, "'segment' must be resident or tourist")
		return
	}

	now, ok := h.parseNow(w, q.Get("now"))
	if !ok {
		return
	}

	resp, err := h.service.VerifyCoupon(r.Context(), token, amount, segment, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// RegisterSenior handles POST /seniors
func (h *Handler) RegisterSenior(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.RegisterSeniorRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	req.Name = validation.SanitizeString(req.Name)
	req.Phone = validation.SanitizeString(req.Phone)
	req.Address = validation.SanitizeString(req.Address)
	req.Caregiver = validation.SanitizeString(req.Caregiver)
	req.CaregiverPhone = validation.SanitizeString(req.CaregiverPhone)
	req.PIN = validation.SanitizeString(req.PIN)

	resp, err := h.service.RegisterSenior(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, resp)
}

// ListSeniors handles GET /seniors
func (h *Handler) ListSeniors(w http.ResponseWriter, r *http.Request) {
	seniors, err := h.service.ListSeniors(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, seniors)
}

// GetSenior handles GET /seniors/{senior_id}
func (h *Handler) GetSenior(w http.ResponseWriter, r *http.Request) {
	seniorID := validation.SanitizeString(chi.URLParam(r, "senior_id"))

	senior, err := h.service.GetSenior(r.Context(), seniorID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, senior)
}

// RecordVisit handles POST /seniors/{senior_id}/checkins
func (h *Handler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	seniorID := validation.SanitizeString(chi.URLParam(r, "senior_id"))

	var req models.CheckinRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	req.PIN = validation.SanitizeString(req.PIN)
	req.Store = validation.SanitizeString(req.Store)
	req.Notes = validation.SanitizeString(req.Notes)

	now, ok := h.parseNow(w, r.URL.Query().Get("now"))
	if !ok {
		return
	}

	visit, err := h.service.RecordVisit(r.Context(), seniorID, req, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, visit)
}

// CheckinPreselect handles GET /checkin?sid=<senior_id>
func (h *Handler) CheckinPreselect(w http.ResponseWriter, r *http.Request) {
	sid := validation.SanitizeString(r.URL.Query().Get("sid"))
	if sid == "" {
		h.respondError(w, http.StatusBadRequest, "'sid' parameter is required")
		return
	}

	h.preselect(w, r, sid)
}

func (h *Handler) preselect(w http.ResponseWriter, r *http.Request, sid string) {
	senior, err := h.service.GetSenior(r.Context(), validation.SanitizeString(sid))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, senior)
}

// ListVisits handles GET /checkins
func (h *Handler) ListVisits(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "'limit' must be a non-negative integer")
			return
		}
		limit = parsed
	}

	visits, err := h.service.Visits(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, visits)
}

// AtRisk handles GET /alerts/at-risk
func (h *Handler) AtRisk(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	threshold := 0
	if thresholdStr := q.Get("threshold_days"); thresholdStr != "" {
		parsed, err := strconv.Atoi(thresholdStr)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "'threshold_days' must be a non-negative integer")
			return
		}
		threshold = parsed
	}

	now, ok := h.parseNow(w, q.Get("now"))
	if !ok {
		return
	}

	atRisk, err := h.service.AtRisk(r.Context(), threshold, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, atRisk)
}

// AppendFundEntry handles POST /fund/entries
func (h *Handler) AppendFundEntry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.FundEntryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	req.Store = validation.SanitizeString(req.Store)
	req.Memo = validation.SanitizeString(req.Memo)

	now, ok := h.parseNow(w, r.URL.Query().Get("now"))
	if !ok {
		return
	}

	entry, err := h.service.AppendFundEntry(r.Context(), req.Type, req.Amount, req.Store, req.Memo, req.DonationRate, now)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, entry)
}

// ListFundEntries handles GET /fund/entries
func (h *Handler) ListFundEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.FundEntries(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, entries)
}

// FundBalance handles GET /fund/balance
func (h *Handler) FundBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.service.FundBalance(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, models.FundBalanceResponse{Balance: balance})
}

// AddAction handles POST /actions
func (h *Handler) AddAction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.Action
	if !h.decodeBody(w, r, &req) {
		return
	}

	req.Task = validation.SanitizeString(req.Task)
	req.Owner = validation.SanitizeString(req.Owner)

	action, err := h.service.AddAction(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, action)
}

// ListActions handles GET /actions
func (h *Handler) ListActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := roadmap.Filter{
		Phase:   validation.SanitizeString(q.Get("phase")),
		Status:  validation.SanitizeString(q.Get("status")),
		Segment: validation.SanitizeString(q.Get("segment")),
		Query:   validation.SanitizeString(q.Get("q")),
	}

	actions, err := h.service.ListActions(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, actions)
}

// DashboardMetrics handles GET /dashboard/metrics
func (h *Handler) DashboardMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.DashboardMetrics(r.Context(), time.Now().UTC())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, metrics)
}

// decodeBody reads a JSON request body into dest, writing the error response
// itself when decoding fails.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return false
	}
	return true
}

// parseNow resolves an optional RFC3339 'now' override, defaulting to the
// current time. Writes the error response itself on a bad value.
func (h *Handler) parseNow(w http.ResponseWriter, nowParam string) (time.Time, bool) {
	if nowParam == "" {
		return time.Now().UTC(), true
	}
	parsed, err := validation.ValidateTimeString(validation.SanitizeString(nowParam))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid 'now' parameter, must be RFC3339 format")
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// respondServiceError maps domain errors onto HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var ve *validation.ValidationError
	switch {
	case errors.Is(err, welfare.ErrSeniorNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, welfare.ErrPINMismatch):
		h.respondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, rules.ErrMalformedRule),
		errors.Is(err, fund.ErrNegativeAmount),
		errors.Is(err, fund.ErrInvalidEntryType),
		errors.Is(err, roadmap.ErrEmptyTask),
		errors.As(err, &ve):
		h.respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
