package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/chris44528/lux-aged-cases/internal/cache"
	"github.com/chris44528/lux-aged-cases/internal/db"
	"github.com/chris44528/lux-aged-cases/internal/models"
	"github.com/chris44528/lux-aged-cases/internal/service"
)

type Handler struct {
	Store     *db.Store
	Comms     *service.Communicator
	Cache     *cache.Cache
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// Envelope is the paginated list response shape the dashboard consumes.
type Envelope struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  any     `json:"results"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary List aged cases
// @Tags aged-cases
// @Produce json
// @Param status query string false "Case status"
// @Param tier query int false "Escalation tier 1-4"
// @Param case_type query string false "Case type"
// @Param search query string false "Site or customer name search"
// @Success 200 {object} Envelope
// @Router /api/aged-cases/ [get]
func (h *Handler) CasesList(c *gin.Context) {
	f, err := parseFilters(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	cases, total, err := h.Store.ListCases(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list cases", err.Error())
		return
	}
	c.JSON(http.StatusOK, envelope(c, total, f.Limit, f.Offset, caseRows(cases)))
}

// @Summary List queue cases (open only)
// @Tags aged-cases
// @Produce json
// @Success 200 {object} Envelope
// @Router /api/aged-cases/queue/ [get]
func (h *Handler) QueueList(c *gin.Context) {
	f, err := parseFilters(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	cases, total, err := h.Store.ListQueue(c.Request.Context(), f)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list queue", err.Error())
		return
	}
	c.JSON(http.StatusOK, envelope(c, total, f.Limit, f.Offset, caseRows(cases)))
}

// caseRow decorates a case with the fixed presentation lookups.
type caseRow struct {
	models.AgedCase
	TierStyle models.TierStyle `json:"tier_style"`
	Severity  string           `json:"severity"`
}

func caseRows(cases []models.AgedCase) []caseRow {
	out := make([]caseRow, 0, len(cases))
	for _, cs := range cases {
		style, _ := models.StyleForTier(cs.EscalationTier)
		out = append(out, caseRow{AgedCase: cs, TierStyle: style, Severity: models.AgeSeverity(cs.AgeDays)})
	}
	return out
}

// @Summary Dashboard metrics
// @Tags aged-cases
// @Produce json
// @Success 200 {object} models.AgedCaseMetrics
// @Router /api/aged-cases/metrics/ [get]
func (h *Handler) MetricsGet(c *gin.Context) {
	if m, ok := h.Cache.GetMetrics(c.Request.Context()); ok {
		c.JSON(http.StatusOK, m)
		return
	}
	m, err := h.Store.Metrics(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to compute metrics", err.Error())
		return
	}
	h.Cache.SetMetrics(c.Request.Context(), m)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) CaseGet(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	cs, err := h.Store.GetCase(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Case not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get case", err.Error())
		return
	}
	rows := caseRows([]models.AgedCase{cs})
	c.JSON(http.StatusOK, rows[0])
}

func (h *Handler) CommunicationsList(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	items, err := h.Store.ListCommunications(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list communications", err.Error())
		return
	}
	if items == nil {
		items = []models.AgedCaseCommunication{}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (h *Handler) HistoryList(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	items, err := h.Store.ListHistory(c.Request.Context(), id)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list history", err.Error())
		return
	}
	if items == nil {
		items = []models.AgedCaseHistory{}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

type SendCommunicationRequest struct {
	Channel string `json:"channel" validate:"omitempty,oneof=auto sms email whatsapp phone"`
}

// @Summary Send the next escalation communication for a case
// @Tags aged-cases
// @Accept json
// @Produce json
// @Param channel body SendCommunicationRequest true "Channel (auto delegates to tier policy)"
// @Success 200 {object} models.AgedCaseCommunication
// @Router /api/aged-cases/{id}/send_communication/ [post]
func (h *Handler) SendCommunication(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	var req SendCommunicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if req.Channel == "" {
		req.Channel = models.ChannelAuto
	}

	co, err := h.Comms.SendCommunication(c.Request.Context(), id, req.Channel, userFrom(c))
	if err != nil {
		h.writeSendError(c, err)
		return
	}
	h.Cache.InvalidateMetrics(c.Request.Context())
	c.JSON(http.StatusOK, co)
}

func (h *Handler) writeSendError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Case not found", nil)
	case errors.Is(err, db.ErrTerminalCase):
		writeError(c, http.StatusConflict, "CASE_CLOSED", "Case is already resolved or abandoned", nil)
	case errors.Is(err, service.ErrTooSoon):
		writeError(c, http.StatusConflict, "TOO_SOON", "Tier frequency interval has not elapsed", nil)
	case errors.Is(err, service.ErrNoTemplate):
		writeError(c, http.StatusUnprocessableEntity, "NO_TEMPLATE", "No active template for this tier and channel", nil)
	case errors.Is(err, service.ErrNoContact):
		writeError(c, http.StatusUnprocessableEntity, "NO_CONTACT", "Case has no contact details for the channel", nil)
	default:
		writeError(c, http.StatusInternalServerError, "SEND_ERROR", "Failed to send communication", err.Error())
	}
}

type ResolveRequest struct {
	Notes string `json:"notes"`
}

// @Summary Resolve a case
// @Tags aged-cases
// @Accept json
// @Produce json
// @Router /api/aged-cases/{id}/resolve/ [post]
func (h *Handler) Resolve(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	err := h.Store.ResolveCase(c.Request.Context(), id, req.Notes, userFrom(c))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Case not found", nil)
		case errors.Is(err, db.ErrTerminalCase):
			writeError(c, http.StatusConflict, "CASE_CLOSED", "Case is already resolved or abandoned", nil)
		default:
			writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to resolve case", err.Error())
		}
		return
	}
	h.Cache.InvalidateMetrics(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Apply an action to a batch of cases
// @Tags aged-cases
// @Accept json
// @Produce json
// @Success 200 {object} service.BulkResult
// @Router /api/aged-cases/bulk_action/ [post]
func (h *Handler) BulkAction(c *gin.Context) {
	var req service.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if len(req.CaseIDs) == 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "case_ids is required", nil)
		return
	}

	res, err := h.Comms.BulkAction(c.Request.Context(), req, userFrom(c))
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	h.Cache.InvalidateMetrics(c.Request.Context())
	c.JSON(http.StatusOK, res)
}

type TrackClickRequest struct {
	TrackingID string `json:"tracking_id" validate:"required,uuid"`
	Action     string `json:"action" validate:"required,oneof=delivered opened clicked responded"`
}

// @Summary Record a delivery or engagement event for a communication
// @Tags aged-cases
// @Accept json
// @Produce json
// @Router /api/aged-cases/track-click/ [post]
func (h *Handler) TrackClick(c *gin.Context) {
	var req TrackClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	if err := h.Store.ApplyEngagement(c.Request.Context(), req.TrackingID, req.Action); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Unknown tracking id", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to record engagement", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func caseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

func userFrom(c *gin.Context) *string {
	u := strings.TrimSpace(c.GetHeader("X-User"))
	if u == "" {
		return nil
	}
	return &u
}

func parseFilters(c *gin.Context) (models.CaseFilters, error) {
	var f models.CaseFilters

	f.Status = c.Query("status")
	if f.Status != "" && !models.ValidStatus(f.Status) {
		return f, fmt.Errorf("unknown status %q", f.Status)
	}
	f.CaseType = c.Query("case_type")
	if f.CaseType != "" && !models.ValidCaseType(f.CaseType) {
		return f, fmt.Errorf("unknown case_type %q", f.CaseType)
	}
	if raw := c.Query("tier"); raw != "" {
		tier, err := strconv.Atoi(raw)
		if err != nil || !models.ValidTier(tier) {
			return f, fmt.Errorf("tier must be between 1 and 4")
		}
		f.Tier = tier
	}
	f.MinAgeDays, _ = strconv.Atoi(c.Query("min_age_days"))
	f.MaxAgeDays, _ = strconv.Atoi(c.Query("max_age_days"))
	if raw := c.Query("has_responded"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, fmt.Errorf("has_responded must be a boolean")
		}
		f.HasResponded = &v
	}
	f.Search = c.Query("search")
	if raw := c.Query("created_after"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("created_after must be RFC3339")
		}
		f.CreatedAfter = &t
	}
	if raw := c.Query("created_before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("created_before must be RFC3339")
		}
		f.CreatedBefore = &t
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

func envelope(c *gin.Context, count, limit, offset int, results any) Envelope {
	e := Envelope{Count: count, Results: results}
	base := c.Request.URL.Path

	pageURL := func(newOffset int) *string {
		q := c.Request.URL.Query()
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(newOffset))
		u := base + "?" + q.Encode()
		return &u
	}
	if offset+limit < count {
		e.Next = pageURL(offset + limit)
	}
	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		e.Previous = pageURL(prev)
	}
	return e
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
