package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/chris44528/lux-aged-cases/internal/models"
	"github.com/chris44528/lux-aged-cases/internal/service"
)

// @Summary List communication templates
// @Tags templates
// @Produce json
// @Param tier query int false "Escalation tier"
// @Param channel query string false "Channel"
// @Param active query bool false "Active only (default true)"
// @Router /api/aged-case-templates/ [get]
func (h *Handler) TemplatesList(c *gin.Context) {
	tier := 0
	if raw := c.Query("tier"); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil || !models.ValidTier(t) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tier must be between 1 and 4", nil)
			return
		}
		tier = t
	}
	channel := c.Query("channel")
	if channel != "" && !models.ValidChannel(channel) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "unknown channel", nil)
		return
	}
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active", "true"))

	items, err := h.Store.ListTemplates(c.Request.Context(), tier, channel, activeOnly)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list templates", err.Error())
		return
	}
	if items == nil {
		items = []models.AgedCaseTemplate{}
	}
	c.JSON(http.StatusOK, gin.H{"results": items, "variables": service.KnownVariables})
}

func (h *Handler) TemplateGet(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	t, err := h.Store.GetTemplate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get template", err.Error())
		return
	}
	c.JSON(http.StatusOK, t)
}

type TemplateRequest struct {
	Name           *string `json:"name"`
	Channel        *string `json:"channel"`
	EscalationTier *int    `json:"escalation_tier"`
	CaseType       *string `json:"case_type"`
	Subject        *string `json:"subject"`
	Content        *string `json:"content"`
	Active         *bool   `json:"active"`
}

func (r TemplateRequest) apply(e *service.TemplateEditor) {
	if r.Name != nil {
		e.SetName(*r.Name)
	}
	if r.Channel != nil {
		e.SetChannel(*r.Channel)
	}
	if r.EscalationTier != nil {
		e.SetTier(*r.EscalationTier)
	}
	if r.CaseType != nil {
		if *r.CaseType == "" {
			e.SetCaseType(nil)
		} else {
			e.SetCaseType(r.CaseType)
		}
	}
	if r.Subject != nil {
		e.SetSubject(*r.Subject)
	}
	if r.Content != nil {
		e.SetContent(*r.Content)
	}
}

// @Summary Create a communication template
// @Tags templates
// @Accept json
// @Produce json
// @Router /api/aged-case-templates/ [post]
func (h *Handler) TemplateCreate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	editor := service.NewTemplate()
	req.apply(editor)
	payload, err := editor.Save()
	if err != nil {
		var fieldErrs service.FieldErrors
		if errors.As(err, &fieldErrs) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fieldErrs)
			return
		}
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	t, err := h.Store.CreateTemplate(c.Request.Context(), payload)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create template", err.Error())
		return
	}
	c.JSON(http.StatusCreated, t)
}

// TemplateUpdate is a PATCH: absent fields keep their stored values. The
// buffered editor applies the delta and validates the merged result.
func (h *Handler) TemplateUpdate(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}

	existing, err := h.Store.GetTemplate(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load template", err.Error())
		return
	}

	editor := service.EditTemplate(existing)
	req.apply(editor)
	payload, err := editor.Save()
	if err != nil {
		var fieldErrs service.FieldErrors
		if errors.As(err, &fieldErrs) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", fieldErrs)
			return
		}
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	t, err := h.Store.UpdateTemplate(c.Request.Context(), payload)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update template", err.Error())
		return
	}
	c.JSON(http.StatusOK, t)
}

// TemplateDelete is a hard delete; there is no undo.
func (h *Handler) TemplateDelete(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	if err := h.Store.DeleteTemplate(c.Request.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to delete template", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TemplateToggleActive commits immediately, outside the buffered flow:
// boolean toggles are immediate, multi-field edits are buffered.
func (h *Handler) TemplateToggleActive(c *gin.Context) {
	id, ok := caseID(c)
	if !ok {
		return
	}
	t, err := h.Store.ToggleTemplateActive(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Template not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to toggle template", err.Error())
		return
	}
	c.JSON(http.StatusOK, t)
}

// @Summary Active escalation settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.AgedCaseSettings
// @Router /api/aged-case-settings/active/ [get]
func (h *Handler) SettingsActive(c *gin.Context) {
	s, err := h.Store.ActiveSettings(c.Request.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusOK, service.DefaultSettings())
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load settings", err.Error())
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) SettingsList(c *gin.Context) {
	items, err := h.Store.ListSettings(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list settings", err.Error())
		return
	}
	if items == nil {
		items = []models.AgedCaseSettings{}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

// SettingsSetActive stores the posted configuration as a new version and
// activates it. Callers must post the complete merged object; this
// endpoint replaces versions rather than patching the active record.
func (h *Handler) SettingsSetActive(c *gin.Context) {
	var req models.AgedCaseSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if errs := service.ValidateSettings(req); len(errs) > 0 {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", errs)
		return
	}

	s, err := h.Store.ActivateSettings(c.Request.Context(), req)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to activate settings", err.Error())
		return
	}
	c.JSON(http.StatusOK, s)
}

// SettingsTemplates returns the active templates grouped per tier, the
// shape the settings editor's rotation table renders from.
func (h *Handler) SettingsTemplates(c *gin.Context) {
	templates, err := h.Store.ListTemplates(c.Request.Context(), 0, "", true)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list templates", err.Error())
		return
	}
	byTier := map[int][]models.AgedCaseTemplate{1: {}, 2: {}, 3: {}, 4: {}}
	for _, t := range templates {
		byTier[t.EscalationTier] = append(byTier[t.EscalationTier], t)
	}
	c.JSON(http.StatusOK, gin.H{"by_tier": byTier})
}
