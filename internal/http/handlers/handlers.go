package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/routewise/backend/internal/db"
	"github.com/routewise/backend/internal/models"
	"github.com/routewise/backend/internal/service"
)

// RuleInvalidator drops an organization's cached rule set after rule CRUD.
type RuleInvalidator interface {
	Invalidate(ctx context.Context, organizationID string)
}

type Handler struct {
	Store       *db.Store
	Routing     *service.RoutingService
	Categorizer *service.Categorizer
	Experts     *service.ExpertFinder
	Backups     *service.BackupSelector
	Escalator   *service.Escalator
	Recorder    *service.DecisionRecorder
	RuleCache   RuleInvalidator
	Validator   *validator.Validate
	Logger      zerolog.Logger
	AdminKey    string
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

type routeRequest struct {
	Content        string            `json:"content" validate:"required"`
	Subject        string            `json:"subject"`
	RequestType    string            `json:"request_type"`
	Metadata       map[string]string `json:"metadata"`
	OrganizationID string            `json:"organization_id" validate:"required"`
	UserID         string            `json:"user_id"`
	UseAI          *bool             `json:"use_ai"`
}

// @Summary Route a request to a handler
// @Description Runs the full pipeline: categorize, match rules, score experts, escalate if needed, record the decision
// @Tags routing
// @Accept json
// @Produce json
// @Success 200 {object} models.RoutingDecision
// @Failure 400 {object} map[string]any
// @Router /api/route [post]
func (h *Handler) Route(c *gin.Context) {
	var body routeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	useAI := true
	if body.UseAI != nil {
		useAI = *body.UseAI
	}

	decision, err := h.Routing.Route(c.Request.Context(), models.IncomingRequest{
		Content:        body.Content,
		Subject:        body.Subject,
		RequestType:    body.RequestType,
		Metadata:       body.Metadata,
		OrganizationID: body.OrganizationID,
		UserID:         body.UserID,
	}, useAI)
	if err != nil {
		if errors.Is(err, service.ErrEmptyContent) || errors.Is(err, service.ErrMissingOrganization) {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
			return
		}
		h.Logger.Error().Err(err).Str("organization_id", body.OrganizationID).Msg("routing failed")
		writeError(c, http.StatusInternalServerError, "ROUTING_ERROR", "Failed to record routing decision", err.Error())
		return
	}
	c.JSON(http.StatusOK, decision)
}

type categorizeRequest struct {
	Content        string `json:"content" validate:"required"`
	Subject        string `json:"subject"`
	OrganizationID string `json:"organization_id"`
	UseAI          bool   `json:"use_ai"`
}

// @Summary Categorize request content
// @Tags routing
// @Accept json
// @Produce json
// @Success 200 {object} models.CategorizationResult
// @Router /api/categorize [post]
func (h *Handler) Categorize(c *gin.Context) {
	var body categorizeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	result := h.Categorizer.Categorize(c.Request.Context(), models.IncomingRequest{
		Content:        body.Content,
		Subject:        body.Subject,
		OrganizationID: body.OrganizationID,
	}, body.UseAI)
	c.JSON(http.StatusOK, result)
}

// @Summary Find experts for categories
// @Tags experts
// @Produce json
// @Param organization_id query string true "organization id"
// @Param categories query string true "comma-separated categories"
// @Param limit query int false "max results"
// @Success 200 {array} models.HandlerCandidate
// @Router /api/experts [get]
func (h *Handler) ExpertsList(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}
	categories := splitCSV(c.Query("categories"))
	if len(categories) == 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "categories is required", nil)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
	minLevel, _ := strconv.Atoi(c.DefaultQuery("min_skill_level", "0"))

	candidates, err := h.Experts.FindExperts(c.Request.Context(), orgID, categories, service.ExpertOptions{
		Limit:         limit,
		MinSkillLevel: minLevel,
		ExcludeIDs:    splitCSV(c.Query("exclude")),
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "EXPERT_SEARCH_ERROR", "Expert search failed", err.Error())
		return
	}
	if candidates == nil {
		candidates = []models.HandlerCandidate{}
	}
	c.JSON(http.StatusOK, candidates)
}

// @Summary Select a backup handler
// @Tags backup
// @Produce json
// @Param personId path string true "primary handler id"
// @Param organization_id query string true "organization id"
// @Success 200 {object} models.BackupResult
// @Failure 404 {object} map[string]any
// @Router /api/backup/{personId} [get]
func (h *Handler) BackupLookup(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}
	personID := c.Param("personId")

	result, err := h.Backups.SelectBackup(c.Request.Context(), personID, orgID, service.BackupOptions{
		ExcludeIDs:      splitCSV(c.Query("exclude")),
		RequireCapacity: c.Query("require_capacity") == "true",
	})
	if err != nil {
		h.Logger.Error().Err(err).Str("person_id", personID).Str("organization_id", orgID).Msg("backup selection failed")
		writeError(c, http.StatusInternalServerError, "BACKUP_ERROR", "Backup selection failed", err.Error())
		return
	}
	if result == nil {
		writeError(c, http.StatusNotFound, "NO_BACKUP_FOUND", "No backup handler found", nil)
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Ranked backup candidates
// @Tags backup
// @Produce json
// @Param personId path string true "primary handler id"
// @Param organization_id query string true "organization id"
// @Param limit query int false "max candidates"
// @Success 200 {array} models.BackupResult
// @Router /api/backup/{personId}/candidates [get]
func (h *Handler) BackupCandidates(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))

	candidates, err := h.Backups.GetBackupCandidates(c.Request.Context(), c.Param("personId"), orgID, limit)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "BACKUP_ERROR", "Backup candidate lookup failed", err.Error())
		return
	}
	if candidates == nil {
		candidates = []models.BackupResult{}
	}
	c.JSON(http.StatusOK, candidates)
}

type escalateRequest struct {
	OriginalHandlerID string                   `json:"original_handler_id"`
	OrganizationID    string                   `json:"organization_id" validate:"required"`
	EscalationPath    []models.EscalationLevel `json:"escalation_path"`
	IsUrgent          bool                     `json:"is_urgent"`
	StartLevel        int                      `json:"start_level"`
}

// @Summary Run manual escalation
// @Tags escalation
// @Accept json
// @Produce json
// @Success 200 {object} models.EscalationResult
// @Router /api/escalate [post]
func (h *Handler) Escalate(c *gin.Context) {
	var body escalateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	result := h.Escalator.HandleEscalation(c.Request.Context(), body.OriginalHandlerID, body.OrganizationID, service.EscalationOptions{
		Path:       body.EscalationPath,
		IsUrgent:   body.IsUrgent,
		StartLevel: body.StartLevel,
	})
	c.JSON(http.StatusOK, result)
}

// --- rules ---

type ruleRequest struct {
	Name     string               `json:"name" validate:"required"`
	Priority int                  `json:"priority"`
	IsActive *bool                `json:"is_active"`
	Criteria models.RuleCriteria  `json:"criteria"`
	Handler  models.RuleHandler   `json:"handler" validate:"required"`
	Schedule *models.RuleSchedule `json:"schedule"`
}

// @Summary List routing rules
// @Tags rules
// @Produce json
// @Param organization_id query string true "organization id"
// @Success 200 {array} models.RoutingRule
// @Router /api/rules [get]
func (h *Handler) RulesList(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}
	activeOnly := c.Query("active") == "true"

	rules, err := h.Store.ListRules(c.Request.Context(), orgID, activeOnly)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list rules", err.Error())
		return
	}
	if rules == nil {
		rules = []models.RoutingRule{}
	}
	c.JSON(http.StatusOK, rules)
}

// @Summary Create a routing rule
// @Tags rules
// @Accept json
// @Produce json
// @Success 201 {object} map[string]any
// @Router /api/rules [post]
func (h *Handler) RuleCreate(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}

	var body ruleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}
	if !validHandlerType(body.Handler.Type) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "handler.type must be person, team, queue, or auto", nil)
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	id, err := h.Store.CreateRule(c.Request.Context(), models.RoutingRule{
		OrganizationID: orgID,
		Name:           body.Name,
		Priority:       body.Priority,
		IsActive:       isActive,
		Criteria:       body.Criteria,
		Handler:        body.Handler,
		Schedule:       body.Schedule,
	})
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create rule", err.Error())
		return
	}

	h.RuleCache.Invalidate(c.Request.Context(), orgID)
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// @Summary Update a routing rule
// @Tags rules
// @Accept json
// @Produce json
// @Success 200 {object} models.RoutingRule
// @Router /api/rules/{id} [put]
func (h *Handler) RuleUpdate(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}

	var body ruleRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	rule := models.RoutingRule{
		ID:             c.Param("id"),
		OrganizationID: orgID,
		Name:           body.Name,
		Priority:       body.Priority,
		IsActive:       isActive,
		Criteria:       body.Criteria,
		Handler:        body.Handler,
		Schedule:       body.Schedule,
	}
	if err := h.Store.UpdateRule(c.Request.Context(), rule); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update rule", err.Error())
		return
	}

	h.RuleCache.Invalidate(c.Request.Context(), orgID)
	c.JSON(http.StatusOK, rule)
}

// @Summary Delete a routing rule
// @Tags rules
// @Produce json
// @Success 204
// @Router /api/rules/{id} [delete]
func (h *Handler) RuleDelete(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}

	if err := h.Store.DeleteRule(c.Request.Context(), c.Param("id"), orgID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Rule not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to delete rule", err.Error())
		return
	}

	h.RuleCache.Invalidate(c.Request.Context(), orgID)
	c.Status(http.StatusNoContent)
}

// --- decisions ---

// @Summary List routing decisions
// @Tags decisions
// @Produce json
// @Param organization_id query string true "organization id"
// @Success 200 {array} models.RoutingDecision
// @Router /api/decisions [get]
func (h *Handler) DecisionsList(c *gin.Context) {
	orgID := c.Query("organization_id")
	if orgID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "organization_id is required", nil)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	decisions, err := h.Store.ListDecisions(c.Request.Context(), orgID, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list decisions", err.Error())
		return
	}
	if decisions == nil {
		decisions = []models.RoutingDecision{}
	}
	c.JSON(http.StatusOK, decisions)
}

type feedbackRequest struct {
	WasSuccessful    *bool  `json:"was_successful" validate:"required"`
	FeedbackScore    *int   `json:"feedback_score" validate:"omitempty,min=1,max=5"`
	FeedbackText     string `json:"feedback_text"`
	ResolutionTimeMs *int64 `json:"resolution_time_ms" validate:"omitempty,min=0"`
}

// @Summary Attach outcome feedback to a decision
// @Tags decisions
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/decisions/{id}/feedback [post]
func (h *Handler) DecisionFeedback(c *gin.Context) {
	var body feedbackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}

	err := h.Recorder.UpdateOutcome(c.Request.Context(), c.Param("id"), models.DecisionFeedback{
		WasSuccessful:    *body.WasSuccessful,
		FeedbackScore:    body.FeedbackScore,
		FeedbackText:     body.FeedbackText,
		ResolutionTimeMs: body.ResolutionTimeMs,
	})
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Decision not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update decision", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// --- helpers ---

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validHandlerType(t models.HandlerType) bool {
	switch t {
	case models.HandlerPerson, models.HandlerTeam, models.HandlerQueue, models.HandlerAuto:
		return true
	default:
		return false
	}
}
