package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/noakmilo/qventory-relist/internal/models"
	"github.com/noakmilo/qventory-relist/internal/services/relist"
)

type RelistHandler struct {
	service relist.RelistService
	logger  *logrus.Logger
}

func NewRelistHandler(service relist.RelistService, logger *logrus.Logger) *RelistHandler {
	return &RelistHandler{
		service: service,
		logger:  logger,
	}
}

// HealthCheck handles GET /health
func (h *RelistHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "qventory-relist",
	})
}

// CreateRule handles POST /api/v1/relist/rules
func (h *RelistHandler) CreateRule(c *gin.Context) {
	var req models.CreateRelistRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	id, err := h.service.CreateRule(c.Request.Context(), &req)
	if err != nil {
		status := http.StatusInternalServerError
		if isConfigurationError(err) {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{Error: "failed to create rule", Message: err.Error(), Code: status})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"rule_id": id})
}

// UpdateRule handles PUT /api/v1/relist/rules/:id
func (h *RelistHandler) UpdateRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	var req models.UpdateRelistRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	if err := h.service.UpdateRule(c.Request.Context(), id, &req); err != nil {
		h.writeServiceError(c, err, "failed to update rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteRule handles DELETE /api/v1/relist/rules/:id
func (h *RelistHandler) DeleteRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	userID, err := strconv.ParseUint(c.Query("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user_id", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	if err := h.service.DeleteRule(c.Request.Context(), id, uint(userID)); err != nil {
		h.writeServiceError(c, err, "failed to delete rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// EnableRule handles POST /api/v1/relist/rules/:id/enable
func (h *RelistHandler) EnableRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	if err := h.service.EnableRule(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err, "failed to enable rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// DisableRule handles POST /api/v1/relist/rules/:id/disable
func (h *RelistHandler) DisableRule(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	if err := h.service.DisableRule(c.Request.Context(), id); err != nil {
		h.writeServiceError(c, err, "failed to disable rule")
		return
	}
	c.Status(http.StatusNoContent)
}

// TriggerManualRelist handles POST /api/v1/relist/rules/:id/trigger
func (h *RelistHandler) TriggerManualRelist(c *gin.Context) {
	id, ok := h.ruleID(c)
	if !ok {
		return
	}
	var changes models.PendingChanges
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&changes); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request", Message: err.Error(), Code: http.StatusBadRequest})
			return
		}
	}

	result, err := h.service.TriggerManualRelist(c.Request.Context(), id, &changes)
	if err != nil {
		h.writeServiceError(c, err, "failed to trigger manual relist")
		return
	}
	c.JSON(http.StatusOK, result)
}

// RunDueRules handles POST /api/v1/relist/run-due
func (h *RelistHandler) RunDueRules(c *gin.Context) {
	results, err := h.service.RunDueRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to run due rules", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executed": len(results), "results": results})
}

// GetRules handles GET /api/v1/relist/rules
func (h *RelistHandler) GetRules(c *gin.Context) {
	param := &models.GetRelistRuleParam{}
	if v := c.Query("user_id"); v != "" {
		userID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user_id", Message: err.Error(), Code: http.StatusBadRequest})
			return
		}
		id := uint(userID)
		param.UserID = &id
	}
	if v := c.Query("enabled"); v != "" {
		enabled := v == "true"
		param.Enabled = &enabled
	}

	rules, err := h.service.GetRules(c.Request.Context(), param)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get rules", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

// GetHistory handles GET /api/v1/relist/history
func (h *RelistHandler) GetHistory(c *gin.Context) {
	param := &models.GetRelistHistoryParam{}
	if v := c.Query("rule_id"); v != "" {
		ruleID, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule_id", Message: err.Error(), Code: http.StatusBadRequest})
			return
		}
		id := uint(ruleID)
		param.RuleID = &id
	}
	if v := c.Query("status"); v != "" {
		status := models.RunStatus(v)
		param.Status = &status
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid limit", Message: err.Error(), Code: http.StatusBadRequest})
			return
		}
		param.Limit = &limit
	}

	rows, err := h.service.GetHistory(c.Request.Context(), param)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to get history", Message: err.Error(), Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": rows})
}

func (h *RelistHandler) ruleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid rule id", Message: err.Error(), Code: http.StatusBadRequest})
		return 0, false
	}
	return uint(id), true
}

func (h *RelistHandler) writeServiceError(c *gin.Context, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrRuleNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrRuleInProgress):
		status = http.StatusConflict
	case isConfigurationError(err):
		status = http.StatusBadRequest
	default:
		h.logger.WithError(err).Error(msg)
	}
	c.JSON(status, models.ErrorResponse{Error: msg, Message: err.Error(), Code: status})
}

func isConfigurationError(err error) bool {
	return errors.Is(err, models.ErrInvalidMode) ||
		errors.Is(err, models.ErrInvalidFrequency) ||
		errors.Is(err, models.ErrInvalidCustomInterval) ||
		errors.Is(err, models.ErrMissingModeConfig) ||
		errors.Is(err, models.ErrInvalidQuietHours) ||
		errors.Is(err, models.ErrInvalidPriceDecrease)
}
