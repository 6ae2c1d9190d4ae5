package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pedrogk/msgmux/internal/core"
	"github.com/pedrogk/msgmux/internal/session"
)

type createSessionRequest struct {
	Username    string `json:"username" binding:"required"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	Plan        string `json:"plan"`
	Role        string `json:"role"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	tenantID := c.Param("id")

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile := core.Profile{
		Username:    req.Username,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Plan:        core.Plan(req.Plan),
		Role:        core.Role(req.Role),
		Status:      core.TenantActive,
	}
	if profile.Plan == "" {
		profile.Plan = core.PlanStarter
	}
	if profile.Role == "" {
		profile.Role = core.RoleMember
	}

	ctrl, err := h.manager.CreateOrGetSession(c.Request.Context(), tenantID, profile)
	if err != nil {
		h.logger.Error("Failed to create session",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		status := http.StatusBadGateway
		var initErr *session.InitializationError
		if !errors.As(err, &initErr) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, ctrl.Snapshot())
}

type pairingRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

func (h *Handler) RequestPairingCode(c *gin.Context) {
	tenantID := c.Param("id")

	var req pairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.manager.RequestPairingCode(c.Request.Context(), tenantID, req.PhoneNumber)
	if !result.Success {
		c.JSON(http.StatusBadGateway, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	tenantID := c.Param("id")

	view, err := h.manager.GetSnapshot(tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) TerminateSession(c *gin.Context) {
	tenantID := c.Param("id")

	h.manager.TerminateSession(c.Request.Context(), tenantID)
	c.JSON(http.StatusOK, gin.H{"status": "terminated"})
}
