package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fittrack/server/internal/common"
	"github.com/fittrack/server/internal/server/models"
)

type registerPushTokenRequest struct {
	Token    string `json:"token" binding:"required"`
	Platform string `json:"platform" binding:"required"`
	DeviceID string `json:"device_id"`
}

type deactivatePushTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type pushTokenResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	Platform   string `json:"platform"`
	DeviceID   string `json:"device_id,omitempty"`
	IsActive   bool   `json:"is_active"`
	CreatedAt  string `json:"created_at,omitempty"`
	LastUsedAt string `json:"last_used_at,omitempty"`
}

func toPushTokenResponse(t *models.PushToken) pushTokenResponse {
	resp := pushTokenResponse{
		ID:       t.ID,
		Token:    t.Token,
		Platform: t.Platform,
		DeviceID: t.DeviceID,
		IsActive: t.IsActive,
	}
	if !t.CreatedAt.IsZero() {
		resp.CreatedAt = t.CreatedAt.Format(time.RFC3339)
	}
	if t.LastUsedAt != nil {
		resp.LastUsedAt = t.LastUsedAt.Format(time.RFC3339)
	}
	return resp
}

func (h *Handler) registerPushToken(c *gin.Context) {
	var req registerPushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidInput)
		return
	}

	token, err := h.push.RegisterToken(c.Request.Context(), currentUserID(c), req.Token, req.Platform, req.DeviceID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toPushTokenResponse(token))
}

func (h *Handler) deactivatePushToken(c *gin.Context) {
	var req deactivatePushTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, common.ErrInvalidInput)
		return
	}

	if err := h.push.DeactivateToken(c.Request.Context(), currentUserID(c), req.Token); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"detail": "token deactivated"})
}

func (h *Handler) listPushTokens(c *gin.Context) {
	tokens, err := h.push.ListTokens(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]pushTokenResponse, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, toPushTokenResponse(t))
	}
	c.JSON(http.StatusOK, out)
}
