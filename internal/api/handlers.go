package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nezunotify/notifyctl/internal/api/middleware"
	"github.com/nezunotify/notifyctl/internal/logging"
	"github.com/nezunotify/notifyctl/internal/notify"
	"github.com/nezunotify/notifyctl/internal/transport"
	"github.com/nezunotify/notifyctl/internal/util"
	"github.com/tidwall/sjson"
)

// notifyRequest is the relay's POST /v1/notify body. Images are accepted by
// URL only.
type notifyRequest struct {
	Message              string `json:"message" binding:"required"`
	ImageURL             string `json:"image_url" binding:"omitempty,url"`
	StickerPackageID     int    `json:"sticker_package_id" binding:"omitempty,min=1"`
	StickerID            int    `json:"sticker_id" binding:"omitempty,min=1"`
	NotificationDisabled bool   `json:"notification_disabled"`
}

func (s *Server) handleNotify(c *gin.Context) {
	id := uuid.NewString()
	c.Header("X-Message-Id", id)
	if requestID := logging.GetGinRequestID(c); requestID != "" {
		c.Header("X-Request-Id", requestID)
	}

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, id, "invalid_request", err.Error())
		return
	}
	notifier := s.currentNotifier()
	if notifier == nil {
		writeError(c, http.StatusServiceUnavailable, id, "not_configured", "relay has no notify token configured")
		return
	}

	msg := notify.Message{
		Text:                 req.Message,
		ImageURL:             req.ImageURL,
		StickerPackageID:     req.StickerPackageID,
		StickerID:            req.StickerID,
		NotificationDisabled: req.NotificationDisabled,
	}
	entry := logging.FromContext(c.Request.Context()).WithFields(map[string]any{
		"message_id": id,
		"caller":     util.HideSecret(middleware.Principal(c)),
	})
	if err := notifier.Send(c.Request.Context(), msg); err != nil {
		status, kind := classifyError(err)
		entry.Warnf("relay send failed: %v", err)
		writeError(c, status, id, kind, err.Error())
		return
	}
	entry.Info("relayed notification")

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "id", id)
	body, _ = sjson.SetBytes(body, "status", "sent")
	c.Data(http.StatusOK, "application/json", body)
}

func (s *Server) handleStatus(c *gin.Context) {
	id := uuid.NewString()
	notifier := s.currentNotifier()
	if notifier == nil {
		writeError(c, http.StatusServiceUnavailable, id, "not_configured", "relay has no notify token configured")
		return
	}
	status, err := notifier.Status(c.Request.Context())
	if err != nil {
		code, kind := classifyError(err)
		writeError(c, code, id, kind, err.Error())
		return
	}

	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "target_type", status.TargetType)
	body, _ = sjson.SetBytes(body, "target", status.Target)
	body, _ = sjson.SetBytes(body, "limit", status.Limit)
	body, _ = sjson.SetBytes(body, "remaining", status.Remaining)
	body, _ = sjson.SetBytes(body, "image_limit", status.ImageLimit)
	body, _ = sjson.SetBytes(body, "image_remaining", status.ImageRemaining)
	if !status.Reset.IsZero() {
		body, _ = sjson.SetBytes(body, "reset", status.Reset.UTC().Format(time.RFC3339))
	}
	c.Data(http.StatusOK, "application/json", body)
}

// classifyError maps a notify failure to a relay status code and error type.
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, notify.ErrEmptyMessage), errors.Is(err, notify.ErrStickerPair), errors.Is(err, notify.ErrImageNotFound):
		return http.StatusBadRequest, "invalid_request"
	case notify.IsRateLimited(err):
		return http.StatusTooManyRequests, "rate_limited"
	case transport.IsTransportError(err):
		if transport.StatusCode(err) == 0 {
			return http.StatusBadGateway, "upstream_unreachable"
		}
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeError(c *gin.Context, status int, id, kind, message string) {
	body := []byte(`{}`)
	body, _ = sjson.SetBytes(body, "id", id)
	body, _ = sjson.SetBytes(body, "error.type", kind)
	body, _ = sjson.SetBytes(body, "error.message", message)
	c.Data(status, "application/json", body)
}
