package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/push"
	"github.com/studytrack/notifyd/internal/services"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/response"
)

// PushHandler lets clients register and remove Web Push endpoints.
type PushHandler struct {
	subscriptions *services.PushSubscriptionService
	publicKey     string
}

// NewPushHandler constructs a push handler. An empty publicKey means push is disabled and
// every endpoint reports a capability error.
func NewPushHandler(subscriptions *services.PushSubscriptionService, publicKey string) (*PushHandler, error) {
	if subscriptions == nil {
		return nil, errors.New("push handler: subscription service is required")
	}
	return &PushHandler{
		subscriptions: subscriptions,
		publicKey:     strings.TrimSpace(publicKey),
	}, nil
}

type subscribeRequest struct {
	Endpoint string      `json:"endpoint" validate:"required,url"`
	Keys     push.Keys   `json:"keys"`
	Device   push.Device `json:"device"`
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" validate:"required"`
}

// VAPIDKey returns the application server key clients subscribe with.
func (h *PushHandler) VAPIDKey(c *gin.Context) {
	if h.publicKey == "" {
		response.Error(c, apperrors.ErrCapability)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"public_key": h.publicKey})
}

// Subscribe stores the caller's subscription, taking over the endpoint when it exists.
func (h *PushHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if h.publicKey == "" {
		response.Error(c, apperrors.ErrCapability)
		return
	}

	var req subscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	record := push.Record{
		UserID:   userID,
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
		Device:   req.Device,
	}
	if record.Device.Platform == "" {
		record.Device.Platform = "web"
	}

	if err := h.subscriptions.Upsert(requestContext(c), record); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, record)
}

// Unsubscribe removes one of the caller's endpoints.
func (h *PushHandler) Unsubscribe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req unsubscribeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.subscriptions.Delete(requestContext(c), userID, req.Endpoint); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
