package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/services"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for notifications.
type NotificationHandler struct {
	service   *services.NotificationService
	templates *services.TemplateService
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService, templates *services.TemplateService) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("notification handler: service is required")
	}
	return &NotificationHandler{
		service:   service,
		templates: templates,
	}, nil
}

type notificationContent struct {
	Type      notify.Type      `json:"type" validate:"required"`
	Priority  notify.Priority  `json:"priority"`
	Title     string           `json:"title" validate:"required,max=255"`
	Message   string           `json:"message"`
	Icon      string           `json:"icon"`
	Image     string           `json:"image"`
	Link      string           `json:"link"`
	Payload   map[string]any   `json:"payload"`
	Actions   []notify.Action  `json:"actions"`
	GroupID   string           `json:"group_id" validate:"max=128"`
	ExpiresAt *time.Time       `json:"expires_at"`
	Channels  []notify.Channel `json:"channels"`
}

type createNotificationRequest struct {
	UserID string `json:"user_id" validate:"required"`
	notificationContent
}

func (r notificationContent) input(userID, actor string) services.CreateNotificationInput {
	return services.CreateNotificationInput{
		UserID:    userID,
		Type:      r.Type,
		Priority:  r.Priority,
		Title:     r.Title,
		Message:   r.Message,
		Icon:      r.Icon,
		Image:     r.Image,
		Link:      r.Link,
		Payload:   r.Payload,
		Actions:   r.Actions,
		GroupID:   r.GroupID,
		ExpiresAt: r.ExpiresAt,
		Channels:  r.Channels,
		Actor:     actor,
	}
}

type templateNotificationRequest struct {
	UserID    string                     `json:"user_id" validate:"required"`
	Template  string                     `json:"template" validate:"required"`
	Variables map[string]any             `json:"variables"`
	Overrides services.TemplateOverrides `json:"overrides"`
}

type bulkNotificationRequest struct {
	UserIDs      []string            `json:"user_ids" validate:"required,min=1"`
	Notification notificationContent `json:"notification"`
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

// List returns notifications for the current user.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	since, err := parseTimeQuery(c, "since")
	if err != nil {
		response.Error(c, err)
		return
	}
	until, err := parseTimeQuery(c, "until")
	if err != nil {
		response.Error(c, err)
		return
	}

	var statuses []notify.Status
	for _, raw := range splitQuery(c, "status") {
		statuses = append(statuses, notify.Status(raw))
	}

	page, err := h.service.List(requestContext(c), services.ListNotificationsInput{
		UserID:   userID,
		Statuses: statuses,
		Type:     notify.Type(strings.ToLower(strings.TrimSpace(c.Query("type")))),
		Priority: notify.Priority(strings.ToLower(strings.TrimSpace(c.Query("priority")))),
		Since:    since,
		Until:    until,
		Search:   c.Query("q"),
		Limit:    parseIntQuery(c, "limit", 0),
		Cursor:   strings.TrimSpace(c.Query("cursor")),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Notifications, &response.Meta{
		Total:       page.Total,
		UnreadCount: page.UnreadCount,
		HasMore:     page.HasMore,
		NextCursor:  page.NextCursor,
	})
}

// UnreadCount returns the badge count of the current user.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := h.service.UnreadCount(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unread_count": count})
}

// Get returns a single notification of the current user.
func (h *NotificationHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.service.Get(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, n)
}

// Create stores and delivers a notification on behalf of a producer.
func (h *NotificationHandler) Create(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req createNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.Create(requestContext(c), req.input(req.UserID, actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// CreateFromTemplate renders a stored template for a recipient and delivers it.
func (h *NotificationHandler) CreateFromTemplate(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}
	if h.templates == nil {
		response.Error(c, apperrors.ErrNotFound)
		return
	}

	var req templateNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	overrides := req.Overrides
	overrides.Actor = actor
	result, err := h.templates.CreateFromTemplate(requestContext(c), req.UserID, req.Template, req.Variables, overrides)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, result)
}

// ListTemplates returns the stored notification templates.
func (h *NotificationHandler) ListTemplates(c *gin.Context) {
	if h.templates == nil {
		response.Success(c, http.StatusOK, []any{})
		return
	}

	templates, err := h.templates.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, templates)
}

// SendBulk delivers one notification to many recipients. Per-recipient failures are
// reported in the result, so the request itself only fails on malformed input.
func (h *NotificationHandler) SendBulk(c *gin.Context) {
	actor, ok := currentUser(c)
	if !ok {
		return
	}

	var req bulkNotificationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.service.SendBulk(requestContext(c), req.UserIDs, req.Notification.input("", actor))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// MarkRead marks the listed notifications read; an empty or missing list marks all.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req markReadRequest
	if !bindOptional(c, &req) {
		return
	}

	result, err := h.service.MarkAsRead(requestContext(c), userID, req.IDs...)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// MarkOneRead marks the notification in the path read.
func (h *NotificationHandler) MarkOneRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, apperrors.NewValidation("notification id is required"))
		return
	}

	result, err := h.service.MarkAsRead(requestContext(c), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// MarkAllRead marks all notifications read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	result, err := h.service.MarkAllAsRead(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// Dismiss archives a notification.
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.service.Dismiss(requestContext(c), userID, strings.TrimSpace(c.Param("id")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, n)
}

// Delete removes a notification.
func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.service.Delete(requestContext(c), userID, strings.TrimSpace(c.Param("id"))); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
