package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/eligibility"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/realtime"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/logger"
	"github.com/studytrack/notifyd/pkg/metrics"
)

const (
	defaultNotificationExpiry = 30 * 24 * time.Hour
	defaultListLimit          = 20
	maxListLimit              = 100
	maxTitleLength            = 255
	maxGroupIDLength          = 128
)

// NotificationConfig holds the orchestrator defaults.
type NotificationConfig struct {
	DefaultExpiry   time.Duration
	DefaultChannels []notify.Channel
	BulkBatchSize   int
}

// PreferencesLoader returns the stored preferences of a user.
type PreferencesLoader interface {
	Get(ctx context.Context, userID string) (*notify.Preferences, error)
}

// NotificationOption customises NotificationService behaviour.
type NotificationOption func(*NotificationService)

// WithNotificationConfig overrides expiry, channel and batch defaults.
func WithNotificationConfig(cfg NotificationConfig) NotificationOption {
	return func(s *NotificationService) {
		if cfg.DefaultExpiry > 0 {
			s.cfg.DefaultExpiry = cfg.DefaultExpiry
		}
		if channels := notify.NormaliseChannels(cfg.DefaultChannels); len(channels) > 0 {
			s.cfg.DefaultChannels = channels
		}
		if cfg.BulkBatchSize > 0 {
			s.cfg.BulkBatchSize = cfg.BulkBatchSize
		}
	}
}

// WithNotificationPublisher fans lifecycle events out to live sessions.
func WithNotificationPublisher(publisher realtime.Publisher) NotificationOption {
	return func(s *NotificationService) {
		s.publisher = publisher
	}
}

// WithNotificationPreferences sets the source of recipient preferences.
func WithNotificationPreferences(loader PreferencesLoader) NotificationOption {
	return func(s *NotificationService) {
		s.preferences = loader
	}
}

// WithEligibility replaces the default eligibility engine.
func WithEligibility(engine *eligibility.Engine) NotificationOption {
	return func(s *NotificationService) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithDispatcher registers the dispatcher used for an external channel.
func WithDispatcher(channel notify.Channel, dispatcher Dispatcher) NotificationOption {
	return func(s *NotificationService) {
		if dispatcher != nil && channel != notify.ChannelInApp {
			s.dispatchers[channel] = dispatcher
		}
	}
}

// WithNotificationAudit records producer and user actions in the audit trail.
func WithNotificationAudit(audit *AuditService) NotificationOption {
	return func(s *NotificationService) {
		s.audit = audit
	}
}

// WithNotificationClock injects a custom clock primarily for testing.
func WithNotificationClock(clock func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID    string           `json:"user_id"`
	Type      notify.Type      `json:"type"`
	Priority  notify.Priority  `json:"priority,omitempty"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Icon      string           `json:"icon,omitempty"`
	Image     string           `json:"image,omitempty"`
	Link      string           `json:"link,omitempty"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Actions   []notify.Action  `json:"actions,omitempty"`
	GroupID   string           `json:"group_id,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Channels  []notify.Channel `json:"channels,omitempty"`
	// Actor identifies the producer in the audit trail.
	Actor string `json:"-"`
}

// DeliveryResult reports the outcome of a create.
type DeliveryResult struct {
	Success        bool   `json:"success"`
	NotificationID string `json:"notification_id"`
	// DeliveredChannels lists the allowed channels that were handed to a deliverer,
	// whether or not the send succeeded. Channels without a dispatcher are left out.
	DeliveredChannels []notify.Channel                      `json:"delivered_channels"`
	Grouped           bool                                  `json:"grouped"`
	Decisions         map[notify.Channel]eligibility.Reason `json:"decisions,omitempty"`
	Notification      *notify.Notification                  `json:"notification"`
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID   string
	Statuses []notify.Status
	Type     notify.Type
	Priority notify.Priority
	Since    *time.Time
	Until    *time.Time
	Search   string
	Limit    int
	Cursor   string
}

// NotificationPage is one page of a listing, newest first.
type NotificationPage struct {
	Notifications []notify.Notification `json:"notifications"`
	Total         int64                 `json:"total"`
	UnreadCount   int64                 `json:"unread_count"`
	HasMore       bool                  `json:"has_more"`
	NextCursor    string                `json:"next_cursor,omitempty"`
}

// ReadResult reports how many notifications moved to read.
type ReadResult struct {
	Updated     int64 `json:"updated"`
	UnreadCount int64 `json:"unread_count"`
}

// NotificationService persists notifications, evaluates eligibility per channel and fans
// them out to live sessions and external channels.
type NotificationService struct {
	db          *gorm.DB
	cfg         NotificationConfig
	publisher   realtime.Publisher
	preferences PreferencesLoader
	engine      *eligibility.Engine
	dispatchers map[notify.Channel]Dispatcher
	audit       *AuditService
	now         func() time.Time
	log         *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB, opts ...NotificationOption) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	svc := &NotificationService{
		db: db,
		cfg: NotificationConfig{
			DefaultExpiry:   defaultNotificationExpiry,
			DefaultChannels: []notify.Channel{notify.ChannelInApp},
			BulkBatchSize:   defaultBulkBatchSize,
		},
		dispatchers: make(map[notify.Channel]Dispatcher),
		now:         time.Now,
		log:         logger.WithModule("notifications"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	if svc.engine == nil {
		svc.engine = eligibility.New(eligibility.WithClock(svc.now))
	}
	return svc, nil
}

// Create validates and stores a notification, then delivers it on every channel the
// recipient's preferences allow. The stored row and its audit entry commit together.
// Dispatch failures never fail the create; they only drop the channel from delivered_via.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*DeliveryResult, error) {
	ctx = ensureContext(ctx)
	now := s.clock()

	input, err := s.normaliseCreate(input, now)
	if err != nil {
		return nil, err
	}

	recipient, err := loadRecipient(ctx, s.db, input.UserID)
	if err != nil {
		return nil, err
	}

	prefs := s.loadPreferences(ctx, input.UserID)
	allowed, decisions := s.engine.Allowed(prefs, input.Type, input.Priority, input.Channels)
	reasons := make(map[notify.Channel]eligibility.Reason, len(decisions))
	for ch, decision := range decisions {
		reasons[ch] = decision.Reason
		metrics.EligibilityDecisions.WithLabelValues(string(ch), string(decision.Reason)).Inc()
	}

	var initial []notify.Channel
	if notify.ContainsChannel(allowed, notify.ChannelInApp) {
		initial = []notify.Channel{notify.ChannelInApp}
	}

	var (
		row     models.Notification
		grouped bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if input.GroupID != "" {
			existing, err := s.collapseIntoGroup(tx, input, initial, now)
			if err != nil {
				return err
			}
			if existing != nil {
				row = *existing
				grouped = true
			}
		}

		if !grouped {
			built, err := buildNotificationRow(input, initial, now)
			if err != nil {
				return err
			}
			if err := tx.Create(&built).Error; err != nil {
				return storeError("notification service", "create notification", err)
			}
			row = built
		}

		if s.audit != nil {
			if err := s.audit.LogTx(tx, AuditEntry{
				UserID:     &row.UserID,
				Actor:      defaultIfEmpty(input.Actor, "system"),
				Action:     AuditActionNotificationCreate,
				Resource:   "notification",
				ResourceID: row.ID,
				Result:     AuditResultSuccess,
				Metadata: map[string]any{
					"type":     row.Type,
					"priority": row.Priority,
					"channels": input.Channels,
					"grouped":  grouped,
				},
			}); err != nil {
				return storeError("notification service", "audit create", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.NotificationsCreated.WithLabelValues(row.Type, row.Priority).Inc()

	notification := row.ToDomain()
	published := notification
	s.broadcast(notification.UserID, realtime.EventNotificationCreated, &realtime.Payload{
		Notification:   &published,
		NotificationID: notification.ID,
	})

	attempted, delivered := s.dispatch(ctx, recipient, notification, allowed)
	if len(delivered) != len(initial) {
		if err := s.db.WithContext(ctx).
			Model(&models.Notification{}).
			Where("id = ?", row.ID).
			Update("delivered_via", datatypes.NewJSONSlice(delivered)).Error; err != nil {
			s.log.Warn("record delivered channels", zap.String("notification_id", row.ID), zap.Error(err))
		}
	}
	notification.DeliveredVia = delivered

	return &DeliveryResult{
		Success:           true,
		NotificationID:    notification.ID,
		DeliveredChannels: attempted,
		Grouped:           grouped,
		Decisions:         reasons,
		Notification:      &notification,
	}, nil
}

// Get returns a single unexpired notification owned by userID.
func (s *NotificationService) Get(ctx context.Context, userID, notificationID string) (*notify.Notification, error) {
	ctx = ensureContext(ctx)
	row, err := s.load(s.db.WithContext(ctx), userID, notificationID)
	if err != nil {
		return nil, err
	}
	n := row.ToDomain()
	return &n, nil
}

// List returns notifications for the supplied user ordered by recency, paginated with an
// opaque keyset cursor. Expired rows are never returned.
func (s *NotificationService) List(ctx context.Context, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	statuses := input.Statuses
	if len(statuses) == 0 {
		statuses = []notify.Status{notify.StatusUnread, notify.StatusRead}
	}
	for _, status := range statuses {
		if !status.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("unknown status %q", status))
		}
	}
	if input.Type != "" && !input.Type.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown notification type %q", input.Type))
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return nil, apperrors.NewValidation(fmt.Sprintf("unknown priority %q", input.Priority))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	now := s.clock()
	query := s.visible(s.db.WithContext(ctx), userID, now).
		Model(&models.Notification{}).
		Where("status IN ?", statusStrings(statuses))
	if input.Type != "" {
		query = query.Where("type = ?", string(input.Type))
	}
	if input.Priority != "" {
		query = query.Where("priority = ?", string(input.Priority))
	}
	if input.Since != nil {
		query = query.Where("created_at >= ?", input.Since.UTC())
	}
	if input.Until != nil {
		query = query.Where("created_at <= ?", input.Until.UTC())
	}
	if term := strings.TrimSpace(input.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		query = query.Where("(LOWER(title) LIKE ? OR LOWER(message) LIKE ?)", like, like)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, storeError("notification service", "count notifications", err)
	}

	page := query.Session(&gorm.Session{})
	if input.Cursor != "" {
		cursor, err := decodeCursor(input.Cursor)
		if err != nil {
			return nil, apperrors.NewValidation("invalid cursor")
		}
		page = page.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Notification
	if err := page.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error; err != nil {
		return nil, storeError("notification service", "list notifications", err)
	}

	result := &NotificationPage{}
	if len(rows) > limit {
		rows = rows[:limit]
		result.HasMore = true
		last := rows[len(rows)-1]
		result.NextCursor = encodeCursor(listCursor{CreatedAt: last.CreatedAt.UTC(), ID: last.ID})
	}
	result.Notifications = mapNotificationRows(rows)
	result.Total = total

	unread, err := s.unreadCount(s.db.WithContext(ctx), userID, now)
	if err != nil {
		return nil, err
	}
	result.UnreadCount = unread
	return result, nil
}

// UnreadCount returns the number of unread, unexpired notifications of userID.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, apperrors.NewValidation("user id is required")
	}
	return s.unreadCount(s.db.WithContext(ctx), userID, s.clock())
}

// MarkAsRead moves the given unread notifications to read. Without ids every unread
// notification is marked. Already read rows are left untouched. A single unknown id is a
// NotFoundError; unknown ids in a larger set are ignored.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID string, notificationIDs ...string) (*ReadResult, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	ids := normaliseIDs(notificationIDs)
	if len(ids) == 0 {
		return s.MarkAllAsRead(ctx, userID)
	}

	now := s.clock()
	var (
		changed []string
		unread  int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(ids) == 1 {
			if _, err := s.load(tx, userID, ids[0]); err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Notification{}).
			Where("user_id = ? AND id IN ? AND status = ?", userID, ids, string(notify.StatusUnread)).
			Pluck("id", &changed).Error; err != nil {
			return storeError("notification service", "select unread", err)
		}

		if len(changed) > 0 {
			if err := tx.Model(&models.Notification{}).
				Where("user_id = ? AND id IN ?", userID, changed).
				Updates(map[string]any{
					"status":     string(notify.StatusRead),
					"read_at":    now,
					"updated_at": now,
				}).Error; err != nil {
				return storeError("notification service", "mark read", err)
			}
		}

		count, err := s.unreadCount(tx, userID, now)
		if err != nil {
			return err
		}
		unread = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range changed {
		s.broadcast(userID, realtime.EventNotificationRead, &realtime.Payload{
			NotificationID: id,
			UnreadCount:    &unread,
		})
	}

	return &ReadResult{Updated: int64(len(changed)), UnreadCount: unread}, nil
}

// MarkAllAsRead marks every unread notification of userID as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (*ReadResult, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	now := s.clock()
	var (
		updated int64
		unread  int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Notification{}).
			Where("user_id = ? AND status = ?", userID, string(notify.StatusUnread)).
			Updates(map[string]any{
				"status":     string(notify.StatusRead),
				"read_at":    now,
				"updated_at": now,
			})
		if result.Error != nil {
			return storeError("notification service", "mark all read", result.Error)
		}
		updated = result.RowsAffected

		count, err := s.unreadCount(tx, userID, now)
		if err != nil {
			return err
		}
		unread = count
		return nil
	})
	if err != nil {
		return nil, err
	}

	if updated > 0 {
		s.broadcast(userID, realtime.EventNotificationReadAll, &realtime.Payload{UnreadCount: &unread})
	}
	return &ReadResult{Updated: updated, UnreadCount: unread}, nil
}

// Dismiss archives a notification. Dismissing an archived notification is a no-op.
func (s *NotificationService) Dismiss(ctx context.Context, userID, notificationID string) (*notify.Notification, error) {
	ctx = ensureContext(ctx)
	now := s.clock()

	var (
		row     *models.Notification
		changed bool
		unread  int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loaded, err := s.load(tx, userID, notificationID)
		if err != nil {
			return err
		}
		row = loaded

		current := notify.Status(row.Status)
		if current == notify.StatusArchived {
			return nil
		}
		if !notify.CanTransition(current, notify.StatusArchived) {
			return apperrors.NewValidation(fmt.Sprintf("notification in status %s cannot be archived", current))
		}

		if err := tx.Model(row).Updates(map[string]any{
			"status":     string(notify.StatusArchived),
			"updated_at": now,
		}).Error; err != nil {
			return storeError("notification service", "archive notification", err)
		}
		row.Status = string(notify.StatusArchived)
		row.UpdatedAt = now
		changed = true

		unread, err = s.unreadCount(tx, userID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:     &row.UserID,
			Actor:      row.UserID,
			Action:     AuditActionNotificationDismiss,
			Resource:   "notification",
			ResourceID: row.ID,
			Result:     AuditResultSuccess,
		})
		s.broadcast(row.UserID, realtime.EventNotificationArchived, &realtime.Payload{
			NotificationID: row.ID,
			UnreadCount:    &unread,
		})
	}

	n := row.ToDomain()
	return &n, nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	notificationID = strings.TrimSpace(notificationID)
	if userID == "" || notificationID == "" {
		return apperrors.NewValidation("user id and notification id are required")
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return storeError("notification service", "delete notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NewNotFound("notification not found")
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:     &userID,
		Actor:      userID,
		Action:     AuditActionNotificationDelete,
		Resource:   "notification",
		ResourceID: notificationID,
		Result:     AuditResultSuccess,
	})

	payload := &realtime.Payload{NotificationID: notificationID}
	if unread, err := s.unreadCount(s.db.WithContext(ctx), userID, s.clock()); err == nil {
		payload.UnreadCount = &unread
	}
	s.broadcast(userID, realtime.EventNotificationDeleted, payload)
	return nil
}

// CleanupExpired hard-deletes notifications whose expiry has passed.
func (s *NotificationService) CleanupExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at <= ?", s.clock()).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: cleanup expired: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) normaliseCreate(input CreateNotificationInput, now time.Time) (CreateNotificationInput, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	if input.UserID == "" {
		return input, apperrors.NewValidation("user id is required")
	}

	input.Type = notify.Type(strings.TrimSpace(string(input.Type)))
	if !input.Type.Valid() {
		return input, apperrors.NewValidation(fmt.Sprintf("unknown notification type %q", input.Type))
	}

	input.Priority = notify.Priority(strings.TrimSpace(string(input.Priority))).OrDefault()
	if !input.Priority.Valid() {
		return input, apperrors.NewValidation(fmt.Sprintf("unknown priority %q", input.Priority))
	}

	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return input, apperrors.NewValidation("title is required")
	}
	if utf8.RuneCountInString(input.Title) > maxTitleLength {
		return input, apperrors.NewValidation(fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	input.Message = strings.TrimSpace(input.Message)
	if input.Message == "" {
		return input, apperrors.NewValidation("message is required")
	}

	input.GroupID = strings.TrimSpace(input.GroupID)
	if len(input.GroupID) > maxGroupIDLength {
		return input, apperrors.NewValidation(fmt.Sprintf("group id must be at most %d characters", maxGroupIDLength))
	}

	for i, action := range input.Actions {
		if strings.TrimSpace(action.ID) == "" || strings.TrimSpace(action.Label) == "" {
			return input, apperrors.NewValidation(fmt.Sprintf("action %d requires an id and a label", i))
		}
	}

	input.Channels = notify.NormaliseChannels(input.Channels)
	if len(input.Channels) == 0 {
		input.Channels = append([]notify.Channel(nil), s.cfg.DefaultChannels...)
	}
	for _, ch := range input.Channels {
		if !ch.Valid() {
			return input, apperrors.NewValidation(fmt.Sprintf("unknown channel %q", ch))
		}
	}

	if input.ExpiresAt == nil {
		if s.cfg.DefaultExpiry > 0 {
			expires := now.Add(s.cfg.DefaultExpiry)
			input.ExpiresAt = &expires
		}
	} else {
		expires := input.ExpiresAt.UTC()
		if !expires.After(now) {
			return input, apperrors.NewValidation("expires_at must be in the future")
		}
		input.ExpiresAt = &expires
	}

	return input, nil
}

// collapseIntoGroup folds the input into the newest unread, unexpired notification of the
// same group. It returns nil when there is nothing to collapse into.
func (s *NotificationService) collapseIntoGroup(tx *gorm.DB, input CreateNotificationInput, delivered []notify.Channel, now time.Time) (*models.Notification, error) {
	var existing models.Notification
	err := s.visible(tx, input.UserID, now).
		Where("group_id = ? AND status = ?", input.GroupID, string(notify.StatusUnread)).
		Order("created_at DESC").
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storeError("notification service", "load group", err)
	}

	refreshed, err := buildNotificationRow(input, delivered, now)
	if err != nil {
		return nil, err
	}
	// The refreshed group sorts as the newest notification again.
	refreshed.BaseModel = existing.BaseModel
	refreshed.CreatedAt = now
	refreshed.UpdatedAt = now
	refreshed.GroupCount = existing.GroupCount + 1

	if err := tx.Save(&refreshed).Error; err != nil {
		return nil, storeError("notification service", "update group", err)
	}
	return &refreshed, nil
}

func buildNotificationRow(input CreateNotificationInput, delivered []notify.Channel, now time.Time) (models.Notification, error) {
	row := models.Notification{
		BaseModel: models.BaseModel{
			CreatedAt: now,
			UpdatedAt: now,
		},
		UserID:       input.UserID,
		Type:         string(input.Type),
		Priority:     string(input.Priority),
		Status:       string(notify.StatusUnread),
		Title:        input.Title,
		Message:      input.Message,
		Icon:         strings.TrimSpace(input.Icon),
		Image:        strings.TrimSpace(input.Image),
		Link:         strings.TrimSpace(input.Link),
		Actions:      datatypes.NewJSONSlice(input.Actions),
		DeliveredVia: datatypes.NewJSONSlice(delivered),
		GroupID:      input.GroupID,
		GroupCount:   1,
		ExpiresAt:    input.ExpiresAt,
	}
	if len(input.Payload) > 0 {
		data, err := json.Marshal(input.Payload)
		if err != nil {
			return row, apperrors.NewValidation("payload must be a JSON object").WithInternal(err)
		}
		row.Payload = datatypes.JSON(data)
	}
	return row, nil
}

func (s *NotificationService) loadPreferences(ctx context.Context, userID string) *notify.Preferences {
	if s.preferences == nil {
		return nil
	}
	prefs, err := s.preferences.Get(ctx, userID)
	if err != nil {
		s.log.Warn("load preferences, delivering without them", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return prefs
}

// dispatch hands n to the deliverer of every allowed channel. attempted holds the
// channels a deliverer was found for; delivered the subset that succeeded.
func (s *NotificationService) dispatch(ctx context.Context, recipient *models.User, n notify.Notification, allowed []notify.Channel) (attempted, delivered []notify.Channel) {
	attempted = make([]notify.Channel, 0, len(allowed))
	delivered = make([]notify.Channel, 0, len(allowed))
	for _, ch := range allowed {
		if ch == notify.ChannelInApp {
			attempted = append(attempted, ch)
			delivered = append(delivered, ch)
			metrics.ChannelDispatches.WithLabelValues(string(ch), "success").Inc()
			continue
		}

		dispatcher, ok := s.dispatchers[ch]
		if !ok {
			s.log.Debug("no dispatcher for channel", zap.String("channel", string(ch)), zap.String("notification_id", n.ID))
			metrics.ChannelDispatches.WithLabelValues(string(ch), "skipped").Inc()
			continue
		}

		attempted = append(attempted, ch)
		if err := dispatcher.Dispatch(ctx, recipient, n); err != nil {
			s.log.Warn("channel dispatch failed",
				zap.String("channel", string(ch)),
				zap.String("notification_id", n.ID),
				zap.String("user_id", recipient.ID),
				zap.Error(err),
			)
			metrics.ChannelDispatches.WithLabelValues(string(ch), "failure").Inc()
			continue
		}
		delivered = append(delivered, ch)
		metrics.ChannelDispatches.WithLabelValues(string(ch), "success").Inc()
	}
	return attempted, delivered
}

func (s *NotificationService) load(tx *gorm.DB, userID, notificationID string) (*models.Notification, error) {
	userID = strings.TrimSpace(userID)
	notificationID = strings.TrimSpace(notificationID)
	if userID == "" || notificationID == "" {
		return nil, apperrors.NewValidation("user id and notification id are required")
	}

	var row models.Notification
	if err := s.visible(tx, userID, s.clock()).
		Where("id = ?", notificationID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("notification not found")
		}
		return nil, storeError("notification service", "load notification", err)
	}
	return &row, nil
}

// visible scopes a query to the user's unexpired notifications.
func (s *NotificationService) visible(tx *gorm.DB, userID string, now time.Time) *gorm.DB {
	return tx.Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now)
}

func (s *NotificationService) unreadCount(tx *gorm.DB, userID string, now time.Time) (int64, error) {
	var count int64
	if err := s.visible(tx, userID, now).
		Model(&models.Notification{}).
		Where("status = ?", string(notify.StatusUnread)).
		Count(&count).Error; err != nil {
		return 0, storeError("notification service", "count unread", err)
	}
	return count, nil
}

func (s *NotificationService) broadcast(userID, event string, payload *realtime.Payload) {
	if s.publisher == nil {
		return
	}
	s.publisher.BroadcastToUser(realtime.StreamNotifications, userID, realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  event,
		Data:   payload,
	})
}

// clock returns the current instant in UTC at the precision every supported store keeps.
func (s *NotificationService) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func mapNotificationRows(rows []models.Notification) []notify.Notification {
	items := make([]notify.Notification, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].ToDomain())
	}
	return items
}

func statusStrings(statuses []notify.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}
