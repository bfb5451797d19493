package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/push"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
)

// PushSubscriptionService persists Web Push endpoints, one row per endpoint.
type PushSubscriptionService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// NewPushSubscriptionService constructs a PushSubscriptionService.
func NewPushSubscriptionService(db *gorm.DB, audit *AuditService) (*PushSubscriptionService, error) {
	if db == nil {
		return nil, errors.New("push subscription service: db is required")
	}
	return &PushSubscriptionService{db: db, audit: audit, now: time.Now}, nil
}

// Upsert stores the record, taking over the endpoint if it already exists.
func (s *PushSubscriptionService) Upsert(ctx context.Context, record push.Record) error {
	ctx = ensureContext(ctx)
	if err := validatePushRecord(record); err != nil {
		return err
	}

	row := models.PushSubscription{
		UserID:   strings.TrimSpace(record.UserID),
		Endpoint: strings.TrimSpace(record.Endpoint),
		P256dh:   strings.TrimSpace(record.Keys.P256dh),
		Auth:     strings.TrimSpace(record.Keys.Auth),
		Platform: record.Device.Platform,
		Browser:  record.Device.Browser,
		OS:       record.Device.OS,
		IsActive: true,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id", "p256dh", "auth", "platform", "browser", "os",
			"is_active", "failure_count", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return storeError("push subscription service", "upsert subscription", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:   &row.UserID,
		Actor:    row.UserID,
		Action:   AuditActionPushSubscribe,
		Resource: "push_subscription",
		Result:   AuditResultSuccess,
		Metadata: map[string]any{"browser": row.Browser, "platform": row.Platform},
	})
	return nil
}

// Delete removes the user's subscription for endpoint. Missing rows are not an error.
func (s *PushSubscriptionService) Delete(ctx context.Context, userID, endpoint string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	endpoint = strings.TrimSpace(endpoint)
	if userID == "" || endpoint == "" {
		return apperrors.NewValidation("user id and endpoint are required")
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND endpoint = ?", userID, endpoint).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return storeError("push subscription service", "delete subscription", result.Error)
	}

	if result.RowsAffected > 0 {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   &userID,
			Actor:    userID,
			Action:   AuditActionPushUnsubscribe,
			Resource: "push_subscription",
			Result:   AuditResultSuccess,
		})
	}
	return nil
}

// ListActive returns the active endpoints of userID.
func (s *PushSubscriptionService) ListActive(ctx context.Context, userID string) ([]push.Record, error) {
	ctx = ensureContext(ctx)
	var rows []models.PushSubscription
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", strings.TrimSpace(userID), true).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, storeError("push subscription service", "list subscriptions", err)
	}

	records := make([]push.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, push.Record{
			UserID:   row.UserID,
			Endpoint: row.Endpoint,
			Keys:     push.Keys{P256dh: row.P256dh, Auth: row.Auth},
			Device:   push.Device{Platform: row.Platform, Browser: row.Browser, OS: row.OS},
		})
	}
	return records, nil
}

// Deactivate marks an endpoint the push service reported as gone.
func (s *PushSubscriptionService) Deactivate(ctx context.Context, endpoint string) error {
	ctx = ensureContext(ctx)
	if err := s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where("endpoint = ?", strings.TrimSpace(endpoint)).
		Updates(map[string]any{
			"is_active":     false,
			"failure_count": gorm.Expr("failure_count + 1"),
			"updated_at":    s.now().UTC(),
		}).Error; err != nil {
		return storeError("push subscription service", "deactivate subscription", err)
	}
	return nil
}

// MarkDelivered stamps the last successful delivery on endpoint.
func (s *PushSubscriptionService) MarkDelivered(ctx context.Context, endpoint string, at time.Time) error {
	ctx = ensureContext(ctx)
	at = at.UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where("endpoint = ?", strings.TrimSpace(endpoint)).
		Updates(map[string]any{
			"last_used_at":  at,
			"failure_count": 0,
		}).Error; err != nil {
		return storeError("push subscription service", "mark delivered", err)
	}
	return nil
}

// PruneInactive deletes deactivated endpoints not touched within retention.
func (s *PushSubscriptionService) PruneInactive(ctx context.Context, retention time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	if retention <= 0 {
		return 0, errors.New("push subscription service: retention must be positive")
	}
	cutoff := s.now().UTC().Add(-retention)

	result := s.db.WithContext(ctx).
		Where("is_active = ? AND updated_at < ?", false, cutoff).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return 0, storeError("push subscription service", "prune subscriptions", result.Error)
	}
	return result.RowsAffected, nil
}

func validatePushRecord(record push.Record) error {
	if strings.TrimSpace(record.UserID) == "" {
		return apperrors.NewValidation("user id is required")
	}
	endpoint := strings.TrimSpace(record.Endpoint)
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return apperrors.NewValidation("endpoint must be an absolute http(s) URL")
	}
	if strings.TrimSpace(record.Keys.P256dh) == "" || strings.TrimSpace(record.Keys.Auth) == "" {
		return apperrors.NewValidation("subscription keys are required")
	}
	return nil
}
