package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/cache"
	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/internal/realtime"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
	"github.com/studytrack/notifyd/pkg/logger"
)

const (
	preferencesCachePrefix     = "notification_prefs:"
	defaultPreferencesCacheTTL = 5 * time.Minute
)

// PreferencesOption customises PreferencesService behaviour.
type PreferencesOption func(*PreferencesService)

// WithPreferencesCache enables read-through caching of preference records.
func WithPreferencesCache(store cache.Store, ttl time.Duration) PreferencesOption {
	return func(s *PreferencesService) {
		s.cache = store
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithPreferencesPublisher announces preference changes to live sessions.
func WithPreferencesPublisher(publisher realtime.Publisher) PreferencesOption {
	return func(s *PreferencesService) {
		s.publisher = publisher
	}
}

// WithPreferencesAudit records preference updates in the audit trail.
func WithPreferencesAudit(audit *AuditService) PreferencesOption {
	return func(s *PreferencesService) {
		s.audit = audit
	}
}

// PreferencesService stores one preference record per user, creating it with defaults on
// first access.
type PreferencesService struct {
	db        *gorm.DB
	cache     cache.Store
	cacheTTL  time.Duration
	publisher realtime.Publisher
	audit     *AuditService
	log       *zap.Logger
}

// NewPreferencesService constructs a PreferencesService.
func NewPreferencesService(db *gorm.DB, opts ...PreferencesOption) (*PreferencesService, error) {
	if db == nil {
		return nil, errors.New("preferences service: db is required")
	}
	svc := &PreferencesService{
		db:       db,
		cacheTTL: defaultPreferencesCacheTTL,
		log:      logger.WithModule("preferences"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Get returns the user's preferences, creating the default record when none exists.
func (s *PreferencesService) Get(ctx context.Context, userID string) (*notify.Preferences, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}

	if prefs, ok := s.cached(ctx, userID); ok {
		return prefs, nil
	}

	row, err := s.loadOrCreate(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, err
	}

	prefs := row.ToDomain()
	s.remember(ctx, prefs)
	return &prefs, nil
}

// Update validates and merges patch into the stored record. The change is audited,
// cached and published as preferences.updated.
func (s *PreferencesService) Update(ctx context.Context, userID string, patch notify.PreferencesPatch) (*notify.Preferences, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.NewValidation("user id is required")
	}
	if err := patch.Validate(); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}
	if patch.Empty() {
		return s.Get(ctx, userID)
	}

	var updated notify.Preferences
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.loadOrCreate(tx, userID)
		if err != nil {
			return err
		}

		prefs := row.ToDomain()
		patch.Apply(&prefs)
		row.Assign(prefs)

		if err := tx.Save(row).Error; err != nil {
			return storeError("preferences service", "save preferences", err)
		}

		if s.audit != nil {
			if err := s.audit.LogTx(tx, AuditEntry{
				UserID:     &userID,
				Actor:      userID,
				Action:     AuditActionPreferencesUpdate,
				Resource:   "notification_preferences",
				ResourceID: row.ID,
				Result:     AuditResultSuccess,
				Metadata:   map[string]any{"patch": patch},
			}); err != nil {
				return storeError("preferences service", "audit update", err)
			}
		}

		updated = row.ToDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.remember(ctx, updated)
	s.publish(updated)
	return &updated, nil
}

// Invalidate drops the cached record for userID.
func (s *PreferencesService) Invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ensureContext(ctx), preferencesCachePrefix+userID); err != nil {
		s.log.Debug("invalidate preferences cache", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *PreferencesService) loadOrCreate(tx *gorm.DB, userID string) (*models.NotificationPreferences, error) {
	var row models.NotificationPreferences
	err := tx.Where("user_id = ?", userID).First(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeError("preferences service", "load preferences", err)
	}

	created := models.NewNotificationPreferences(notify.DefaultPreferences(userID))
	if err := tx.Create(created).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, storeError("preferences service", "create preferences", err)
		}
		// Another request created the row first.
		if err := tx.Where("user_id = ?", userID).First(&row).Error; err != nil {
			return nil, storeError("preferences service", "reload preferences", err)
		}
		return &row, nil
	}
	return created, nil
}

func (s *PreferencesService) cached(ctx context.Context, userID string) (*notify.Preferences, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, ok, err := s.cache.Get(ctx, preferencesCachePrefix+userID)
	if err != nil {
		s.log.Debug("read preferences cache", zap.String("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var prefs notify.Preferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, false
	}
	if prefs.TypePreferences == nil {
		prefs.TypePreferences = map[notify.Type]notify.TypePreference{}
	}
	if prefs.CategoryPreferences == nil {
		prefs.CategoryPreferences = map[notify.Category]bool{}
	}
	return &prefs, true
}

func (s *PreferencesService) remember(ctx context.Context, prefs notify.Preferences) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, preferencesCachePrefix+prefs.UserID, raw, s.cacheTTL); err != nil {
		s.log.Debug("write preferences cache", zap.String("user_id", prefs.UserID), zap.Error(err))
	}
}

func (s *PreferencesService) publish(prefs notify.Preferences) {
	if s.publisher == nil {
		return
	}
	snapshot := prefs.Clone()
	s.publisher.BroadcastToUser(realtime.StreamNotifications, prefs.UserID, realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  realtime.EventPreferencesUpdated,
		Data:   &realtime.Payload{Preferences: &snapshot},
	})
}
