package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/models"
)

// Setting keys persisted for secrets generated at first start.
const (
	JWTSecretSetting       = "auth.jwt.secret"
	VAPIDPublicKeySetting  = "push.vapid_public_key"
	VAPIDPrivateKeySetting = "push.vapid_private_key"
)

// GetSystemSetting retrieves a system setting by key. Returns an empty string when not found.
func GetSystemSetting(ctx context.Context, db *gorm.DB, key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("system settings: db is nil")
	}

	var setting models.SystemSetting
	err := db.WithContext(ctx).Take(&setting, "key = ?", key).Error
	if err == nil {
		return setting.Value, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return "", nil
	}
	return "", fmt.Errorf("system settings: get %q: %w", key, err)
}

// UpsertSystemSetting stores or updates a system setting value.
func UpsertSystemSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	if db == nil {
		return fmt.Errorf("system settings: db is nil")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("system settings: key is required")
	}

	record := models.SystemSetting{
		Key:   key,
		Value: value,
	}

	if err := db.WithContext(ctx).
		Where("key = ?", key).
		Assign(map[string]any{"value": value}).
		FirstOrCreate(&record).Error; err != nil {
		return fmt.Errorf("system settings: upsert %q: %w", key, err)
	}

	return nil
}

// ResolveSetting returns the stored value for key when one exists. Otherwise it stores
// candidate and returns it, so generated secrets stay stable across restarts.
func ResolveSetting(ctx context.Context, db *gorm.DB, key, candidate string) (string, bool, error) {
	current, err := GetSystemSetting(ctx, db, key)
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(current) != "" {
		return strings.TrimSpace(current), false, nil
	}

	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false, fmt.Errorf("system settings: %q has no value to store", key)
	}
	if err := UpsertSystemSetting(ctx, db, key, candidate); err != nil {
		return "", false, err
	}
	return candidate, true, nil
}
