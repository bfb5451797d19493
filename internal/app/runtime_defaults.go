package app

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/database"
	"github.com/studytrack/notifyd/internal/push"
	"github.com/studytrack/notifyd/pkg/crypto"
)

const jwtSecretBytes = 48

// ApplyRuntimeDefaults ensures critical secrets are populated even when no configuration file is supplied.
// It returns a map describing which keys were generated so callers can log the event without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated[database.JWTSecretSetting] = true
	}

	pushCfg := &cfg.Notifications.Push
	if pushCfg.Enabled && (strings.TrimSpace(pushCfg.VAPIDPublicKey) == "" || strings.TrimSpace(pushCfg.VAPIDPrivateKey) == "") {
		public, private, err := push.GenerateVAPIDKeys()
		if err != nil {
			return nil, err
		}
		pushCfg.VAPIDPublicKey = public
		pushCfg.VAPIDPrivateKey = private
		generated[database.VAPIDPublicKeySetting] = true
		generated[database.VAPIDPrivateKeySetting] = true
	}

	return generated, nil
}

// PersistRuntimeDefaults stores secrets generated by ApplyRuntimeDefaults, or swaps them for
// the values stored by an earlier run, so tokens and push subscriptions survive restarts.
func PersistRuntimeDefaults(ctx context.Context, db *gorm.DB, cfg *Config, generated map[string]bool) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if db == nil || len(generated) == 0 {
		return nil
	}

	targets := map[string]*string{
		database.JWTSecretSetting:       &cfg.Auth.JWT.Secret,
		database.VAPIDPublicKeySetting:  &cfg.Notifications.Push.VAPIDPublicKey,
		database.VAPIDPrivateKeySetting: &cfg.Notifications.Push.VAPIDPrivateKey,
	}
	for key, target := range targets {
		if !generated[key] {
			continue
		}
		value, _, err := database.ResolveSetting(ctx, db, key, *target)
		if err != nil {
			return fmt.Errorf("persist %s: %w", key, err)
		}
		*target = value
	}
	return nil
}
