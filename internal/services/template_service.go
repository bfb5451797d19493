package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	apperrors "github.com/studytrack/notifyd/pkg/errors"
)

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// TemplateOverrides replaces template defaults for a single send.
type TemplateOverrides struct {
	Priority  notify.Priority  `json:"priority,omitempty"`
	Channels  []notify.Channel `json:"channels,omitempty"`
	Link      string           `json:"link,omitempty"`
	Icon      string           `json:"icon,omitempty"`
	GroupID   string           `json:"group_id,omitempty"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Actions   []notify.Action  `json:"actions,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Actor     string           `json:"-"`
}

// TemplateService renders stored templates into notifications.
type TemplateService struct {
	db            *gorm.DB
	notifications *NotificationService
}

// NewTemplateService constructs a TemplateService.
func NewTemplateService(db *gorm.DB, notifications *NotificationService) (*TemplateService, error) {
	if db == nil {
		return nil, errors.New("template service: db is required")
	}
	if notifications == nil {
		return nil, errors.New("template service: notification service is required")
	}
	return &TemplateService{db: db, notifications: notifications}, nil
}

// List returns every template ordered by name.
func (s *TemplateService) List(ctx context.Context) ([]models.NotificationTemplate, error) {
	ctx = ensureContext(ctx)
	var templates []models.NotificationTemplate
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&templates).Error; err != nil {
		return nil, storeError("template service", "list templates", err)
	}
	return templates, nil
}

// Get loads a template by name.
func (s *TemplateService) Get(ctx context.Context, name string) (*models.NotificationTemplate, error) {
	ctx = ensureContext(ctx)
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidation("template name is required")
	}

	var tmpl models.NotificationTemplate
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&tmpl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound(fmt.Sprintf("template %s not found", name))
		}
		return nil, storeError("template service", "load template", err)
	}
	return &tmpl, nil
}

// CreateFromTemplate expands the named template with variables and creates the
// notification for userID. The variables also become the payload, with extra.Payload
// taking precedence.
func (s *TemplateService) CreateFromTemplate(ctx context.Context, userID, name string, variables map[string]any, extra TemplateOverrides) (*DeliveryResult, error) {
	ctx = ensureContext(ctx)
	tmpl, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	input := CreateNotificationInput{
		UserID:    userID,
		Type:      notify.Type(tmpl.Type),
		Priority:  notify.Priority(tmpl.Priority),
		Title:     RenderTemplate(tmpl.TitleTemplate, variables),
		Message:   RenderTemplate(tmpl.MessageTemplate, variables),
		Icon:      tmpl.Icon,
		Link:      RenderTemplate(tmpl.Link, variables),
		Channels:  append([]notify.Channel(nil), tmpl.Channels...),
		GroupID:   extra.GroupID,
		Actions:   extra.Actions,
		ExpiresAt: extra.ExpiresAt,
		Actor:     extra.Actor,
	}
	if extra.Priority != "" {
		input.Priority = extra.Priority
	}
	if len(extra.Channels) > 0 {
		input.Channels = extra.Channels
	}
	if strings.TrimSpace(extra.Link) != "" {
		input.Link = extra.Link
	}
	if strings.TrimSpace(extra.Icon) != "" {
		input.Icon = extra.Icon
	}

	if len(variables) > 0 || len(extra.Payload) > 0 {
		payload := make(map[string]any, len(variables)+len(extra.Payload)+1)
		for k, v := range variables {
			payload[k] = v
		}
		for k, v := range extra.Payload {
			payload[k] = v
		}
		payload["template"] = tmpl.Name
		input.Payload = payload
	}

	return s.notifications.Create(ctx, input)
}

// RenderTemplate substitutes {name} placeholders. Placeholders without a value are left
// as written.
func RenderTemplate(pattern string, variables map[string]any) string {
	if pattern == "" || len(variables) == 0 {
		return pattern
	}
	return placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := variables[key]
		if !ok || value == nil {
			return match
		}
		return fmt.Sprint(value)
	})
}
