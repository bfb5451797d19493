package database

import (
	"gorm.io/gorm"

	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.NotificationPreferences{},
		&models.NotificationTemplate{},
		&models.PushSubscription{},
		&models.AuditLog{},
		&models.CacheEntry{},
		&models.SystemSetting{},
	)
}

// DefaultTemplates returns the notification templates installed on first start.
func DefaultTemplates() []models.NotificationTemplate {
	inApp := []notify.Channel{notify.ChannelInApp}
	inAppPush := []notify.Channel{notify.ChannelInApp, notify.ChannelPush}

	return []models.NotificationTemplate{
		{
			Name:            "essay_graded",
			Description:     "Sent when a submitted essay receives a grade",
			Type:            string(notify.TypeEssayGraded),
			Priority:        string(notify.PriorityNormal),
			TitleTemplate:   "Essay graded: {essayTitle}",
			MessageTemplate: "Your essay \"{essayTitle}\" received a score of {score}.",
			Icon:            "file-check",
			Link:            "/essays/{essayId}",
			Channels:        inAppPush,
		},
		{
			Name:            "flashcard_due",
			Description:     "Daily reminder that flashcards are due for review",
			Type:            string(notify.TypeFlashcardDue),
			Priority:        string(notify.PriorityNormal),
			TitleTemplate:   "{count} flashcards due",
			MessageTemplate: "You have {count} cards waiting in {deckName}.",
			Icon:            "layers",
			Link:            "/flashcards/{deckId}/review",
			Channels:        inAppPush,
		},
		{
			Name:            "study_reminder",
			Description:     "Scheduled study session reminder",
			Type:            string(notify.TypeStudyReminder),
			Priority:        string(notify.PriorityHigh),
			TitleTemplate:   "Time to study {subject}",
			MessageTemplate: "Your {duration} minute {subject} session starts now.",
			Icon:            "clock",
			Channels:        inAppPush,
		},
		{
			Name:            "achievement_unlocked",
			Description:     "Celebrates a newly unlocked achievement",
			Type:            string(notify.TypeAchievement),
			Priority:        string(notify.PriorityLow),
			TitleTemplate:   "Achievement unlocked: {achievementName}",
			MessageTemplate: "{description}",
			Icon:            "trophy",
			Link:            "/achievements",
			Channels:        inApp,
		},
		{
			Name:            "collaboration_invite",
			Description:     "Invitation to a shared study group",
			Type:            string(notify.TypeCollaboration),
			Priority:        string(notify.PriorityNormal),
			TitleTemplate:   "{inviterName} invited you to {groupName}",
			MessageTemplate: "Join {groupName} to study together.",
			Icon:            "users",
			Link:            "/groups/{groupId}",
			Channels:        inAppPush,
		},
		{
			Name:            "new_message",
			Description:     "Direct message from another learner",
			Type:            string(notify.TypeMessage),
			Priority:        string(notify.PriorityNormal),
			TitleTemplate:   "New message from {senderName}",
			MessageTemplate: "{preview}",
			Icon:            "message-circle",
			Link:            "/messages/{conversationId}",
			Channels:        inAppPush,
		},
		{
			Name:            "system_announcement",
			Description:     "Platform wide announcement",
			Type:            string(notify.TypeSystem),
			Priority:        string(notify.PriorityHigh),
			TitleTemplate:   "{title}",
			MessageTemplate: "{message}",
			Icon:            "megaphone",
			Channels:        []notify.Channel{notify.ChannelInApp, notify.ChannelEmail},
		},
	}
}

// SeedData installs the default templates. Existing templates are left untouched so
// operator edits survive restarts.
func SeedData(db *gorm.DB) error {
	for _, tmpl := range DefaultTemplates() {
		if err := db.Where(models.NotificationTemplate{Name: tmpl.Name}).Attrs(tmpl).FirstOrCreate(&models.NotificationTemplate{}).Error; err != nil {
			return err
		}
	}
	return nil
}
