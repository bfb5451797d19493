package models

// User is the minimal recipient record the engine needs: identity, an email address for
// the email channel and an active flag used to reject unknown or disabled recipients.
type User struct {
	BaseModel

	Username    string `gorm:"type:varchar(128);uniqueIndex;not null" json:"username"`
	Email       string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	DisplayName string `gorm:"type:varchar(255)" json:"display_name"`
	Phone       string `gorm:"type:varchar(32)" json:"phone,omitempty"`
	IsActive    bool   `gorm:"index" json:"is_active"`
}
