package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default window bounds used for both do-not-disturb and quiet hours.
const (
	DefaultWindowStart = "22:00"
	DefaultWindowEnd   = "08:00"
	DefaultTimezone    = "UTC"
)

// ChannelPreferences toggles each delivery channel.
type ChannelPreferences struct {
	InApp bool `json:"in_app"`
	Push  bool `json:"push"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// Enabled reports whether ch is switched on. Unknown channels are always off.
func (c ChannelPreferences) Enabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return c.InApp
	case ChannelPush:
		return c.Push
	case ChannelEmail:
		return c.Email
	case ChannelSMS:
		return c.SMS
	default:
		return false
	}
}

// Set toggles a single channel. Unknown channels are ignored.
func (c *ChannelPreferences) Set(ch Channel, enabled bool) {
	switch ch {
	case ChannelInApp:
		c.InApp = enabled
	case ChannelPush:
		c.Push = enabled
	case ChannelEmail:
		c.Email = enabled
	case ChannelSMS:
		c.SMS = enabled
	}
}

// QuietHours is the timezone aware suppression window.
type QuietHours struct {
	Enabled     bool   `json:"enabled"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Timezone    string `json:"timezone"`
	AllowUrgent bool   `json:"allow_urgent"`
}

// TypePreference narrows delivery for a single notification type.
type TypePreference struct {
	Enabled           bool      `json:"enabled"`
	Channels          []Channel `json:"channels"`
	PriorityThreshold Priority  `json:"priority_threshold"`
}

// Preferences is the per-user notification preference record.
type Preferences struct {
	UserID              string                  `json:"user_id"`
	GlobalEnabled       bool                    `json:"global_enabled"`
	DoNotDisturb        bool                    `json:"do_not_disturb"`
	DoNotDisturbStart   string                  `json:"do_not_disturb_start"`
	DoNotDisturbEnd     string                  `json:"do_not_disturb_end"`
	QuietHours          QuietHours              `json:"quiet_hours"`
	Channels            ChannelPreferences      `json:"channels"`
	TypePreferences     map[Type]TypePreference `json:"type_preferences"`
	CategoryPreferences map[Category]bool       `json:"category_preferences"`
	UpdatedAt           time.Time               `json:"updated_at,omitempty"`
}

// DefaultPreferences returns the record a user gets on first access.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:            userID,
		GlobalEnabled:     true,
		DoNotDisturbStart: DefaultWindowStart,
		DoNotDisturbEnd:   DefaultWindowEnd,
		QuietHours: QuietHours{
			Start:       DefaultWindowStart,
			End:         DefaultWindowEnd,
			Timezone:    DefaultTimezone,
			AllowUrgent: true,
		},
		Channels: ChannelPreferences{
			InApp: true,
			Push:  true,
			Email: true,
		},
		TypePreferences: map[Type]TypePreference{},
		CategoryPreferences: map[Category]bool{
			CategoryStudy:     true,
			CategorySocial:    true,
			CategorySystem:    true,
			CategoryMarketing: false,
		},
	}
}

// Clone returns a deep copy so cached records can be handed out safely.
func (p Preferences) Clone() Preferences {
	out := p
	out.TypePreferences = make(map[Type]TypePreference, len(p.TypePreferences))
	for t, pref := range p.TypePreferences {
		pref.Channels = append([]Channel(nil), pref.Channels...)
		out.TypePreferences[t] = pref
	}
	out.CategoryPreferences = make(map[Category]bool, len(p.CategoryPreferences))
	for c, enabled := range p.CategoryPreferences {
		out.CategoryPreferences[c] = enabled
	}
	return out
}

// ChannelPatch carries optional per-channel toggles.
type ChannelPatch struct {
	InApp *bool `json:"in_app,omitempty"`
	Push  *bool `json:"push,omitempty"`
	Email *bool `json:"email,omitempty"`
	SMS   *bool `json:"sms,omitempty"`
}

// QuietHoursPatch carries optional quiet hour fields.
type QuietHoursPatch struct {
	Enabled     *bool   `json:"enabled,omitempty"`
	Start       *string `json:"start,omitempty" validate:"omitempty,clock"`
	End         *string `json:"end,omitempty" validate:"omitempty,clock"`
	Timezone    *string `json:"timezone,omitempty"`
	AllowUrgent *bool   `json:"allow_urgent,omitempty"`
}

// PreferencesPatch is a partial update. Nil fields are left untouched; map entries are
// merged key by key and a null type preference removes the entry.
type PreferencesPatch struct {
	GlobalEnabled       *bool                    `json:"global_enabled,omitempty"`
	DoNotDisturb        *bool                    `json:"do_not_disturb,omitempty"`
	DoNotDisturbStart   *string                  `json:"do_not_disturb_start,omitempty" validate:"omitempty,clock"`
	DoNotDisturbEnd     *string                  `json:"do_not_disturb_end,omitempty" validate:"omitempty,clock"`
	QuietHours          *QuietHoursPatch         `json:"quiet_hours,omitempty"`
	Channels            *ChannelPatch            `json:"channels,omitempty"`
	TypePreferences     map[Type]*TypePreference `json:"type_preferences,omitempty"`
	CategoryPreferences map[Category]bool        `json:"category_preferences,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p PreferencesPatch) Empty() bool {
	return p.GlobalEnabled == nil && p.DoNotDisturb == nil && p.DoNotDisturbStart == nil &&
		p.DoNotDisturbEnd == nil && p.QuietHours == nil && p.Channels == nil &&
		len(p.TypePreferences) == 0 && len(p.CategoryPreferences) == 0
}

// Validate checks the values a patch would write.
func (p PreferencesPatch) Validate() error {
	for field, value := range map[string]*string{
		"do_not_disturb_start": p.DoNotDisturbStart,
		"do_not_disturb_end":   p.DoNotDisturbEnd,
	} {
		if value != nil {
			if _, ok := ParseClock(*value); !ok {
				return fmt.Errorf("%s must be HH:MM", field)
			}
		}
	}

	if qh := p.QuietHours; qh != nil {
		if qh.Start != nil {
			if _, ok := ParseClock(*qh.Start); !ok {
				return fmt.Errorf("quiet_hours.start must be HH:MM")
			}
		}
		if qh.End != nil {
			if _, ok := ParseClock(*qh.End); !ok {
				return fmt.Errorf("quiet_hours.end must be HH:MM")
			}
		}
		if qh.Timezone != nil && strings.TrimSpace(*qh.Timezone) != "" {
			if _, err := time.LoadLocation(strings.TrimSpace(*qh.Timezone)); err != nil {
				return fmt.Errorf("quiet_hours.timezone %q is not a known timezone", *qh.Timezone)
			}
		}
	}

	for t, pref := range p.TypePreferences {
		if !t.Valid() {
			return fmt.Errorf("unknown notification type %q", t)
		}
		if pref == nil {
			continue
		}
		if pref.PriorityThreshold != "" && !pref.PriorityThreshold.Valid() {
			return fmt.Errorf("type_preferences.%s: unknown priority %q", t, pref.PriorityThreshold)
		}
		for _, ch := range pref.Channels {
			if !ch.Valid() {
				return fmt.Errorf("type_preferences.%s: unknown channel %q", t, ch)
			}
		}
	}

	for c := range p.CategoryPreferences {
		switch c {
		case CategoryStudy, CategorySocial, CategorySystem, CategoryMarketing:
		default:
			return fmt.Errorf("unknown category %q", c)
		}
	}
	return nil
}

// Apply merges the patch into prefs.
func (p PreferencesPatch) Apply(prefs *Preferences) {
	if prefs == nil {
		return
	}
	if p.GlobalEnabled != nil {
		prefs.GlobalEnabled = *p.GlobalEnabled
	}
	if p.DoNotDisturb != nil {
		prefs.DoNotDisturb = *p.DoNotDisturb
	}
	if p.DoNotDisturbStart != nil {
		prefs.DoNotDisturbStart = strings.TrimSpace(*p.DoNotDisturbStart)
	}
	if p.DoNotDisturbEnd != nil {
		prefs.DoNotDisturbEnd = strings.TrimSpace(*p.DoNotDisturbEnd)
	}

	if qh := p.QuietHours; qh != nil {
		if qh.Enabled != nil {
			prefs.QuietHours.Enabled = *qh.Enabled
		}
		if qh.Start != nil {
			prefs.QuietHours.Start = strings.TrimSpace(*qh.Start)
		}
		if qh.End != nil {
			prefs.QuietHours.End = strings.TrimSpace(*qh.End)
		}
		if qh.Timezone != nil {
			prefs.QuietHours.Timezone = strings.TrimSpace(*qh.Timezone)
		}
		if qh.AllowUrgent != nil {
			prefs.QuietHours.AllowUrgent = *qh.AllowUrgent
		}
	}

	if ch := p.Channels; ch != nil {
		if ch.InApp != nil {
			prefs.Channels.InApp = *ch.InApp
		}
		if ch.Push != nil {
			prefs.Channels.Push = *ch.Push
		}
		if ch.Email != nil {
			prefs.Channels.Email = *ch.Email
		}
		if ch.SMS != nil {
			prefs.Channels.SMS = *ch.SMS
		}
	}

	if len(p.TypePreferences) > 0 && prefs.TypePreferences == nil {
		prefs.TypePreferences = make(map[Type]TypePreference, len(p.TypePreferences))
	}
	for t, pref := range p.TypePreferences {
		if pref == nil {
			delete(prefs.TypePreferences, t)
			continue
		}
		entry := *pref
		entry.Channels = NormaliseChannels(entry.Channels)
		prefs.TypePreferences[t] = entry
	}

	if len(p.CategoryPreferences) > 0 && prefs.CategoryPreferences == nil {
		prefs.CategoryPreferences = make(map[Category]bool, len(p.CategoryPreferences))
	}
	for c, enabled := range p.CategoryPreferences {
		prefs.CategoryPreferences[c] = enabled
	}
}

// ParseClock parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseClock(value string) (time.Duration, bool) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	limits := []int{23, 59, 59}
	units := []time.Duration{time.Hour, time.Minute, time.Second}

	var offset time.Duration
	for i, part := range parts {
		if len(part) != 2 {
			return 0, false
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > limits[i] {
			return 0, false
		}
		offset += time.Duration(n) * units[i]
	}
	return offset, true
}
