// Package eligibility decides whether a notification may be delivered on a channel under
// a user's preferences.
package eligibility

import (
	"strings"
	"time"
	_ "time/tzdata" // user quiet-hours zones must resolve without system zoneinfo

	"github.com/studytrack/notifyd/internal/notify"
)

// Reason explains an eligibility decision.
type Reason string

const (
	ReasonAllowed             Reason = "allowed"
	ReasonNoPreferences       Reason = "no_preferences"
	ReasonGlobalDisabled      Reason = "global_disabled"
	ReasonChannelDisabled     Reason = "channel_disabled"
	ReasonTypeDisabled        Reason = "type_disabled"
	ReasonBelowThreshold      Reason = "below_threshold"
	ReasonTypeChannelDisabled Reason = "type_channel_disabled"
	ReasonDoNotDisturb        Reason = "do_not_disturb"
	ReasonQuietHours          Reason = "quiet_hours"
)

// Decision is the outcome of a single evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

func allow(reason Reason) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason Reason) Decision  { return Decision{Allowed: false, Reason: reason} }

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the location used for do-not-disturb windows and as the fallback
// for quiet hours with an unknown timezone.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// Engine evaluates preferences against the current time. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	now func() time.Time
	loc *time.Location
}

// New constructs an Engine using the wall clock and UTC unless overridden.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, loc: time.UTC}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ShouldNotify reports whether the notification may be delivered on channel right now.
func (e *Engine) ShouldNotify(prefs *notify.Preferences, typ notify.Type, priority notify.Priority, channel notify.Channel) bool {
	return e.Decide(prefs, typ, priority, channel).Allowed
}

// Decide is ShouldNotify with the reason attached.
func (e *Engine) Decide(prefs *notify.Preferences, typ notify.Type, priority notify.Priority, channel notify.Channel) Decision {
	return evaluate(prefs, typ, priority, channel, e.now(), e.loc)
}

// Allowed filters channels down to the ones the preferences admit, keeping order.
func (e *Engine) Allowed(prefs *notify.Preferences, typ notify.Type, priority notify.Priority, channels []notify.Channel) ([]notify.Channel, map[notify.Channel]Decision) {
	at := e.now()
	allowed := make([]notify.Channel, 0, len(channels))
	decisions := make(map[notify.Channel]Decision, len(channels))
	for _, ch := range channels {
		decision := evaluate(prefs, typ, priority, ch, at, e.loc)
		decisions[ch] = decision
		if decision.Allowed {
			allowed = append(allowed, ch)
		}
	}
	return allowed, decisions
}

// Evaluate runs the decision at an explicit instant. Do-not-disturb is read in at's
// location.
func Evaluate(prefs *notify.Preferences, typ notify.Type, priority notify.Priority, channel notify.Channel, at time.Time) Decision {
	return evaluate(prefs, typ, priority, channel, at, at.Location())
}

func evaluate(prefs *notify.Preferences, typ notify.Type, priority notify.Priority, channel notify.Channel, at time.Time, loc *time.Location) Decision {
	if prefs == nil {
		return allow(ReasonNoPreferences)
	}
	if !prefs.GlobalEnabled {
		return deny(ReasonGlobalDisabled)
	}
	if !prefs.Channels.Enabled(channel) {
		return deny(ReasonChannelDisabled)
	}

	priority = priority.OrDefault()

	if pref, ok := prefs.TypePreferences[typ]; ok {
		if !pref.Enabled {
			return deny(ReasonTypeDisabled)
		}
		if priority.Below(pref.PriorityThreshold) {
			return deny(ReasonBelowThreshold)
		}
		if !notify.ContainsChannel(pref.Channels, channel) {
			return deny(ReasonTypeChannelDisabled)
		}
	}

	urgent := priority == notify.PriorityUrgent

	if prefs.DoNotDisturb && !urgent {
		if InWindow(at.In(loc), prefs.DoNotDisturbStart, prefs.DoNotDisturbEnd) {
			return deny(ReasonDoNotDisturb)
		}
	}

	qh := prefs.QuietHours
	if qh.Enabled && (!urgent || !qh.AllowUrgent) {
		if InWindow(at.In(quietLocation(qh.Timezone, loc)), qh.Start, qh.End) {
			return deny(ReasonQuietHours)
		}
	}

	return allow(ReasonAllowed)
}

func quietLocation(name string, fallback *time.Location) *time.Location {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

// InWindow reports whether the wall-clock time of at falls inside [start, end). Windows
// with start > end wrap past midnight. Equal or malformed bounds never match.
func InWindow(at time.Time, start, end string) bool {
	from, ok := notify.ParseClock(start)
	if !ok {
		return false
	}
	to, ok := notify.ParseClock(end)
	if !ok || from == to {
		return false
	}

	current := time.Duration(at.Hour())*time.Hour +
		time.Duration(at.Minute())*time.Minute +
		time.Duration(at.Second())*time.Second

	if from < to {
		return current >= from && current < to
	}
	return current >= from || current < to
}
