package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studytrack/notifyd/internal/models"
	"github.com/studytrack/notifyd/internal/notify"
	"github.com/studytrack/notifyd/pkg/mail"
)

// ErrNoAddress is returned when the recipient has no address for the channel.
var ErrNoAddress = errors.New("dispatch: recipient has no address for channel")

// Dispatcher delivers a stored notification over one external channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipient *models.User, n notify.Notification) error
}

// DispatcherFunc adapts a function into a Dispatcher.
type DispatcherFunc func(ctx context.Context, recipient *models.User, n notify.Notification) error

// Dispatch calls f.
func (f DispatcherFunc) Dispatch(ctx context.Context, recipient *models.User, n notify.Notification) error {
	return f(ctx, recipient, n)
}

// PushSender delivers to every active push endpoint of a user.
type PushSender interface {
	Send(ctx context.Context, userID string, n notify.Notification) (int, error)
}

// PushDispatcher sends the push channel through a Web Push sender.
type PushDispatcher struct {
	sender PushSender
}

// NewPushDispatcher wraps sender.
func NewPushDispatcher(sender PushSender) *PushDispatcher {
	return &PushDispatcher{sender: sender}
}

// Dispatch implements Dispatcher.
func (d *PushDispatcher) Dispatch(ctx context.Context, recipient *models.User, n notify.Notification) error {
	if d.sender == nil {
		return errors.New("push dispatcher: sender is not configured")
	}
	if _, err := d.sender.Send(ctx, recipient.ID, n); err != nil {
		return fmt.Errorf("push dispatcher: %w", err)
	}
	return nil
}

// PreferencesPath is the client route where users manage notification channels.
const PreferencesPath = "/settings/notifications"

// EmailDispatcher sends the email channel to the recipient's address.
type EmailDispatcher struct {
	mailer  mail.Mailer
	baseURL string
}

// NewEmailDispatcher builds an EmailDispatcher. Relative links are resolved against baseURL.
func NewEmailDispatcher(mailer mail.Mailer, baseURL string) *EmailDispatcher {
	return &EmailDispatcher{mailer: mailer, baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// Dispatch implements Dispatcher.
func (d *EmailDispatcher) Dispatch(ctx context.Context, recipient *models.User, n notify.Notification) error {
	if d.mailer == nil {
		return errors.New("email dispatcher: mailer is not configured")
	}
	address := strings.TrimSpace(recipient.Email)
	if address == "" {
		return ErrNoAddress
	}

	msg := mail.Message{
		To:      []string{address},
		Subject: n.Title,
		Body:    n.Message,
		Urgent:  n.Priority == notify.PriorityUrgent,
		Link:    d.absolute(n.Link),
	}
	if d.baseURL != "" {
		msg.PreferencesURL = d.baseURL + PreferencesPath
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("email dispatcher: %w", err)
	}
	return nil
}

func (d *EmailDispatcher) absolute(link string) string {
	link = strings.TrimSpace(link)
	if link == "" || d.baseURL == "" || !strings.HasPrefix(link, "/") {
		return link
	}
	return d.baseURL + link
}

// SMSSender is implemented by SMS gateways.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// SMSDispatcher sends a short text to the recipient's phone number.
type SMSDispatcher struct {
	sender SMSSender
}

// NewSMSDispatcher wraps an SMS gateway.
func NewSMSDispatcher(sender SMSSender) *SMSDispatcher {
	return &SMSDispatcher{sender: sender}
}

// Dispatch implements Dispatcher.
func (d *SMSDispatcher) Dispatch(ctx context.Context, recipient *models.User, n notify.Notification) error {
	if d.sender == nil {
		return errors.New("sms dispatcher: sender is not configured")
	}
	phone := strings.TrimSpace(recipient.Phone)
	if phone == "" {
		return ErrNoAddress
	}

	body := n.Title
	if msg := strings.TrimSpace(n.Message); msg != "" {
		body = body + ": " + msg
	}
	if err := d.sender.SendSMS(ctx, phone, body); err != nil {
		return fmt.Errorf("sms dispatcher: %w", err)
	}
	return nil
}
