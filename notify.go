package accounts

import "context"

// NotificationKind selects the template and routing of a notification.
type NotificationKind string

const (
	NotifyRegistered         NotificationKind = "account.registered"
	NotifyEmailValidation    NotificationKind = "account.email_validation"
	NotifyPasswordRecovery   NotificationKind = "account.password_recovery"
	NotifyAccountCreated     NotificationKind = "account.created_by_admin"
	NotifyAccountSuspended   NotificationKind = "account.suspended"
	NotifyAccountDeleted     NotificationKind = "account.deleted"
	NotifyMailRequestNew     NotificationKind = "mail_request.new"
	NotifyMailRequestMessage NotificationKind = "mail_request.new_message"
)

// Notification is a message to be delivered out of band, email today.
type Notification struct {
	Kind    NotificationKind
	To      string
	Subject string
	// Data feeds the template: tokens, links, custom admin messages.
	Data map[string]any
}

// Notifier delivers notifications. Send blocks until accepted by the
// transport; SendLater enqueues and never surfaces delivery errors to
// the triggering request.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendLater(n Notification)
}

// NoopNotifier drops every notification. Default when no mailer is
// configured, and handy in tests.
type NoopNotifier struct{}

func (NoopNotifier) Send(_ context.Context, _ Notification) error { return nil }
func (NoopNotifier) SendLater(_ Notification)                     {}
