package accounts

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// MailNotifier delivers notifications through the Resend API. It is a
// thin transport: subject and body come from the notification, layout
// and copy belong to the caller.
type MailNotifier struct {
	client *resend.Client
	from   string
	logger Logger
}

// NewMailNotifier builds a notifier sending from the given address.
func NewMailNotifier(apiKey, from string, logger Logger) *MailNotifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &MailNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
		logger: logger,
	}
}

func (m *MailNotifier) Send(ctx context.Context, n Notification) error {
	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{n.To},
		Subject: n.Subject,
		Html:    renderBody(n),
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send %s notification: %w", n.Kind, err)
	}
	return nil
}

// SendLater delivers in the background. Failures are logged, never
// propagated to the request that triggered the notification.
func (m *MailNotifier) SendLater(n Notification) {
	go func() {
		if err := m.Send(context.Background(), n); err != nil {
			m.logger.Error("notification %s to %s failed: %v", n.Kind, n.To, err)
		}
	}()
}

func renderBody(n Notification) string {
	body := "<p>" + n.Subject + "</p>"
	for k, v := range n.Data {
		body += fmt.Sprintf("<p>%s: %v</p>", k, v)
	}
	return body
}

// LogNotifier writes notifications to the logger instead of sending
// them, for development runs.
type LogNotifier struct {
	Logger Logger
}

func (l LogNotifier) Send(_ context.Context, n Notification) error {
	logger := l.Logger
	if logger == nil {
		logger = defLogger{}
	}
	logger.Info("notification %s to %s data=%v", n.Kind, n.To, n.Data)
	return nil
}

func (l LogNotifier) SendLater(n Notification) {
	_ = l.Send(context.Background(), n)
}
