package notify

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// MailClient is the part of the SendGrid client the sender uses.
type MailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig holds configuration for SendGrid.
type SendGridConfig struct {
	APIKey string
	From   string
	To     string
}

// SendGridSender emails events through the SendGrid API.
type SendGridSender struct {
	client MailClient
	from   *mail.Email
	to     *mail.Email
}

// NewSendGridSender returns nil when no API key or recipient is configured.
func NewSendGridSender(cfg SendGridConfig) *SendGridSender {
	if cfg.APIKey == "" || cfg.To == "" {
		return nil
	}
	from := cfg.From
	if from == "" {
		from = cfg.To
	}
	return NewSendGridSenderWithClient(sendgrid.NewSendClient(cfg.APIKey), from, cfg.To)
}

// NewSendGridSenderWithClient uses the given client instead of the API.
func NewSendGridSenderWithClient(client MailClient, from, to string) *SendGridSender {
	return &SendGridSender{
		client: client,
		from:   mail.NewEmail("DPS Scheduler", from),
		to:     mail.NewEmail("", to),
	}
}

func (s *SendGridSender) Notify(ctx context.Context, event Event) error {
	body := event.Body()
	message := mail.NewSingleEmail(s.from, event.Title(), s.to, body, "<pre>"+html.EscapeString(body)+"</pre>")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}

	log.Printf("📧 Email sent to %s", s.to.Address)
	return nil
}
