package email

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendGridSender accepts a sender of the form "Name <addr>" or a bare address.
func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   parseAddress(from),
	}
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	m := sgmail.NewSingleEmail(s.from, msg.Subject, sgmail.NewEmail("", msg.To), msg.Text, msg.HTML)
	resp, err := s.client.SendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (s *SendGridSender) Provider() string { return "sendgrid" }

func parseAddress(from string) *sgmail.Email {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return sgmail.NewEmail("", from)
	}
	return sgmail.NewEmail(addr.Name, addr.Address)
}
