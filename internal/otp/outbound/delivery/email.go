package delivery

import (
	"context"
	"fmt"

	"github.com/shandysiswandi/onetime/internal/pkg/mail"
)

const emailSubject = "Your verification code"

type Email struct {
	client mail.Mail
	from   string
}

// NewEmail sends from the client's default sender when from is empty.
func NewEmail(client mail.Mail, from string) *Email {
	return &Email{client: client, from: from}
}

func (e *Email) Send(ctx context.Context, address, code string) error {
	return e.client.Send(ctx, mail.Message{
		From:     e.from,
		To:       []string{address},
		Subject:  emailSubject,
		TextBody: fmt.Sprintf("Your verification code is: %s\nThe code is valid for a limited time.", code),
		HTMLBody: fmt.Sprintf("<p>Your verification code is: <strong>%s</strong></p><p>The code is valid for a limited time.</p>", code),
	})
}
