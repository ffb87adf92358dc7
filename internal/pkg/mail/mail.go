package mail

import (
	"context"
	"io"
)

// Message is an email payload. When both bodies are set the message is sent
// as multipart/alternative.
type Message struct {
	// From overrides the sender configured on the implementation.
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail abstracts an email provider.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
