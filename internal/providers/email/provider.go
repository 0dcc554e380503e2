package email

import "context"

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
	// SendTemplate renders templates/<templateName>.html with data.
	SendTemplate(ctx context.Context, to []string, subject, templateName string, data any, attachments ...Attachment) error
}

// NoOpProvider drops every message. It is used when SMTP is not configured.
type NoOpProvider struct{}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	return nil
}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, subject, templateName string, data any, attachments ...Attachment) error {
	return nil
}
