package email

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBuildsMultipartMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "billing@schoolride.local"})

	var (
		gotAddr string
		gotAuth smtp.Auth
		gotTo   []string
		raw     []byte
	)
	p.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, raw = addr, a, to, msg
		return nil
	}

	err := p.Send(context.Background(), Message{
		To:       []string{"guardian@example.com"},
		Subject:  "Recibo de mensalidade",
		HTMLBody: "<p>ok</p>",
		Attachments: []Attachment{
			{Filename: "receipt.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4 test")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Equal(t, []string{"guardian@example.com"}, gotTo)

	parsed, err := mail.ReadMessage(strings.NewReader(string(raw)))
	require.NoError(t, err)
	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(parsed.Body, params["boundary"])
	htmlPart, err := reader.NextPart()
	require.NoError(t, err)
	html, err := io.ReadAll(htmlPart)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", string(html))

	attachment, err := reader.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "receipt.pdf", attachment.FileName())
	assert.Equal(t, "application/pdf", attachment.Header.Get("Content-Type"))

	_, err = reader.NextPart()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSendRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 25})
	assert.ErrorIs(t, p.Send(context.Background(), Message{Subject: "x"}), ErrNoRecipients)
}

func TestRenderTemplates(t *testing.T) {
	body, err := Render("overdue_alert", map[string]any{
		"OrgName":      "SchoolRide",
		"Period":       "2026-03",
		"HardDeadline": "2026-03-15",
		"Reference":    "123",
		"DaysLate":     6,
		"Currency":     "MZN",
		"AmountDue":    "110.00",
		"AmountOwed":   "110.00",
		"OrgEmail":     "billing@schoolride.local",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "MZN 110.00")
	assert.Contains(t, body, "2026-03-15")

	_, err = Render("missing", nil)
	assert.Error(t, err)
}
