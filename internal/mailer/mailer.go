// Package mailer sends operator notifications by SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/go-mail/mail"
)

//go:embed templates/*
var templatesFS embed.FS

// Mailer sends templated messages from a fixed sender.
type Mailer struct {
	dialer  sender
	from    string
	retries int
	backoff time.Duration
}

type sender interface {
	DialAndSend(m ...*mail.Message) error
}

// New creates a Mailer for the given SMTP server.
func New(host string, port int, username, password, from string) *Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second
	return &Mailer{dialer: dialer, from: from, retries: 3, backoff: 500 * time.Millisecond}
}

// Send renders templateName with data and delivers it to the recipient. A
// template defines "subject", "plainBody" and "htmlBody".
func (m *Mailer) Send(ctx context.Context, to, templateName string, data any) error {
	msg, err := m.message(to, templateName, data)
	if err != nil {
		return err
	}

	for i := 0; i < m.retries; i++ {
		if err = m.dialer.DialAndSend(msg); err == nil {
			return nil
		}
		if i == m.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.backoff):
		}
	}
	return fmt.Errorf("mailer: send %s: %w", templateName, err)
}

func (m *Mailer) message(to, templateName string, data any) (*mail.Message, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/"+templateName)
	if err != nil {
		return nil, err
	}

	subject := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(subject, "subject", data); err != nil {
		return nil, err
	}
	plainBody := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(plainBody, "plainBody", data); err != nil {
		return nil, err
	}
	htmlBody := new(bytes.Buffer)
	if err := tmpl.ExecuteTemplate(htmlBody, "htmlBody", data); err != nil {
		return nil, err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject.String())
	msg.SetBody("text/plain", plainBody.String())
	msg.AddAlternative("text/html", htmlBody.String())
	return msg, nil
}
