package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-mail/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	fails int
	calls int
	sent  []*mail.Message
}

func (f *fakeSender) DialAndSend(m ...*mail.Message) error {
	f.calls++
	if f.calls <= f.fails {
		return errors.New("smtp down")
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newTestMailer(s sender) *Mailer {
	return &Mailer{dialer: s, from: "noreply@example.com", retries: 3, backoff: time.Millisecond}
}

func alarmData() map[string]any {
	return map[string]any{
		"SpreadsheetID": "book-1",
		"Ranges":        []string{"Data_bom!F2:N2", "Data_bom!F4:N4"},
		"Error":         "quota exceeded",
		"Time":          time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSendScratchAlarm(t *testing.T) {
	s := &fakeSender{}
	m := newTestMailer(s)

	require.NoError(t, m.Send(context.Background(), "ops@example.com", "scratch_alarm.tmpl", alarmData()))
	require.Len(t, s.sent, 1)

	msg := s.sent[0]
	assert.Equal(t, []string{"ops@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"[sheetdocs] Scratch range not cleared on book-1"}, msg.GetHeader("Subject"))

	buf := new(bytes.Buffer)
	_, err := msg.WriteTo(buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Data_bom!F2:N2, Data_bom!F4:N4")
}

func TestSendRetries(t *testing.T) {
	s := &fakeSender{fails: 2}
	require.NoError(t, newTestMailer(s).Send(context.Background(), "ops@example.com", "scratch_alarm.tmpl", alarmData()))
	assert.Equal(t, 3, s.calls)

	s = &fakeSender{fails: 5}
	err := newTestMailer(s).Send(context.Background(), "ops@example.com", "scratch_alarm.tmpl", alarmData())
	assert.Error(t, err)
	assert.Equal(t, 3, s.calls)
}

func TestSendNoWaitAfterLastAttempt(t *testing.T) {
	s := &fakeSender{fails: 1}
	m := &Mailer{dialer: s, from: "noreply@example.com", retries: 1, backoff: time.Hour}

	done := make(chan error, 1)
	go func() {
		done <- m.Send(context.Background(), "ops@example.com", "scratch_alarm.tmpl", alarmData())
	}()

	select {
	case err := <-done:
		assert.Error(t, err)
		assert.Equal(t, 1, s.calls)
	case <-time.After(5 * time.Second):
		t.Fatal("Send waited for the backoff after its final attempt")
	}
}

func TestSendUnknownTemplate(t *testing.T) {
	s := &fakeSender{}
	err := newTestMailer(s).Send(context.Background(), "ops@example.com", "nope.tmpl", nil)
	assert.Error(t, err)
	assert.Zero(t, s.calls)
}

func TestExportFailedTemplate(t *testing.T) {
	s := &fakeSender{}
	data := map[string]any{"ExportID": 7, "Document": "bbgn", "OrderCode": "DH-01", "Error": "timeout"}
	require.NoError(t, newTestMailer(s).Send(context.Background(), "ops@example.com", "export_failed.tmpl", data))
	assert.Equal(t, []string{"[sheetdocs] Export of bbgn DH-01 failed"}, s.sent[0].GetHeader("Subject"))
}
