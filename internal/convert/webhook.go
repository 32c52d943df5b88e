package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// WebhookConverter posts the HTML to an external conversion service which
// stores the PDF and answers with its location.
type WebhookConverter struct {
	URL    string
	APIKey string
	Client *http.Client
}

type webhookResponse struct {
	OK         bool   `json:"ok"`
	PathToFile string `json:"pathToFile"`
	FileName   string `json:"fileName"`
	Error      string `json:"error"`
}

func NewWebhookConverter(url, apiKey string, timeout time.Duration) *WebhookConverter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &WebhookConverter{URL: url, APIKey: apiKey, Client: &http.Client{Timeout: timeout}}
}

func (w *WebhookConverter) Convert(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(w.APIKey) != "" {
		httpReq.Header.Set("X-API-Key", w.APIKey)
	}

	resp, err := w.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		text := strings.TrimSpace(string(msg))
		if text == "" {
			text = resp.Status
		}
		return nil, fmt.Errorf("%w: status=%d: %s", ErrConversionFailed, resp.StatusCode, text)
	}

	var out webhookResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrConversionFailed, err)
	}
	if !out.OK || out.PathToFile == "" {
		reason := out.Error
		if reason == "" {
			reason = "no file returned"
		}
		return nil, fmt.Errorf("%w: %s", ErrConversionFailed, reason)
	}

	name := out.FileName
	if name == "" {
		name = req.FileName
	}
	return &Result{PathToFile: out.PathToFile, FileName: name}, nil
}
