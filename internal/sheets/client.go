// File: internal/sheets/client.go
package sheets

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Pedro-J-Kukul/sheetdocs/internal/metrics"
)

// Client wraps the Google Sheets API client and implements RowStore.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
}

// Config holds configuration for the Google Sheets client
type Config struct {
	ServiceAccountKeyPath string
	CredentialsB64        string
	SpreadsheetID         string
}

var _ RowStore = (*Client)(nil)

// NewClient creates a new Google Sheets client with service account authentication.
// Base64 credentials take precedence over the key file.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	var credentials []byte
	var err error

	switch {
	case cfg.CredentialsB64 != "":
		credentials, err = DecodeCredentials(cfg.CredentialsB64)
		if err != nil {
			return nil, err
		}
	case cfg.ServiceAccountKeyPath != "":
		credentials, err = os.ReadFile(cfg.ServiceAccountKeyPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
	default:
		return nil, fmt.Errorf("no service account credentials configured")
	}

	return NewClientFromJSON(ctx, credentials, cfg.SpreadsheetID)
}

// NewClientFromJSON creates a new Google Sheets client from JSON credentials
func NewClientFromJSON(ctx context.Context, credentialsJSON []byte, spreadsheetID string) (*Client, error) {
	config, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service account key: %w", err)
	}

	// The token source outlives the constructor context.
	httpClient := config.Client(context.WithoutCancel(ctx))

	return NewClientWithOptions(ctx, spreadsheetID, option.WithHTTPClient(httpClient))
}

// NewClientWithOptions creates a client from raw API options, e.g. a custom
// endpoint or HTTP client.
func NewClientWithOptions(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Client, error) {
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: spreadsheetID,
	}, nil
}

// DecodeCredentials decodes base64 service account JSON. Private keys pasted
// through environment variables often carry literal "\n" sequences; those are
// turned back into newlines.
func DecodeCredentials(b64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("unable to decode credentials: %w", err)
	}

	var creds map[string]any
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("invalid credentials JSON: %w", err)
	}
	if key, ok := creds["private_key"].(string); ok {
		creds["private_key"] = strings.ReplaceAll(key, `\n`, "\n")
	}

	fixed, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	if err := ValidateCredentials(string(fixed)); err != nil {
		return nil, err
	}
	return fixed, nil
}

// SpreadsheetID returns the default spreadsheet of this client.
func (c *Client) SpreadsheetID() string {
	return c.spreadsheetID
}

func (c *Client) resolve(spreadsheetID string) string {
	if spreadsheetID == "" {
		return c.spreadsheetID
	}
	return spreadsheetID
}

func observe(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SheetsRequests.WithLabelValues(op, status).Inc()
}

// GetSpreadsheet retrieves spreadsheet metadata
func (c *Client) GetSpreadsheet(ctx context.Context, spreadsheetID string) (*sheets.Spreadsheet, error) {
	spreadsheet, err := c.service.Spreadsheets.Get(c.resolve(spreadsheetID)).Context(ctx).Do()
	observe("get", err)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve spreadsheet: %w", err)
	}
	return spreadsheet, nil
}

// ReadRange returns the formatted values of an A1 range. Trailing empty
// cells and rows are omitted by the API.
func (c *Client) ReadRange(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := c.service.Spreadsheets.Values.Get(c.resolve(spreadsheetID), rng).Context(ctx).Do()
	observe("read", err)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", rng, err)
	}
	return resp.Values, nil
}

// BatchWrite writes every range in a single request.
func (c *Client) BatchWrite(ctx context.Context, spreadsheetID string, data []ValueRange) error {
	if len(data) == 0 {
		return nil
	}

	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: ValueInputOption,
		Data:             make([]*sheets.ValueRange, 0, len(data)),
	}
	for _, vr := range data {
		req.Data = append(req.Data, &sheets.ValueRange{Range: vr.Range, Values: vr.Values})
	}

	_, err := c.service.Spreadsheets.Values.BatchUpdate(c.resolve(spreadsheetID), req).Context(ctx).Do()
	observe("batch_write", err)
	if err != nil {
		return fmt.Errorf("unable to write data: %w", err)
	}
	return nil
}

// Append appends rows to the table found in rng. The API places them after
// the table's last row server side, so concurrent appends never overlap.
func (c *Client) Append(ctx context.Context, spreadsheetID, rng string, rows [][]any) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	vr := &sheets.ValueRange{Values: rows}
	resp, err := c.service.Spreadsheets.Values.Append(c.resolve(spreadsheetID), rng, vr).
		ValueInputOption(ValueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	observe("append", err)
	if err != nil {
		return "", fmt.Errorf("unable to append to %s: %w", rng, err)
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

// BatchClear clears every range in a single request.
func (c *Client) BatchClear(ctx context.Context, spreadsheetID string, ranges []string) error {
	if len(ranges) == 0 {
		return nil
	}

	req := &sheets.BatchClearValuesRequest{Ranges: ranges}
	_, err := c.service.Spreadsheets.Values.BatchClear(c.resolve(spreadsheetID), req).Context(ctx).Do()
	observe("batch_clear", err)
	if err != nil {
		return fmt.Errorf("unable to clear ranges: %w", err)
	}
	return nil
}

// ValidateCredentials validates the service account credentials
func ValidateCredentials(credentialsJSON string) error {
	var creds map[string]interface{}
	if err := json.Unmarshal([]byte(credentialsJSON), &creds); err != nil {
		return fmt.Errorf("invalid JSON: %v", err)
	}

	requiredFields := []string{"type", "project_id", "private_key_id", "private_key", "client_email"}
	for _, field := range requiredFields {
		if _, ok := creds[field]; !ok {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	if creds["type"] != "service_account" {
		return fmt.Errorf("invalid credential type: expected service_account, got %s", creds["type"])
	}

	return nil
}
