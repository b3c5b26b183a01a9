// Package google mirrors ledger rows into a Google Sheets worksheet.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"cassa/internal/core"
	ports "cassa/internal/sheets"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes one row per payment into a single worksheet, keyed by the
// payment ID in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Ensure interface conformance
var _ ports.LedgerMirror = (*Client)(nil)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus credentials, either a service
// account (GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS) or an OAuth client and token
// (GOOGLE_OAUTH_CLIENT_*, GOOGLE_OAUTH_TOKEN_*; see cmd/oauth-init).
// Optional: GOOGLE_SHEET_NAME (default "Cassa").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheetName := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME"))
	if sheetName == "" {
		sheetName = "Cassa"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// newSheetsService builds a Sheets service from whichever credentials the
// environment provides, over the pooled HTTP client.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	ts, err := tokenSourceFromEnv(ctx)
	if err != nil {
		return nil, err
	}

	base := context.WithValue(ctx, oauth2.HTTPClient, newHTTPClientWithPooling())
	authed := oauth2.NewClient(base, ts)

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(authed))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// tokenSourceFromEnv prefers a service account; falls back to an OAuth
// client plus the token cmd/oauth-init minted.
func tokenSourceFromEnv(ctx context.Context) (oauth2.TokenSource, error) {
	if credentialsJSON := loadServiceAccount(ctx); credentialsJSON != nil {
		creds, err := oauthgoogle.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account credentials: %w", err)
		}
		return creds.TokenSource, nil
	}

	clientJSON, err := loadEnvJSON("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil {
		return nil, err
	}
	tokenJSON, err := loadEnvJSON("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if clientJSON == nil || tokenJSON == nil {
		return nil, errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON/FILE or GOOGLE_OAUTH_CLIENT_* plus GOOGLE_OAUTH_TOKEN_*)")
	}

	cfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}

	slog.InfoContext(ctx, "Using OAuth token credentials")
	return cfg.TokenSource(ctx, &tok), nil
}

func loadServiceAccount(ctx context.Context) []byte {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		slog.InfoContext(ctx, "Using inline service account credentials", "size", len(inline))
		return []byte(inline)
	}

	file := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if file == "" {
		return nil
	}

	credentialsJSON, err := os.ReadFile(file)
	if err != nil {
		slog.WarnContext(ctx, "Failed to read service account file", "path", file, "error", err)
		return nil
	}
	slog.InfoContext(ctx, "Read service account credentials", "path", file, "size", len(credentialsJSON))
	return credentialsJSON
}

// loadEnvJSON returns the inline value or the file contents, nil when
// neither variable is set.
func loadEnvJSON(inlineKey, fileKey string) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv(inlineKey)); inline != "" {
		return []byte(inline), nil
	}
	file := strings.TrimSpace(os.Getenv(fileKey))
	if file == "" {
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return data, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// UpsertPayment rewrites the row holding this payment ID, or appends a new
// one when the sheet has never seen it.
func (c *Client) UpsertPayment(ctx context.Context, entry core.LedgerEntry) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if entry.PaymentID <= 0 {
		return fmt.Errorf("invalid payment id: %d", entry.PaymentID)
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", c.sheetName, err)
	}

	wantID := strconv.FormatInt(entry.PaymentID, 10)
	row := 0
	for i, r := range resp.Values {
		if len(r) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(r[0])) == wantID {
			row = i + 1
			break
		}
	}
	if row == 0 {
		row = len(resp.Values) + 1
	}

	dataRange := fmt.Sprintf("%s!A%d:G%d", c.sheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(entry)}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update row %d in sheet %s: %w", row, c.sheetName, err)
	}

	slog.DebugContext(ctx, "Payment row mirrored",
		"payment_id", entry.PaymentID,
		"row", row)
	return nil
}

func rowValues(entry core.LedgerEntry) []any {
	return []any{
		entry.PaymentID,
		entry.MemberID,
		entry.MemberName,
		entry.Period.Key(),
		string(entry.Status),
		entry.Amount.Euros(),
		entry.LastUpdated.Format(time.RFC3339),
	}
}
