package config

import (
	"context"
	"os"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewSheetsService builds a Sheets API client for the sheets ledger driver.
// SHEETS_CREDENTIALS_JSON overrides Application Default Credentials;
// SHEETS_ENDPOINT points the client at an emulator.
func NewSheetsService(ctx context.Context) (*sheets.Service, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credJSON := os.Getenv("SHEETS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	if endpoint := strings.TrimSpace(os.Getenv("SHEETS_ENDPOINT")); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint), option.WithoutAuthentication())
	}
	return sheets.NewService(ctx, opts...)
}
