package ledger

import (
	"context"
	"fmt"
	"os"

	"github.com/pkl-testcase/wo_backend/config"
	"github.com/pkl-testcase/wo_backend/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// NewFromEnv builds the ledger selected by LEDGER_DRIVER.
//
// sql: data_layanan on LEDGER_DB_* when configured, otherwise on primary.
// redis: a hash named LEDGER_REDIS_KEY on rdb.
// sheets: SHEETS_SPREADSHEET_ID / SHEETS_SHEET_NAME / SHEETS_KEY_HEADER / SHEETS_ADDRESS_HEADER.
//
// The returned close func releases whatever handle the ledger opened itself.
func NewFromEnv(ctx context.Context, primary *gorm.DB, rdb *redis.Client, migrate bool) (AddressLedger, func(), error) {
	noop := func() {}

	switch config.LedgerDriver() {
	case config.LedgerDriverRedis:
		if rdb == nil {
			return nil, noop, fmt.Errorf("ledger driver redis requires REDIS_ADDRESS")
		}
		return NewRedisLedger(rdb, os.Getenv("LEDGER_REDIS_KEY")), noop, nil

	case config.LedgerDriverSheets:
		svc, err := config.NewSheetsService(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("sheets service: %w", err)
		}
		l, err := NewSheetsLedger(svc, SheetsConfig{
			SpreadsheetID: os.Getenv("SHEETS_SPREADSHEET_ID"),
			SheetName:     os.Getenv("SHEETS_SHEET_NAME"),
			KeyHeader:     os.Getenv("SHEETS_KEY_HEADER"),
			AddressHeader: os.Getenv("SHEETS_ADDRESS_HEADER"),
		})
		if err != nil {
			return nil, noop, err
		}
		return l, noop, nil
	}

	db := primary
	closeFn := noop
	if settings := config.DatabaseSettingsFromEnv("LEDGER_DB_"); settings.Configured() {
		ledgerDB, err := config.ConnectDatabaseWithRetry(ctx, settings)
		if err != nil {
			return nil, noop, fmt.Errorf("connect ledger database: %w", err)
		}
		db = ledgerDB
		closeFn = func() { config.CloseDatabase(ledgerDB) }
	}
	if db == nil {
		return nil, noop, fmt.Errorf("ledger driver sql requires a database")
	}
	if migrate {
		if err := models.MigrateLedgerTable(db); err != nil {
			closeFn()
			return nil, noop, fmt.Errorf("migrate ledger table: %w", err)
		}
	}
	return NewSQLLedger(db), closeFn, nil
}
