package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"
)

const (
	DefaultSheetsKeyHeader     = "name"
	DefaultSheetsAddressHeader = "ALAMAT"
)

type SheetsConfig struct {
	SpreadsheetID string
	SheetName     string
	KeyHeader     string
	AddressHeader string
}

// SheetsLedger reads and writes the ledger in a Google Sheet whose first row
// names the key and address columns. Writes are not atomic across callers.
type SheetsLedger struct {
	svc *sheets.Service
	cfg SheetsConfig
}

func NewSheetsLedger(svc *sheets.Service, cfg SheetsConfig) (*SheetsLedger, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, fmt.Errorf("sheets ledger: spreadsheet id is required")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = "Sheet1"
	}
	if strings.TrimSpace(cfg.KeyHeader) == "" {
		cfg.KeyHeader = DefaultSheetsKeyHeader
	}
	if strings.TrimSpace(cfg.AddressHeader) == "" {
		cfg.AddressHeader = DefaultSheetsAddressHeader
	}
	return &SheetsLedger{svc: svc, cfg: cfg}, nil
}

type sheetCell struct {
	row    int // 1-based sheet row
	alamat string
}

type sheetSnapshot struct {
	keyCol     int // 0-based
	addressCol int
	width      int
	rows       map[string]sheetCell
}

func (l *SheetsLedger) sheetRange(suffix string) string {
	name := "'" + strings.ReplaceAll(l.cfg.SheetName, "'", "''") + "'"
	if suffix == "" {
		return name
	}
	return name + "!" + suffix
}

func (l *SheetsLedger) read(ctx context.Context) (*sheetSnapshot, error) {
	resp, err := l.svc.Spreadsheets.Values.Get(l.cfg.SpreadsheetID, l.sheetRange("")).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", l.cfg.SheetName)
	}

	snap := &sheetSnapshot{keyCol: -1, addressCol: -1, rows: make(map[string]sheetCell)}
	header := resp.Values[0]
	snap.width = len(header)
	for i, h := range header {
		name := strings.TrimSpace(fmt.Sprint(h))
		switch {
		case strings.EqualFold(name, l.cfg.KeyHeader):
			snap.keyCol = i
		case strings.EqualFold(name, l.cfg.AddressHeader):
			snap.addressCol = i
		}
	}
	if snap.keyCol < 0 || snap.addressCol < 0 {
		return nil, fmt.Errorf("sheet %q: header must contain %q and %q", l.cfg.SheetName, l.cfg.KeyHeader, l.cfg.AddressHeader)
	}

	for i, row := range resp.Values[1:] {
		key := strings.TrimSpace(cellText(row, snap.keyCol))
		if key == "" {
			continue
		}
		snap.rows[key] = sheetCell{row: i + 2, alamat: strings.TrimSpace(cellText(row, snap.addressCol))}
	}
	return snap, nil
}

func cellText(row []interface{}, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	return fmt.Sprint(row[col])
}

func (l *SheetsLedger) LookupMany(ctx context.Context, serviceNos []string) (map[string]*string, error) {
	result := make(map[string]*string)
	keys := cleanKeys(serviceNos)
	if len(keys) == 0 {
		return result, nil
	}
	snap, err := l.read(ctx)
	if err != nil {
		return result, utils.NewStorageError("ledger lookup", err)
	}
	for _, key := range keys {
		cell, ok := snap.rows[key]
		if !ok {
			continue
		}
		alamat := cell.alamat
		result[key] = nilIfBlank(&alamat)
	}
	return result, nil
}

func (l *SheetsLedger) UpsertOne(ctx context.Context, serviceNo string, alamat *string) error {
	if strings.TrimSpace(serviceNo) == "" {
		return utils.InvalidInputf("service_no is required")
	}
	_, err := l.UpsertMany(ctx, []models.ServiceAddress{{ServiceNo: serviceNo, Alamat: alamat}})
	return err
}

// UpsertMany rewrites the address cell of known keys in one batch update and
// appends the rest as new rows.
func (l *SheetsLedger) UpsertMany(ctx context.Context, entries []models.ServiceAddress) (int, error) {
	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return 0, nil
	}
	snap, err := l.read(ctx)
	if err != nil {
		return 0, utils.NewStorageError("ledger upsert", err)
	}
	addressColName, err := excelize.ColumnNumberToName(snap.addressCol + 1)
	if err != nil {
		return 0, utils.NewStorageError("ledger upsert", err)
	}

	var updates []*sheets.ValueRange
	var appends [][]interface{}
	for _, e := range entries {
		value := utils.DereferencePtr(e.Alamat)
		if cell, ok := snap.rows[e.ServiceNo]; ok {
			updates = append(updates, &sheets.ValueRange{
				Range:  l.sheetRange(fmt.Sprintf("%s%d", addressColName, cell.row)),
				Values: [][]interface{}{{value}},
			})
			continue
		}
		row := make([]interface{}, snap.width)
		for i := range row {
			row[i] = ""
		}
		row[snap.keyCol] = e.ServiceNo
		row[snap.addressCol] = value
		appends = append(appends, row)
	}

	if len(updates) > 0 {
		_, err := l.svc.Spreadsheets.Values.BatchUpdate(l.cfg.SpreadsheetID, &sheets.BatchUpdateValuesRequest{
			ValueInputOption: "RAW",
			Data:             updates,
		}).Context(ctx).Do()
		if err != nil {
			return 0, utils.NewStorageError("ledger upsert", err)
		}
	}
	if len(appends) > 0 {
		_, err := l.svc.Spreadsheets.Values.Append(l.cfg.SpreadsheetID, l.sheetRange(""), &sheets.ValueRange{
			Values: appends,
		}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		if err != nil {
			return len(updates), utils.NewStorageError("ledger upsert", err)
		}
	}
	return len(entries), nil
}
