package ledger_test

import (
	"fmt"
	"testing"

	"github.com/pkl-testcase/wo_backend/ledger"
)

func clearLedgerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"LEDGER_DRIVER", "LEDGER_DB_DSN", "LEDGER_DB_HOST", "LEDGER_DB_DRIVER", "LEDGER_REDIS_KEY", "SHEETS_SPREADSHEET_ID"} {
		t.Setenv(key, "")
	}
}

func TestNewFromEnvSQLDefaultsToPrimary(t *testing.T) {
	clearLedgerEnv(t)
	db := newLedgerDB(t)

	l, closeFn, err := ledger.NewFromEnv(t.Context(), db, nil, true)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	defer closeFn()
	if _, ok := l.(*ledger.SQLLedger); !ok {
		t.Fatalf("expected *SQLLedger, got %T", l)
	}
	if !ledger.IsColocated(l, db) {
		t.Fatal("expected ledger on the primary database")
	}
}

func TestNewFromEnvSeparateLedgerDatabase(t *testing.T) {
	clearLedgerEnv(t)
	t.Setenv("LEDGER_DB_DRIVER", "sqlite")
	t.Setenv("LEDGER_DB_DSN", fmt.Sprintf("file:ledger_sep_%d?mode=memory&cache=shared", testDBSeq.Add(1)))
	db := newLedgerDB(t)

	l, closeFn, err := ledger.NewFromEnv(t.Context(), db, nil, true)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	defer closeFn()
	if ledger.IsColocated(l, db) {
		t.Fatal("expected a separate ledger database")
	}
	runLedgerContract(t, l)
}

func TestNewFromEnvRedis(t *testing.T) {
	clearLedgerEnv(t)
	t.Setenv("LEDGER_DRIVER", "redis")

	if _, _, err := ledger.NewFromEnv(t.Context(), nil, nil, false); err == nil {
		t.Fatal("expected an error without a redis client")
	}

	_, rdb := newMiniRedis(t)
	l, closeFn, err := ledger.NewFromEnv(t.Context(), nil, rdb, false)
	if err != nil {
		t.Fatalf("NewFromEnv: %v", err)
	}
	defer closeFn()
	if _, ok := l.(*ledger.RedisLedger); !ok {
		t.Fatalf("expected *RedisLedger, got %T", l)
	}
}

func TestNewFromEnvSheetsRequiresSpreadsheet(t *testing.T) {
	clearLedgerEnv(t)
	t.Setenv("LEDGER_DRIVER", "sheets")
	t.Setenv("SHEETS_ENDPOINT", "http://127.0.0.1:1/")

	if _, _, err := ledger.NewFromEnv(t.Context(), nil, nil, false); err == nil {
		t.Fatal("expected an error without SHEETS_SPREADSHEET_ID")
	}
}
