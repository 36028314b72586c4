package ledger_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/pkl-testcase/wo_backend/ledger"
	"github.com/pkl-testcase/wo_backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBSeq atomic.Int64

func newLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%d?mode=memory&cache=shared", testDBSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := models.MigrateLedgerTable(db); err != nil {
		t.Fatalf("MigrateLedgerTable: %v", err)
	}
	return db
}

func strPtr(s string) *string { return &s }

func deref(p *string) string {
	if p == nil {
		return "<nil>"
	}
	return *p
}

// exercises the AddressLedger contract against any adapter
func runLedgerContract(t *testing.T, l ledger.AddressLedger) {
	t.Helper()
	ctx := context.Background()

	n, err := l.UpsertMany(ctx, []models.ServiceAddress{
		{ServiceNo: "S1", Alamat: strPtr("Jl. Lama")},
		{ServiceNo: "S2", Alamat: nil},
		{ServiceNo: "  ", Alamat: strPtr("skipped")},
		{ServiceNo: "S1", Alamat: strPtr("Jl. Merdeka 1")},
	})
	if err != nil {
		t.Fatalf("UpsertMany: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 written; got %d", n)
	}
	if err := l.UpsertOne(ctx, "S3", strPtr("Jl. Sudirman 5")); err != nil {
		t.Fatalf("UpsertOne: %v", err)
	}
	if err := l.UpsertOne(ctx, "S3", strPtr("Jl. Sudirman 7")); err != nil {
		t.Fatalf("UpsertOne overwrite: %v", err)
	}
	if err := l.UpsertOne(ctx, "", strPtr("x")); err == nil {
		t.Fatalf("expected blank service_no to be rejected")
	}

	got, err := l.LookupMany(ctx, []string{"S1", "S2", "S3", "MISSING", "S1"})
	if err != nil {
		t.Fatalf("LookupMany: %v", err)
	}
	if deref(got["S1"]) != "Jl. Merdeka 1" {
		t.Fatalf("S1: expected last write to win; got %s", deref(got["S1"]))
	}
	if v, ok := got["S2"]; !ok || v != nil {
		t.Fatalf("S2: expected present with nil address; got ok=%v v=%s", ok, deref(v))
	}
	if deref(got["S3"]) != "Jl. Sudirman 7" {
		t.Fatalf("S3: got %s", deref(got["S3"]))
	}
	if _, ok := got["MISSING"]; ok {
		t.Fatalf("missing key must be absent")
	}

	empty, err := l.LookupMany(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty lookup: %v %v", empty, err)
	}
}

func TestSQLLedger(t *testing.T) {
	runLedgerContract(t, ledger.NewSQLLedger(newLedgerDB(t)))
}

func TestSQLLedgerLookupChunks(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewSQLLedger(newLedgerDB(t))

	entries := make([]models.ServiceAddress, 0, 1200)
	keys := make([]string, 0, 1200)
	for i := 0; i < 1200; i++ {
		key := fmt.Sprintf("S%04d", i)
		keys = append(keys, key)
		entries = append(entries, models.ServiceAddress{ServiceNo: key, Alamat: strPtr("addr " + key)})
	}
	if n, err := l.UpsertMany(ctx, entries); err != nil || n != 1200 {
		t.Fatalf("UpsertMany: n=%d err=%v", n, err)
	}
	got, err := l.LookupMany(ctx, keys)
	if err != nil {
		t.Fatalf("LookupMany: %v", err)
	}
	if len(got) != 1200 || deref(got["S1199"]) != "addr S1199" {
		t.Fatalf("expected 1200 entries across chunks; got %d", len(got))
	}
}

func TestIsColocated(t *testing.T) {
	db := newLedgerDB(t)
	other := newLedgerDB(t)

	if !ledger.IsColocated(ledger.NewSQLLedger(db), db.Session(&gorm.Session{})) {
		t.Fatalf("same pool should be colocated")
	}
	if ledger.IsColocated(ledger.NewSQLLedger(other), db) {
		t.Fatalf("separate pool should not be colocated")
	}
	if ledger.IsColocated(ledger.NewRedisLedger(nil, ""), db) {
		t.Fatalf("redis ledger is never colocated")
	}
}
