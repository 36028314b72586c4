package models_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"gorm.io/gorm"
)

func TestUpsertManyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	batch := []map[string]any{
		{"incident": "INC1", "summary": "a", "service_no": "S1"},
		{"incident": "INC2", "summary": "b"},
	}
	for i := 0; i < 2; i++ {
		n, err := store.UpsertMany(ctx, batch)
		if err != nil {
			t.Fatalf("UpsertMany pass %d: %v", i, err)
		}
		if n != 2 {
			t.Fatalf("pass %d: expected 2 processed; got %d", i, n)
		}
	}

	all, err := store.ListAll(ctx, "incident asc")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records; got %d", len(all))
	}
	if all[0].Incident != "INC1" || deref(all[0].Summary) != "a" || deref(all[0].ServiceNo) != "S1" {
		t.Fatalf("unexpected INC1: %+v", all[0])
	}
}

func TestUpsertManyLeavesAbsentColumnsUntouched(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	reported := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "summary": "old", "technician": "budi", "reported_date": reported},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "summary": "new"},
	}); err != nil {
		t.Fatalf("partial upsert: %v", err)
	}

	wo, err := store.Get(ctx, "INC1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if deref(wo.Summary) != "new" {
		t.Fatalf("expected summary=new; got %s", deref(wo.Summary))
	}
	if deref(wo.Technician) != "budi" {
		t.Fatalf("expected technician kept; got %s", deref(wo.Technician))
	}
	if wo.ReportedDate == nil || !wo.ReportedDate.Equal(reported) {
		t.Fatalf("expected reported_date kept; got %v", wo.ReportedDate)
	}
}

func TestUpsertManyIncidentOnlyRow(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	for i := 0; i < 2; i++ {
		if _, err := store.UpsertMany(ctx, []map[string]any{{"incident": "INC9"}}); err != nil {
			t.Fatalf("UpsertMany pass %d: %v", i, err)
		}
	}
	if _, err := store.Get(ctx, "INC9"); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestUpsertManyRejectsBadRows(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	cases := []struct {
		name string
		rows []map[string]any
	}{
		{"empty batch", nil},
		{"missing incident", []map[string]any{{"summary": "x"}}},
		{"unknown column", []map[string]any{{"incident": "INC1", "dropped_column": "x"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.UpsertMany(ctx, tc.rows)
			if !errors.Is(err, utils.ErrInvalidInput) {
				t.Fatalf("expected invalid input; got %v", err)
			}
		})
	}
}

func TestUpsertManyRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := models.NewWorkOrderStore(db)

	var creates int
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_second_row", func(tx *gorm.DB) {
		if tx.Statement.Table != models.TableWorkOrders {
			return
		}
		creates++
		if creates == 2 {
			_ = tx.AddError(errors.New("injected write failure"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	_, err = store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "summary": "a"},
		{"incident": "INC2", "summary": "b"},
	})
	if !utils.IsStorageError(err) {
		t.Fatalf("expected storage error; got %v", err)
	}
	if _, err := store.Get(ctx, "INC1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected INC1 rolled back; got %v", err)
	}
}

func TestUpsertManyReplaceOnlyMerges(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t), models.WithReplaceOnlyUpsert(true))

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "summary": "old", "alamat": "Jl. Lama"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "summary": "new"},
	}); err != nil {
		t.Fatalf("replace upsert: %v", err)
	}

	wo, err := store.Get(ctx, "INC1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if deref(wo.Summary) != "new" || deref(wo.Alamat) != "Jl. Lama" {
		t.Fatalf("expected merged row (summary=new alamat=Jl. Lama); got summary=%s alamat=%s", deref(wo.Summary), deref(wo.Alamat))
	}
}

func TestUpdateFieldsTouchesOnlyGivenColumns(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "summary": "a", "status": "OPEN", "workzone": "BTU"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before, _ := store.Get(ctx, "INC1")

	updated, err := store.UpdateFields(ctx, "INC1", map[string]any{"status": "X", "incident": "OTHER"})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if updated.Incident != "INC1" || deref(updated.Status) != "X" {
		t.Fatalf("unexpected updated record: %+v", updated)
	}

	if deref(updated.Summary) != deref(before.Summary) || deref(updated.Workzone) != deref(before.Workzone) {
		t.Fatalf("other fields changed: before=%+v after=%+v", before, updated)
	}
}

func TestUpdateFieldsTrimsServiceNo(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{{"incident": "INC1", "service_no": "OLD"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	updated, err := store.UpdateFields(ctx, "INC1", map[string]any{"service_no": "  S9\t"})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if got := deref(updated.ServiceNo); got != "S9" {
		t.Fatalf("expected service_no S9; got %q", got)
	}

	updated, err = store.UpdateFields(ctx, "INC1", map[string]any{"service_no": "   "})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if updated.ServiceNo != nil {
		t.Fatalf("expected blank service_no stored as NULL; got %q", *updated.ServiceNo)
	}
}

func TestUpdateFieldsDates(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "booking_date": time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, err := store.UpdateFields(ctx, "INC1", map[string]any{
		"resolve_date": "2025-02-03T04:05:06.000Z",
		"status_date":  "2025-02-03 10:00:00",
		"booking_date": "not a date",
	})
	if err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	if updated.ResolveDate == nil || !updated.ResolveDate.Equal(time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)) {
		t.Fatalf("unexpected resolve_date: %v", updated.ResolveDate)
	}
	if updated.StatusDate == nil || !updated.StatusDate.Equal(time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected status_date: %v", updated.StatusDate)
	}
	// an unparseable date is stored as NULL and the update still succeeds
	if updated.BookingDate != nil {
		t.Fatalf("expected booking_date NULL; got %v", updated.BookingDate)
	}
}

func TestUpdateFieldsErrors(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpdateFields(ctx, "UNKNOWN", map[string]any{"status": "X"}); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected not found; got %v", err)
	}
	if _, err := store.UpdateFields(ctx, "INC1", map[string]any{"incident": "INC1", "bogus": 1}); !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input; got %v", err)
	}
}

func TestDeleteReturnsAffectedCount(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{{"incident": "INC1"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	n, err := store.Delete(ctx, "INC1")
	if err != nil || n != 1 {
		t.Fatalf("Delete existing: n=%d err=%v", n, err)
	}
	n, err = store.Delete(ctx, "UNKNOWN123")
	if err != nil || n != 0 {
		t.Fatalf("Delete unknown: n=%d err=%v", n, err)
	}
}

func TestListAllOrdering(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "reported_date": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"incident": "INC2", "reported_date": time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"incident": "INC3", "reported_date": time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	all, err := store.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	got := []string{all[0].Incident, all[1].Incident, all[2].Incident}
	want := []string{"INC2", "INC3", "INC1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("default order: want %v; got %v", want, got)
		}
	}

	for _, bad := range []string{"password desc", "incident sideways", "incident asc extra"} {
		if _, err := store.ListAll(ctx, bad); !errors.Is(err, utils.ErrInvalidInput) {
			t.Fatalf("order_by %q: expected invalid input; got %v", bad, err)
		}
	}
}

func TestSetAddressCountsOnlyChangedRows(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "service_no": "S1"},
		{"incident": "INC2", "service_no": "S1", "alamat": "Jl. Merdeka 1"},
		{"incident": "INC3", "service_no": "S1", "alamat": "Jl. Lama"},
		{"incident": "INC4", "service_no": "S2"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := store.SetAddress(ctx, "S1", "Jl. Merdeka 1")
	if err != nil {
		t.Fatalf("SetAddress: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 changed rows; got %d", n)
	}
	n, err = store.SetAddress(ctx, "S1", "Jl. Merdeka 1")
	if err != nil || n != 0 {
		t.Fatalf("second SetAddress: n=%d err=%v", n, err)
	}
	other, _ := store.Get(ctx, "INC4")
	if other.Alamat != nil {
		t.Fatalf("INC4 should be untouched; got %s", deref(other.Alamat))
	}
}

func TestJoinAddressesSkipsEmptyLedgerValues(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	store := models.NewWorkOrderStore(db)

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "service_no": "S1"},
		{"incident": "INC2", "service_no": "S2", "alamat": "Jl. Tetap"},
		{"incident": "INC3", "service_no": "S3", "alamat": "Jl. Tetap"},
		{"incident": "INC4", "service_no": "S4"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ledger := []models.ServiceAddress{
		{ServiceNo: "S1", Alamat: strPtr("Jl. Merdeka 1")},
		{ServiceNo: "S2", Alamat: nil},
		{ServiceNo: "S3", Alamat: strPtr("")},
	}
	if err := db.Create(&ledger).Error; err != nil {
		t.Fatalf("seed ledger: %v", err)
	}

	n, err := store.JoinAddresses(ctx, []string{"S1", "S2", "S3", "S4"})
	if err != nil {
		t.Fatalf("JoinAddresses: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 changed row; got %d", n)
	}
	for incident, want := range map[string]string{"INC1": "Jl. Merdeka 1", "INC2": "Jl. Tetap", "INC3": "Jl. Tetap", "INC4": "<nil>"} {
		wo, err := store.Get(ctx, incident)
		if err != nil {
			t.Fatalf("Get %s: %v", incident, err)
		}
		if deref(wo.Alamat) != want {
			t.Fatalf("%s: want alamat %s; got %s", incident, want, deref(wo.Alamat))
		}
	}

	n, err = store.JoinAddresses(ctx, []string{"S1"})
	if err != nil || n != 0 {
		t.Fatalf("repeat JoinAddresses: n=%d err=%v", n, err)
	}
}

func TestDistinctServiceNos(t *testing.T) {
	ctx := context.Background()
	store := models.NewWorkOrderStore(newTestDB(t))

	if _, err := store.UpsertMany(ctx, []map[string]any{
		{"incident": "INC1", "service_no": "S2"},
		{"incident": "INC2", "service_no": "S1"},
		{"incident": "INC3", "service_no": "S2"},
		{"incident": "INC4", "service_no": ""},
		{"incident": "INC5"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, err := store.DistinctServiceNos(ctx)
	if err != nil {
		t.Fatalf("DistinctServiceNos: %v", err)
	}
	if len(got) != 2 || got[0] != "S1" || got[1] != "S2" {
		t.Fatalf("expected [S1 S2]; got %v", got)
	}
}

func TestDuplicateReportInsertIsDetected(t *testing.T) {
	db := newTestDB(t)
	r := models.Report{Incident: "INC1"}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := db.Create(&models.Report{Incident: "INC1"}).Error
	if !models.IsDuplicateKeyError(err) {
		t.Fatalf("expected duplicate key error; got %v", err)
	}
	if models.IsDuplicateKeyError(errors.New("connection reset")) {
		t.Fatalf("unrelated error reported as duplicate key")
	}
}
