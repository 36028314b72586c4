package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/pkl-testcase/wo_backend/workflow"
)

func newEngine(t *testing.T) (*workflow.UpsertEngine, *models.WorkOrderStore) {
	t.Helper()
	store := models.NewWorkOrderStore(newTestDB(t))
	return workflow.NewUpsertEngine(store, testLogger()), store
}

func TestProcessRejectsEmptyBatch(t *testing.T) {
	engine, _ := newEngine(t)
	for _, rows := range [][]map[string]any{nil, {}} {
		if _, err := engine.Process(context.Background(), rows); !errors.Is(err, utils.ErrInvalidInput) {
			t.Fatalf("expected invalid input; got %v", err)
		}
	}
}

func TestProcessEnforcesAllowList(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine(t)

	res, err := engine.Process(ctx, []map[string]any{
		{"incident": "INC1", "summary": "a", "__proto__": "x", "dropped_column": 1},
		{"summary": "no incident"},
		{"incident": "   ", "summary": "blank incident"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Processed != 1 {
		t.Fatalf("expected 1 processed; got %d", res.Processed)
	}
	all, err := store.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].Incident != "INC1" || deref(all[0].Summary) != "a" {
		t.Fatalf("unexpected stored rows: %+v", all)
	}
}

func TestProcessSameIncidentTwiceInOneBatch(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine(t)

	res, err := engine.Process(ctx, []map[string]any{
		{"incident": "INC1", "summary": "old"},
		{"incident": "INC1", "summary": "new"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Processed != 2 {
		t.Fatalf("expected 2 processed; got %d", res.Processed)
	}
	if got := deref(mustGet(t, store, "INC1").Summary); got != "new" {
		t.Fatalf("expected summary=new; got %s", got)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine(t)

	batch := []map[string]any{
		{"incident": "INC1", "summary": "a", "reported_date": "2025-01-02T03:04:05.000Z"},
		{"incident": "INC2", "service_no": "S2"},
	}
	for i := 0; i < 2; i++ {
		if _, err := engine.Process(ctx, batch); err != nil {
			t.Fatalf("Process pass %d: %v", i, err)
		}
	}
	all, err := store.ListAll(ctx, "incident asc")
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records; got %d", len(all))
	}
}

func TestProcessCollectsDistinctServiceNos(t *testing.T) {
	engine, store := newEngine(t)

	res, err := engine.Process(context.Background(), []map[string]any{
		{"incident": "INC1", "service_no": "S2"},
		{"incident": "INC2", "service_no": "S1"},
		{"incident": "INC3", "service_no": "S2"},
		{"incident": "INC4", "service_no": ""},
		{"incident": "INC5", "service_no": float64(1234567890)},
		{"incident": "INC6"},
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	want := []string{"S2", "S1", "1234567890"}
	if len(res.ServiceNos) != len(want) {
		t.Fatalf("want %v; got %v", want, res.ServiceNos)
	}
	for i := range want {
		if res.ServiceNos[i] != want[i] {
			t.Fatalf("want %v; got %v", want, res.ServiceNos)
		}
	}
	if got := deref(mustGet(t, store, "INC5").ServiceNo); got != "1234567890" {
		t.Fatalf("numeric service_no stored as %s", got)
	}
}

func TestProcessNormalizesDatesAndScalars(t *testing.T) {
	engine, store := newEngine(t)

	_, err := engine.Process(context.Background(), []map[string]any{{
		"incident":      "INC1",
		"reported_date": "2025-01-02T10:04:05.000+07:00",
		"status_date":   "2025-01-02 03:04:05",
		"booking_date":  "",
		"onu_rx":        -23.5,
		"lapul":         true,
		"solution":      map[string]any{"nested": "dropped"},
	}})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	wo := mustGet(t, store, "INC1")
	want := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if wo.ReportedDate == nil || !wo.ReportedDate.Equal(want) {
		t.Fatalf("reported_date: want %v; got %v", want, wo.ReportedDate)
	}
	if wo.StatusDate == nil || !wo.StatusDate.Equal(want) {
		t.Fatalf("status_date: want %v; got %v", want, wo.StatusDate)
	}
	if wo.BookingDate != nil {
		t.Fatalf("empty booking_date should be NULL; got %v", wo.BookingDate)
	}
	if deref(wo.OnuRx) != "-23.5" || deref(wo.Lapul) != "true" {
		t.Fatalf("unexpected scalars onu_rx=%s lapul=%s", deref(wo.OnuRx), deref(wo.Lapul))
	}
	if wo.Solution != nil {
		t.Fatalf("nested value must not be stored; got %s", deref(wo.Solution))
	}
}

func TestProcessBadDateFailsWholeBatch(t *testing.T) {
	ctx := context.Background()
	engine, store := newEngine(t)

	_, err := engine.Process(ctx, []map[string]any{
		{"incident": "INC1", "summary": "fine"},
		{"incident": "INC2", "resolve_date": "yesterday"},
	})
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input; got %v", err)
	}
	if _, err := store.Get(ctx, "INC1"); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected nothing written; got %v", err)
	}
}
