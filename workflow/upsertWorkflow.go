package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// WorkOrderWriter is the storage primitive the upsert engine composes.
type WorkOrderWriter interface {
	UpsertMany(ctx context.Context, rows []map[string]any) (int, error)
}

type UpsertResult struct {
	// Processed counts every row written, including repeats of the same incident.
	Processed int
	// ServiceNos holds the distinct non-empty service numbers of the batch, in first-seen order.
	ServiceNos []string
}

type UpsertEngine struct {
	store  WorkOrderWriter
	logger *logrus.Logger
}

func NewUpsertEngine(store WorkOrderWriter, logger *logrus.Logger) *UpsertEngine {
	return &UpsertEngine{store: store, logger: logger}
}

// Process filters every row to the column allow-list, drops rows without an
// incident and upserts the rest in one transaction.
func (e *UpsertEngine) Process(ctx context.Context, rows []map[string]any) (UpsertResult, error) {
	var result UpsertResult
	if len(rows) == 0 {
		return result, utils.InvalidInputf("expected a non-empty array of rows")
	}

	ctx, span := tracer.Start(ctx, "UpsertEngine.Process")
	defer span.End()
	span.SetAttributes(attribute.Int("rows.received", len(rows)))

	prepared := make([]map[string]any, 0, len(rows))
	var serviceNos []string
	var skipped int
	for i, row := range rows {
		clean, ok, err := e.prepareRow(i, row)
		if err != nil {
			recordSpanError(span, err)
			return result, err
		}
		if !ok {
			skipped++
			continue
		}
		prepared = append(prepared, clean)
		if sno, _ := clean[models.ColumnServiceNo].(string); sno != "" {
			serviceNos = append(serviceNos, sno)
		}
	}
	if skipped > 0 {
		e.logger.WithFields(logrus.Fields{
			"field":   "UpsertEngine.Process",
			"skipped": skipped,
		}).Warn("rows without incident were skipped")
	}
	if len(prepared) == 0 {
		return result, nil
	}

	processed, err := e.store.UpsertMany(ctx, prepared)
	if err != nil {
		recordSpanError(span, err)
		return result, err
	}
	result.Processed = processed
	result.ServiceNos = utils.UniqueSlice(serviceNos)
	if result.ServiceNos == nil {
		result.ServiceNos = []string{}
	}
	span.SetAttributes(
		attribute.Int("rows.processed", processed),
		attribute.Int("service_nos", len(result.ServiceNos)),
	)
	return result, nil
}

// prepareRow returns ok=false for rows without a usable incident.
func (e *UpsertEngine) prepareRow(index int, row map[string]any) (map[string]any, bool, error) {
	clean := make(map[string]any, len(row))
	var dropped []string
	for column, value := range row {
		if !models.IsAllowedColumn(column) {
			dropped = append(dropped, column)
			continue
		}
		if models.IsDateColumn(column) {
			normalized, ok := utils.NormalizeDateStrict(value)
			if !ok {
				return nil, false, utils.InvalidInputf("row %d: %s: unparseable date %v", index, column, value)
			}
			clean[column] = normalized
			continue
		}
		normalized, ok := utils.NormalizeCellValue(value)
		if !ok {
			e.logger.WithFields(logrus.Fields{
				"field":  "UpsertEngine.prepareRow",
				"row":    index,
				"column": column,
			}).Warn("dropping nested value; columns hold scalars only")
			continue
		}
		if column == models.ColumnServiceNo {
			normalized = models.NormalizeServiceNo(normalized)
		}
		clean[column] = normalized
	}
	if len(dropped) > 0 {
		sort.Strings(dropped)
		e.logger.WithFields(logrus.Fields{
			"field":   "UpsertEngine.prepareRow",
			"row":     index,
			"dropped": dropped,
		}).Debug("unknown columns dropped")
	}

	incident := strings.TrimSpace(utils.StringValue(clean[models.ColumnIncident]))
	if incident == "" {
		return nil, false, nil
	}
	clean[models.ColumnIncident] = incident
	return clean, true, nil
}
