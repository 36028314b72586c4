package models

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/pkl-testcase/wo_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkOrderStore is the relational store behind work_orders and reports.
type WorkOrderStore struct {
	db           *gorm.DB
	replaceOnly  bool
	queryTimeout time.Duration
}

type StoreOption func(*WorkOrderStore)

// WithReplaceOnlyUpsert makes UpsertMany read and merge the existing row, then
// write the full row, for engines without partial upsert.
func WithReplaceOnlyUpsert(enabled bool) StoreOption {
	return func(s *WorkOrderStore) { s.replaceOnly = enabled }
}

// WithQueryTimeout bounds every store operation. Zero disables the bound.
func WithQueryTimeout(d time.Duration) StoreOption {
	return func(s *WorkOrderStore) { s.queryTimeout = d }
}

func NewWorkOrderStore(db *gorm.DB, opts ...StoreOption) *WorkOrderStore {
	s := &WorkOrderStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the handle the store was built with.
func (s *WorkOrderStore) DB() *gorm.DB {
	return s.db
}

// WithTimeout derives the per-operation context.
func (s *WorkOrderStore) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *WorkOrderStore) Get(ctx context.Context, incident string) (*WorkOrder, error) {
	return getByIncident[WorkOrder](ctx, s, "get work order", incident)
}

func (s *WorkOrderStore) GetReport(ctx context.Context, incident string) (*Report, error) {
	return getByIncident[Report](ctx, s, "get report", incident)
}

func (s *WorkOrderStore) ListAll(ctx context.Context, orderBy string) ([]*WorkOrder, error) {
	return listOrdered[WorkOrder](ctx, s, "list work orders", orderBy)
}

func (s *WorkOrderStore) ListReports(ctx context.Context, orderBy string) ([]*Report, error) {
	return listOrdered[Report](ctx, s, "list reports", orderBy)
}

func getByIncident[T WorkOrder | Report](ctx context.Context, s *WorkOrderStore, op string, incident string) (*T, error) {
	incident = strings.TrimSpace(incident)
	if incident == "" {
		return nil, utils.InvalidInputf("incident is required")
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	var result T
	err := s.db.WithContext(ctx).Where("incident = ?", incident).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundf("incident %s", incident)
		}
		return nil, utils.NewStorageError(op, err)
	}
	return &result, nil
}

// full scan, ties broken by incident so the order is stable
func listOrdered[T WorkOrder | Report](ctx context.Context, s *WorkOrderStore, op string, orderBy string) ([]*T, error) {
	column, desc, err := ParseOrderBy(orderBy)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	dbCtx := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
	if column != ColumnIncident {
		dbCtx = dbCtx.Order(clause.OrderByColumn{Column: clause.Column{Name: ColumnIncident}})
	}
	results := make([]*T, 0)
	if err := dbCtx.Find(&results).Error; err != nil {
		return nil, utils.NewStorageError(op, err)
	}
	return results, nil
}

// UpsertMany writes every row by incident in one transaction and returns the
// number of rows written. Rows must already be limited to allowed columns with
// normalized values; a row without incident or with an unknown column fails the batch.
// Supplied columns overwrite, absent columns are left untouched.
func (s *WorkOrderStore) UpsertMany(ctx context.Context, rows []map[string]any) (int, error) {
	if len(rows) == 0 {
		return 0, utils.InvalidInputf("no rows to upsert")
	}
	for i, row := range rows {
		if strings.TrimSpace(utils.StringValue(row[ColumnIncident])) == "" {
			return 0, utils.InvalidInputf("row %d: incident is required", i)
		}
		for column := range row {
			if !IsAllowedColumn(column) {
				return 0, utils.InvalidInputf("row %d: unknown column %q", i, column)
			}
		}
	}

	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	var processed int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			var err error
			if s.replaceOnly {
				err = replaceRow(tx, row)
			} else {
				err = upsertRow(tx, TableWorkOrders, row)
			}
			if err != nil {
				return err
			}
			processed++
		}
		return nil
	})
	if err != nil {
		return 0, utils.NewStorageError("upsert work orders", err)
	}
	return processed, nil
}

// upsertRow is INSERT .. ON CONFLICT (incident) DO UPDATE / ON DUPLICATE KEY UPDATE
// restricted to the columns present in row.
func upsertRow(tx *gorm.DB, table string, row map[string]any) error {
	updates := make([]string, 0, len(row))
	for column := range row {
		if column != ColumnIncident {
			updates = append(updates, column)
		}
	}
	if len(updates) == 0 {
		// incident only: a self assignment keeps the statement valid on every dialect
		updates = append(updates, ColumnIncident)
	}
	sort.Strings(updates)

	return tx.Table(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: ColumnIncident}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(row).Error
}

// replaceRow merges row over the stored one, then writes the full row.
func replaceRow(tx *gorm.DB, row map[string]any) error {
	incident := utils.StringValue(row[ColumnIncident])

	merged := map[string]any{}
	err := tx.Table(TableWorkOrders).Where("incident = ?", incident).Take(&merged).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	for column, value := range row {
		merged[column] = value
	}
	for column := range merged {
		if !IsAllowedColumn(column) {
			delete(merged, column)
		}
	}

	if err := tx.Where("incident = ?", incident).Delete(&WorkOrder{}).Error; err != nil {
		return err
	}
	return tx.Table(TableWorkOrders).Create(merged).Error
}

// UpdateFields applies a partial update to one active record and returns it.
// Unknown columns and incident are ignored. Date columns that fail to parse are stored as NULL.
// service_no is trimmed.
func (s *WorkOrderStore) UpdateFields(ctx context.Context, incident string, fields map[string]any) (*WorkOrder, error) {
	incident = strings.TrimSpace(incident)
	if incident == "" {
		return nil, utils.InvalidInputf("incident is required")
	}
	updates := make(map[string]any, len(fields))
	for column, value := range fields {
		if column == ColumnIncident || !IsAllowedColumn(column) {
			continue
		}
		if IsDateColumn(column) {
			updates[column] = utils.NormalizeDateLenient(value)
			continue
		}
		normalized, ok := utils.NormalizeCellValue(value)
		if !ok {
			continue
		}
		if column == ColumnServiceNo {
			normalized = NormalizeServiceNo(normalized)
		}
		updates[column] = normalized
	}
	if len(updates) == 0 {
		return nil, utils.InvalidInputf("no recognized columns to update")
	}

	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	var updated WorkOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&WorkOrder{}).Where("incident = ?", incident).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("incident = ?", incident).Take(&updated).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFoundf("incident %s", incident)
		}
		return nil, utils.NewStorageError("update work order", err)
	}
	return &updated, nil
}

// Delete removes one active record and returns 0 or 1.
func (s *WorkOrderStore) Delete(ctx context.Context, incident string) (int64, error) {
	incident = strings.TrimSpace(incident)
	if incident == "" {
		return 0, utils.InvalidInputf("incident is required")
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Where("incident = ?", incident).Delete(&WorkOrder{})
	if result.Error != nil {
		return 0, utils.NewStorageError("delete work order", result.Error)
	}
	return result.RowsAffected, nil
}

// SetAddress writes alamat to every active record with serviceNo whose address
// is null or different, and returns how many changed.
func (s *WorkOrderStore) SetAddress(ctx context.Context, serviceNo string, alamat string) (int64, error) {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Model(&WorkOrder{}).
		Where("service_no = ? AND (alamat IS NULL OR alamat <> ?)", serviceNo, alamat).
		Update(ColumnAlamat, alamat)
	if result.Error != nil {
		return 0, utils.NewStorageError("set address", result.Error)
	}
	return result.RowsAffected, nil
}

const joinAddressesSQL = `UPDATE work_orders
SET alamat = (SELECT dl.alamat FROM data_layanan dl WHERE dl.service_no = work_orders.service_no)
WHERE work_orders.service_no IN ?
  AND EXISTS (
    SELECT 1 FROM data_layanan dl
    WHERE dl.service_no = work_orders.service_no
      AND dl.alamat IS NOT NULL AND dl.alamat <> ''
      AND (work_orders.alamat IS NULL OR work_orders.alamat <> dl.alamat)
  )`

// JoinAddresses copies ledger addresses into active records in one statement when
// data_layanan lives on the same database. Null or empty ledger values are skipped.
func (s *WorkOrderStore) JoinAddresses(ctx context.Context, serviceNos []string) (int64, error) {
	if len(serviceNos) == 0 {
		return 0, nil
	}
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).Exec(joinAddressesSQL, serviceNos)
	if result.Error != nil {
		return 0, utils.NewStorageError("join addresses", result.Error)
	}
	return result.RowsAffected, nil
}

// DistinctServiceNos lists every non-empty service_no among active records.
func (s *WorkOrderStore) DistinctServiceNos(ctx context.Context) ([]string, error) {
	ctx, cancel := s.WithTimeout(ctx)
	defer cancel()

	serviceNos := make([]string, 0)
	err := s.db.WithContext(ctx).Model(&WorkOrder{}).
		Where("service_no IS NOT NULL AND service_no <> ''").
		Distinct().
		Order("service_no asc").
		Pluck(ColumnServiceNo, &serviceNos).Error
	if err != nil {
		return nil, utils.NewStorageError("list service numbers", err)
	}
	return serviceNos, nil
}
