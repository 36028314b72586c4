package ledger

import (
	"context"
	"strings"

	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLLedger keeps the ledger in the data_layanan table, on the work order
// database or on a separate one.
type SQLLedger struct {
	db *gorm.DB
}

func NewSQLLedger(db *gorm.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

func (l *SQLLedger) LookupMany(ctx context.Context, serviceNos []string) (map[string]*string, error) {
	result := make(map[string]*string)
	for _, chunk := range utils.Chunk(cleanKeys(serviceNos), MaxLookupBatch) {
		var entries []models.ServiceAddress
		if err := l.db.WithContext(ctx).Where("service_no IN ?", chunk).Find(&entries).Error; err != nil {
			return result, utils.NewStorageError("ledger lookup", err)
		}
		for _, e := range entries {
			result[e.ServiceNo] = nilIfBlank(e.Alamat)
		}
	}
	return result, nil
}

func (l *SQLLedger) UpsertOne(ctx context.Context, serviceNo string, alamat *string) error {
	serviceNo = strings.TrimSpace(serviceNo)
	if serviceNo == "" {
		return utils.InvalidInputf("service_no is required")
	}
	err := l.db.WithContext(ctx).Clauses(upsertAddressClause()).
		Create(&models.ServiceAddress{ServiceNo: serviceNo, Alamat: alamat}).Error
	return utils.NewStorageError("ledger upsert", err)
}

func (l *SQLLedger) UpsertMany(ctx context.Context, entries []models.ServiceAddress) (int, error) {
	entries = dedupeEntries(entries)
	if len(entries) == 0 {
		return 0, nil
	}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(upsertAddressClause()).CreateInBatches(&entries, MaxLookupBatch).Error
	})
	if err != nil {
		return 0, utils.NewStorageError("ledger upsert", err)
	}
	return len(entries), nil
}

func upsertAddressClause() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "service_no"}},
		DoUpdates: clause.AssignmentColumns([]string{"alamat"}),
	}
}
