// Package ledger holds the address ledger: the authoritative service_no -> alamat
// mapping that work orders copy their address from.
package ledger

import (
	"context"
	"strings"

	"github.com/pkl-testcase/wo_backend/models"
	"gorm.io/gorm"
)

// MaxLookupBatch caps the keys sent to the backing store per lookup call.
const MaxLookupBatch = 500

type AddressLedger interface {
	// LookupMany returns the entries that exist. A present key with a nil value
	// means the ledger holds no address for it.
	LookupMany(ctx context.Context, serviceNos []string) (map[string]*string, error)
	UpsertOne(ctx context.Context, serviceNo string, alamat *string) error
	// UpsertMany skips blank service numbers and returns how many entries it wrote.
	UpsertMany(ctx context.Context, entries []models.ServiceAddress) (int, error)
}

// IsColocated reports whether l is a SQL ledger on the same connection pool as db,
// in which case reconciliation can run as a single joined UPDATE.
func IsColocated(l AddressLedger, db *gorm.DB) bool {
	sl, ok := l.(*SQLLedger)
	if !ok || sl.db == nil || db == nil {
		return false
	}
	a, errA := sl.db.DB()
	b, errB := db.DB()
	return errA == nil && errB == nil && a == b
}

// dedupeEntries trims keys, drops blank ones and keeps the last value per key
// in first-seen order.
func dedupeEntries(entries []models.ServiceAddress) []models.ServiceAddress {
	index := make(map[string]int, len(entries))
	out := make([]models.ServiceAddress, 0, len(entries))
	for _, e := range entries {
		key := strings.TrimSpace(e.ServiceNo)
		if key == "" {
			continue
		}
		e.ServiceNo = key
		if i, ok := index[key]; ok {
			out[i] = e
			continue
		}
		index[key] = len(out)
		out = append(out, e)
	}
	return out
}

// cleanKeys trims and de-duplicates lookup keys.
func cleanKeys(serviceNos []string) []string {
	seen := make(map[string]bool, len(serviceNos))
	out := make([]string, 0, len(serviceNos))
	for _, s := range serviceNos {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func nilIfBlank(alamat *string) *string {
	if alamat == nil || strings.TrimSpace(*alamat) == "" {
		return nil
	}
	return alamat
}
