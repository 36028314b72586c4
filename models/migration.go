package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or alters the work order, archive and reference tables.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&WorkOrder{}, &Report{},
		&WorkzoneDetail{},
	)
}

// MigrateLedgerTable creates the address ledger table on the database that holds it,
// which is the primary database when the ledger is colocated.
func MigrateLedgerTable(db *gorm.DB) error {
	return db.AutoMigrate(&ServiceAddress{})
}
