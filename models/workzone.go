package models

import (
	"context"

	"github.com/pkl-testcase/wo_backend/utils"
	"gorm.io/gorm"
)

// WorkzoneDetail is read-only reference data for the assignment dropdowns.
// Work orders store sektor/workzone/korlap as given; they are never checked against this table.
type WorkzoneDetail struct {
	ID             int     `gorm:"primary_key" json:"id"`
	Sektor         *string `gorm:"column:sektor;size:100;index" json:"sektor"`
	Workzone       string  `gorm:"column:workzone;size:100;not null;index" json:"workzone"`
	KorlapUsername *string `gorm:"column:korlap_username;size:100" json:"korlap_username"`
}

func (WorkzoneDetail) TableName() string { return "workzone_details" }

type WorkzoneGroup struct {
	Workzone string   `json:"workzone"`
	Sektor   *string  `json:"sektor"`
	Korlaps  []string `json:"korlaps"`
}

// ListWorkzones returns the distinct workzone names, ascending.
func ListWorkzones(ctx context.Context, db *gorm.DB) ([]string, error) {
	workzones := make([]string, 0)
	err := db.WithContext(ctx).Model(&WorkzoneDetail{}).
		Distinct().
		Order("workzone asc").
		Pluck("workzone", &workzones).Error
	if err != nil {
		return nil, utils.NewStorageError("list workzones", err)
	}
	return workzones, nil
}

// GetWorkzoneMap groups korlap usernames by workzone, keeping the first sektor seen.
func GetWorkzoneMap(ctx context.Context, db *gorm.DB) ([]*WorkzoneGroup, error) {
	var rows []WorkzoneDetail
	err := db.WithContext(ctx).
		Order("workzone asc").Order("korlap_username asc").
		Find(&rows).Error
	if err != nil {
		return nil, utils.NewStorageError("get workzone map", err)
	}

	groups := make([]*WorkzoneGroup, 0)
	byWorkzone := make(map[string]*WorkzoneGroup)
	for _, row := range rows {
		g, ok := byWorkzone[row.Workzone]
		if !ok {
			g = &WorkzoneGroup{Workzone: row.Workzone, Sektor: row.Sektor, Korlaps: []string{}}
			byWorkzone[row.Workzone] = g
			groups = append(groups, g)
		}
		if row.KorlapUsername != nil && *row.KorlapUsername != "" {
			g.Korlaps = append(g.Korlaps, *row.KorlapUsername)
		}
	}
	return groups, nil
}
