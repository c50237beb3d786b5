package models

import "time"

// GridRow stores one row of a named range. Cells holds a JSON array of strings.
type GridRow struct {
	SheetID   string    `gorm:"column:sheet_id;primaryKey"`
	RangeName string    `gorm:"column:range_name;primaryKey"`
	RowIndex  int       `gorm:"column:row_index;primaryKey;autoIncrement:false"`
	Cells     string    `gorm:"column:cells;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (GridRow) TableName() string { return "grid_rows" }
