package sheets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/repo"
	"github.com/angelmondragon/dailyledger/pkg/db"
	"github.com/angelmondragon/dailyledger/pkg/db/models"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps each grid row as one record of the grid_rows table.
type GormStore struct {
	repo.Base
}

func NewGormStore(conn *gorm.DB) *GormStore {
	return &GormStore{Base: repo.NewBase(conn)}
}

func (s *GormStore) ReadGrids(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	out := make(map[string]grid.Grid, len(ranges))
	for _, name := range ranges {
		out[name] = grid.Grid{}
	}
	if len(ranges) == 0 {
		return out, nil
	}

	var rows []models.GridRow
	err := s.DB(ctx).
		Where("sheet_id = ? AND range_name IN ?", sheetID, ranges).
		Order("range_name, row_index").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read grids")
	}

	for _, r := range rows {
		cells, err := decodeCells(r.Cells)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("decode %s row %d", r.RangeName, r.RowIndex))
		}
		g := out[r.RangeName]
		for len(g) < r.RowIndex {
			g = append(g, grid.Row{})
		}
		out[r.RangeName] = append(g, cells)
	}
	return out, nil
}

func (s *GormStore) WriteRow(ctx context.Context, sheetID, rangeName string, rowIndex int, cells grid.Row) error {
	if rowIndex < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("row index %d out of range", rowIndex))
	}
	encoded, err := encodeCells(cells)
	if err != nil {
		return err
	}
	row := models.GridRow{SheetID: sheetID, RangeName: rangeName, RowIndex: rowIndex, Cells: encoded}
	err = s.InTx(ctx, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sheet_id"}, {Name: "range_name"}, {Name: "row_index"}},
			DoUpdates: clause.AssignmentColumns([]string{"cells", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		if db.IsContention(err) {
			return pkgerrors.Wrap(pkgerrors.CodeSchemaConflict, err, "row written concurrently")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write row")
	}
	return nil
}

func (s *GormStore) AppendRow(ctx context.Context, sheetID, rangeName string, cells grid.Row) (int, error) {
	encoded, err := encodeCells(cells)
	if err != nil {
		return 0, err
	}
	var index int
	err = s.InTx(ctx, func(tx *gorm.DB) error {
		var last struct{ Max *int }
		if err := tx.Model(&models.GridRow{}).
			Select("MAX(row_index) AS max").
			Where("sheet_id = ? AND range_name = ?", sheetID, rangeName).
			Scan(&last).Error; err != nil {
			return err
		}
		index = 0
		if last.Max != nil {
			index = *last.Max + 1
		}
		return tx.Create(&models.GridRow{SheetID: sheetID, RangeName: rangeName, RowIndex: index, Cells: encoded}).Error
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") || db.IsContention(err) {
			return 0, pkgerrors.Wrap(pkgerrors.CodeSchemaConflict, err, "row appended concurrently")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append row")
	}
	return index, nil
}

func encodeCells(cells grid.Row) (string, error) {
	if cells == nil {
		cells = grid.Row{}
	}
	b, err := json.Marshal(cells)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cells")
	}
	return string(b), nil
}

func decodeCells(raw string) (grid.Row, error) {
	var cells grid.Row
	if raw == "" {
		return grid.Row{}, nil
	}
	if err := json.Unmarshal([]byte(raw), &cells); err != nil {
		return nil, err
	}
	if cells == nil {
		cells = grid.Row{}
	}
	return cells, nil
}
