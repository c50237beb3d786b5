// Package sheets persists named ranges of grids. Row indices are 0-based
// within a range.
package sheets

import (
	"context"

	"github.com/angelmondragon/dailyledger/internal/grid"
)

// Store reads and writes grids.
type Store interface {
	// ReadGrids returns one grid per requested range; unknown ranges are empty.
	ReadGrids(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error)
	// WriteRow replaces the whole row at rowIndex.
	WriteRow(ctx context.Context, sheetID, rangeName string, rowIndex int, cells grid.Row) error
	// AppendRow writes cells after the last row and returns its index.
	AppendRow(ctx context.Context, sheetID, rangeName string, cells grid.Row) (int, error)
}

// FreshReader is implemented by stores that front the source of truth with a
// cache. ReadGridsFresh always reads the source.
type FreshReader interface {
	ReadGridsFresh(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error)
}

// ReadFresh reads past any cache in front of store. Writers read this way
// under the ledger lock.
func ReadFresh(ctx context.Context, store Store, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	if fr, ok := store.(FreshReader); ok {
		return fr.ReadGridsFresh(ctx, sheetID, ranges)
	}
	return store.ReadGrids(ctx, sheetID, ranges)
}
