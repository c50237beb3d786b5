package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/dailyledger/internal/grid"
)

// MemoryStore keeps grids in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	sheets map[string]map[string]grid.Grid
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sheets: map[string]map[string]grid.Grid{}}
}

// Seed replaces a range with g.
func (m *MemoryStore) Seed(sheetID, rangeName string, g grid.Grid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheet(sheetID)[rangeName] = g.Clone()
}

func (m *MemoryStore) sheet(sheetID string) map[string]grid.Grid {
	s, ok := m.sheets[sheetID]
	if !ok {
		s = map[string]grid.Grid{}
		m.sheets[sheetID] = s
	}
	return s
}

func (m *MemoryStore) ReadGrids(ctx context.Context, sheetID string, ranges []string) (map[string]grid.Grid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]grid.Grid, len(ranges))
	for _, name := range ranges {
		out[name] = m.sheets[sheetID][name].Clone()
		if out[name] == nil {
			out[name] = grid.Grid{}
		}
	}
	return out, nil
}

func (m *MemoryStore) WriteRow(ctx context.Context, sheetID, rangeName string, rowIndex int, cells grid.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rowIndex < 0 {
		return fmt.Errorf("row index %d out of range", rowIndex)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sheet(sheetID)
	g := s[rangeName]
	for len(g) <= rowIndex {
		g = append(g, grid.Row{})
	}
	g[rowIndex] = cells.Clone()
	s[rangeName] = g
	return nil
}

func (m *MemoryStore) AppendRow(ctx context.Context, sheetID, rangeName string, cells grid.Row) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sheet(sheetID)
	s[rangeName] = append(s[rangeName], cells.Clone())
	return len(s[rangeName]) - 1, nil
}
