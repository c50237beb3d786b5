// Package grid addresses raw tabular data by offset or by header text.
// Every lookup tolerates ragged rows: a short row simply yields empty cells.
package grid

import (
	"fmt"
	"sort"
	"strings"
)

// Row is one ordered sequence of cells. Cells may be empty.
type Row []string

// Grid is an ordered sequence of rows as read from the store.
type Grid []Row

// Cell returns the cell at col, or "" when the row is too short.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r) {
		return ""
	}
	return r[col]
}

// From returns a copy of the row with the first n cells dropped.
func (r Row) From(n int) Row {
	if n < 0 {
		n = 0
	}
	if n >= len(r) {
		return Row{}
	}
	out := make(Row, len(r)-n)
	copy(out, r[n:])
	return out
}

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Pad returns a copy of the row extended with empty cells to at least width.
func (r Row) Pad(width int) Row {
	out := r.Clone()
	if out == nil {
		out = Row{}
	}
	for len(out) < width {
		out = append(out, "")
	}
	return out
}

// Clone deep-copies the grid.
func (g Grid) Clone() Grid {
	if g == nil {
		return nil
	}
	out := make(Grid, len(g))
	for i, row := range g {
		out[i] = row.Clone()
	}
	return out
}

// ParseWarning reports a lookup that found nothing. The caller logs it and the
// derived structure simply lacks the affected key.
type ParseWarning struct {
	Sheet   string
	Key     string
	Message string
}

func (w ParseWarning) String() string {
	if w.Sheet == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Sheet, w.Message)
}

// FindRowsByColumnText locates, for every needle, the first row whose cell in
// col contains the needle text, and returns that row with the first skip cells
// removed. Needles with no matching row are reported and left out.
func FindRowsByColumnText(sheet string, rows Grid, col int, needles map[string]string, skip int) (map[string]Row, []ParseWarning) {
	found := make(map[string]Row, len(needles))
	var warnings []ParseWarning

	keys := make([]string, 0, len(needles))
	for key := range needles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		needle := needles[key]
		idx := -1
		if needle != "" {
			for i, row := range rows {
				if strings.Contains(row.Cell(col), needle) {
					idx = i
					break
				}
			}
		}
		if idx == -1 {
			warnings = append(warnings, ParseWarning{
				Sheet:   sheet,
				Key:     key,
				Message: fmt.Sprintf("expected row with text %q not found", needle),
			})
			continue
		}
		found[key] = rows[idx].From(skip)
	}
	return found, warnings
}

// IndexByColumnValue keys rows by the text of their cell in col, with the
// first skip cells removed. Rows with an empty key are skipped; when a key
// repeats the later row replaces the earlier one.
func IndexByColumnValue(rows Grid, col int, skip int) map[string]Row {
	out := make(map[string]Row)
	for _, row := range rows {
		key := strings.TrimSpace(row.Cell(col))
		if key == "" {
			continue
		}
		out[key] = row.From(skip)
	}
	return out
}

// RowsToRecords zips each row positionally with fields. Cells beyond the
// field list are ignored and fields beyond the row are absent from the record.
func RowsToRecords(rows Grid, fields []string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]string, len(fields))
		for i, cell := range row {
			if i >= len(fields) {
				break
			}
			rec[fields[i]] = cell
		}
		out = append(out, rec)
	}
	return out
}
