// Package ledger reads the orders grid and plans the writes that record a
// submitted order in it.
//
// Row 0 is the header. Its first len(Schema) cells name the fixed order
// fields; every cell after that names the item code stored in that column.
// A code keeps its column for the life of the ledger.
package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/ordercell"
)

// Schema is the order of the fixed columns at the start of every ledger row.
var Schema = []string{
	"orderNumber",
	"date",
	"name",
	"userId",
	"value",
	"paid",
	"rating",
	"feedbackText",
}

// HeaderColumns is the number of fixed columns before the item segment.
var HeaderColumns = len(Schema)

const (
	colOrderNumber = iota
	colDate
	colName
	colUserID
	colValue
	colPaid
	colRating
	colFeedbackText
)

const sheetName = "Orders"

// PaidFalse is written to the paid column of every new or edited order.
const PaidFalse = "FALSE"

// Order is one ledger row.
type Order struct {
	// RowIndex is the 0-based row of this order in the grid; the header is row 0.
	RowIndex     int               `json:"-"`
	OrderNumber  string            `json:"orderNumber"`
	Date         string            `json:"date"`
	Name         string            `json:"name"`
	UserID       string            `json:"userId"`
	Value        string            `json:"value"`
	Paid         string            `json:"paid"`
	Rating       string            `json:"rating,omitempty"`
	FeedbackText string            `json:"feedbackText,omitempty"`
	Items        map[string]string `json:"items"`
	// Codes lists the keys of Items in ledger column order.
	Codes []string `json:"-"`
}

// IsPaid reports whether the paid cell is set.
func (o Order) IsPaid() bool {
	return strings.EqualFold(strings.TrimSpace(o.Paid), "TRUE")
}

// Number parses the order number cell; non-numeric cells read as 0.
func (o Order) Number() int {
	n, err := strconv.Atoi(strings.TrimSpace(o.OrderNumber))
	if err != nil {
		return 0
	}
	return n
}

// DecodedLine is one item cell of an order, decoded.
type DecodedLine struct {
	Code   string
	Cell   string
	Line   ordercell.Line
	Defect error
}

// Lines decodes every item cell in column order. Cells that fail to decode
// carry the error in Defect rather than a zero quantity.
func (o Order) Lines() []DecodedLine {
	out := make([]DecodedLine, 0, len(o.Codes))
	for _, code := range o.Codes {
		cell := o.Items[code]
		line, err := ordercell.Decode(cell)
		out = append(out, DecodedLine{Code: code, Cell: cell, Line: line, Defect: err})
	}
	return out
}

// Ledger is the parsed orders grid.
type Ledger struct {
	Header grid.Row
	Orders []Order

	// headerStale is set when the fixed header cells are missing and must be
	// written with the next row.
	headerStale bool
	rows        grid.Grid
}

// Parse reads the orders grid. An empty grid yields an empty ledger whose
// header is Schema.
func Parse(rows grid.Grid) (*Ledger, []grid.ParseWarning) {
	l := &Ledger{}
	var warnings []grid.ParseWarning
	if len(rows) == 0 {
		l.Header = append(grid.Row{}, Schema...)
		l.headerStale = true
		return l, nil
	}

	l.rows = rows
	l.Header = rows[0].Pad(HeaderColumns)
	for i, want := range Schema {
		got := strings.TrimSpace(l.Header[i])
		if got == "" {
			l.Header[i] = want
			l.headerStale = true
			continue
		}
		if got != want {
			warnings = append(warnings, grid.ParseWarning{
				Sheet:   sheetName,
				Key:     want,
				Message: fmt.Sprintf("expected column %s at index %d, found %q", want, i, got),
			})
		}
	}
	itemHeader := l.Header.From(HeaderColumns)

	records := grid.RowsToRecords(rows[1:], Schema)
	for i, row := range rows[1:] {
		rec := records[i]
		order := Order{
			RowIndex:     i + 1,
			OrderNumber:  strings.TrimSpace(rec["orderNumber"]),
			Date:         strings.TrimSpace(rec["date"]),
			Name:         rec["name"],
			UserID:       strings.TrimSpace(rec["userId"]),
			Value:        strings.TrimSpace(rec["value"]),
			Paid:         strings.TrimSpace(rec["paid"]),
			Rating:       strings.TrimSpace(rec["rating"]),
			FeedbackText: rec["feedbackText"],
			Items:        map[string]string{},
		}
		for j, cell := range row.From(HeaderColumns) {
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			code := strings.TrimSpace(itemHeader.Cell(j))
			if code == "" {
				warnings = append(warnings, grid.ParseWarning{
					Sheet:   sheetName,
					Key:     strconv.Itoa(i + 1),
					Message: fmt.Sprintf("row %d has a value in unassigned item column %d", i+1, HeaderColumns+j),
				})
				continue
			}
			if _, dup := order.Items[code]; dup {
				continue
			}
			order.Items[code] = cell
			order.Codes = append(order.Codes, code)
		}
		l.Orders = append(l.Orders, order)
	}
	return l, warnings
}

// Find returns the first order for (userID, date), plus the row indices of
// any later rows for the same pair.
func (l *Ledger) Find(userID, date string) (Order, bool, []int) {
	var (
		found      Order
		ok         bool
		duplicates []int
	)
	for _, o := range l.Orders {
		if o.UserID != userID || o.Date != date {
			continue
		}
		if !ok {
			found, ok = o, true
			continue
		}
		duplicates = append(duplicates, o.RowIndex)
	}
	return found, ok, duplicates
}

// ForUser returns the user's orders in ledger order.
func (l *Ledger) ForUser(userID string) []Order {
	out := []Order{}
	for _, o := range l.Orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out
}

// ByNumber finds the order with orderNumber belonging to userID.
func (l *Ledger) ByNumber(userID, orderNumber string) (Order, bool) {
	for _, o := range l.Orders {
		if o.UserID == userID && o.OrderNumber == strings.TrimSpace(orderNumber) {
			return o, true
		}
	}
	return Order{}, false
}

// MaxOrderNumber returns the largest numeric order number, or 0.
func (l *Ledger) MaxOrderNumber() int {
	max := 0
	for _, o := range l.Orders {
		if n := o.Number(); n > max {
			max = n
		}
	}
	return max
}

// ItemIndex maps each code in the header's item segment to its offset within
// that segment, and reports the largest offset in use (-1 when none).
func (l *Ledger) ItemIndex() (map[string]int, int) {
	index := map[string]int{}
	max := -1
	for i, code := range l.Header.From(HeaderColumns) {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, dup := index[code]; !dup {
			index[code] = i
		}
		if i > max {
			max = i
		}
	}
	return index, max
}
