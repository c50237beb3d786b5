package ledger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/ordercell"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
)

// LineItem is one ordered item of a submission.
type LineItem struct {
	Code string
	Line ordercell.Line
}

// Submission is an order ready to be recorded for one user and date.
type Submission struct {
	Date   string
	UserID string
	Name   string
	Value  int64
	Lines  []LineItem
}

// RowWrite is a single full-row write against the orders grid.
type RowWrite struct {
	// RowIndex is the target row for an update; ignored when Append is set.
	RowIndex int
	Append   bool
	Cells    grid.Row
}

// Plan is the outcome of reconciling a submission. When HeaderPatch is set it
// must be written to row 0 before Row is written.
type Plan struct {
	HeaderPatch grid.Row
	NewCodes    []string
	Row         RowWrite
	// OrderNumber is the row's order number as stored.
	OrderNumber string
	Updated     bool
	// Columns maps each submitted code to its item-segment offset.
	Columns map[string]int
	// Duplicates lists later rows sharing the user and date of the updated row.
	Duplicates []int
}

// Reconcile plans how to record s in the ledger: find an existing row for the
// user and date, give unseen codes the next free item columns, then overwrite
// that row in place or append a new one. The ledger itself is not modified.
func (l *Ledger) Reconcile(s Submission) (Plan, error) {
	if strings.TrimSpace(s.UserID) == "" || strings.TrimSpace(s.Date) == "" {
		return Plan{}, pkgerrors.New(pkgerrors.CodeValidation, "user id and date are required")
	}

	// lookup
	existing, updating, duplicates := l.Find(s.UserID, s.Date)

	// schema check
	index, max := l.ItemIndex()
	header := l.Header.Pad(HeaderColumns)
	plan := Plan{Columns: map[string]int{}, Duplicates: duplicates}
	cells := make(map[int]string, len(s.Lines))
	for _, item := range s.Lines {
		code := strings.TrimSpace(item.Code)
		if code == "" {
			return Plan{}, pkgerrors.New(pkgerrors.CodeValidation, "item code is required")
		}
		if _, dup := plan.Columns[code]; dup {
			return Plan{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %s submitted more than once", code))
		}
		col, ok := index[code]
		if !ok {
			max++
			col = max
			index[code] = col
			header = header.Pad(HeaderColumns + col + 1)
			header[HeaderColumns+col] = code
			plan.NewCodes = append(plan.NewCodes, code)
		}
		cell, err := ordercell.Encode(item.Line)
		if err != nil {
			return Plan{}, fmt.Errorf("encoding %s: %w", code, err)
		}
		plan.Columns[code] = col
		cells[col] = cell
	}
	if len(plan.NewCodes) > 0 || l.headerStale {
		plan.HeaderPatch = header
	}

	// append or update
	if updating {
		plan.Updated = true
		plan.OrderNumber = existing.OrderNumber
		plan.Row = RowWrite{RowIndex: existing.RowIndex}
	} else {
		plan.OrderNumber = strconv.Itoa(l.MaxOrderNumber() + 1)
		plan.Row = RowWrite{Append: true}
	}

	row := make(grid.Row, len(header))
	row[colOrderNumber] = plan.OrderNumber
	row[colDate] = s.Date
	row[colName] = s.Name
	row[colUserID] = s.UserID
	row[colValue] = strconv.FormatInt(s.Value, 10)
	row[colPaid] = PaidFalse
	// Rating and feedback stay empty: an edited order loses earlier feedback.
	for col, cell := range cells {
		row[HeaderColumns+col] = cell
	}
	plan.Row.Cells = row
	return plan, nil
}

// Feedback plans a rewrite of the rating and feedback cells of one order,
// leaving every other cell as read.
func (l *Ledger) Feedback(userID, orderNumber, rating, text string) (RowWrite, error) {
	order, ok := l.ByNumber(userID, orderNumber)
	if !ok {
		return RowWrite{}, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order number %s not found for user %s", orderNumber, userID))
	}
	var raw grid.Row
	if order.RowIndex < len(l.rows) {
		raw = l.rows[order.RowIndex]
	}
	row := raw.Pad(HeaderColumns)
	row[colRating] = rating
	row[colFeedbackText] = text
	return RowWrite{RowIndex: order.RowIndex, Cells: row}, nil
}
