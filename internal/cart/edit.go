package cart

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/dailyledger/internal/ledger"
	"github.com/angelmondragon/dailyledger/internal/ordercell"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/shopspring/decimal"
)

// Plus raises the quantity by one granularity step, and at least to the
// item's minimum order.
func (m *Model) Plus(code string) error {
	row, err := m.editableRow(code)
	if err != nil {
		return err
	}
	next := row.Quantity.Get() + m.opts.Granularity
	if min := row.Minimum(); next < min {
		next = min
	}
	if next > m.opts.MaxQuantity {
		return m.tooLarge(code)
	}
	return row.Quantity.Set(next)
}

// Minus lowers the quantity by one granularity step. The result never drops
// below zero, and a result under the item's minimum order becomes zero.
func (m *Model) Minus(code string) error {
	row, err := m.editableRow(code)
	if err != nil {
		return err
	}
	next := row.Quantity.Get() - m.opts.Granularity
	if next < 0 {
		next = 0
	}
	if next < row.Minimum() {
		next = 0
	}
	return row.Quantity.Set(next)
}

// Enter applies free-text input. A number is rounded to the nearest multiple
// of the granularity and stored; anything else leaves the stored value alone.
// A number above the row maximum is refused and the stored value kept.
// The returned value is what the input should display either way.
func (m *Model) Enter(code, text string) (int64, error) {
	row, err := m.editableRow(code)
	if err != nil {
		return 0, err
	}
	n, ok := parseQuantity(text)
	if !ok {
		return row.Quantity.Get(), nil
	}
	rounded, err := m.round(code, n)
	if err != nil {
		return row.Quantity.Get(), err
	}
	if err := row.Quantity.Set(rounded); err != nil {
		return row.Quantity.Get(), err
	}
	return rounded, nil
}

// SetQuantity stores a submitted quantity, rounded like direct entry.
// Negative quantities and quantities above the row maximum are refused.
func (m *Model) SetQuantity(code string, quantity int64) error {
	row, err := m.editableRow(code)
	if err != nil {
		return err
	}
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for %s must not be negative", code))
	}
	rounded, err := m.round(code, decimal.NewFromInt(quantity))
	if err != nil {
		return err
	}
	return row.Quantity.Set(rounded)
}

// round snaps n to the granularity. Negative input reads as zero.
func (m *Model) round(code string, n decimal.Decimal) (int64, error) {
	if n.IsNegative() {
		return 0, nil
	}
	step := decimal.NewFromInt(m.opts.Granularity)
	rounded := n.Div(step).Round(0).Mul(step)
	if rounded.GreaterThan(decimal.NewFromInt(m.opts.MaxQuantity)) {
		return 0, m.tooLarge(code)
	}
	return rounded.IntPart(), nil
}

func (m *Model) tooLarge(code string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for %s must not exceed %d", code, m.opts.MaxQuantity))
}

// parseQuantity reads a number the way a quantity box does: blank reads as 0.
func parseQuantity(text string) (decimal.Decimal, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return decimal.Zero, true
	}
	n, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, false
	}
	return n, true
}

// Lines returns the ordered rows, quantity above zero, as ledger line items.
func (m *Model) Lines() []ledger.LineItem {
	out := []ledger.LineItem{}
	for _, row := range m.rows {
		q := row.Quantity.Get()
		if q <= 0 || !row.priced {
			continue
		}
		out = append(out, ledger.LineItem{
			Code: row.Code,
			Line: ordercell.Line{
				Quantity:     q,
				Unit:         row.OrderMeasure,
				Price:        row.price.IntPart(),
				PriceMeasure: row.Measure,
			},
		})
	}
	return out
}

// Submission turns the cart into a ledger submission. The value is summed
// in decimal and refused when it does not fit in an int64.
func (m *Model) Submission() (ledger.Submission, error) {
	lines := m.Lines()
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(decimal.NewFromInt(line.Line.Quantity).Mul(decimal.NewFromInt(line.Line.Price)).Div(perThousand).Round(0))
	}
	value, ok := toInt64(sum)
	if !ok {
		return ledger.Submission{}, pkgerrors.New(pkgerrors.CodeValidation, "order total is too large")
	}
	return ledger.Submission{
		Date:   m.data.Date,
		UserID: m.data.User.ID,
		Name:   m.data.User.Name,
		Value:  value,
		Lines:  lines,
	}, nil
}
