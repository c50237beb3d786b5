// Package cart builds the per-session cart model: one quantity cell per item
// on sale, a derived line price per row and a derived cart total.
package cart

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/angelmondragon/dailyledger/internal/catalog"
	"github.com/angelmondragon/dailyledger/internal/cutoff"
	"github.com/angelmondragon/dailyledger/internal/directory"
	"github.com/angelmondragon/dailyledger/internal/ledger"
	"github.com/angelmondragon/dailyledger/internal/ordercell"
	"github.com/angelmondragon/dailyledger/internal/reactive"
	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	DefaultGranularity  = 50
	DefaultOrderMeasure = "gm"
	// DefaultMaxQuantity is one tonne in grams.
	DefaultMaxQuantity = 1_000_000
	// MaxPrice bounds a price cell. With MaxQuantity it keeps every line
	// price and total well inside int64.
	MaxPrice = 1_000_000_000
)

var (
	// price cells are per thousand order units, e.g. per kg for grams.
	perThousand = decimal.NewFromInt(1000)
	maxPrice    = decimal.NewFromInt(MaxPrice)
	maxInt64    = decimal.NewFromInt(math.MaxInt64)
	minInt64    = decimal.NewFromInt(math.MinInt64)
)

// Options tunes quantity handling.
type Options struct {
	Granularity  int64
	OrderMeasure string
	// MaxQuantity is the largest quantity one row accepts.
	MaxQuantity int64
}

func (o Options) withDefaults() Options {
	if o.Granularity <= 0 {
		o.Granularity = DefaultGranularity
	}
	if o.MaxQuantity <= 0 {
		o.MaxQuantity = DefaultMaxQuantity
	}
	if strings.TrimSpace(o.OrderMeasure) == "" {
		o.OrderMeasure = DefaultOrderMeasure
	}
	return o
}

// Data bundles what a cart needs for one user and date.
type Data struct {
	Date          string
	User          directory.User
	Entries       []catalog.Entry
	Decision      cutoff.Decision
	ExistingOrder *ledger.Order
	// Items names existing-order items that are no longer on sale.
	Items map[string]catalog.Item
}

// Row is one item on sale with its reactive cells.
type Row struct {
	catalog.Entry
	OrderMeasure string
	Quantity     *reactive.Cell[int64]
	OrderPrice   *reactive.Cell[int64]
	// Defect is set when the row's price or existing ledger cell is unreadable.
	Defect error
	// OffSale marks an existing-order line whose item is not on sale today.
	// Such rows are never editable and never submitted.
	OffSale bool

	price  decimal.Decimal
	priced bool
}

// Model is a cart for one display session. It is not safe for concurrent use.
type Model struct {
	data   Data
	opts   Options
	graph  *reactive.Graph
	rows   []*Row
	byCode map[string]*Row
	total  *reactive.Cell[int64]
}

// NewModel builds the cart graph, seeding quantities from the existing order.
func NewModel(data Data, opts Options) (*Model, error) {
	opts = opts.withDefaults()
	m := &Model{
		data:   data,
		opts:   opts,
		graph:  reactive.NewGraph(),
		byCode: make(map[string]*Row, len(data.Entries)),
	}

	deps := make([]reactive.Node, 0, len(data.Entries))
	for _, entry := range data.Entries {
		row := &Row{Entry: entry, OrderMeasure: opts.OrderMeasure}
		price, err := decimal.NewFromString(strings.TrimSpace(entry.Price))
		switch {
		case err != nil || price.IsNegative():
			row.Defect = pkgerrors.New(pkgerrors.CodeEncoding, fmt.Sprintf("price %q for %s is not a number", entry.Price, entry.Code))
		case !price.IsInteger():
			row.Defect = pkgerrors.New(pkgerrors.CodeEncoding, fmt.Sprintf("price %q for %s must be a whole number", entry.Price, entry.Code))
		case price.GreaterThan(maxPrice):
			row.Defect = pkgerrors.New(pkgerrors.CodeEncoding, fmt.Sprintf("price %q for %s is above %d", entry.Price, entry.Code, MaxPrice))
		default:
			row.price = price
			row.priced = true
		}

		seed, seedErr := existingQuantity(data.ExistingOrder, entry.Code)
		if seedErr == nil && seed > opts.MaxQuantity {
			seedErr = pkgerrors.New(pkgerrors.CodeEncoding, fmt.Sprintf("stored quantity %d for %s is above %d", seed, entry.Code, opts.MaxQuantity))
			seed = 0
		}
		if seedErr != nil && row.Defect == nil {
			row.Defect = seedErr
		}

		row.Quantity = reactive.Source(m.graph, seed)
		qty := row.Quantity
		rowPrice := row.price
		row.OrderPrice, err = reactive.Derive(m.graph, func() int64 {
			// In range: quantity and price are both bounded.
			p, _ := LinePrice(qty.Get(), rowPrice)
			return p
		}, qty)
		if err != nil {
			return nil, err
		}

		m.rows = append(m.rows, row)
		m.byCode[entry.Code] = row
		deps = append(deps, row.OrderPrice)
	}

	// A closed cart shows the whole stored order, so its off-sale lines count.
	for _, row := range m.offSaleRows() {
		m.rows = append(m.rows, row)
		m.byCode[row.Code] = row
		if !m.Editable() {
			deps = append(deps, row.OrderPrice)
		}
	}

	rows := m.rows
	editable := m.Editable()
	total, err := reactive.Derive(m.graph, func() int64 {
		var sum int64
		for _, r := range rows {
			if r.OffSale && editable {
				continue
			}
			sum += r.OrderPrice.Get()
		}
		return sum
	}, deps...)
	if err != nil {
		return nil, err
	}
	m.total = total
	return m, nil
}

// offSaleRows builds fixed rows for existing-order lines whose item is not on
// sale today, priced from the stored cell.
func (m *Model) offSaleRows() []*Row {
	order := m.data.ExistingOrder
	if order == nil {
		return nil
	}
	codes := make([]string, 0, len(order.Items))
	for code := range order.Items {
		if _, onSale := m.byCode[code]; !onSale {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	out := make([]*Row, 0, len(codes))
	for _, code := range codes {
		item, ok := m.data.Items[code]
		if !ok {
			item = catalog.Item{Code: code, DisplayName: code}
		}
		row := &Row{Entry: catalog.Entry{Item: item}, OrderMeasure: m.opts.OrderMeasure, OffSale: true}
		row.Defect = pkgerrors.New(pkgerrors.CodeRefused, fmt.Sprintf("item %s is no longer on sale", code))
		var qty, price int64
		line, err := ordercell.Decode(order.Items[code])
		if err != nil {
			row.Defect = err
		} else {
			qty = line.Quantity
			row.Entry.Price = strconv.FormatInt(line.Price, 10)
			row.Entry.Measure = line.PriceMeasure
			row.OrderMeasure = line.Unit
			if p, ok := LinePrice(line.Quantity, decimal.NewFromInt(line.Price)); ok {
				price = p
			}
		}
		row.Quantity = reactive.Source(m.graph, qty)
		row.OrderPrice = reactive.Source(m.graph, price)
		out = append(out, row)
	}
	return out
}

func existingQuantity(order *ledger.Order, code string) (int64, error) {
	if order == nil {
		return 0, nil
	}
	cell, ok := order.Items[code]
	if !ok {
		return 0, nil
	}
	line, err := ordercell.Decode(cell)
	if err != nil {
		return 0, err
	}
	return line.Quantity, nil
}

// LinePrice is round(quantity * price / 1000), halves rounded away from zero.
// ok is false when the result does not fit in an int64.
func LinePrice(quantity int64, price decimal.Decimal) (int64, bool) {
	return toInt64(decimal.NewFromInt(quantity).Mul(price).Div(perThousand).Round(0))
}

func toInt64(d decimal.Decimal) (int64, bool) {
	if d.GreaterThan(maxInt64) || d.LessThan(minInt64) {
		return 0, false
	}
	return d.IntPart(), true
}

// Rows returns the rows in display order.
func (m *Model) Rows() []*Row { return m.rows }

// Row finds a row by item code.
func (m *Model) Row(code string) (*Row, bool) {
	r, ok := m.byCode[code]
	return r, ok
}

// Total is the derived cart total.
func (m *Model) Total() int64 { return m.total.Get() }

// Data returns the inputs the model was built from.
func (m *Model) Data() Data { return m.data }

// Editable reports whether quantities may change.
func (m *Model) Editable() bool { return m.data.Decision.State == cutoff.StateOpen }

// CheckoutEnabled reports whether the cart can be submitted as it stands.
func (m *Model) CheckoutEnabled() bool {
	return m.data.Decision.CheckoutEnabled() && m.Total() > 0
}

func (m *Model) editableRow(code string) (*Row, error) {
	if !m.Editable() {
		return nil, pkgerrors.New(pkgerrors.CodeRefused, "orders are closed for today")
	}
	row, ok := m.byCode[code]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeRefused, fmt.Sprintf("item %s is not on sale today", code))
	}
	if !row.priced {
		return nil, row.Defect
	}
	return row, nil
}
