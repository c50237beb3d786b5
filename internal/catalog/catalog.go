// Package catalog turns the raw price grid into items, per-date prices and
// per-date cutoffs.
//
// The grid starts with a header block whose column 0 labels each row
// (Display, Code, English, Price Measure, Today, Minimum). Every other row with
// a date in column 1 is a price snapshot for that date, with its cutoff time in
// column 2. Item columns start after the first HeaderColumns cells.
package catalog

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const (
	HeaderColumns = 3
	LabelColumn   = 0
	DateColumn    = 1
	CutoffColumn  = 2

	sheetName = "Prices"
)

const (
	fieldDisplayName  = "displayName"
	fieldCode         = "code"
	fieldEnglish      = "english"
	fieldMeasure      = "measure"
	fieldTodayPrice   = "price"
	fieldMinimumOrder = "minimumOrder"
)

var headerLabels = map[string]string{
	fieldDisplayName:  "Display",
	fieldCode:         "Code",
	fieldEnglish:      "English",
	fieldMeasure:      "Price Measure",
	fieldTodayPrice:   "Today",
	fieldMinimumOrder: "Minimum",
}

var minimumRe = regexp.MustCompile(`(\d+)\s*(\D+)?`)

// Item is one sellable product, identified by its code.
type Item struct {
	Code         string `json:"code"`
	DisplayName  string `json:"displayName"`
	EnglishName  string `json:"englishName"`
	Measure      string `json:"measure"`
	TodayPrice   string `json:"todayPrice,omitempty"`
	MinimumOrder string `json:"minimumOrder,omitempty"`
}

// Minimum returns the leading number of the minimum order cell, or 0.
func (i Item) Minimum() int64 {
	m := minimumRe.FindStringSubmatch(i.MinimumOrder)
	if m == nil {
		return 0
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// DisplayMeasure renders the price measure for people: "1kg" reads as "kg".
func (i Item) DisplayMeasure() string {
	if i.Measure == "1kg" {
		return "kg"
	}
	return i.Measure
}

// Catalog is the parsed price grid. ByDate[d][i] is the price of Codes[i] on d.
type Catalog struct {
	Items        map[string]Item     `json:"items"`
	Codes        []string            `json:"codes"`
	ByDate       map[string][]string `json:"byDate"`
	CutoffByDate map[string]string   `json:"cutoffByDate"`
}

// Entry is an item on sale for one date, with that date's price.
type Entry struct {
	Item
	Price string `json:"price"`
}

// Build parses the price grid. Missing header rows are reported as warnings
// and leave the matching item fields empty; a missing code row yields an
// empty catalog.
func Build(rows grid.Grid) (*Catalog, []grid.ParseWarning) {
	header, warnings := grid.FindRowsByColumnText(sheetName, rows, LabelColumn, headerLabels, HeaderColumns)

	c := &Catalog{
		Items:        map[string]Item{},
		Codes:        []string{},
		ByDate:       map[string][]string{},
		CutoffByDate: map[string]string{},
	}

	codes, ok := header[fieldCode]
	if !ok {
		return c, warnings
	}
	for _, code := range codes {
		c.Codes = append(c.Codes, strings.TrimSpace(code))
	}

	for i, code := range c.Codes {
		if code == "" {
			continue
		}
		if _, dup := c.Items[code]; dup {
			warnings = append(warnings, grid.ParseWarning{
				Sheet:   sheetName,
				Key:     code,
				Message: "item code " + strconv.Quote(code) + " appears in more than one column; first column kept",
			})
			continue
		}
		c.Items[code] = Item{
			Code:         code,
			DisplayName:  header[fieldDisplayName].Cell(i),
			EnglishName:  header[fieldEnglish].Cell(i),
			Measure:      strings.TrimSpace(header[fieldMeasure].Cell(i)),
			TodayPrice:   strings.TrimSpace(header[fieldTodayPrice].Cell(i)),
			MinimumOrder: strings.TrimSpace(header[fieldMinimumOrder].Cell(i)),
		}
	}

	for date, prices := range grid.IndexByColumnValue(rows, DateColumn, HeaderColumns) {
		c.ByDate[date] = prices
	}
	for date, row := range grid.IndexByColumnValue(rows, DateColumn, 0) {
		if cutoff := strings.TrimSpace(row.Cell(CutoffColumn)); cutoff != "" {
			c.CutoffByDate[date] = cutoff
		}
	}
	return c, warnings
}

// Cutoff returns the cutoff cell recorded for date, if any.
func (c *Catalog) Cutoff(date string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.CutoffByDate[date]
	return v, ok
}

// Effective returns the items on sale for date: every code with a non-empty
// price that day, sorted by display name using the collation rules of lang.
func (c *Catalog) Effective(date string, lang language.Tag) []Entry {
	if c == nil {
		return nil
	}
	prices := grid.Row(c.ByDate[date])
	out := make([]Entry, 0, len(c.Codes))
	seen := make(map[string]struct{}, len(c.Codes))
	for i, code := range c.Codes {
		price := strings.TrimSpace(prices.Cell(i))
		if code == "" || price == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		item, ok := c.Items[code]
		if !ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, Entry{Item: item, Price: price})
	}

	coll := collate.New(lang)
	sort.SliceStable(out, func(a, b int) bool {
		return coll.CompareString(out[a].DisplayName, out[b].DisplayName) < 0
	})
	return out
}

// Lookup finds an entry on sale for date by code.
func (c *Catalog) Lookup(date, code string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	prices := grid.Row(c.ByDate[date])
	for i, candidate := range c.Codes {
		if candidate != code {
			continue
		}
		price := strings.TrimSpace(prices.Cell(i))
		item, ok := c.Items[code]
		if price == "" || !ok {
			return Entry{}, false
		}
		return Entry{Item: item, Price: price}, true
	}
	return Entry{}, false
}
