// Package ordercell encodes one order line into a ledger cell and back.
//
// A cell reads "<quantity><unit>@<price>/<priceMeasure>", for example
// "250gm@100/kg". The unit is left out when it equals the price measure, so
// "2kg@100/kg" is written as "2@100/kg".
package ordercell

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/dailyledger/pkg/errors"
)

// Line is one decoded order line.
type Line struct {
	Quantity     int64  `json:"quantity"`
	Unit         string `json:"unit"`
	Price        int64  `json:"price"`
	PriceMeasure string `json:"priceMeasure"`
}

var (
	quantityRe = regexp.MustCompile(`^(\d+)\s*(\D*)$`)
	priceRe    = regexp.MustCompile(`^(\d+)\s*/\s*(\S.*)$`)
)

// ErrMalformedCell is returned, wrapped, for any cell that does not follow the format.
var ErrMalformedCell = pkgerrors.New(pkgerrors.CodeEncoding, "malformed order cell")

// Encode renders l as a cell. An empty unit means the price measure.
func Encode(l Line) (string, error) {
	measure := strings.TrimSpace(l.PriceMeasure)
	unit := strings.TrimSpace(l.Unit)
	if l.Quantity < 0 || l.Price < 0 {
		return "", fmt.Errorf("%w: negative quantity or price", ErrMalformedCell)
	}
	if measure == "" {
		return "", fmt.Errorf("%w: price measure is required", ErrMalformedCell)
	}
	if strings.ContainsAny(measure, "@") {
		return "", fmt.Errorf("%w: price measure %q contains @", ErrMalformedCell, measure)
	}
	if strings.ContainsAny(unit, "@/0123456789") {
		return "", fmt.Errorf("%w: unit %q must not contain digits, @ or /", ErrMalformedCell, unit)
	}
	if unit == measure {
		unit = ""
	}
	return fmt.Sprintf("%d%s@%d/%s", l.Quantity, unit, l.Price, measure), nil
}

// Decode parses a cell. A missing unit decodes as the price measure.
func Decode(cell string) (Line, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(cell), "@")
	if !ok || strings.Contains(right, "@") {
		return Line{}, malformed(cell, "expected exactly one @")
	}

	q := quantityRe.FindStringSubmatch(strings.TrimSpace(left))
	if q == nil {
		return Line{}, malformed(cell, "quantity must be digits followed by an optional unit")
	}
	p := priceRe.FindStringSubmatch(strings.TrimSpace(right))
	if p == nil {
		return Line{}, malformed(cell, "price must be digits followed by /measure")
	}

	quantity, err := strconv.ParseInt(q[1], 10, 64)
	if err != nil {
		return Line{}, malformed(cell, "quantity out of range")
	}
	price, err := strconv.ParseInt(p[1], 10, 64)
	if err != nil {
		return Line{}, malformed(cell, "price out of range")
	}

	line := Line{
		Quantity:     quantity,
		Unit:         strings.TrimSpace(q[2]),
		Price:        price,
		PriceMeasure: strings.TrimSpace(p[2]),
	}
	if line.Unit == "" {
		line.Unit = line.PriceMeasure
	}
	return line, nil
}

func malformed(cell, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrMalformedCell, cell, reason)
}
