// Package cutoff decides whether ordering is open, always in the vendor's
// own time zone.
package cutoff

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

const clockLayout = "15:04"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// State is the ordering state shown for a date.
type State string

const (
	// StateOpen allows creating or editing today's order.
	StateOpen State = "open"
	// StateReadOnly shows an existing order that can no longer change.
	StateReadOnly State = "read_only"
	// StateRefused means ordering closed with no order placed.
	StateRefused State = "refused"
	// StateEmpty means nothing is on sale; checkout stays disabled.
	StateEmpty State = "empty"
)

// Decision is the outcome of evaluating a date's cutoff.
type Decision struct {
	State   State  `json:"state"`
	Cutoff  string `json:"cutoff"`
	Display string `json:"cutoffDisplay"`
}

// CheckoutEnabled reports whether a cart may be submitted.
func (d Decision) CheckoutEnabled() bool {
	return d.State == StateOpen
}

// Policy evaluates cutoffs for one vendor.
type Policy struct {
	loc           *time.Location
	dateLayout    string
	defaultCutoff string
}

// NewPolicy builds a policy. defaultCutoff applies to dates without a cutoff
// cell and must read HH:MM.
func NewPolicy(loc *time.Location, dateLayout, defaultCutoff string) (*Policy, error) {
	if loc == nil {
		return nil, fmt.Errorf("location is required")
	}
	if dateLayout == "" {
		return nil, fmt.Errorf("date layout is required")
	}
	normalized, err := Normalize(defaultCutoff)
	if err != nil {
		return nil, fmt.Errorf("default cutoff: %w", err)
	}
	return &Policy{loc: loc, dateLayout: dateLayout, defaultCutoff: normalized}, nil
}

// Location returns the vendor's zone.
func (p *Policy) Location() *time.Location { return p.loc }

// Today formats now as a ledger date in the vendor's zone.
func (p *Policy) Today(now time.Time) string {
	return now.In(p.loc).Format(p.dateLayout)
}

// Resolve returns the cutoff to use: the cell when it parses, else the default.
func (p *Policy) Resolve(cell string) string {
	if normalized, err := Normalize(cell); err == nil {
		return normalized
	}
	return p.defaultCutoff
}

// IsOpen reports now <= cutoff at minute resolution in the vendor's zone.
func (p *Policy) IsOpen(cutoff string, now time.Time) bool {
	return now.In(p.loc).Format(clockLayout) <= p.Resolve(cutoff)
}

// Decide evaluates the ordering state for a date. Nothing on sale wins over
// every other condition.
func (p *Policy) Decide(cutoffCell string, now time.Time, hasItems, hasOrder bool) Decision {
	cutoff := p.Resolve(cutoffCell)
	d := Decision{Cutoff: cutoff, Display: Render(cutoff)}
	switch {
	case !hasItems:
		d.State = StateEmpty
	case p.IsOpen(cutoff, now):
		d.State = StateOpen
	case hasOrder:
		d.State = StateReadOnly
	default:
		d.State = StateRefused
	}
	return d
}

// Normalize parses an H:MM or HH:MM cell into zero-padded HH:MM.
func Normalize(cell string) (string, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(cell))
	if err != nil {
		return "", fmt.Errorf("cutoff %q must be HH:MM", cell)
	}
	return t.Format(clockLayout), nil
}

// Render formats HH:MM on a 12-hour clock, e.g. "20:00" as "8:00pm".
func Render(cutoff string) string {
	t, err := time.Parse(clockLayout, cutoff)
	if err != nil {
		return cutoff
	}
	return t.Format("3:04pm")
}
