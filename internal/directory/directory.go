// Package directory parses the users grid into customers keyed by id.
package directory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/dailyledger/internal/grid"
)

const sheetName = "Users"

var (
	expectedHeader = []string{"Name", "ID", "Phone"}
	userFields     = []string{"name", "id", "phone", "notify"}
)

// User is one customer. Notify marks users who receive order notifications.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Notify bool   `json:"notify"`
}

// Directory holds users by id.
type Directory struct {
	users map[string]User
}

// Build parses the users grid. Row 0 is a header whose first columns must read
// Name, ID, Phone; mismatches are reported but parsing continues positionally.
func Build(rows grid.Grid) (*Directory, []grid.ParseWarning) {
	d := &Directory{users: map[string]User{}}
	if len(rows) == 0 {
		return d, []grid.ParseWarning{{Sheet: sheetName, Message: "users grid is empty"}}
	}

	var warnings []grid.ParseWarning
	for i, want := range expectedHeader {
		if got := strings.TrimSpace(rows[0].Cell(i)); got != want {
			warnings = append(warnings, grid.ParseWarning{
				Sheet:   sheetName,
				Key:     want,
				Message: fmt.Sprintf("expected column %s at index %d, found %q", want, i, got),
			})
		}
	}

	for _, rec := range grid.RowsToRecords(rows[1:], userFields) {
		id := strings.TrimSpace(rec["id"])
		if id == "" {
			continue
		}
		if _, dup := d.users[id]; dup {
			warnings = append(warnings, grid.ParseWarning{
				Sheet:   sheetName,
				Key:     id,
				Message: fmt.Sprintf("user id %q listed more than once; later row kept", id),
			})
		}
		d.users[id] = User{
			ID:     id,
			Name:   strings.TrimSpace(rec["name"]),
			Phone:  strings.TrimSpace(rec["phone"]),
			Notify: parseFlag(rec["notify"]),
		}
	}
	return d, warnings
}

// Lookup returns the user with id.
func (d *Directory) Lookup(id string) (User, bool) {
	if d == nil {
		return User{}, false
	}
	u, ok := d.users[strings.TrimSpace(id)]
	return u, ok
}

// Len reports how many users were parsed.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.users)
}

// Subscribers lists users with notify set, ordered by id.
func (d *Directory) Subscribers() []User {
	if d == nil {
		return nil
	}
	out := []User{}
	for _, u := range d.users {
		if u.Notify {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "y", "1":
		return true
	default:
		return false
	}
}
