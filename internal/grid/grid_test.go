package grid

import (
	"reflect"
	"testing"
)

func sampleRows() Grid {
	return Grid{
		{"Display Name", "", "", "Aloo", "Bhindi"},
		{"Item Code", "", "", "A", "B"},
		{"Minimum"},
		{"Price Measure", "", "", "kg", "kg"},
	}
}

func TestFindRowsByColumnTextMatchesSubstring(t *testing.T) {
	found, warnings := FindRowsByColumnText("Prices", sampleRows(), 0, map[string]string{
		"displayName": "Display",
		"code":        "Code",
	}, 3)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if !reflect.DeepEqual(found["code"], Row{"A", "B"}) {
		t.Fatalf("unexpected code row %v", found["code"])
	}
	if !reflect.DeepEqual(found["displayName"], Row{"Aloo", "Bhindi"}) {
		t.Fatalf("unexpected display row %v", found["displayName"])
	}
}

func TestFindRowsByColumnTextFirstMatchWins(t *testing.T) {
	rows := Grid{{"Code one", "x"}, {"Code two", "y"}}
	found, _ := FindRowsByColumnText("", rows, 0, map[string]string{"code": "Code"}, 1)
	if !reflect.DeepEqual(found["code"], Row{"x"}) {
		t.Fatalf("expected first row to win, got %v", found["code"])
	}
}

func TestFindRowsByColumnTextReportsMissingNeedles(t *testing.T) {
	found, warnings := FindRowsByColumnText("Prices", sampleRows(), 0, map[string]string{
		"code":    "Code",
		"english": "English",
		"blank":   "",
	}, 3)
	if _, ok := found["english"]; ok {
		t.Fatal("missing needle must be absent from result")
	}
	if _, ok := found["blank"]; ok {
		t.Fatal("empty needle must not match")
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %d", len(warnings))
	}
	if warnings[0].Key != "blank" || warnings[1].Key != "english" {
		t.Fatalf("warnings should be ordered by key: %v", warnings)
	}
	if warnings[1].String() == "" {
		t.Fatal("warning should render a message")
	}
}

func TestFindRowsByColumnTextShortRowSlicesEmpty(t *testing.T) {
	found, warnings := FindRowsByColumnText("Prices", sampleRows(), 0, map[string]string{"min": "Minimum"}, 3)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if row, ok := found["min"]; !ok || len(row) != 0 {
		t.Fatalf("expected empty row for short match, got %v (present=%v)", row, ok)
	}
}

func TestIndexByColumnValue(t *testing.T) {
	rows := Grid{
		{"", "", ""},
		{"", "01/03/2025", "20:00", "100", ""},
		{"", "", "21:00", "90"},
		{"", "02/03/2025", "19:00", "110", "55"},
		{""},
		{"", "02/03/2025", "18:00", "120", "60"},
	}
	idx := IndexByColumnValue(rows, 1, 3)
	if len(idx) != 2 {
		t.Fatalf("expected 2 keys, got %d: %v", len(idx), idx)
	}
	if !reflect.DeepEqual(idx["01/03/2025"], Row{"100", ""}) {
		t.Fatalf("unexpected row %v", idx["01/03/2025"])
	}
	if !reflect.DeepEqual(idx["02/03/2025"], Row{"120", "60"}) {
		t.Fatalf("later duplicate should win, got %v", idx["02/03/2025"])
	}
}

func TestRowsToRecords(t *testing.T) {
	recs := RowsToRecords(Grid{
		{"Asha", "u1", "98", "TRUE", "extra"},
		{"Bina", "u2"},
	}, []string{"name", "id", "phone", "notify"})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0]["notify"] != "TRUE" || len(recs[0]) != 4 {
		t.Fatalf("unexpected first record %v", recs[0])
	}
	if _, ok := recs[1]["phone"]; ok {
		t.Fatalf("missing cells must be absent, got %v", recs[1])
	}
}

func TestRowHelpers(t *testing.T) {
	r := Row{"a", "b"}
	if r.Cell(5) != "" || r.Cell(-1) != "" {
		t.Fatal("out of range cells should be empty")
	}
	if got := r.Pad(4); len(got) != 4 || len(r) != 2 {
		t.Fatalf("pad must copy and extend, got %v", got)
	}
	c := r.From(1)
	c[0] = "z"
	if r[1] != "b" {
		t.Fatal("From must not alias the source row")
	}
	g := Grid{r}
	clone := g.Clone()
	clone[0][0] = "x"
	if g[0][0] != "a" {
		t.Fatal("grid clone must be deep")
	}
}
