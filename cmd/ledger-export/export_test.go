package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/angelmondragon/dailyledger/internal/grid"
	"github.com/angelmondragon/dailyledger/internal/ledger"
)

func TestWriteExportDecodesCellsAndReportsMalformed(t *testing.T) {
	header := append(grid.Row{}, ledger.Schema...)
	header = append(header, "A", "B")
	row := func(number, date, user, a, b string) grid.Row {
		r := make(grid.Row, len(header))
		r[0], r[1], r[3] = number, date, user
		r[len(header)-2], r[len(header)-1] = a, b
		return r
	}
	l, _ := ledger.Parse(grid.Grid{
		header,
		row("1", "01/03/2025", "u1", "250gm@100/kg", ""),
		row("2", "02/03/2025", "u2", "2@40/pc", "lots"),
	})

	var out, problems bytes.Buffer
	stats, err := writeExport(&out, &problems, l)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Lines != 2 || stats.Malformed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	want := strings.Join([]string{
		"orderNumber,date,userId,code,quantity,unit,price,priceMeasure",
		"1,01/03/2025,u1,A,250,gm,100,kg",
		"2,02/03/2025,u2,A,2,pc,40,pc",
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("unexpected csv:\n%s", out.String())
	}
	if !strings.Contains(problems.String(), "item B") {
		t.Fatalf("expected malformed cell report, got %q", problems.String())
	}
}
