package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/angelmondragon/dailyledger/internal/ledger"
)

var exportHeader = []string{"orderNumber", "date", "userId", "code", "quantity", "unit", "price", "priceMeasure"}

type exportStats struct {
	Lines     int
	Malformed int
}

// writeExport emits one CSV record per decodable item cell. Cells that do not
// decode are reported on problems and skipped.
func writeExport(out, problems io.Writer, l *ledger.Ledger) (exportStats, error) {
	var stats exportStats
	w := csv.NewWriter(out)
	if err := w.Write(exportHeader); err != nil {
		return stats, err
	}
	for _, order := range l.Orders {
		for _, line := range order.Lines() {
			if line.Defect != nil {
				stats.Malformed++
				fmt.Fprintf(problems, "row %d order %s item %s: %v\n", order.RowIndex, order.OrderNumber, line.Code, line.Defect)
				continue
			}
			record := []string{
				order.OrderNumber,
				order.Date,
				order.UserID,
				line.Code,
				strconv.FormatInt(line.Line.Quantity, 10),
				line.Line.Unit,
				strconv.FormatInt(line.Line.Price, 10),
				line.Line.PriceMeasure,
			}
			if err := w.Write(record); err != nil {
				return stats, err
			}
			stats.Lines++
		}
	}
	w.Flush()
	return stats, w.Error()
}
