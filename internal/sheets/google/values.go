package google

import (
	"strconv"
	"time"

	"biblioteca/internal/core"
)

// buildReportValues lays a report out as sheet rows: the two Top-N tables,
// then the month x category matrix with row and column totals.
func buildReportValues(r core.YearReport) [][]interface{} {
	rows := [][]interface{}{
		{"Loans " + strconv.Itoa(r.Year)},
		{},
		{"Top books", "Loans"},
	}
	for _, rc := range r.TopBooks {
		rows = append(rows, []interface{}{rc.Label, rc.Count})
	}

	rows = append(rows, []interface{}{}, []interface{}{"Top users", "Loans"})
	for _, rc := range r.TopUsers {
		rows = append(rows, []interface{}{rc.Label, rc.Count})
	}

	header := []interface{}{"Month"}
	for _, c := range r.Matrix.Categories {
		header = append(header, c)
	}
	header = append(header, "Total")
	rows = append(rows, []interface{}{}, header)

	colTotals := make([]int, len(r.Matrix.Categories))
	grand := 0
	for m := 1; m <= core.MonthsPerYear; m++ {
		row := []interface{}{time.Month(m).String()[:3]}
		sum := 0
		for col := range r.Matrix.Categories {
			v := r.Matrix.At(m, col)
			row = append(row, v)
			sum += v
			colTotals[col] += v
		}
		grand += sum
		rows = append(rows, append(row, sum))
	}

	totals := []interface{}{"Total"}
	for _, v := range colTotals {
		totals = append(totals, v)
	}
	rows = append(rows, append(totals, grand))
	return rows
}
