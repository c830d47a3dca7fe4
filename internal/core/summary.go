package core

// MonthsPerYear is the row count of a month x category matrix.
const MonthsPerYear = 12

// RankedCount is one row of a Top-N table.
type RankedCount struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Matrix counts loans per month (rows, January first) and category (columns).
type Matrix struct {
	Year       int                  `json:"year"`
	Categories []string             `json:"categories"`
	Cells      [MonthsPerYear][]int `json:"cells"`
}

// NewMatrix returns a zeroed 12 x len(categories) grid.
func NewMatrix(year int, categories []string) Matrix {
	m := Matrix{Year: year, Categories: append([]string(nil), categories...)}
	for i := range m.Cells {
		m.Cells[i] = make([]int, len(categories))
	}
	return m
}

// At returns the count for month (1-12) and column index; out of range is 0.
func (m Matrix) At(month, col int) int {
	if month < 1 || month > MonthsPerYear || col < 0 || col >= len(m.Categories) {
		return 0
	}
	return m.Cells[month-1][col]
}

// Total sums every cell.
func (m Matrix) Total() int {
	total := 0
	for _, row := range m.Cells {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// YearReport bundles the yearly summaries shown to callers and exported.
type YearReport struct {
	Year       int           `json:"year"`
	TopBooks   []RankedCount `json:"topBooks"`
	TopUsers   []RankedCount `json:"topUsers"`
	Categories []string      `json:"categories"`
	Matrix     Matrix        `json:"matrix"`
}
