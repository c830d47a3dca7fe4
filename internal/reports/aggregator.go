// Package reports derives loan statistics from the library state: per-book and
// per-user counts, Top-N rankings and the month x category matrix.
package reports

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"biblioteca/internal/cache"
	"biblioteca/internal/core"
)

// UnknownLabel names a ranked id whose book or user no longer exists.
const UnknownLabel = "(unknown)"

// DefaultTopN is the size of the rankings when callers do not ask otherwise.
const DefaultTopN = 5

// Source is the read side of the library that reports are computed from.
type Source interface {
	Books() []core.Book
	Users() []core.User
	Loans() []core.Loan
	Book(id string) (core.Book, bool)
	User(id string) (core.User, bool)
	Revision() uint64
}

// Aggregator computes reports on demand. With a cache attached, results are
// reused until the source revision changes.
type Aggregator struct {
	src   Source
	cache cache.Cache[any]
	now   func() time.Time
}

type Option func(*Aggregator)

func WithCache(c cache.Cache[any]) Option {
	return func(a *Aggregator) { a.cache = c }
}

// WithClock sets the clock used to pick the current year when there are no loans.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

func NewAggregator(src Source, opts ...Option) *Aggregator {
	a := &Aggregator{src: src, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// cached looks key up for the current revision and computes it on a miss.
func cached[T any](a *Aggregator, key string, compute func() T) T {
	if a.cache == nil {
		return compute()
	}
	key = key + ":" + strconv.FormatUint(a.src.Revision(), 10)
	if v, ok := a.cache.Get(key); ok {
		if t, ok := v.(T); ok {
			return t
		}
	}
	v := compute()
	a.cache.Set(key, v)
	return v
}

func (a *Aggregator) loansIn(year int) []core.Loan {
	var out []core.Loan
	for _, l := range a.src.Loans() {
		if l.LoanDate.Year() == year {
			out = append(out, l)
		}
	}
	return out
}

// CountLoansByBook counts the loans of year per book id. Books without loans
// that year are absent from the map.
func (a *Aggregator) CountLoansByBook(year int) map[string]int {
	counts := cached(a, "books:"+strconv.Itoa(year), func() map[string]int {
		counts := make(map[string]int)
		for _, l := range a.loansIn(year) {
			counts[l.BookID]++
		}
		return counts
	})
	return copyCounts(counts)
}

// CountLoansByUser counts the loans of year per user id.
func (a *Aggregator) CountLoansByUser(year int) map[string]int {
	counts := cached(a, "users:"+strconv.Itoa(year), func() map[string]int {
		counts := make(map[string]int)
		for _, l := range a.loansIn(year) {
			counts[l.UserID]++
		}
		return counts
	})
	return copyCounts(counts)
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MonthCategoryMatrix counts the loans of year by month and book category.
// Categories match case-insensitively; a blank book category counts as
// core.DefaultCategory. Loans whose book is gone, or whose category is not
// among categories, are not counted.
func (a *Aggregator) MonthCategoryMatrix(year int, categories []string) core.Matrix {
	m := core.NewMatrix(year, categories)
	index := make(map[string]int, len(categories))
	for i, c := range categories {
		key := strings.ToLower(core.NormalizeCategory(c))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}
	for _, l := range a.loansIn(year) {
		book, ok := a.src.Book(l.BookID)
		if !ok {
			continue
		}
		col, ok := index[strings.ToLower(core.NormalizeCategory(book.Category))]
		if !ok {
			continue
		}
		m.Cells[int(l.LoanDate.Month())-1][col]++
	}
	return m
}

// TopBooks ranks the books borrowed most in year. Ties go to the label, then the id.
func (a *Aggregator) TopBooks(year, n int) []core.RankedCount {
	return rank(a.CountLoansByBook(year), n, func(id string) string {
		if b, ok := a.src.Book(id); ok {
			return b.Title
		}
		return UnknownLabel
	})
}

// TopUsers ranks the users who borrowed most in year.
func (a *Aggregator) TopUsers(year, n int) []core.RankedCount {
	return rank(a.CountLoansByUser(year), n, func(id string) string {
		if u, ok := a.src.User(id); ok {
			return u.Name
		}
		return UnknownLabel
	})
}

func rank(counts map[string]int, n int, label func(string) string) []core.RankedCount {
	if n <= 0 {
		n = DefaultTopN
	}
	rows := make([]core.RankedCount, 0, len(counts))
	for id, c := range counts {
		rows = append(rows, core.RankedCount{ID: id, Label: label(id), Count: c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		if rows[i].Label != rows[j].Label {
			return lessFold(rows[i].Label, rows[j].Label)
		}
		return rows[i].ID < rows[j].ID
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// lessFold orders labels case-insensitively, the same way the library lists
// books and users, with the exact spelling breaking ties.
func lessFold(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}

// Years lists the distinct loan years in ascending order, or the current year
// when there are no loans at all.
func (a *Aggregator) Years() []int {
	years := cached(a, "years", func() []int {
		seen := make(map[int]struct{})
		for _, l := range a.src.Loans() {
			seen[l.LoanDate.Year()] = struct{}{}
		}
		if len(seen) == 0 {
			return []int{a.now().Year()}
		}
		out := make([]int, 0, len(seen))
		for y := range seen {
			out = append(out, y)
		}
		sort.Ints(out)
		return out
	})
	return append([]int(nil), years...)
}

// Categories lists the distinct book categories, sorted. Labels differing only
// in case are reported once, with the first spelling seen.
func (a *Aggregator) Categories() []string {
	cats := cached(a, "categories", func() []string {
		seen := make(map[string]struct{})
		var out []string
		for _, b := range a.src.Books() {
			c := core.NormalizeCategory(b.Category)
			key := strings.ToLower(c)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, c)
		}
		sort.Slice(out, func(i, j int) bool {
			return strings.ToLower(out[i]) < strings.ToLower(out[j])
		})
		return out
	})
	return append([]string(nil), cats...)
}

// YearReport bundles the rankings and the full-category matrix for year.
func (a *Aggregator) YearReport(year, n int) core.YearReport {
	cats := a.Categories()
	return core.YearReport{
		Year:       year,
		TopBooks:   a.TopBooks(year, n),
		TopUsers:   a.TopUsers(year, n),
		Categories: cats,
		Matrix:     a.MonthCategoryMatrix(year, cats),
	}
}
