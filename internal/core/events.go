package core

import "time"

// LoanEventType names what happened to a loan.
type LoanEventType string

const (
	LoanCreated  LoanEventType = "loan.created"
	LoanReturned LoanEventType = "loan.returned"
)

// LoanEvent is emitted after a loan is opened or closed.
type LoanEvent struct {
	Type       LoanEventType `json:"type"`
	LoanID     string        `json:"loanId"`
	BookID     string        `json:"bookId"`
	UserID     string        `json:"userId"`
	Year       int           `json:"year"`
	OccurredAt time.Time     `json:"occurredAt"`
}

// NewLoanEvent describes loan at instant at. Year is the loan year, which
// is what reports are grouped by.
func NewLoanEvent(kind LoanEventType, loan Loan, at time.Time) LoanEvent {
	return LoanEvent{
		Type:       kind,
		LoanID:     loan.ID,
		BookID:     loan.BookID,
		UserID:     loan.UserID,
		Year:       loan.LoanDate.Year(),
		OccurredAt: at,
	}
}
