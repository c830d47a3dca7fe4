package http

import (
	"net/http"
	"strings"

	"biblioteca/internal/core"
)

type loanRequest struct {
	UserID string `json:"userId"`
	BookID string `json:"bookId"`
}

// loanView adds display names to a loan. Either name is omitted when the
// book or user has since been deleted.
type loanView struct {
	core.Loan
	BookTitle string `json:"bookTitle,omitempty"`
	UserName  string `json:"userName,omitempty"`
}

func (s *Server) viewLoan(l core.Loan) loanView {
	v := loanView{Loan: l}
	if b, ok := s.library.Book(l.BookID); ok {
		v.BookTitle = b.Title
	}
	if u, ok := s.library.User(l.UserID); ok {
		v.UserName = u.Name
	}
	return v
}

func (s *Server) viewLoans(loans []core.Loan) []loanView {
	out := make([]loanView, 0, len(loans))
	for _, l := range loans {
		out = append(out, s.viewLoan(l))
	}
	return out
}

// handleListLoans lists every loan, newest first; ?active=true keeps only
// loans not yet returned.
func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	active, err := parseBool(r, "active")
	if err != nil {
		writeError(w, r, err)
		return
	}
	loans := s.library.Loans()
	if active {
		loans = s.library.ActiveLoans()
	}
	writeJSON(w, http.StatusOK, s.viewLoans(loans))
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	loan, ok := s.library.Loan(r.PathValue("id"))
	if !ok {
		writeError(w, r, core.Violation("get_loan", core.ErrLoanNotFound))
		return
	}
	writeJSON(w, http.StatusOK, s.viewLoan(loan))
}

func (s *Server) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	userID, bookID := strings.TrimSpace(req.UserID), strings.TrimSpace(req.BookID)
	if userID == "" || bookID == "" {
		writeError(w, r, badRequest("userId and bookId are required"))
		return
	}

	loan, err := s.library.CreateLoan(r.Context(), userID, bookID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.viewLoan(loan))
}

// handleReturnLoan is idempotent: returning a returned loan answers 200 with
// the first return date.
func (s *Server) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := s.library.ReturnLoan(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.viewLoan(loan))
}
