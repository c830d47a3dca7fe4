package http

import (
	"net/http"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
)

type bookRequest struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Code     string `json:"code"`
	Category string `json:"category"`
	Copies   int    `json:"copies"`
}

func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.Books())
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, ok := s.library.Book(r.PathValue("id"))
	if !ok {
		writeError(w, r, core.Violation("get_book", core.ErrBookNotFound))
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	book, err := core.NewBook(
		sanitizeInput(req.Title),
		sanitizeInput(req.Author),
		sanitizeInput(req.Code),
		sanitizeInput(req.Category),
		req.Copies)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.library.AddBook(book); err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Book created",
		log.FieldBookID, book.ID, log.FieldCopies, book.Copies)
	writeJSON(w, http.StatusCreated, book)
}

// handleUpdateBook replaces every editable field of the book.
func (s *Server) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	book, ok := s.library.Book(r.PathValue("id"))
	if !ok {
		writeError(w, r, core.Violation(log.OpUpdate, core.ErrBookNotFound))
		return
	}

	var req bookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := book.SetTitle(sanitizeInput(req.Title)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := book.SetCode(sanitizeInput(req.Code)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := book.SetCopies(req.Copies); err != nil {
		writeError(w, r, err)
		return
	}
	book.SetCategory(sanitizeInput(req.Category))
	book.Author = sanitizeInput(req.Author)

	if err := s.library.UpdateBook(&book); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.library.DeleteBook(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
