package http

import (
	"net/http"

	"biblioteca/internal/core"
	"biblioteca/internal/log"
)

// userRequest leaves IsActive nil when the caller omits it: new users are
// then active and updates keep the current flag.
type userRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive *bool  `json:"isActive"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.library.Users())
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.library.User(r.PathValue("id"))
	if !ok {
		writeError(w, r, core.Violation("get_user", core.ErrUserNotFound))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := core.NewUser(sanitizeInput(req.Name), sanitizeInput(req.Email))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if err := s.library.AddUser(user); err != nil {
		writeError(w, r, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "User created", log.FieldUserID, user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	user, ok := s.library.User(r.PathValue("id"))
	if !ok {
		writeError(w, r, core.Violation(log.OpUpdate, core.ErrUserNotFound))
		return
	}

	var req userRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := user.SetName(sanitizeInput(req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	if err := user.SetEmail(sanitizeInput(req.Email)); err != nil {
		writeError(w, r, err)
		return
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.library.UpdateUser(&user); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.library.DeleteUser(r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
