package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/storage"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userFromContext(r.Context()))
}

type updateProfileRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var updates storage.UserUpdate
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if email != "" && !strings.Contains(email, "@") {
			writeError(w, http.StatusBadRequest, "invalid email address")
			return
		}
		updates.Email = &email
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
			return
		}
		hash, err := s.auth.HashPassword(*req.Password)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		updates.PasswordHash = &hash
	}

	if err := s.users.Update(r.Context(), user.ID, updates); err != nil {
		writeDomainError(w, r, err)
		return
	}
	updated, err := s.users.FindByID(r.Context(), user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
