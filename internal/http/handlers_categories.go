package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/storage"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	typeFilter, err := queryType(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	categories, err := s.categories.FindByUser(r.Context(), user.ID, typeFilter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

type categoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	candidate := core.Category{
		Name:   strings.TrimSpace(req.Name),
		Type:   core.CategoryType(req.Type),
		UserID: user.ID,
		Color:  strings.TrimSpace(req.Color),
	}
	if err := candidate.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}

	category, err := s.categories.Create(r.Context(), user.ID, candidate.Name, candidate.Type, candidate.Color)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := s.categories.FindByIDForUser(r.Context(), id, user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

type updateCategoryRequest struct {
	Name  *string `json:"name"`
	Type  *string `json:"type"`
	Color *string `json:"color"`
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var updates storage.CategoryUpdate
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			writeDomainError(w, r, core.ErrEmptyName)
			return
		}
		updates.Name = &name
	}
	if req.Type != nil {
		catType := core.CategoryType(*req.Type)
		if !catType.Valid() {
			writeDomainError(w, r, core.ErrInvalidType)
			return
		}
		updates.Type = &catType
	}
	if req.Color != nil {
		color := strings.TrimSpace(*req.Color)
		if !core.IsHexColor(color) {
			writeDomainError(w, r, core.ErrInvalidColor)
			return
		}
		updates.Color = &color
	}

	if err := s.categories.UpdateForUser(r.Context(), id, user.ID, updates); err != nil {
		writeDomainError(w, r, err)
		return
	}
	category, err := s.categories.FindByIDForUser(r.Context(), id, user.ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// handleDeleteCategory removes a category. Transactions that referenced
// it survive as uncategorized.
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.categories.DeleteForUser(r.Context(), id, user.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
