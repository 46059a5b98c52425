package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
)

const maxEntityBody = 1 << 20

// EntityService defines the interface for entity CRUD
type EntityService interface {
	List(ctx context.Context, table string) ([]models.EntityRow, error)
	Get(ctx context.Context, table, id string) (*models.EntityRow, error)
	Create(ctx context.Context, table string, data json.RawMessage) (*models.EntityRow, error)
	Update(ctx context.Context, table, id string, data json.RawMessage) (*models.EntityRow, error)
	Delete(ctx context.Context, table, id string) error
}

// EntityHandler serves CRUD for the tracked content tables
type EntityHandler struct {
	service EntityService
}

func NewEntityHandler(service EntityService) *EntityHandler {
	return &EntityHandler{service: service}
}

// ListEntitiesResponse represents the rows of one table
type ListEntitiesResponse struct {
	Items []models.EntityRow `json:"items"`
	Total int                `json:"total"`
}

// decodePayload reads the body into the typed payload of table, validates
// it and returns its canonical JSON
func decodePayload(w http.ResponseWriter, r *http.Request, table string) (json.RawMessage, error) {
	t, err := models.ParseTableName(table)
	if err != nil {
		return nil, err
	}
	payload := models.NewPayload(t)

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntityBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("%w: invalid request body: %v", models.ErrBadRequest, err)
	}
	if err := ValidateRequest(payload); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrBadRequest, err)
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSpace(buf.Bytes())), nil
}

func writeEntityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrUnknownTable):
		pkghttp.WriteNotFound(w, "Unknown table")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Record not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, err.Error())
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Record already exists")
	default:
		pkghttp.WriteInternalError(w, msgInternalError)
	}
}

// List handles GET /entities/{table}
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		writeEntityError(w, err)
		return
	}
	if rows == nil {
		rows = []models.EntityRow{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListEntitiesResponse{Items: rows, Total: len(rows)})
}

// Get handles GET /entities/{table}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	row, err := h.service.Get(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		writeEntityError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, row)
}

// Create handles POST /entities/{table}
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	data, err := decodePayload(w, r, table)
	if err != nil {
		writeEntityError(w, err)
		return
	}

	row, err := h.service.Create(r.Context(), table, data)
	if err != nil {
		writeEntityError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, row)
}

// Update handles PUT /entities/{table}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	data, err := decodePayload(w, r, table)
	if err != nil {
		writeEntityError(w, err)
		return
	}

	row, err := h.service.Update(r.Context(), table, chi.URLParam(r, "id"), data)
	if err != nil {
		writeEntityError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, row)
}

// Delete handles DELETE /entities/{table}/{id}
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id")); err != nil {
		writeEntityError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
