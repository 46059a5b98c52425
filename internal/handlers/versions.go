package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/oldrefery/summit-backend-sub001/internal/services"
	pkghttp "github.com/oldrefery/summit-backend-sub001/pkg/http"
)

// VersioningService defines the interface for change tracking and publishing
type VersioningService interface {
	GetChanges(ctx context.Context) models.ChangeCounters
	ListVersions(ctx context.Context) ([]services.VersionListItem, error)
	Publish(ctx context.Context, actor string) (*models.Version, error)
	Rollback(ctx context.Context, label, actor string) error
	DeleteVersion(ctx context.Context, id, actor string) error
}

// VersionHandler serves the publish workflow
type VersionHandler struct {
	service VersioningService
}

func NewVersionHandler(service VersioningService) *VersionHandler {
	return &VersionHandler{service: service}
}

// ListVersionsResponse represents the published versions, newest first
type ListVersionsResponse struct {
	Versions []services.VersionListItem `json:"versions"`
}

func writeVersionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Version not found")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Version is required")
	case errors.Is(err, models.ErrPublishInFlight):
		pkghttp.WriteConflict(w, "Another publish or rollback is in progress")
	case errors.Is(err, models.ErrArtifactStorage):
		pkghttp.WriteBadGateway(w, "Artifact storage is unavailable")
	case errors.Is(err, models.ErrArtifactCorrupt):
		pkghttp.WriteError(w, http.StatusUnprocessableEntity, "artifact_corrupt", "Version snapshot is unreadable")
	default:
		pkghttp.WriteInternalError(w, msgInternalError)
	}
}

// Changes handles GET /changes. The map always lists every tracked table.
func (h *VersionHandler) Changes(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, h.service.GetChanges(r.Context()))
}

// List handles GET /versions
func (h *VersionHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListVersions(r.Context())
	if err != nil {
		writeVersionError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, ListVersionsResponse{Versions: items})
}

// Publish handles POST /versions/publish
func (h *VersionHandler) Publish(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.Publish(r.Context(), actorFromRequest(r))
	if err != nil {
		writeVersionError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, v)
}

// Rollback handles POST /versions/{version}/rollback
func (h *VersionHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Rollback(r.Context(), chi.URLParam(r, "version"), actorFromRequest(r)); err != nil {
		writeVersionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /versions/{id}
func (h *VersionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteVersion(r.Context(), chi.URLParam(r, "id"), actorFromRequest(r)); err != nil {
		writeVersionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
