package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oldrefery/summit-backend-sub001/internal/handlers"
	"github.com/oldrefery/summit-backend-sub001/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityCreate_ValidPayload(t *testing.T) {
	var stored json.RawMessage
	svc := &handlers.MockEntityService{
		CreateFunc: func(ctx context.Context, table string, data json.RawMessage) (*models.EntityRow, error) {
			assert.Equal(t, "sections", table)
			stored = data
			return &models.EntityRow{ID: "11111111-1111-1111-1111-111111111111", Data: data}, nil
		},
	}

	req := handlers.NewTestRequest(t, "POST", "/api/entities/sections", map[string]any{
		"name": "Day 1",
		"date": "2026-09-14",
	})
	req = handlers.WithURLParams(req, map[string]string{"table": "sections"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(svc).Create(w, req)

	var row models.EntityRow
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &row)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", row.ID)
	assert.JSONEq(t, `{"name":"Day 1","date":"2026-09-14"}`, string(stored))
}

func TestEntityCreate_ValidationFailure(t *testing.T) {
	tests := []struct {
		name  string
		table string
		body  string
	}{
		{"missing required", "people", `{"role":"speaker"}`},
		{"bad enum", "people", `{"name":"Ada","role":"keynote"}`},
		{"bad date", "sections", `{"name":"Day 1","date":"14/09/2026"}`},
		{"unknown field", "locations", `{"name":"Hall A","floor":2}`},
		{"invalid json", "events", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &handlers.MockEntityService{
				CreateFunc: func(ctx context.Context, table string, data json.RawMessage) (*models.EntityRow, error) {
					t.Fatal("service must not be called")
					return nil, nil
				},
			}

			req := httptest.NewRequest("POST", "/api/entities/"+tt.table, strings.NewReader(tt.body))
			req = handlers.WithURLParams(req, map[string]string{"table": tt.table})
			w := httptest.NewRecorder()
			handlers.NewEntityHandler(svc).Create(w, req)

			handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
		})
	}
}

func TestEntityCreate_UnknownTable(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/entities/admins", strings.NewReader(`{}`))
	req = handlers.WithURLParams(req, map[string]string{"table": "admins"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(&handlers.MockEntityService{}).Create(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestEntityList(t *testing.T) {
	svc := &handlers.MockEntityService{
		ListFunc: func(ctx context.Context, table string) ([]models.EntityRow, error) {
			return []models.EntityRow{
				{ID: "a", Data: json.RawMessage(`{"name":"Hall A"}`)},
				{ID: "b", Data: json.RawMessage(`{"name":"Hall B"}`)},
			}, nil
		},
	}

	req := handlers.WithURLParams(httptest.NewRequest("GET", "/api/entities/locations", nil), map[string]string{"table": "locations"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(svc).List(w, req)

	var resp handlers.ListEntitiesResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "a", resp.Items[0].ID)
}

func TestEntityList_EmptyIsArray(t *testing.T) {
	req := handlers.WithURLParams(httptest.NewRequest("GET", "/api/entities/events", nil), map[string]string{"table": "events"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(&handlers.MockEntityService{}).List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items":[],"total":0}`, w.Body.String())
}

func TestEntityGet_NotFound(t *testing.T) {
	req := handlers.WithURLParams(httptest.NewRequest("GET", "/api/entities/events/x", nil),
		map[string]string{"table": "events", "id": "x"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(&handlers.MockEntityService{}).Get(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestEntityUpdate(t *testing.T) {
	svc := &handlers.MockEntityService{
		UpdateFunc: func(ctx context.Context, table, id string, data json.RawMessage) (*models.EntityRow, error) {
			assert.Equal(t, "resources", table)
			assert.Equal(t, "r1", id)
			return &models.EntityRow{ID: id, Data: data}, nil
		},
	}

	req := handlers.NewTestRequest(t, "PUT", "/api/entities/resources/r1", map[string]any{
		"name": "Venue map",
		"link": "https://summit.example/map.pdf",
	})
	req = handlers.WithURLParams(req, map[string]string{"table": "resources", "id": "r1"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(svc).Update(w, req)

	var row models.EntityRow
	handlers.AssertJSONResponse(t, w, http.StatusOK, &row)
	assert.JSONEq(t, `{"name":"Venue map","link":"https://summit.example/map.pdf","is_route":false}`, string(row.Data))
}

func TestEntityDelete(t *testing.T) {
	deleted := ""
	svc := &handlers.MockEntityService{
		DeleteFunc: func(ctx context.Context, table, id string) error {
			deleted = table + "/" + id
			return nil
		},
	}

	req := handlers.WithURLParams(httptest.NewRequest("DELETE", "/api/entities/markdown_pages/p1", nil),
		map[string]string{"table": "markdown_pages", "id": "p1"})
	w := httptest.NewRecorder()
	handlers.NewEntityHandler(svc).Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "markdown_pages/p1", deleted)
}
