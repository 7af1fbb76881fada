package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/authz"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/groups"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/httpx"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/registry"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.EnsureCatalogIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes failed: %v", err)
	}
	logger := zap.NewNop().Sugar()
	publisher := events.NewPublisher(nil)
	idx := groups.New(mem, publisher, logger)
	reg := registry.New(mem, logger)
	svc := New(mem, reg, idx, nil, publisher, logger)

	router := chi.NewRouter()
	router.Use(httpx.WithUser)
	RegisterRoutes(router, svc)
	return router
}

func doRequest(router chi.Router, method, path, body, userID, role string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(httpx.HeaderUserID, userID)
		req.Header.Set(httpx.HeaderUserRole, role)
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestCreateFormEndpoint(t *testing.T) {
	router := newTestRouter(t)
	body := `{"name":"Sample","systemName":"sample","group":"g1"}`

	resp := doRequest(router, http.MethodPost, "/forms/", body, "admin1", authz.RoleAdmin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = doRequest(router, http.MethodPost, "/forms/", body, "admin1", authz.RoleAdmin)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on duplicate, got %d", resp.Code)
	}
}

func TestCreateFormEndpointAuthorization(t *testing.T) {
	router := newTestRouter(t)
	body := `{"name":"Sample","systemName":"sample"}`

	resp := doRequest(router, http.MethodPost, "/forms/", body, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous, got %d", resp.Code)
	}

	resp = doRequest(router, http.MethodPost, "/forms/", body, "u1", authz.RoleMember)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", resp.Code)
	}
}

func TestCreateFormEndpointBadSystemName(t *testing.T) {
	router := newTestRouter(t)
	body := `{"name":"Sample","systemName":"Bad-Name"}`

	resp := doRequest(router, http.MethodPost, "/forms/", body, "admin1", authz.RoleAdmin)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestUpdateFormEndpointImmutableSystemName(t *testing.T) {
	router := newTestRouter(t)

	resp := doRequest(router, http.MethodPost, "/forms/",
		`{"name":"Sample","systemName":"sample"}`, "admin1", authz.RoleAdmin)
	if resp.Code != http.StatusCreated {
		t.Fatalf("setup create failed: %d", resp.Code)
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := decodeBody(resp, &created); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	resp = doRequest(router, http.MethodPut, "/forms/"+created.Data.ID+"/",
		`{"systemName":"renamed"}`, "admin1", authz.RoleAdmin)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func decodeBody(resp *httptest.ResponseRecorder, v any) error {
	return json.NewDecoder(resp.Body).Decode(v)
}

func TestGetFormEndpointNotFound(t *testing.T) {
	router := newTestRouter(t)

	resp := doRequest(router, http.MethodGet, "/forms/ghost/", "", "u1", authz.RoleMember)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestListFormsEndpoint(t *testing.T) {
	router := newTestRouter(t)

	doRequest(router, http.MethodPost, "/forms/",
		`{"name":"Sample","systemName":"sample"}`, "admin1", authz.RoleAdmin)

	resp := doRequest(router, http.MethodGet, "/forms/", "", "u1", authz.RoleMember)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"systemName":"sample"`) {
		t.Fatalf("expected listing to include the form: %s", resp.Body.String())
	}
}
