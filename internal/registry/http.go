package registry

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/authz"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/httpx"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/naming"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

// RegisterRoutes wires the collection and document handlers to the provided
// router group. The collection listing is public and creation is
// elevated-only; document access is open to any authenticated user, scoped
// by ownership inside the service.
func RegisterRoutes(router chi.Router, svc *Registry) {
	router.Route("/collections", func(r chi.Router) {
		r.Get("/", listCollectionsHandler(svc))
		r.With(httpx.RequireElevated).Post("/", createCollectionHandler(svc))
		r.Route("/{collection}/documents", func(r chi.Router) {
			r.Use(httpx.RequireAuthenticated)
			r.Get("/", listDocumentsHandler(svc))
			r.Post("/", insertDocumentHandler(svc))
			r.Put("/{id}", updateDocumentHandler(svc))
			r.Delete("/{id}", deleteDocumentHandler(svc))
		})
	})
}

type createCollectionRequest struct {
	SystemName string      `json:"systemName"`
	Validator  schema.Spec `json:"validator"`
}

type documentRequest struct {
	Fields map[string]any `json:"fields"`
}

func listCollectionsHandler(svc *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := svc.ListSystemNameCollections(r.Context())
		if err != nil {
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		httpx.Data(w, http.StatusOK, names)
	}
}

func createCollectionHandler(svc *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createCollectionRequest
		if err := decodeJSON(r, &payload); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		name := strings.TrimSpace(payload.SystemName)
		err := svc.CreateSystemNameCollection(r.Context(), name, payload.Validator)
		switch {
		case err == nil:
			httpx.Data(w, http.StatusCreated, map[string]any{"systemName": name})
		case naming.IsInvalidName(err):
			httpx.Error(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrCollectionExists):
			httpx.Error(w, http.StatusConflict, "collection already exists")
		case IsValidationFailed(err):
			httpx.Error(w, http.StatusBadRequest, err.Error())
		default:
			httpx.Error(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func listDocumentsHandler(svc *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := chi.URLParam(r, "collection")
		docs, err := svc.ListDocuments(r.Context(), collection, httpx.UserFrom(r.Context()))
		if err != nil {
			writeDocumentError(w, err)
			return
		}

		httpx.Data(w, http.StatusOK, docs)
	}
}

func insertDocumentHandler(svc *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := chi.URLParam(r, "collection")
		var payload documentRequest
		if err := decodeJSON(r, &payload); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		owner := authz.OwnerID(httpx.UserFrom(r.Context()))
		id, err := svc.InsertDocument(r.Context(), collection, payload.Fields, owner)
		if err != nil {
			writeDocumentError(w, err)
			return
		}

		httpx.Data(w, http.StatusCreated, map[string]any{"id": id})
	}
}

func updateDocumentHandler(svc *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := chi.URLParam(r, "collection")
		id := chi.URLParam(r, "id")
		var payload documentRequest
		if err := decodeJSON(r, &payload); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		err := svc.UpdateDocument(r.Context(), collection, id, payload.Fields, httpx.UserFrom(r.Context()))
		if err != nil {
			writeDocumentError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func deleteDocumentHandler(svc *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := chi.URLParam(r, "collection")
		id := chi.URLParam(r, "id")
		if err := svc.DeleteDocument(r.Context(), collection, id, httpx.UserFrom(r.Context())); err != nil {
			writeDocumentError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeDocumentError(w http.ResponseWriter, err error) {
	switch {
	case IsNotFound(err):
		httpx.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, authz.ErrPermissionDenied):
		httpx.Error(w, http.StatusForbidden, "permission denied")
	case IsValidationFailed(err):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	default:
		httpx.Error(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return err
	}
	return nil
}
