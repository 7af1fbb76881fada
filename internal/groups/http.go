package groups

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/httpx"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/registry"
)

// RegisterRoutes wires the group handlers to the provided router group. The
// name listing is public; resolving a group's members and every mutation
// require the elevated role.
func RegisterRoutes(router chi.Router, idx *Index) {
	router.Route("/groups", func(r chi.Router) {
		r.Get("/", listGroupsHandler(idx))
		r.Route("/{name}", func(r chi.Router) {
			r.With(httpx.RequireElevated).Get("/forms", listGroupFormsHandler(idx))
			r.With(httpx.RequireElevated).Put("/", renameGroupHandler(idx))
			r.With(httpx.RequireElevated).Delete("/forms/{id}", removeMembershipHandler(idx))
		})
	})
}

type renameGroupRequest struct {
	Name string `json:"name"`
}

func listGroupsHandler(idx *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := idx.ListGroupNames(r.Context())
		if err != nil {
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		httpx.Data(w, http.StatusOK, names)
	}
}

func listGroupFormsHandler(idx *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		refs, err := idx.ListFormsInGroup(r.Context(), name)
		if err != nil {
			if IsNotFound(err) {
				httpx.Error(w, http.StatusNotFound, "group not found")
				return
			}
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		httpx.Data(w, http.StatusOK, refs)
	}
}

func renameGroupHandler(idx *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var payload renameGroupRequest
		if err := decodeJSON(r, &payload); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		err := idx.RenameGroup(r.Context(), name, strings.TrimSpace(payload.Name))
		switch {
		case err == nil:
			httpx.Data(w, http.StatusOK, map[string]any{"name": strings.TrimSpace(payload.Name)})
		case IsNotFound(err):
			httpx.Error(w, http.StatusNotFound, "group not found")
		case errors.Is(err, ErrNameTaken):
			httpx.Error(w, http.StatusBadRequest, "group name already taken")
		case registry.IsValidationFailed(err):
			httpx.Error(w, http.StatusBadRequest, err.Error())
		default:
			httpx.Error(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func removeMembershipHandler(idx *Index) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		id := chi.URLParam(r, "id")
		if err := idx.RemoveMembership(r.Context(), name, id); err != nil {
			if IsNotFound(err) {
				httpx.Error(w, http.StatusNotFound, "membership not found")
				return
			}
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
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
