package catalog

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/authz"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/httpx"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/icons"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/naming"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/registry"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

// RegisterRoutes wires the form catalog handlers to the provided router
// group. Reads require a user; writes require an elevated one.
func RegisterRoutes(router chi.Router, svc *Catalog) {
	router.Route("/forms", func(r chi.Router) {
		r.With(httpx.RequireAuthenticated).Get("/", listFormsHandler(svc))
		r.With(httpx.RequireElevated).Post("/", createFormHandler(svc))
		r.Route("/{id}", func(r chi.Router) {
			r.With(httpx.RequireAuthenticated).Get("/", getFormHandler(svc))
			r.With(httpx.RequireElevated).Put("/", updateFormHandler(svc))
			r.With(httpx.RequireElevated).Delete("/", deleteFormHandler(svc))
		})
	})
}

type iconPayload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

type createFormRequest struct {
	Name       string         `json:"name"`
	SystemName string         `json:"systemName"`
	Group      string         `json:"group"`
	Validator  schema.Spec    `json:"validator"`
	MetaData   map[string]any `json:"metaData"`
	Color      string         `json:"color"`
	Icon       *iconPayload   `json:"icon"`
}

type updateFormRequest struct {
	Name       *string        `json:"name"`
	SystemName *string        `json:"systemName"`
	Group      *string        `json:"group"`
	MetaData   map[string]any `json:"metaData"`
	Color      *string        `json:"color"`
}

func listFormsHandler(svc *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forms, err := svc.ListForms(r.Context())
		if err != nil {
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		items := make([]map[string]any, 0, len(forms))
		for _, form := range forms {
			items = append(items, form.ToDTO())
		}

		httpx.Data(w, http.StatusOK, items)
	}
}

func createFormHandler(svc *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createFormRequest
		if err := decodeJSON(r, &payload); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		input := CreateFormInput{
			Name:       strings.TrimSpace(payload.Name),
			SystemName: strings.TrimSpace(payload.SystemName),
			Group:      strings.TrimSpace(payload.Group),
			Validator:  payload.Validator,
			MetaData:   payload.MetaData,
			Color:      strings.TrimSpace(payload.Color),
		}
		if payload.Icon != nil {
			input.Icon = &icons.Blob{Filename: payload.Icon.Filename, Data: payload.Icon.Data}
		}

		owner := authz.OwnerID(httpx.UserFrom(r.Context()))
		form, err := svc.CreateForm(r.Context(), input, owner)
		if err != nil {
			writeCatalogError(w, err)
			return
		}

		httpx.Data(w, http.StatusCreated, form.ToDTO())
	}
}

func getFormHandler(svc *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		form, err := svc.GetForm(r.Context(), id)
		if err != nil {
			if IsNotFound(err) {
				httpx.Error(w, http.StatusNotFound, "form not found")
				return
			}
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		httpx.Data(w, http.StatusOK, form.ToDTO())
	}
}

func updateFormHandler(svc *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var payload updateFormRequest
		if err := decodeJSON(r, &payload); err != nil {
			httpx.Error(w, http.StatusBadRequest, err.Error())
			return
		}

		updates := make(map[string]any)
		if payload.SystemName != nil {
			updates["system_name"] = *payload.SystemName
		}
		if payload.Name != nil {
			updates["name"] = strings.TrimSpace(*payload.Name)
		}
		if payload.Group != nil {
			updates["group"] = strings.TrimSpace(*payload.Group)
		}
		if payload.MetaData != nil {
			updates["meta_data"] = payload.MetaData
		}
		if payload.Color != nil {
			updates["color"] = strings.TrimSpace(*payload.Color)
		}
		if len(updates) == 0 {
			httpx.Error(w, http.StatusBadRequest, "no updates provided")
			return
		}

		form, err := svc.UpdateForm(r.Context(), id, updates)
		if err != nil {
			writeCatalogError(w, err)
			return
		}

		httpx.Data(w, http.StatusOK, form.ToDTO())
	}
}

func deleteFormHandler(svc *Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.DeleteForm(r.Context(), id); err != nil {
			if IsNotFound(err) {
				httpx.Error(w, http.StatusNotFound, "form not found")
				return
			}
			httpx.Error(w, http.StatusInternalServerError, err.Error())
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeCatalogError(w http.ResponseWriter, err error) {
	var iconErr *icons.ValidationError
	switch {
	case IsNotFound(err):
		httpx.Error(w, http.StatusNotFound, "form not found")
	case errors.Is(err, ErrNameTaken):
		httpx.Error(w, http.StatusBadRequest, "form name already taken")
	case errors.Is(err, ErrSystemNameTaken):
		httpx.Error(w, http.StatusBadRequest, "system name already taken")
	case errors.Is(err, store.ErrCollectionExists):
		httpx.Error(w, http.StatusConflict, "collection already exists")
	case errors.Is(err, ErrImmutableField):
		httpx.Error(w, http.StatusBadRequest, "system name is immutable")
	case naming.IsInvalidName(err):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case registry.IsValidationFailed(err):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &iconErr):
		httpx.Error(w, http.StatusBadRequest, iconErr.Error())
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
