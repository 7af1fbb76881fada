package catalog

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

// Form is a user-defined schema definition plus metadata: one row in the
// catalog. Its system name identifies the companion collection holding
// submitted documents.
type Form struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	SystemName string         `json:"systemName"`
	Group      string         `json:"group"`
	Validator  schema.Spec    `json:"validator"`
	MetaData   map[string]any `json:"metaData"`
	Color      string         `json:"color"`
	Icon       string         `json:"icon,omitempty"`
	OwnerID    string         `json:"ownerId"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// ToDTO converts the form into a response-friendly structure.
func (f Form) ToDTO() map[string]any {
	meta := map[string]any{}
	if f.MetaData != nil {
		meta = f.MetaData
	}
	validator := schema.Spec{}
	if f.Validator != nil {
		validator = f.Validator
	}

	dto := map[string]any{
		"id":         f.ID,
		"name":       f.Name,
		"systemName": f.SystemName,
		"group":      f.Group,
		"validator":  validator,
		"metaData":   meta,
		"color":      f.Color,
		"createdAt":  f.CreatedAt,
		"updatedAt":  f.UpdatedAt,
	}
	if f.Icon != "" {
		dto["icon"] = f.Icon
	}
	return dto
}

func (f Form) toDocument() store.Document {
	return store.Document{
		"name":        f.Name,
		"system_name": f.SystemName,
		"group":       f.Group,
		"validator":   f.Validator,
		"meta_data":   f.MetaData,
		"color":       f.Color,
		"icon":        f.Icon,
		"owner_id":    f.OwnerID,
		"created_at":  f.CreatedAt,
		"updated_at":  f.UpdatedAt,
	}
}

func formFromDocument(doc store.Document) Form {
	form := Form{
		ID:         doc.ID(),
		Name:       asString(doc["name"]),
		SystemName: asString(doc["system_name"]),
		Group:      asString(doc["group"]),
		Color:      asString(doc["color"]),
		Icon:       asString(doc["icon"]),
		OwnerID:    asString(doc["owner_id"]),
		Validator:  decodeSpec(doc["validator"]),
	}
	if meta, ok := doc["meta_data"].(map[string]any); ok {
		form.MetaData = meta
	}
	form.CreatedAt = asTime(doc["created_at"])
	form.UpdatedAt = asTime(doc["updated_at"])
	return form
}

// asTime accepts both the typed value the in-memory gateway stores and the
// bson.DateTime the database codec hands back.
func asTime(value any) time.Time {
	switch v := value.(type) {
	case time.Time:
		return v
	case bson.DateTime:
		return v.Time().UTC()
	}
	return time.Time{}
}

// decodeSpec recovers a validator spec from whatever shape the store handed
// back: the typed value on the in-memory gateway, a generic map after a
// round trip through the database.
func decodeSpec(value any) schema.Spec {
	switch v := value.(type) {
	case nil:
		return nil
	case schema.Spec:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var spec schema.Spec
		if err := json.Unmarshal(raw, &spec); err != nil {
			return nil
		}
		return spec
	}
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}
