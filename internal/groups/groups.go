package groups

import (
	"context"
	"errors"
	"sort"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/registry"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

// ErrNameTaken reports a rename targeting a group name that already exists.
var ErrNameTaken = errors.New("group name already taken")

// IsNotFound reports whether err means the group, or the membership inside
// it, does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// FormRef is the summary of a form as seen through its group: enough to
// render a listing without loading the full definition.
type FormRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SystemName string `json:"systemName"`
}

// Publisher emits lifecycle events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Index maintains the group-to-forms mapping. Each group is a single
// document holding the member form ids; membership is also denormalized onto
// the form documents as their group field, and the two can drift apart when
// a multi-step write fails partway. Reads tolerate the drift, the reconciler
// repairs it.
type Index struct {
	gateway store.Gateway
	events  Publisher
	logger  *zap.SugaredLogger
}

// New builds a group Index on top of the gateway.
func New(gateway store.Gateway, publisher Publisher, logger *zap.SugaredLogger) *Index {
	return &Index{gateway: gateway, events: publisher, logger: logger}
}

// AddMembership records formID as a member of group, creating the group
// document on first use. Adding an id twice is a no-op.
func (x *Index) AddMembership(ctx context.Context, group, formID string) error {
	matched, err := x.gateway.UpdateOne(ctx, store.FormGroupsCollection,
		store.Filter{"name": group},
		store.Update{AddToSet: map[string]any{"ids": formID}})
	if err != nil {
		return err
	}
	if matched > 0 {
		return nil
	}
	_, err = x.gateway.InsertOne(ctx, store.FormGroupsCollection, store.Document{
		"name": group,
		"ids":  []string{formID},
	})
	if errors.Is(err, store.ErrDuplicateKey) {
		// Lost the race against a concurrent first member. The group
		// document exists now, so the add-to-set path must succeed.
		_, err = x.gateway.UpdateOne(ctx, store.FormGroupsCollection,
			store.Filter{"name": group},
			store.Update{AddToSet: map[string]any{"ids": formID}})
	}
	return err
}

// ListGroupNames returns the names of all groups, sorted.
func (x *Index) ListGroupNames(ctx context.Context) ([]string, error) {
	docs, err := x.gateway.Find(ctx, store.FormGroupsCollection, store.Filter{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		if name, ok := doc["name"].(string); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ListFormsInGroup resolves the group's member ids against the catalog. Ids
// whose form no longer exists are skipped rather than failing the listing;
// an unknown group is an error.
func (x *Index) ListFormsInGroup(ctx context.Context, group string) ([]FormRef, error) {
	doc, err := x.gateway.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": group})
	if err != nil {
		return nil, err
	}
	refs := make([]FormRef, 0, len(memberIDs(doc)))
	for _, id := range memberIDs(doc) {
		form, err := x.gateway.FindOne(ctx, store.FormsCollection, store.Filter{"_id": id})
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		refs = append(refs, FormRef{
			ID:         form.ID(),
			Name:       stringField(form, "name"),
			SystemName: stringField(form, "system_name"),
		})
	}
	return refs, nil
}

// RemoveMembership detaches formID from group: the id is pulled from the
// group document, the form's denormalized group field is cleared, and a
// group left with no members is deleted. Removing an id that is not a
// member reports not found.
func (x *Index) RemoveMembership(ctx context.Context, group, formID string) error {
	doc, err := x.gateway.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": group})
	if err != nil {
		return err
	}
	if !containsID(memberIDs(doc), formID) {
		return store.ErrNotFound
	}

	if err := x.detach(ctx, group, formID); err != nil {
		return err
	}
	// Clear the form's own group field. The form may already be gone; a
	// stale id in the group is not an error here.
	if _, err := x.gateway.UpdateOne(ctx, store.FormsCollection,
		store.Filter{"_id": formID},
		store.Update{Set: map[string]any{"group": ""}}); err != nil {
		return err
	}

	x.publish(ctx, events.Event{
		Type:   events.MembershipRemoved,
		FormID: formID,
		Group:  group,
	})
	x.logger.Infow("membership removed", "group", group, "form_id", formID)
	return nil
}

// MoveMembership reassigns formID from one group document to another without
// touching the form document itself; callers use it after rewriting the
// form's own group field. Either side may be empty.
func (x *Index) MoveMembership(ctx context.Context, oldGroup, newGroup, formID string) error {
	if oldGroup == newGroup {
		return nil
	}
	if oldGroup != "" {
		err := x.detach(ctx, oldGroup, formID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	if newGroup == "" {
		return nil
	}
	return x.AddMembership(ctx, newGroup, formID)
}

// detach pulls formID out of the group document and deletes the group once
// its last member is gone.
func (x *Index) detach(ctx context.Context, group, formID string) error {
	if _, err := x.gateway.UpdateOne(ctx, store.FormGroupsCollection,
		store.Filter{"name": group},
		store.Update{Pull: map[string]any{"ids": formID}}); err != nil {
		return err
	}

	remaining, err := x.gateway.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": group})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(memberIDs(remaining)) == 0 {
		if _, err := x.gateway.DeleteOne(ctx, store.FormGroupsCollection, store.Filter{"name": group}); err != nil {
			return err
		}
	}
	return nil
}

// RenameGroup changes a group's name and cascades the new name onto every
// form carrying the old one.
func (x *Index) RenameGroup(ctx context.Context, oldName, newName string) error {
	if newName == "" {
		return &registry.ValidationError{Reason: "group name must not be empty"}
	}
	if _, err := x.gateway.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": oldName}); err != nil {
		return err
	}
	_, err := x.gateway.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": newName})
	if err == nil {
		return ErrNameTaken
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if _, err := x.gateway.UpdateOne(ctx, store.FormGroupsCollection,
		store.Filter{"name": oldName},
		store.Update{Set: map[string]any{"name": newName}}); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return ErrNameTaken
		}
		return err
	}
	if _, err := x.gateway.UpdateMany(ctx, store.FormsCollection,
		store.Filter{"group": oldName},
		store.Update{Set: map[string]any{"group": newName}}); err != nil {
		return err
	}

	x.publish(ctx, events.Event{
		Type:     events.GroupRenamed,
		Group:    oldName,
		NewGroup: newName,
	})
	x.logger.Infow("group renamed", "from", oldName, "to", newName)
	return nil
}

// publish forwards the event and logs a drop instead of swallowing it:
// consumers fall back to the periodic sweep when an event is lost.
func (x *Index) publish(ctx context.Context, event events.Event) {
	if err := x.events.Publish(ctx, event); err != nil {
		x.logger.Warnw("lifecycle event not published", "type", event.Type, "error", err)
	}
}

func memberIDs(doc store.Document) []string {
	switch raw := doc["ids"].(type) {
	case []string:
		return raw
	case []any:
		ids := make([]string, 0, len(raw))
		for _, v := range raw {
			if s, ok := v.(string); ok {
				ids = append(ids, s)
			}
		}
		return ids
	default:
		return nil
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func stringField(doc store.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}
