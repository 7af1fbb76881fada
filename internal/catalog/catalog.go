package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/icons"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/naming"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/observability"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/registry"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

var (
	// ErrNameTaken reports a display name already claimed by another form.
	ErrNameTaken = errors.New("form name already taken")
	// ErrSystemNameTaken reports a system name already claimed by another form.
	ErrSystemNameTaken = errors.New("system name already taken")
	// ErrImmutableField reports an update touching a field that cannot change
	// after creation.
	ErrImmutableField = errors.New("field is immutable")
)

// IsNotFound reports whether err means the requested form does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// Memberships is the slice of the group index the catalog needs: linking a
// freshly created form into its group and reassigning it when an update
// changes the group.
type Memberships interface {
	AddMembership(ctx context.Context, group, formID string) error
	MoveMembership(ctx context.Context, oldGroup, newGroup, formID string) error
}

// Publisher emits lifecycle events for downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// CreateFormInput carries everything needed to define a new form.
type CreateFormInput struct {
	Name       string
	SystemName string
	Group      string
	Validator  schema.Spec
	MetaData   map[string]any
	Color      string
	Icon       *icons.Blob
}

// Catalog manages form definitions. Creating a form is a multi-step
// sequence without a transaction around it: the companion collection, the
// catalog row and the group membership are written one after another, and a
// failure partway through is logged and published for the reconciler rather
// than rolled back.
type Catalog struct {
	gateway  store.Gateway
	registry *registry.Registry
	groups   Memberships
	icons    *icons.Store
	events   Publisher
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// New builds a Catalog. The icon store may be nil when icon handling is
// disabled.
func New(gateway store.Gateway, reg *registry.Registry, groups Memberships, iconStore *icons.Store, publisher Publisher, logger *zap.SugaredLogger) *Catalog {
	return &Catalog{
		gateway:  gateway,
		registry: reg,
		groups:   groups,
		icons:    iconStore,
		events:   publisher,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateForm validates the definition, creates the companion collection,
// inserts the catalog row and registers the group membership, in that order.
func (c *Catalog) CreateForm(ctx context.Context, input CreateFormInput, ownerID string) (*Form, error) {
	if err := naming.ValidateSystemName(input.SystemName); err != nil {
		return nil, err
	}
	if input.Name == "" {
		return nil, &registry.ValidationError{Reason: "name must not be empty"}
	}
	if input.Validator != nil {
		if err := input.Validator.Check(); err != nil {
			return nil, err
		}
	}
	if err := c.checkNameFree(ctx, input.Name, ""); err != nil {
		return nil, err
	}
	if err := c.checkSystemNameFree(ctx, input.SystemName); err != nil {
		return nil, err
	}

	iconRef := ""
	if input.Icon != nil {
		if c.icons == nil {
			return nil, &registry.ValidationError{Reason: "icon uploads are disabled"}
		}
		ref, err := c.icons.StoreBlob(*input.Icon)
		if err != nil {
			return nil, err
		}
		iconRef = ref
	}

	if err := c.registry.CreateSystemNameCollection(ctx, input.SystemName, input.Validator); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	form := Form{
		Name:       input.Name,
		SystemName: input.SystemName,
		Group:      input.Group,
		Validator:  input.Validator,
		MetaData:   input.MetaData,
		Color:      input.Color,
		Icon:       iconRef,
		OwnerID:    ownerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	id, err := c.gateway.InsertOne(ctx, store.FormsCollection, form.toDocument())
	if err != nil {
		// The companion collection already exists at this point. Surface
		// the precise conflict and leave the repair to the reconciler.
		c.reportPartialFailure(ctx, form, "catalog insert failed", err)
		if errors.Is(err, store.ErrDuplicateKey) {
			if nameErr := c.checkNameFree(ctx, input.Name, ""); nameErr != nil {
				return nil, nameErr
			}
			return nil, ErrSystemNameTaken
		}
		return nil, err
	}
	form.ID = id

	if input.Group != "" {
		if err := c.groups.AddMembership(ctx, input.Group, id); err != nil {
			c.reportPartialFailure(ctx, form, "group membership failed", err)
			return nil, err
		}
	}

	c.publish(ctx, events.Event{
		Type:       events.FormCreated,
		FormID:     id,
		SystemName: form.SystemName,
		Group:      form.Group,
	})
	c.logger.Infow("form created", "id", id, "system_name", form.SystemName)
	return &form, nil
}

// GetForm fetches a single form by id.
func (c *Catalog) GetForm(ctx context.Context, id string) (*Form, error) {
	doc, err := c.gateway.FindOne(ctx, store.FormsCollection, store.Filter{"_id": id})
	if err != nil {
		return nil, err
	}
	form := formFromDocument(doc)
	return &form, nil
}

// ListForms returns every form definition, sorted by name.
func (c *Catalog) ListForms(ctx context.Context) ([]Form, error) {
	docs, err := c.gateway.Find(ctx, store.FormsCollection, store.Filter{})
	if err != nil {
		return nil, err
	}
	forms := make([]Form, 0, len(docs))
	for _, doc := range docs {
		forms = append(forms, formFromDocument(doc))
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].Name < forms[j].Name })
	return forms, nil
}

// UpdateForm applies the given field changes to a form. The system name is
// immutable: it is baked into the companion collection and cannot follow a
// rename.
func (c *Catalog) UpdateForm(ctx context.Context, id string, changes map[string]any) (*Form, error) {
	if _, ok := changes["system_name"]; ok {
		return nil, ErrImmutableField
	}
	if _, ok := changes["systemName"]; ok {
		return nil, ErrImmutableField
	}

	current, err := c.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}

	set := store.Filter{}
	newGroup := current.Group
	for key, value := range changes {
		switch key {
		case "name":
			name := asString(value)
			if name == "" {
				return nil, &registry.ValidationError{Reason: "name must not be empty"}
			}
			if name != current.Name {
				if err := c.checkNameFree(ctx, name, id); err != nil {
					return nil, err
				}
			}
			set["name"] = name
		case "group":
			newGroup = asString(value)
			set["group"] = newGroup
		case "meta_data", "metaData":
			set["meta_data"] = value
		case "color":
			set["color"] = asString(value)
		default:
			return nil, &registry.ValidationError{Reason: fmt.Sprintf("unknown field %q", key)}
		}
	}
	set["updated_at"] = c.now().UTC()

	matched, err := c.gateway.UpdateOne(ctx, store.FormsCollection, store.Filter{"_id": id}, store.Update{Set: set})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, ErrNameTaken
		}
		return nil, err
	}
	if matched == 0 {
		return nil, store.ErrNotFound
	}

	// The group field on the form and the group index must move together;
	// a failure between the two writes is reported for the reconciler.
	if newGroup != current.Group {
		if err := c.groups.MoveMembership(ctx, current.Group, newGroup, id); err != nil {
			refreshed := *current
			refreshed.Group = newGroup
			c.reportPartialFailure(ctx, refreshed, "group reassignment failed", err)
			return nil, err
		}
	}
	return c.GetForm(ctx, id)
}

// DeleteForm removes the catalog row for a form. The companion collection is
// kept: submitted documents survive the definition, and the reconciler
// reports them as orphans. Stale membership ids in the group index are pruned
// by the reconciler reacting to the deletion event.
func (c *Catalog) DeleteForm(ctx context.Context, id string) error {
	form, err := c.GetForm(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := c.gateway.DeleteOne(ctx, store.FormsCollection, store.Filter{"_id": id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return store.ErrNotFound
	}
	c.publish(ctx, events.Event{
		Type:       events.FormDeleted,
		FormID:     id,
		SystemName: form.SystemName,
		Group:      form.Group,
	})
	c.logger.Infow("form deleted", "id", id, "system_name", form.SystemName)
	return nil
}

func (c *Catalog) checkNameFree(ctx context.Context, name, excludeID string) error {
	doc, err := c.gateway.FindOne(ctx, store.FormsCollection, store.Filter{"name": name})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if excludeID != "" && doc.ID() == excludeID {
		return nil
	}
	return ErrNameTaken
}

func (c *Catalog) checkSystemNameFree(ctx context.Context, systemName string) error {
	_, err := c.gateway.FindOne(ctx, store.FormsCollection, store.Filter{"system_name": systemName})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return ErrSystemNameTaken
}

func (c *Catalog) reportPartialFailure(ctx context.Context, form Form, stage string, cause error) {
	observability.CreateFormPartialFailures.Inc()
	c.logger.Errorw("form write left partial state",
		"system_name", form.SystemName, "stage", stage, "error", cause)
	c.publish(ctx, events.Event{
		Type:       events.FormCreatePartial,
		FormID:     form.ID,
		SystemName: form.SystemName,
		Group:      form.Group,
		Detail:     fmt.Sprintf("%s: %v", stage, cause),
	})
}

// publish forwards the event and logs a drop instead of swallowing it:
// the reconciler's periodic sweep covers for lost events.
func (c *Catalog) publish(ctx context.Context, event events.Event) {
	if err := c.events.Publish(ctx, event); err != nil {
		c.logger.Warnw("lifecycle event not published", "type", event.Type, "error", err)
	}
}
