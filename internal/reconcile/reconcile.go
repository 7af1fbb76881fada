package reconcile

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/mq"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/observability"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

// Reconciler repairs the drift that the non-transactional write paths can
// leave behind: group documents referencing deleted forms, forms whose group
// field disagrees with the group index, and companion collections whose
// catalog row is gone. Collections are never dropped here; orphans are
// counted and reported for an operator to judge.
type Reconciler struct {
	gateway store.Gateway
	logger  *zap.SugaredLogger
}

// New builds a Reconciler over the gateway.
func New(gateway store.Gateway, logger *zap.SugaredLogger) *Reconciler {
	return &Reconciler{gateway: gateway, logger: logger}
}

// Handler returns a message handler reacting to lifecycle events. Deletion
// events trigger a targeted prune; partial-failure events trigger a full
// sweep.
func (rc *Reconciler) Handler() mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		event, err := events.Decode(msg.Value)
		if err != nil {
			rc.logger.Warnw("undecodable lifecycle event", "error", err)
			return nil
		}
		switch event.Type {
		case events.FormDeleted:
			return rc.pruneMembership(ctx, event.Group, event.FormID)
		case events.FormCreatePartial:
			return rc.Sweep(ctx)
		default:
			return nil
		}
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (rc *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := rc.Sweep(ctx); err != nil {
				rc.logger.Errorw("reconcile sweep failed", "error", err)
			}
		}
	}
}

// Sweep walks the catalog, the group index and the collection namespace and
// repairs every inconsistency it can repair safely.
func (rc *Reconciler) Sweep(ctx context.Context) error {
	observability.ReconcileSweeps.Inc()

	forms, err := rc.gateway.Find(ctx, store.FormsCollection, store.Filter{})
	if err != nil {
		return err
	}
	groups, err := rc.gateway.Find(ctx, store.FormGroupsCollection, store.Filter{})
	if err != nil {
		return err
	}

	formGroup := make(map[string]string, len(forms))
	systemNames := make(map[string]bool, len(forms))
	for _, form := range forms {
		formGroup[form.ID()] = stringField(form, "group")
		if name := stringField(form, "system_name"); name != "" {
			systemNames[name] = true
		}
	}

	grouped := make(map[string]map[string]bool, len(groups))
	for _, group := range groups {
		name := stringField(group, "name")
		members := make(map[string]bool)
		for _, id := range memberIDs(group) {
			members[id] = true

			owner, exists := formGroup[id]
			if !exists || owner != name {
				// Dead id or a form that moved elsewhere.
				if err := rc.pruneMembership(ctx, name, id); err != nil {
					return err
				}
				delete(members, id)
			}
		}
		grouped[name] = members
	}

	// Forms claiming a group the index does not know about.
	for id, group := range formGroup {
		if group == "" || grouped[group][id] {
			continue
		}
		if err := rc.restoreMembership(ctx, group, id); err != nil {
			return err
		}
	}

	return rc.reportOrphans(ctx, systemNames)
}

// pruneMembership pulls formID out of the named group, deleting the group
// once it has no members left.
func (rc *Reconciler) pruneMembership(ctx context.Context, group, formID string) error {
	if group == "" || formID == "" {
		return nil
	}
	matched, err := rc.gateway.UpdateOne(ctx, store.FormGroupsCollection,
		store.Filter{"name": group},
		store.Update{Pull: map[string]any{"ids": formID}})
	if err != nil || matched == 0 {
		return err
	}
	observability.GroupDesyncRepaired.Inc()
	rc.logger.Infow("pruned stale membership", "group", group, "form_id", formID)

	doc, err := rc.gateway.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": group})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(memberIDs(doc)) == 0 {
		_, err := rc.gateway.DeleteOne(ctx, store.FormGroupsCollection, store.Filter{"name": group})
		return err
	}
	return nil
}

func (rc *Reconciler) restoreMembership(ctx context.Context, group, formID string) error {
	matched, err := rc.gateway.UpdateOne(ctx, store.FormGroupsCollection,
		store.Filter{"name": group},
		store.Update{AddToSet: map[string]any{"ids": formID}})
	if err != nil {
		return err
	}
	if matched == 0 {
		_, err = rc.gateway.InsertOne(ctx, store.FormGroupsCollection, store.Document{
			"name": group,
			"ids":  []string{formID},
		})
		if err != nil && !errors.Is(err, store.ErrDuplicateKey) {
			return err
		}
	}
	observability.GroupDesyncRepaired.Inc()
	rc.logger.Infow("restored missing membership", "group", group, "form_id", formID)
	return nil
}

// reportOrphans counts companion collections with no catalog row. They hold
// user data, so they are surfaced rather than dropped.
func (rc *Reconciler) reportOrphans(ctx context.Context, systemNames map[string]bool) error {
	names, err := rc.gateway.ListCollectionNames(ctx)
	if err != nil {
		return err
	}
	orphans := 0
	for _, name := range names {
		if name == store.FormsCollection || name == store.FormGroupsCollection {
			continue
		}
		if !systemNames[name] {
			orphans++
			rc.logger.Warnw("orphan collection detected", "collection", name)
		}
	}
	observability.OrphanCollectionsDetected.Set(float64(orphans))
	return nil
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

func stringField(doc store.Document, key string) string {
	s, _ := doc[key].(string)
	return s
}
