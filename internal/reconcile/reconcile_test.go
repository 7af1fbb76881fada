package reconcile

import (
	"context"
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/mq"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

func newTestReconciler(t *testing.T) (*Reconciler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.EnsureCatalogIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes failed: %v", err)
	}
	return New(mem, zap.NewNop().Sugar()), mem
}

func TestSweepPrunesDeadMemberIDs(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestReconciler(t)

	id, _ := mem.InsertOne(ctx, store.FormsCollection, store.Document{
		"name": "Sample", "system_name": "sample", "group": "g1",
	})
	mem.InsertOne(ctx, store.FormGroupsCollection, store.Document{
		"name": "g1", "ids": []string{id, "dead"},
	})

	if err := rc.Sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	group, err := mem.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": "g1"})
	if err != nil {
		t.Fatalf("group lookup failed: %v", err)
	}
	ids := group["ids"].([]any)
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected dead id pruned, got %v", ids)
	}
}

func TestSweepRestoresMissingMembership(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestReconciler(t)

	id, _ := mem.InsertOne(ctx, store.FormsCollection, store.Document{
		"name": "Sample", "system_name": "sample", "group": "g1",
	})

	if err := rc.Sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	group, err := mem.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": "g1"})
	if err != nil {
		t.Fatalf("expected group document to be created, got %v", err)
	}
	ids := toStrings(group["ids"])
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("expected membership restored, got %v", ids)
	}
}

func TestSweepRemovesEmptiedGroup(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestReconciler(t)

	mem.InsertOne(ctx, store.FormGroupsCollection, store.Document{
		"name": "g1", "ids": []string{"dead"},
	})

	if err := rc.Sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if _, err := mem.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": "g1"}); !store.IsNotFound(err) {
		t.Fatalf("expected emptied group deleted, got %v", err)
	}
}

func TestSweepNeverDropsOrphanCollections(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestReconciler(t)

	// A companion collection whose catalog row was deleted.
	mem.CreateCollection(ctx, "orphaned", nil)

	if err := rc.Sweep(ctx); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}

	if exists, _ := mem.HasCollection(ctx, "orphaned"); !exists {
		t.Fatal("orphan collection must never be dropped")
	}
}

func TestHandlerPrunesOnFormDeleted(t *testing.T) {
	ctx := context.Background()
	rc, mem := newTestReconciler(t)

	mem.InsertOne(ctx, store.FormGroupsCollection, store.Document{
		"name": "g1", "ids": []string{"f1", "f2"},
	})

	payload, _ := json.Marshal(events.Event{Type: events.FormDeleted, FormID: "f1", Group: "g1"})
	if err := rc.Handler()(ctx, mq.Message{Value: payload}); err != nil {
		t.Fatalf("handler failed: %v", err)
	}

	group, err := mem.FindOne(ctx, store.FormGroupsCollection, store.Filter{"name": "g1"})
	if err != nil {
		t.Fatalf("group lookup failed: %v", err)
	}
	ids := group["ids"].([]any)
	if len(ids) != 1 || ids[0] != "f2" {
		t.Fatalf("expected f1 pruned, got %v", ids)
	}
}

func TestHandlerIgnoresUndecodableEvent(t *testing.T) {
	rc, _ := newTestReconciler(t)
	if err := rc.Handler()(context.Background(), mq.Message{Value: []byte("{broken")}); err != nil {
		t.Fatalf("expected undecodable event to be skipped, got %v", err)
	}
}

func toStrings(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
