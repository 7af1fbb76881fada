package groups

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/events"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

func newTestIndex(t *testing.T) (*Index, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	if err := mem.EnsureCatalogIndexes(context.Background()); err != nil {
		t.Fatalf("ensure indexes failed: %v", err)
	}
	return New(mem, events.NewPublisher(nil), zap.NewNop().Sugar()), mem
}

func addForm(t *testing.T, mem *store.Memory, name, group string) string {
	t.Helper()
	id, err := mem.InsertOne(context.Background(), store.FormsCollection, store.Document{
		"name":        name,
		"system_name": name,
		"group":       group,
	})
	if err != nil {
		t.Fatalf("form insert failed: %v", err)
	}
	return id
}

func TestAddMembershipCreatesGroup(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	id := addForm(t, mem, "sample", "g1")

	if err := idx.AddMembership(ctx, "g1", id); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	// Re-adding the same id must not duplicate it.
	if err := idx.AddMembership(ctx, "g1", id); err != nil {
		t.Fatalf("second add failed: %v", err)
	}

	refs, err := idx.ListFormsInGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != id {
		t.Fatalf("unexpected members: %v", refs)
	}
}

func TestListGroupNames(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	idx.AddMembership(ctx, "zeta", "f1")
	idx.AddMembership(ctx, "alpha", "f2")

	names, err := idx.ListGroupNames(ctx)
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestListFormsInGroupSkipsDeadIDs(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	id := addForm(t, mem, "sample", "g1")

	idx.AddMembership(ctx, "g1", id)
	idx.AddMembership(ctx, "g1", "gone")

	refs, err := idx.ListFormsInGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != id {
		t.Fatalf("dead id should be skipped, got %v", refs)
	}
}

func TestListFormsInUnknownGroup(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	if _, err := idx.ListFormsInGroup(ctx, "ghost"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveMembershipClearsFormGroup(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	id := addForm(t, mem, "sample", "g1")
	other := addForm(t, mem, "other", "g1")
	idx.AddMembership(ctx, "g1", id)
	idx.AddMembership(ctx, "g1", other)

	if err := idx.RemoveMembership(ctx, "g1", id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	form, err := mem.FindOne(ctx, store.FormsCollection, store.Filter{"_id": id})
	if err != nil {
		t.Fatalf("form lookup failed: %v", err)
	}
	if form["group"] != "" {
		t.Fatalf("expected group cleared, got %q", form["group"])
	}

	if err := idx.RemoveMembership(ctx, "g1", id); !IsNotFound(err) {
		t.Fatalf("expected not found on double remove, got %v", err)
	}
}

func TestRemoveLastMembershipDeletesGroup(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	id := addForm(t, mem, "sample", "g1")
	idx.AddMembership(ctx, "g1", id)

	if err := idx.RemoveMembership(ctx, "g1", id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := idx.ListFormsInGroup(ctx, "g1"); !IsNotFound(err) {
		t.Fatalf("expected empty group to be deleted, got %v", err)
	}
}

func TestMoveMembershipLeavesFormUntouched(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	id := addForm(t, mem, "sample", "g2")
	other := addForm(t, mem, "other", "g1")
	idx.AddMembership(ctx, "g1", id)
	idx.AddMembership(ctx, "g1", other)

	if err := idx.MoveMembership(ctx, "g1", "g2", id); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	refs, err := idx.ListFormsInGroup(ctx, "g2")
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(refs) != 1 || refs[0].ID != id {
		t.Fatalf("expected the moved member in g2, got %v", refs)
	}
	remaining, err := idx.ListFormsInGroup(ctx, "g1")
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != other {
		t.Fatalf("expected the other member to stay in g1, got %v", remaining)
	}

	// Only the index moves; the form document keeps whatever the caller
	// wrote there.
	form, err := mem.FindOne(ctx, store.FormsCollection, store.Filter{"_id": id})
	if err != nil {
		t.Fatalf("form lookup failed: %v", err)
	}
	if form["group"] != "g2" {
		t.Fatalf("form group unexpectedly rewritten: %q", form["group"])
	}
}

func TestMoveMembershipFromLastMemberDeletesGroup(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	id := addForm(t, mem, "sample", "g2")
	idx.AddMembership(ctx, "g1", id)

	if err := idx.MoveMembership(ctx, "g1", "g2", id); err != nil {
		t.Fatalf("move failed: %v", err)
	}
	if _, err := idx.ListFormsInGroup(ctx, "g1"); !IsNotFound(err) {
		t.Fatalf("expected emptied g1 to be deleted, got %v", err)
	}
}

func TestRenameGroupCascades(t *testing.T) {
	ctx := context.Background()
	idx, mem := newTestIndex(t)
	first := addForm(t, mem, "sample", "g1")
	second := addForm(t, mem, "other", "g1")
	idx.AddMembership(ctx, "g1", first)
	idx.AddMembership(ctx, "g1", second)

	if err := idx.RenameGroup(ctx, "g1", "renamed"); err != nil {
		t.Fatalf("rename failed: %v", err)
	}

	if _, err := idx.ListFormsInGroup(ctx, "g1"); !IsNotFound(err) {
		t.Fatalf("expected old name gone, got %v", err)
	}
	refs, err := idx.ListFormsInGroup(ctx, "renamed")
	if err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected both members, got %v", refs)
	}

	forms, _ := mem.Find(ctx, store.FormsCollection, store.Filter{"group": "renamed"})
	if len(forms) != 2 {
		t.Fatalf("expected cascade onto forms, got %d", len(forms))
	}
}

func TestRenameGroupConflicts(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)
	idx.AddMembership(ctx, "g1", "f1")
	idx.AddMembership(ctx, "g2", "f2")

	if err := idx.RenameGroup(ctx, "g1", "g2"); !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
	if err := idx.RenameGroup(ctx, "ghost", "g3"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
