package registry

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/authz"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return New(mem, zap.NewNop().Sugar()), mem
}

func TestCreateSystemNameCollection(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	if err := reg.CreateSystemNameCollection(ctx, "orders", nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := reg.CreateSystemNameCollection(ctx, "orders", nil); !errors.Is(err, store.ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}
	if err := reg.CreateSystemNameCollection(ctx, "Bad-Name", nil); err == nil {
		t.Fatal("expected invalid name to be rejected")
	}
}

func TestListSystemNameCollectionsSkipsReserved(t *testing.T) {
	ctx := context.Background()
	reg, mem := newTestRegistry(t)

	mem.CreateCollection(ctx, store.FormsCollection, nil)
	mem.CreateCollection(ctx, store.FormGroupsCollection, nil)
	reg.CreateSystemNameCollection(ctx, "b_orders", nil)
	reg.CreateSystemNameCollection(ctx, "a_orders", nil)

	names, err := reg.ListSystemNameCollections(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(names) != 2 || names[0] != "a_orders" || names[1] != "b_orders" {
		t.Fatalf("unexpected names: %v", names)
	}
}

func TestInsertDocumentValidation(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	spec := schema.Spec{"title": {Type: schema.TypeString, Required: true}}
	if err := reg.CreateSystemNameCollection(ctx, "tickets", spec); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, err := reg.InsertDocument(ctx, "tickets", map[string]any{}, "u1")
	if !IsValidationFailed(err) {
		t.Fatalf("expected validation failure, got %v", err)
	}

	id, err := reg.InsertDocument(ctx, "tickets", map[string]any{"title": "hi"}, "u1")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}
}

func TestInsertDocumentOmitsGeoUntilSupplied(t *testing.T) {
	ctx := context.Background()
	reg, mem := newTestRegistry(t)
	reg.CreateSystemNameCollection(ctx, "orders", nil)

	id, err := reg.InsertDocument(ctx, "orders", map[string]any{"n": 1}, "u1")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	doc, err := mem.FindOne(ctx, "orders", store.Filter{"_id": id})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	// An empty geo subdocument would be rejected by the 2dsphere index, so
	// the attribute must not exist until a geometry is written.
	if _, present := doc[store.GeoField]; present {
		t.Fatalf("stored document carries a geo attribute: %v", doc)
	}
	if owner, _ := doc["owner_id"].(string); owner != "u1" {
		t.Fatalf("unexpected owner: %v", doc["owner_id"])
	}
	if _, ok := doc["fields"].(map[string]any); !ok {
		t.Fatalf("expected fields subdocument, got %v", doc["fields"])
	}
}

func TestInsertDocumentUnknownCollection(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)

	_, err := reg.InsertDocument(ctx, "ghosts", map[string]any{}, "u1")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReservedCollectionsHiddenFromDocumentAPI(t *testing.T) {
	ctx := context.Background()
	reg, mem := newTestRegistry(t)
	mem.CreateCollection(ctx, store.FormsCollection, nil)

	_, err := reg.ListDocuments(ctx, store.FormsCollection, authz.User{ID: "a", Role: authz.RoleAdmin})
	if !IsNotFound(err) {
		t.Fatalf("expected reserved collection to appear missing, got %v", err)
	}
}

func TestListDocumentsOwnerScoping(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	reg.CreateSystemNameCollection(ctx, "orders", nil)

	reg.InsertDocument(ctx, "orders", map[string]any{"n": 1}, "u1")
	reg.InsertDocument(ctx, "orders", map[string]any{"n": 2}, "u2")

	mine, err := reg.ListDocuments(ctx, "orders", authz.User{ID: "u1", Role: authz.RoleMember})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 owned document, got %d", len(mine))
	}

	all, err := reg.ListDocuments(ctx, "orders", authz.User{ID: "a", Role: authz.RoleAdmin})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 documents for admin, got %d", len(all))
	}
}

func TestUpdateDocumentOwnership(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	reg.CreateSystemNameCollection(ctx, "orders", nil)

	id, err := reg.InsertDocument(ctx, "orders", map[string]any{"n": 1}, "u1")
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	stranger := authz.User{ID: "u2", Role: authz.RoleMember}
	err = reg.UpdateDocument(ctx, "orders", id, map[string]any{"n": 2}, stranger)
	if !errors.Is(err, authz.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", err)
	}

	owner := authz.User{ID: "u1", Role: authz.RoleMember}
	if err := reg.UpdateDocument(ctx, "orders", id, map[string]any{"n": 2}, owner); err != nil {
		t.Fatalf("owner update failed: %v", err)
	}

	admin := authz.User{ID: "a", Role: authz.RoleAdmin}
	if err := reg.UpdateDocument(ctx, "orders", id, map[string]any{"n": 3}, admin); err != nil {
		t.Fatalf("admin update failed: %v", err)
	}
}

func TestDeleteDocumentNotFoundMasking(t *testing.T) {
	ctx := context.Background()
	reg, _ := newTestRegistry(t)
	reg.CreateSystemNameCollection(ctx, "orders", nil)

	admin := authz.User{ID: "a", Role: authz.RoleAdmin}
	// Absent id and malformed id read the same from the outside.
	for _, id := range []string{"00000000-0000-0000-0000-000000000000", "!!not-an-id!!"} {
		if err := reg.DeleteDocument(ctx, "orders", id, admin); !IsNotFound(err) {
			t.Fatalf("expected not found for %q, got %v", id, err)
		}
	}

	id, _ := reg.InsertDocument(ctx, "orders", map[string]any{"n": 1}, "u1")
	if err := reg.DeleteDocument(ctx, "orders", id, admin); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := reg.DeleteDocument(ctx, "orders", id, admin); !IsNotFound(err) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
