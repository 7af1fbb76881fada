// Package registry creates and mediates access to system-name collections:
// the per-form document stores holding end-user submissions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/authz"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/naming"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
	"github.com/mrrahbarnia/Backend-Form-Generator/internal/store"
)

// ValidationError reports a submitted document rejected by the collection's
// schema validator.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "document validation failed: " + e.Reason
}

// IsValidationFailed reports whether err is a document validation failure.
func IsValidationFailed(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err indicates a missing collection or document.
func IsNotFound(err error) bool {
	return store.IsNotFound(err)
}

// Registry mediates document CRUD for system-name collections with
// ownership checks.
type Registry struct {
	gateway store.Gateway
	logger  *zap.SugaredLogger
}

// New constructs a Registry over the provided gateway.
func New(gateway store.Gateway, logger *zap.SugaredLogger) *Registry {
	return &Registry{gateway: gateway, logger: logger}
}

// CreateSystemNameCollection creates the companion collection for a form and
// attaches the validator derived from spec. Creation is not idempotent:
// an existing name fails with store.ErrCollectionExists.
func (r *Registry) CreateSystemNameCollection(ctx context.Context, name string, spec schema.Spec) error {
	if err := naming.ValidateSystemName(name); err != nil {
		return err
	}
	if err := spec.Check(); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	if err := r.gateway.CreateCollection(ctx, name, spec); err != nil {
		return err
	}
	r.logger.Infow("created system name collection", "collection", name)
	return nil
}

// ListSystemNameCollections returns every collection name except the two
// reserved catalog collections. No collections is not an error.
func (r *Registry) ListSystemNameCollections(ctx context.Context) ([]string, error) {
	names, err := r.gateway.ListCollectionNames(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == store.FormsCollection || name == store.FormGroupsCollection {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// ListDocuments returns the documents of a system-name collection. Elevated
// requesters see everything; everyone else only documents they own.
func (r *Registry) ListDocuments(ctx context.Context, collection string, requester authz.User) ([]store.Document, error) {
	if err := r.requireCollection(ctx, collection); err != nil {
		return nil, err
	}

	filter := store.Filter{}
	if !authz.IsElevated(requester) {
		filter["owner_id"] = authz.OwnerID(requester)
	}

	docs, err := r.gateway.Find(ctx, collection, filter)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// InsertDocument validates and stores a submission owned by ownerID. The
// reserved geo attribute is left absent until a geometry is supplied: the
// collection's 2dsphere index rejects documents carrying an empty geo
// subdocument.
func (r *Registry) InsertDocument(ctx context.Context, collection string, fields map[string]any, ownerID string) (string, error) {
	if err := r.requireCollection(ctx, collection); err != nil {
		return "", err
	}
	if fields == nil {
		fields = map[string]any{}
	}

	doc := store.Document{
		"owner_id": ownerID,
		"fields":   fields,
	}
	id, err := r.gateway.InsertOne(ctx, collection, doc)
	if err != nil {
		var violation *store.SchemaViolationError
		if errors.As(err, &violation) {
			return "", &ValidationError{Reason: violation.Reason}
		}
		return "", err
	}
	return id, nil
}

// UpdateDocument replaces the submitted fields of a document. Unknown
// collections, malformed ids and absent documents all surface as NotFound;
// requesters lacking both elevation and ownership are denied.
func (r *Registry) UpdateDocument(ctx context.Context, collection, id string, fields map[string]any, requester authz.User) error {
	doc, err := r.requireDocument(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := r.requireAccess(requester, doc); err != nil {
		return err
	}

	_, err = r.gateway.UpdateOne(ctx, collection, store.Filter{"_id": id}, store.Update{
		Set: map[string]any{"fields": fields},
	})
	if err != nil {
		var violation *store.SchemaViolationError
		if errors.As(err, &violation) {
			return &ValidationError{Reason: violation.Reason}
		}
		return err
	}
	return nil
}

// DeleteDocument removes a document, subject to the same access rules as
// UpdateDocument.
func (r *Registry) DeleteDocument(ctx context.Context, collection, id string, requester authz.User) error {
	doc, err := r.requireDocument(ctx, collection, id)
	if err != nil {
		return err
	}
	if err := r.requireAccess(requester, doc); err != nil {
		return err
	}

	deleted, err := r.gateway.DeleteOne(ctx, collection, store.Filter{"_id": id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Registry) requireCollection(ctx context.Context, collection string) error {
	if collection == store.FormsCollection || collection == store.FormGroupsCollection {
		return store.ErrNotFound
	}
	exists, err := r.gateway.HasCollection(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("collection %q: %w", collection, store.ErrNotFound)
	}
	return nil
}

func (r *Registry) requireDocument(ctx context.Context, collection, id string) (store.Document, error) {
	if err := r.requireCollection(ctx, collection); err != nil {
		return nil, err
	}
	doc, err := r.gateway.FindOne(ctx, collection, store.Filter{"_id": id})
	if store.IsNotFound(err) {
		// Malformed ids are indistinguishable from absent documents on
		// purpose: the API surface stays uniform.
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *Registry) requireAccess(requester authz.User, doc store.Document) error {
	owner, _ := doc["owner_id"].(string)
	if !authz.CanAccess(requester, owner) {
		return authz.ErrPermissionDenied
	}
	return nil
}
