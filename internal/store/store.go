// Package store is a thin gateway over a document database: connection
// lifecycle, collection management and filtered CRUD. Two implementations
// exist: Mongo for deployments and Memory for tests and local development.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
)

// Reserved collection names owned by the catalog and group index. They never
// appear in system-name collection listings.
const (
	FormsCollection      = "forms"
	FormGroupsCollection = "form_groups"
)

// GeoField is the reserved geospatial attribute slot indexed on every
// system-name collection.
const GeoField = "geo"

// Namespace selects an isolated logical database. Production and test data
// are never mixed.
type Namespace string

const (
	Production Namespace = "production"
	Test       Namespace = "test"
)

var (
	// ErrNotFound is the unified missing-resource sentinel: unknown
	// collection, absent document or malformed identifier all surface as
	// this error.
	ErrNotFound = errors.New("not found")

	// ErrCollectionExists is returned when creating a collection whose name
	// is already taken. Collection creation is deliberately not idempotent.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDuplicateKey is returned when a write violates a unique index.
	ErrDuplicateKey = errors.New("duplicate key")
)

// SchemaViolationError reports a write rejected by the validator attached to
// a collection.
type SchemaViolationError struct {
	Collection string
	Reason     string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("document rejected by schema of %q: %s", e.Collection, e.Reason)
}

// IsSchemaViolation reports whether err is a validator rejection.
func IsSchemaViolation(err error) bool {
	var target *SchemaViolationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Document is a schemaless record. The gateway assigns an opaque, immutable
// string identifier under "_id" on insert.
type Document map[string]any

// ID returns the store-assigned identifier, or "" when the document has not
// been persisted.
func (d Document) ID() string {
	id, _ := d["_id"].(string)
	return id
}

// Filter matches documents by exact field equality.
type Filter map[string]any

// Update describes a partial modification. Callers never build raw store
// operators; the gateway translates.
type Update struct {
	// Set assigns field values.
	Set map[string]any
	// AddToSet appends a value to an array field unless already present.
	AddToSet map[string]any
	// Pull removes every occurrence of a value from an array field.
	Pull map[string]any
}

// Gateway is the low-level contract against the document database. All
// operations are synchronous round trips scoped by the calling context.
type Gateway interface {
	// CreateCollection creates an empty collection, attaches the structural
	// validator derived from spec and builds the geospatial index on the
	// reserved geo attribute. Fails with ErrCollectionExists when the name
	// is taken.
	CreateCollection(ctx context.Context, name string, spec schema.Spec) error

	// DropCollection removes a collection and its documents.
	DropCollection(ctx context.Context, name string) error

	// DropIndex removes a named index from a collection.
	DropIndex(ctx context.Context, collection, index string) error

	// EnsureGeoIndex builds the geospatial index on the reserved geo
	// attribute. CreateCollection calls this implicitly.
	EnsureGeoIndex(ctx context.Context, collection string) error

	// ListCollectionNames returns every collection name in the namespace.
	ListCollectionNames(ctx context.Context) ([]string, error)

	// HasCollection reports whether a collection exists.
	HasCollection(ctx context.Context, name string) (bool, error)

	Find(ctx context.Context, collection string, filter Filter) ([]Document, error)
	FindOne(ctx context.Context, collection string, filter Filter) (Document, error)

	// InsertOne persists a document and returns its assigned id. Writes
	// violating the attached validator fail with SchemaViolationError;
	// unique-index conflicts fail with ErrDuplicateKey.
	InsertOne(ctx context.Context, collection string, doc Document) (string, error)
	InsertMany(ctx context.Context, collection string, docs []Document) ([]string, error)

	// UpdateOne applies the update to the first matching document and
	// reports how many documents matched.
	UpdateOne(ctx context.Context, collection string, filter Filter, update Update) (int64, error)
	UpdateMany(ctx context.Context, collection string, filter Filter, update Update) (int64, error)

	// DeleteOne removes the first matching document and reports how many
	// documents were removed.
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)

	// EnsureCatalogIndexes builds the unique indexes backing name and
	// system_name uniqueness on the forms collection and name uniqueness on
	// the form_groups collection. Conflicts on these indexes are the
	// authoritative uniqueness errors.
	EnsureCatalogIndexes(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
