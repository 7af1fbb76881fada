package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
)

// Memory is an in-memory Gateway used by tests and local development. It
// interprets the attached field spec at write time, mirroring the structural
// validator the Mongo gateway attaches at collection creation.
type Memory struct {
	mu          sync.Mutex
	collections map[string]*memCollection
	uniqueKeys  map[string][]string
}

type memCollection struct {
	spec    schema.Spec
	order   []string
	docs    map[string]Document
	indexes map[string]struct{}
}

// NewMemory returns an empty in-memory gateway.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memCollection),
		uniqueKeys:  make(map[string][]string),
	}
}

// Close is a no-op for the in-memory gateway.
func (m *Memory) Close(ctx context.Context) error { return nil }

// CreateCollection registers an empty collection with its validator spec.
func (m *Memory) CreateCollection(ctx context.Context, name string, spec schema.Spec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[name]; ok {
		return ErrCollectionExists
	}
	m.collections[name] = newMemCollection(spec)
	m.collections[name].indexes[geoIndexName] = struct{}{}
	return nil
}

// DropCollection removes the collection and its documents.
func (m *Memory) DropCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

const geoIndexName = GeoField + "_2dsphere"

// DropIndex removes a tracked index name.
func (m *Memory) DropIndex(ctx context.Context, collection, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return ErrNotFound
	}
	delete(coll.indexes, index)
	return nil
}

// EnsureGeoIndex records the geospatial index on the collection.
func (m *Memory) EnsureGeoIndex(ctx context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll := m.ensureLocked(collection)
	coll.indexes[geoIndexName] = struct{}{}
	return nil
}

// EnsureCatalogIndexes enables unique-key enforcement on the catalog
// collections.
func (m *Memory) EnsureCatalogIndexes(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uniqueKeys[FormsCollection] = []string{"name", "system_name"}
	m.uniqueKeys[FormGroupsCollection] = []string{"name"}
	return nil
}

// ListCollectionNames returns every collection name in insertion-independent
// but stable order.
func (m *Memory) ListCollectionNames(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	return names, nil
}

// HasCollection reports whether the named collection exists.
func (m *Memory) HasCollection(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.collections[name]
	return ok, nil
}

// Find returns all matching documents in insertion order.
func (m *Memory) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	var out []Document
	for _, id := range coll.order {
		doc := coll.docs[id]
		if matches(doc, filter) {
			out = append(out, cloneDocument(doc))
		}
	}
	return out, nil
}

// FindOne returns the first matching document, or ErrNotFound.
func (m *Memory) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	for _, id := range coll.order {
		doc := coll.docs[id]
		if matches(doc, filter) {
			return cloneDocument(doc), nil
		}
	}
	return nil, ErrNotFound
}

// InsertOne validates and stores a document under a fresh id. Inserting into
// an unknown collection creates it, matching the schemaless store.
func (m *Memory) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(collection, doc)
}

// InsertMany stores documents in order.
func (m *Memory) InsertMany(ctx context.Context, collection string, docs []Document) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id, err := m.insertLocked(collection, doc)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpdateOne applies the update to the first matching document.
func (m *Memory) UpdateOne(ctx context.Context, collection string, filter Filter, update Update) (int64, error) {
	return m.update(collection, filter, update, true)
}

// UpdateMany applies the update to every matching document.
func (m *Memory) UpdateMany(ctx context.Context, collection string, filter Filter, update Update) (int64, error) {
	return m.update(collection, filter, update, false)
}

// DeleteOne removes the first matching document.
func (m *Memory) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}
	for i, id := range coll.order {
		if matches(coll.docs[id], filter) {
			delete(coll.docs, id)
			coll.order = append(coll.order[:i], coll.order[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func newMemCollection(spec schema.Spec) *memCollection {
	return &memCollection{
		spec:    spec,
		docs:    make(map[string]Document),
		indexes: make(map[string]struct{}),
	}
}

func (m *Memory) ensureLocked(name string) *memCollection {
	coll, ok := m.collections[name]
	if !ok {
		coll = newMemCollection(nil)
		m.collections[name] = coll
	}
	return coll
}

func (m *Memory) insertLocked(collection string, doc Document) (string, error) {
	coll := m.ensureLocked(collection)
	stored := cloneDocument(doc)

	if err := m.checkSchemaLocked(collection, coll, stored); err != nil {
		return "", err
	}
	if err := m.checkUniqueLocked(collection, coll, stored, ""); err != nil {
		return "", err
	}

	id := uuid.NewString()
	stored["_id"] = id
	coll.docs[id] = stored
	coll.order = append(coll.order, id)
	doc["_id"] = id
	return id, nil
}

func (m *Memory) update(collection string, filter Filter, update Update, single bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return 0, nil
	}

	var matched int64
	for _, id := range coll.order {
		doc := coll.docs[id]
		if !matches(doc, filter) {
			continue
		}

		candidate := cloneDocument(doc)
		applyUpdate(candidate, update)
		if err := m.checkSchemaLocked(collection, coll, candidate); err != nil {
			return matched, err
		}
		if err := m.checkUniqueLocked(collection, coll, candidate, id); err != nil {
			return matched, err
		}

		candidate["_id"] = id
		coll.docs[id] = candidate
		matched++
		if single {
			break
		}
	}
	return matched, nil
}

func (m *Memory) checkSchemaLocked(collection string, coll *memCollection, doc Document) error {
	if coll.spec == nil {
		return nil
	}
	if _, ok := doc["owner_id"].(string); !ok {
		return &SchemaViolationError{Collection: collection, Reason: "owner_id is required"}
	}
	fields, _ := doc["fields"].(map[string]any)
	if err := coll.spec.Validate(fields); err != nil {
		return &SchemaViolationError{Collection: collection, Reason: err.Error()}
	}
	return nil
}

func (m *Memory) checkUniqueLocked(collection string, coll *memCollection, doc Document, selfID string) error {
	for _, key := range m.uniqueKeys[collection] {
		value, ok := doc[key]
		if !ok {
			continue
		}
		for id, existing := range coll.docs {
			if id == selfID {
				continue
			}
			if existing[key] == value {
				return fmt.Errorf("%w: %s %v already exists", ErrDuplicateKey, key, value)
			}
		}
	}
	return nil
}

func applyUpdate(doc Document, update Update) {
	for key, value := range update.Set {
		doc[key] = value
	}
	for key, value := range update.AddToSet {
		arr := toSlice(doc[key])
		found := false
		for _, existing := range arr {
			if existing == value {
				found = true
				break
			}
		}
		if !found {
			arr = append(arr, value)
		}
		doc[key] = arr
	}
	for key, value := range update.Pull {
		arr := toSlice(doc[key])
		kept := arr[:0]
		for _, existing := range arr {
			if existing != value {
				kept = append(kept, existing)
			}
		}
		doc[key] = kept
	}
}

// matches mirrors store equality semantics: filtering an array field with a
// scalar matches documents whose array contains the value.
func matches(doc Document, filter Filter) bool {
	for key, want := range filter {
		have, ok := doc[key]
		if !ok {
			return false
		}
		if arr := toSliceOrNil(have); arr != nil {
			if contains(arr, want) {
				continue
			}
			return false
		}
		if have != want {
			return false
		}
	}
	return true
}

func contains(arr []any, want any) bool {
	for _, item := range arr {
		if item == want {
			return true
		}
	}
	return false
}

func toSlice(value any) []any {
	if arr := toSliceOrNil(value); arr != nil {
		return arr
	}
	return []any{}
}

func toSliceOrNil(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	}
	return nil
}

func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for key, value := range doc {
		switch v := value.(type) {
		case map[string]any:
			inner := make(map[string]any, len(v))
			for k, val := range v {
				inner[k] = val
			}
			out[key] = inner
		case []any:
			out[key] = append([]any(nil), v...)
		default:
			out[key] = value
		}
	}
	return out
}
