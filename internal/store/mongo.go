package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mrrahbarnia/Backend-Form-Generator/internal/schema"
)

// MongoDB server error codes the gateway translates into gateway errors.
const (
	codeNamespaceExists           = 48
	codeDocumentValidationFailure = 121
	codeGeoKeyExtraction          = 16755
)

// Mongo implements Gateway against a MongoDB database.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials MongoDB and binds the gateway to the database backing
// the given namespace. Connection failures are fatal to the caller.
func ConnectMongo(ctx context.Context, uri, database string, ns Namespace) (*Mongo, error) {
	name := database
	if ns == Test {
		name = database + "_test"
	}

	// Nested documents must come back as maps, not bson.D, because the
	// gateway hands them to callers as map[string]any.
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("store: connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: ping mongodb: %w", err)
	}
	return &Mongo{client: client, db: client.Database(name)}, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// CreateCollection creates the collection with the validator derived from
// spec attached, then indexes the reserved geo attribute.
func (m *Mongo) CreateCollection(ctx context.Context, name string, spec schema.Spec) error {
	opts := options.CreateCollection()
	if spec != nil {
		opts.SetValidator(spec.JSONSchema())
	}

	if err := m.db.CreateCollection(ctx, name, opts); err != nil {
		if isCommandError(err, codeNamespaceExists) {
			return ErrCollectionExists
		}
		return fmt.Errorf("store: create collection %q: %w", name, err)
	}
	return m.EnsureGeoIndex(ctx, name)
}

// DropCollection removes the collection and all of its documents.
func (m *Mongo) DropCollection(ctx context.Context, name string) error {
	if err := m.db.Collection(name).Drop(ctx); err != nil {
		return fmt.Errorf("store: drop collection %q: %w", name, err)
	}
	return nil
}

// DropIndex removes a named index.
func (m *Mongo) DropIndex(ctx context.Context, collection, index string) error {
	if err := m.db.Collection(collection).Indexes().DropOne(ctx, index); err != nil {
		return fmt.Errorf("store: drop index %q on %q: %w", index, collection, err)
	}
	return nil
}

// EnsureGeoIndex builds a 2dsphere index on the reserved geo attribute.
func (m *Mongo) EnsureGeoIndex(ctx context.Context, collection string) error {
	_, err := m.db.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: GeoField, Value: "2dsphere"}},
	})
	if err != nil {
		return fmt.Errorf("store: create geo index on %q: %w", collection, err)
	}
	return nil
}

// EnsureCatalogIndexes builds the unique indexes that make name and
// system_name uniqueness authoritative at the store level.
func (m *Mongo) EnsureCatalogIndexes(ctx context.Context) error {
	forms := []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "system_name", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if _, err := m.db.Collection(FormsCollection).Indexes().CreateMany(ctx, forms); err != nil {
		return fmt.Errorf("store: create forms indexes: %w", err)
	}

	groups := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := m.db.Collection(FormGroupsCollection).Indexes().CreateOne(ctx, groups); err != nil {
		return fmt.Errorf("store: create form_groups index: %w", err)
	}
	return nil
}

// ListCollectionNames returns every collection name in the namespace.
func (m *Mongo) ListCollectionNames(ctx context.Context) ([]string, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("store: list collections: %w", err)
	}
	return names, nil
}

// HasCollection reports whether the named collection exists.
func (m *Mongo) HasCollection(ctx context.Context, name string) (bool, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, fmt.Errorf("store: check collection %q: %w", name, err)
	}
	return len(names) > 0, nil
}

// Find returns all documents matching the filter.
func (m *Mongo) Find(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	cursor, err := m.db.Collection(collection).Find(ctx, toBSON(filter))
	if err != nil {
		return nil, fmt.Errorf("store: find in %q: %w", collection, err)
	}
	var docs []Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("store: decode documents from %q: %w", collection, err)
	}
	return docs, nil
}

// FindOne returns the first document matching the filter, or ErrNotFound.
func (m *Mongo) FindOne(ctx context.Context, collection string, filter Filter) (Document, error) {
	var doc Document
	err := m.db.Collection(collection).FindOne(ctx, toBSON(filter)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find one in %q: %w", collection, err)
	}
	return doc, nil
}

// InsertOne persists a document under a freshly assigned id.
func (m *Mongo) InsertOne(ctx context.Context, collection string, doc Document) (string, error) {
	id := uuid.NewString()
	doc["_id"] = id
	if _, err := m.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		delete(doc, "_id")
		return "", m.writeError(collection, err)
	}
	return id, nil
}

// InsertMany persists documents in order and returns their assigned ids.
func (m *Mongo) InsertMany(ctx context.Context, collection string, docs []Document) ([]string, error) {
	ids := make([]string, len(docs))
	payload := make([]any, len(docs))
	for i, doc := range docs {
		ids[i] = uuid.NewString()
		doc["_id"] = ids[i]
		payload[i] = doc
	}
	if _, err := m.db.Collection(collection).InsertMany(ctx, payload); err != nil {
		return nil, m.writeError(collection, err)
	}
	return ids, nil
}

// UpdateOne applies the update to the first matching document.
func (m *Mongo) UpdateOne(ctx context.Context, collection string, filter Filter, update Update) (int64, error) {
	result, err := m.db.Collection(collection).UpdateOne(ctx, toBSON(filter), update.bson())
	if err != nil {
		return 0, m.writeError(collection, err)
	}
	return result.MatchedCount, nil
}

// UpdateMany applies the update to every matching document.
func (m *Mongo) UpdateMany(ctx context.Context, collection string, filter Filter, update Update) (int64, error) {
	result, err := m.db.Collection(collection).UpdateMany(ctx, toBSON(filter), update.bson())
	if err != nil {
		return 0, m.writeError(collection, err)
	}
	return result.MatchedCount, nil
}

// DeleteOne removes the first matching document.
func (m *Mongo) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	result, err := m.db.Collection(collection).DeleteOne(ctx, toBSON(filter))
	if err != nil {
		return 0, fmt.Errorf("store: delete in %q: %w", collection, err)
	}
	return result.DeletedCount, nil
}

func (m *Mongo) writeError(collection string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, shortWriteReason(err))
	}
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) {
		for _, we := range writeErr.WriteErrors {
			switch we.Code {
			case codeDocumentValidationFailure, codeGeoKeyExtraction:
				return &SchemaViolationError{Collection: collection, Reason: we.Message}
			}
		}
	}
	return fmt.Errorf("store: write to %q: %w", collection, err)
}

func shortWriteReason(err error) string {
	var writeErr mongo.WriteException
	if errors.As(err, &writeErr) && len(writeErr.WriteErrors) > 0 {
		return writeErr.WriteErrors[0].Message
	}
	return err.Error()
}

func isCommandError(err error, code int) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == int32(code)
}

func toBSON(filter Filter) bson.M {
	out := bson.M{}
	for key, value := range filter {
		out[key] = value
	}
	return out
}

func (u Update) bson() bson.M {
	out := bson.M{}
	if len(u.Set) > 0 {
		out["$set"] = bson.M(u.Set)
	}
	if len(u.AddToSet) > 0 {
		out["$addToSet"] = bson.M(u.AddToSet)
	}
	if len(u.Pull) > 0 {
		out["$pull"] = bson.M(u.Pull)
	}
	return out
}
