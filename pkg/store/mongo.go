package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// mongoIDKey is the primary key field of mongo documents.
const mongoIDKey = "_id"

// Mongo stores each collection in the mongo collection of the same name.
// Document ids are strings generated by the store, never ObjectIDs.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	hub    *hub
	logger *zap.SugaredLogger
}

// OpenMongo connects to uri and uses database.
func OpenMongo(ctx context.Context, uri, database string, logger *zap.SugaredLogger) (*Mongo, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("store: ping mongo: %w", err)
	}
	m := &Mongo{client: client, db: client.Database(database), logger: logger}
	m.hub = newHub(m.List, logger)
	logger.Debugw("mongo store ready", "database", database)
	return m, nil
}

func (m *Mongo) Add(ctx context.Context, collection string, doc model.Record) (string, error) {
	id := uuid.NewString()
	payload := toBSON(withoutID(doc))
	payload[mongoIDKey] = id
	if _, err := m.db.Collection(collection).InsertOne(ctx, payload); err != nil {
		return "", fmt.Errorf("store: insert %s: %w", collection, err)
	}
	m.hub.publish(ctx, collection)
	return id, nil
}

func (m *Mongo) Set(ctx context.Context, collection, id string, doc model.Record, mergeDoc bool) error {
	if id == "" {
		return missingID(collection)
	}
	coll := m.db.Collection(collection)
	filter := bson.M{mongoIDKey: id}
	var err error
	if mergeDoc {
		_, err = coll.UpdateOne(ctx, filter, bson.M{"$set": toBSON(withoutID(doc))}, options.Update().SetUpsert(true))
	} else {
		_, err = coll.ReplaceOne(ctx, filter, toBSON(withoutID(doc)), options.Replace().SetUpsert(true))
	}
	if err != nil {
		return fmt.Errorf("store: set %s/%s: %w", collection, id, err)
	}
	m.hub.publish(ctx, collection)
	return nil
}

func (m *Mongo) Update(ctx context.Context, collection, id string, patch model.Record) error {
	if id == "" {
		return missingID(collection)
	}
	patch = withoutID(patch)
	if len(patch) == 0 {
		if _, err := m.Get(ctx, collection, id); err != nil {
			return err
		}
		return nil
	}
	res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{mongoIDKey: id}, bson.M{"$set": toBSON(patch)})
	if err != nil {
		return fmt.Errorf("store: update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return notFound(collection, id)
	}
	m.hub.publish(ctx, collection)
	return nil
}

func (m *Mongo) Delete(ctx context.Context, collection, id string) error {
	if id == "" {
		return missingID(collection)
	}
	if _, err := m.db.Collection(collection).DeleteOne(ctx, bson.M{mongoIDKey: id}); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, id, err)
	}
	m.hub.publish(ctx, collection)
	return nil
}

func (m *Mongo) Get(ctx context.Context, collection, id string) (model.Record, error) {
	var raw bson.M
	err := m.db.Collection(collection).FindOne(ctx, bson.M{mongoIDKey: id}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (m *Mongo) List(ctx context.Context, collection string) ([]model.Record, error) {
	return m.find(ctx, collection, bson.M{})
}

func (m *Mongo) Where(ctx context.Context, collection string, conds ...Condition) ([]model.Record, error) {
	if err := ValidateConditions(conds); err != nil {
		return nil, err
	}
	return m.find(ctx, collection, MongoFilter(conds))
}

func (m *Mongo) Subscribe(ctx context.Context, collection string, conds ...Condition) (<-chan Snapshot, error) {
	return m.hub.subscribe(ctx, collection, conds)
}

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

func (m *Mongo) find(ctx context.Context, collection string, filter bson.M) ([]model.Record, error) {
	cur, err := m.db.Collection(collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("store: find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []model.Record
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("store: decode %s: %w", collection, err)
		}
		out = append(out, fromBSON(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("store: find %s: %w", collection, err)
	}
	return out, nil
}

// MongoFilter translates conditions into a mongo query document. The "id"
// field addresses the primary key.
func MongoFilter(conds []Condition) bson.M {
	filter := bson.M{}
	for _, c := range conds {
		field := c.Field
		if field == IDKey {
			field = mongoIDKey
		}
		if c.Op == OpNotEquals {
			filter[field] = bson.M{"$ne": c.Value}
			continue
		}
		filter[field] = c.Value
	}
	return filter
}

func toBSON(doc model.Record) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = v
	}
	return out
}

// fromBSON converts a decoded document into a plain record: the primary key
// moves to "id" and nested bson containers become maps and slices.
func fromBSON(raw bson.M) model.Record {
	out := model.Record{}
	for k, v := range raw {
		if k == mongoIDKey {
			out[IDKey] = fmt.Sprint(v)
			continue
		}
		out[k] = plainBSON(v)
	}
	return out
}

func plainBSON(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := map[string]any{}
		for k, inner := range t {
			out[k] = plainBSON(inner)
		}
		return out
	case bson.D:
		out := map[string]any{}
		for _, e := range t {
			out[e.Key] = plainBSON(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = plainBSON(inner)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	}
	return v
}
