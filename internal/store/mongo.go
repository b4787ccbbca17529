package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/jcarrillo7/weather-station-api/internal/weather"
)

// isoLayout is RFC 3339 with fixed-width milliseconds so that string
// comparison in range queries orders the same as the instants themselves.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// MongoStore persists observations as one document each in a Mongo
// collection, timestamp serialized as an ISO-8601 string. Single-document
// inserts are the only write path; their per-operation atomicity is the
// sole mutual-exclusion boundary between the poller and request handlers.
type MongoStore struct {
	col *mongo.Collection
}

// NewMongoStore creates a store over the "observations" collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("observations")}
}

// Insert appends one observation. Observations are never updated or
// deleted.
func (s *MongoStore) Insert(ctx context.Context, obs weather.Observation) error {
	if _, err := s.col.InsertOne(ctx, toDoc(obs)); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// Latest returns the most recent observation.
func (s *MongoStore) Latest(ctx context.Context) (weather.Observation, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var doc observationDoc
	err := s.col.FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return weather.Observation{}, weather.ErrNotFound
	}
	if err != nil {
		return weather.Observation{}, fmt.Errorf("query latest observation: %w", err)
	}
	return fromDoc(doc), nil
}

// Range returns observations with from <= timestamp < to, ascending.
func (s *MongoStore) Range(ctx context.Context, from, to time.Time) ([]weather.Observation, error) {
	filter := bson.M{
		"timestamp": bson.M{
			"$gte": from.UTC().Format(isoLayout),
			"$lt":  to.UTC().Format(isoLayout),
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query observation range: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []observationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode observation range: %w", err)
	}

	observations := make([]weather.Observation, 0, len(docs))
	for _, doc := range docs {
		observations = append(observations, fromDoc(doc))
	}
	return observations, nil
}

// Exists reports whether an observation with the given id is stored.
func (s *MongoStore) Exists(ctx context.Context, id string) (bool, error) {
	err := s.col.FindOne(ctx, bson.M{"id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check observation id: %w", err)
	}
	return true, nil
}

// observationDoc is the persisted document shape. All measurement fields
// come from the inlined Observation; the timestamp is overridden with the
// string form.
type observationDoc struct {
	weather.Observation `bson:",inline"`
	Timestamp           string `bson:"timestamp"`
}

func toDoc(obs weather.Observation) observationDoc {
	return observationDoc{
		Observation: obs,
		Timestamp:   obs.Timestamp.UTC().Format(isoLayout),
	}
}

func fromDoc(doc observationDoc) weather.Observation {
	obs := doc.Observation
	ts, err := time.Parse(time.RFC3339, doc.Timestamp)
	if err != nil {
		ts = time.Time{}
	}
	obs.Timestamp = ts.UTC()
	return obs
}
