package analytics

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sundayezeilo/shortlinks/internal/errx"
)

// MongoCollection holds one document per event.
const MongoCollection = "analytics"

type mongoEvent struct {
	ID         string    `bson:"_id"`
	ShortURLID string    `bson:"shortUrlId"`
	IPAddress  string    `bson:"ipAddress"`
	Timestamp  time.Time `bson:"timestamp"`
}

// MongoStore writes events to a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(database *mongo.Database) *MongoStore {
	return &MongoStore{coll: database.Collection(MongoCollection)}
}

// EnsureIndexes creates the shortUrlId index used by Count. Safe to call repeatedly.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "shortUrlId", Value: 1}},
		Options: options.Index().SetName("shortUrlId_1"),
	})
	if err != nil {
		return fmt.Errorf("create analytics index: %w", err)
	}
	return nil
}

func (s *MongoStore) Insert(ctx context.Context, e Event) error {
	const op = "analytics.MongoStore.Insert"

	_, err := s.coll.InsertOne(ctx, mongoEvent{
		ID:         e.ID.String(),
		ShortURLID: e.ShortURLID,
		IPAddress:  e.IPAddress,
		Timestamp:  e.Timestamp.UTC(),
	})
	if err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context, shortURLID string) (int64, error) {
	const op = "analytics.MongoStore.Count"

	n, err := s.coll.CountDocuments(ctx, bson.M{"shortUrlId": shortURLID})
	if err != nil {
		return 0, errx.E(op, errx.Unavailable, err)
	}
	return n, nil
}

// ConnectMongo dials uri and verifies the primary is reachable.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
