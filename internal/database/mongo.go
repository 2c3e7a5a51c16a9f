package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"instafeed/internal/config"
)

// Document collections.
const (
	ProfilesCollection = "profiles"
	PostsCollection    = "posts"
	CommentsCollection = "comments"
)

// Mongo is the document store.
type Mongo struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func ConnectMongo(cfg *config.Config) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Mongo.ConnectTimeout)
	defer cancel()

	logger.Infof("connecting to mongo: database=%s", cfg.Mongo.Database)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("could not connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	logger.Infof("connected to mongo")
	return &Mongo{
		Client:   client,
		Database: client.Database(cfg.Mongo.Database),
	}, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *Mongo) HealthCheck(ctx context.Context) error {
	if m == nil || m.Client == nil {
		return fmt.Errorf("mongo connection is not initialized")
	}
	return m.Client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the repositories query by. It is safe
// to run repeatedly.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		ProfilesCollection: {
			{
				Keys: bson.D{{Key: "handle", Value: 1}},
				// profiles created on first login have no handle yet
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"handle": bson.M{"$gt": ""}}),
			},
		},
		PostsCollection: {
			{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "searchTokens", Value: 1}}},
		},
		CommentsCollection: {
			{Keys: bson.D{{Key: "postId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
	}

	for collection, models := range indexes {
		if _, err := m.Database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", collection, err)
		}
		logger.Debugf("indexes ensured on %s", collection)
	}

	return nil
}
