package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Rrens/livedesk/internal/config"
	"github.com/Rrens/livedesk/internal/domain"
)

const activityCollection = "activity_logs"

// ActivityRepository implements domain.ActivityRepository on MongoDB. The
// audit stream is high-volume and append-only, so it goes to a document
// store instead of the relational one.
type ActivityRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewActivityRepository connects to MongoDB and returns the activity sink
func NewActivityRepository(ctx context.Context, cfg config.MongoConfig) (*ActivityRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &ActivityRepository{
		client:     client,
		collection: client.Database(cfg.Database).Collection(activityCollection),
	}, nil
}

// Record inserts one audit entry
func (r *ActivityRepository) Record(ctx context.Context, entry *domain.ActivityEntry) error {
	if _, err := r.collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record activity: %w", err)
	}
	return nil
}

// Close disconnects the client
func (r *ActivityRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
