package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

const mongoCollection = "poster_state"

// MongoDBStorage implements Storage using a single MongoDB collection
type MongoDBStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type batchDocument struct {
	ID          string    `bson:"_id"`
	Identifiers []string  `bson:"identifiers"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type statusDocument struct {
	ID               string `bson:"_id"`
	models.RunStatus `bson:",inline"`
}

// NewMongoDBStorage connects to MongoDB and verifies the connection
func NewMongoDBStorage(ctx context.Context, cfg config.StorageConfig) (*MongoDBStorage, error) {
	if cfg.MongoDBURI == "" {
		return nil, errors.New("MONGODB_URI is required for mongodb storage")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoDBURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	storage := newMongoDBStorage(client.Database(cfg.MongoDatabase).Collection(mongoCollection))
	storage.client = client
	return storage, nil
}

func newMongoDBStorage(collection *mongo.Collection) *MongoDBStorage {
	return &MongoDBStorage{collection: collection}
}

// LoadLastBatch reads the last_batch document
func (m *MongoDBStorage) LoadLastBatch(ctx context.Context) (models.PostedBatch, error) {
	var doc batchDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": lastBatchKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.PostedBatch{}, nil
	}
	if err != nil {
		return models.PostedBatch{}, persistenceError("find last batch", err)
	}
	return models.NewPostedBatch(doc.Identifiers...), nil
}

// SaveLastBatch replaces the last_batch document
func (m *MongoDBStorage) SaveLastBatch(ctx context.Context, batch models.PostedBatch) error {
	doc := batchDocument{
		ID:          lastBatchKey,
		Identifiers: batch.IDs(),
		UpdatedAt:   time.Now().UTC(),
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": lastBatchKey}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return persistenceError("replace last batch", err)
	}
	return nil
}

// UpdateRunStatus replaces the run_status document
func (m *MongoDBStorage) UpdateRunStatus(ctx context.Context, status models.RunStatus) error {
	doc := statusDocument{ID: runStatusKey, RunStatus: status}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": runStatusKey}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return persistenceError("replace run status", err)
	}
	return nil
}

// GetRunStatus reads the run_status document
func (m *MongoDBStorage) GetRunStatus(ctx context.Context) (*models.RunStatus, error) {
	var doc statusDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": runStatusKey}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return neverRunStatus(), nil
	}
	if err != nil {
		return nil, persistenceError("find run status", err)
	}
	return &doc.RunStatus, nil
}

// Close disconnects the client
func (m *MongoDBStorage) Close() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
