package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

// Keys of the two state entries kept by every backend
const (
	lastBatchKey = "last_batch"
	runStatusKey = "run_status"
)

// Storage interface defines the contract for poster state
type Storage interface {
	// LoadLastBatch returns an empty batch when no state exists yet
	LoadLastBatch(ctx context.Context) (models.PostedBatch, error)
	// SaveLastBatch replaces the stored batch wholesale
	SaveLastBatch(ctx context.Context, batch models.PostedBatch) error
	UpdateRunStatus(ctx context.Context, status models.RunStatus) error
	GetRunStatus(ctx context.Context) (*models.RunStatus, error)
	Close() error
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "file", "":
		return NewFileStorage(cfg), nil
	case "dynamodb":
		return NewDynamoDBStorage(cfg)
	case "mongodb":
		return NewMongoDBStorage(ctx, cfg)
	case "postgresql":
		return NewPostgreSQLStorage(ctx, cfg)
	case "redis":
		return NewRedisStorage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// ParseBatch reads a delimiter-joined identifier list. Whitespace, empty
// entries and duplicates are ignored.
func ParseBatch(content string) models.PostedBatch {
	var batch models.PostedBatch
	for _, id := range strings.Split(content, ",") {
		batch.Add(strings.TrimSpace(id))
	}
	return batch
}

// FormatBatch renders a batch as a comma-joined identifier list
func FormatBatch(batch models.PostedBatch) string {
	return strings.Join(batch.IDs(), ",")
}

func neverRunStatus() *models.RunStatus {
	return &models.RunStatus{Status: models.StatusNeverRun}
}

func persistenceError(action string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", models.ErrPersistence, action, err)
}
