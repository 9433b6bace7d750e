package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyderes/facebook-auto-poster/internal/config"
)

func TestNewStorage_File(t *testing.T) {
	store, err := NewStorage(context.Background(), config.StorageConfig{Type: "file", LastBatchFile: "x.csv"})

	require.NoError(t, err)
	_, ok := store.(*FileStorage)
	assert.True(t, ok)
}

func TestNewStorage_Unsupported(t *testing.T) {
	store, err := NewStorage(context.Background(), config.StorageConfig{Type: "cassandra"})

	assert.Nil(t, store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage type: cassandra")
}

func TestNewStorage_MissingConnectionSettings(t *testing.T) {
	for _, typ := range []string{"mongodb", "postgresql", "redis"} {
		t.Run(typ, func(t *testing.T) {
			_, err := NewStorage(context.Background(), config.StorageConfig{Type: typ})
			assert.Error(t, err)
		})
	}
}
