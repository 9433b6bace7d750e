package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cyderes/facebook-auto-poster/internal/config"
	"github.com/cyderes/facebook-auto-poster/internal/models"
)

// FileStorage keeps the last batch as a comma-joined text file and the run
// status as JSON next to it.
type FileStorage struct {
	batchPath  string
	statusPath string
}

// NewFileStorage creates a file-backed storage
func NewFileStorage(cfg config.StorageConfig) *FileStorage {
	return &FileStorage{
		batchPath:  cfg.LastBatchFile,
		statusPath: cfg.StatusFile,
	}
}

// LoadLastBatch reads the batch file; a missing file is an empty batch
func (f *FileStorage) LoadLastBatch(_ context.Context) (models.PostedBatch, error) {
	data, err := os.ReadFile(f.batchPath)
	if errors.Is(err, fs.ErrNotExist) {
		return models.PostedBatch{}, nil
	}
	if err != nil {
		return models.PostedBatch{}, persistenceError("read "+f.batchPath, err)
	}
	return ParseBatch(string(data)), nil
}

// SaveLastBatch overwrites the batch file
func (f *FileStorage) SaveLastBatch(_ context.Context, batch models.PostedBatch) error {
	if err := writeFileAtomic(f.batchPath, []byte(FormatBatch(batch))); err != nil {
		return persistenceError("write "+f.batchPath, err)
	}
	return nil
}

// UpdateRunStatus writes the status file
func (f *FileStorage) UpdateRunStatus(_ context.Context, status models.RunStatus) error {
	if f.statusPath == "" {
		return nil
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return persistenceError("marshal run status", err)
	}
	if err := writeFileAtomic(f.statusPath, data); err != nil {
		return persistenceError("write "+f.statusPath, err)
	}
	return nil
}

// GetRunStatus reads the status file
func (f *FileStorage) GetRunStatus(_ context.Context) (*models.RunStatus, error) {
	if f.statusPath == "" {
		return neverRunStatus(), nil
	}
	data, err := os.ReadFile(f.statusPath)
	if errors.Is(err, fs.ErrNotExist) {
		return neverRunStatus(), nil
	}
	if err != nil {
		return nil, persistenceError("read "+f.statusPath, err)
	}

	var status models.RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, persistenceError("unmarshal run status", err)
	}
	return &status, nil
}

// Close is a no-op for files
func (f *FileStorage) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
