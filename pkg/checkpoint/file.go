package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
)

// FileStore keeps progress and results as JSON files in one directory
type FileStore struct {
	dir    string
	logger logger.Logger
	now    func() time.Time
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string, log logger.Logger) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create progress directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &FileStore{dir: dir, logger: log, now: time.Now}, nil
}

// ProgressPath returns the progress file location for a dataset
func (s *FileStore) ProgressPath(datasetID int) string {
	return filepath.Join(s.dir, progressFileName(datasetID))
}

// ResultPath returns the result file location for a dataset
func (s *FileStore) ResultPath(datasetID int) string {
	return filepath.Join(s.dir, resultFileName(datasetID))
}

// LoadProgress reads progress-<id>.json. A missing or empty file means no progress.
func (s *FileStore) LoadProgress(ctx context.Context, datasetID int) (*models.DatasetProgress, error) {
	var p models.DatasetProgress
	found, err := readJSON(s.ProgressPath(datasetID), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for dataset %d: %w", datasetID, err)
	}
	if !found {
		return nil, nil
	}
	p.Normalize()

	s.logger.InfoWithFields("Progress loaded", map[string]interface{}{
		"dataset":   datasetID,
		"completed": len(p.CompletedPages),
		"failed":    len(p.FailedPages),
		"links":     len(p.Links),
	})
	return &p, nil
}

// SaveProgress stamps LastUpdated and writes the progress atomically
func (s *FileStore) SaveProgress(ctx context.Context, p *models.DatasetProgress) error {
	p.LastUpdated = s.now().UTC()
	if err := writeJSONAtomic(s.ProgressPath(p.DatasetID), p); err != nil {
		return fmt.Errorf("failed to save progress for dataset %d: %w", p.DatasetID, err)
	}

	s.logger.DebugWithFields("Progress saved", map[string]interface{}{
		"dataset":   p.DatasetID,
		"completed": len(p.CompletedPages),
		"failed":    len(p.FailedPages),
	})
	return nil
}

// ClearProgress keeps a .backup copy of the progress file and removes it
func (s *FileStore) ClearProgress(ctx context.Context, datasetID int) error {
	path := s.ProgressPath(datasetID)
	if err := backupFile(path); err != nil {
		return fmt.Errorf("failed to back up progress: %w", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear progress: %w", err)
	}

	s.logger.InfoWithFields("Progress cleared", map[string]interface{}{"dataset": datasetID})
	return nil
}

// LoadResult reads data-set-<id>.json
func (s *FileStore) LoadResult(ctx context.Context, datasetID int) (*models.DatasetResult, error) {
	var r models.DatasetResult
	found, err := readJSON(s.ResultPath(datasetID), &r)
	if err != nil {
		return nil, fmt.Errorf("failed to load result for dataset %d: %w", datasetID, err)
	}
	if !found {
		return nil, nil
	}
	return &r, nil
}

// SaveResult overwrites data-set-<id>.json
func (s *FileStore) SaveResult(ctx context.Context, r *models.DatasetResult) error {
	if err := writeJSONAtomic(s.ResultPath(r.DatasetID), r); err != nil {
		return fmt.Errorf("failed to save result for dataset %d: %w", r.DatasetID, err)
	}

	s.logger.InfoWithFields("Result saved", map[string]interface{}{
		"dataset": r.DatasetID,
		"pages":   r.TotalPages,
		"links":   len(r.Links),
		"path":    s.ResultPath(r.DatasetID),
	})
	return nil
}

func (s *FileStore) Close() error { return nil }

func readJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// writeJSONAtomic encodes v into a temp file in the target directory and renames it into place
func writeJSONAtomic(path string, v interface{}) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tempPath := file.Name()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace file: %w", err)
	}
	return nil
}

func backupFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".backup")
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}
