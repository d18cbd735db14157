package checkpoint

import (
	"context"
	"fmt"
	"strings"

	"archivescraper/pkg/config"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"

	"github.com/redis/go-redis/v9"
)

// Store persists dataset progress and results
type Store interface {
	// LoadProgress returns nil, nil when no progress exists for the dataset
	LoadProgress(ctx context.Context, datasetID int) (*models.DatasetProgress, error)
	SaveProgress(ctx context.Context, p *models.DatasetProgress) error
	ClearProgress(ctx context.Context, datasetID int) error

	// LoadResult returns nil, nil when the dataset was never exported
	LoadResult(ctx context.Context, datasetID int) (*models.DatasetResult, error)
	SaveResult(ctx context.Context, r *models.DatasetResult) error

	Close() error
}

// NewStore builds the backend selected by configuration
func NewStore(cfg config.StorageConfig, log logger.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Directory, log)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisStore(client, cfg.RedisPrefix, log), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func progressFileName(datasetID int) string {
	return fmt.Sprintf("progress-%d.json", datasetID)
}

func resultFileName(datasetID int) string {
	return fmt.Sprintf("data-set-%d.json", datasetID)
}
