package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps progress and results as JSON strings in Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	logger logger.Logger
	now    func() time.Time
}

// NewRedisStore wraps an existing client. Keys are namespaced by prefix.
func NewRedisStore(client *redis.Client, prefix string, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "archivescraper"
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &RedisStore{client: client, prefix: prefix, logger: log, now: time.Now}
}

func (s *RedisStore) progressKey(datasetID int) string {
	return fmt.Sprintf("%s:progress:%d", s.prefix, datasetID)
}

func (s *RedisStore) resultKey(datasetID int) string {
	return fmt.Sprintf("%s:result:%d", s.prefix, datasetID)
}

func (s *RedisStore) LoadProgress(ctx context.Context, datasetID int) (*models.DatasetProgress, error) {
	var p models.DatasetProgress
	found, err := s.get(ctx, s.progressKey(datasetID), &p)
	if err != nil {
		return nil, fmt.Errorf("failed to load progress for dataset %d: %w", datasetID, err)
	}
	if !found {
		return nil, nil
	}
	p.Normalize()
	return &p, nil
}

func (s *RedisStore) SaveProgress(ctx context.Context, p *models.DatasetProgress) error {
	p.LastUpdated = s.now().UTC()
	if err := s.set(ctx, s.progressKey(p.DatasetID), p); err != nil {
		return fmt.Errorf("failed to save progress for dataset %d: %w", p.DatasetID, err)
	}
	s.logger.DebugWithFields("Progress saved", map[string]interface{}{
		"dataset":   p.DatasetID,
		"completed": len(p.CompletedPages),
		"backend":   "redis",
	})
	return nil
}

func (s *RedisStore) ClearProgress(ctx context.Context, datasetID int) error {
	if err := s.client.Del(ctx, s.progressKey(datasetID)).Err(); err != nil {
		return fmt.Errorf("failed to clear progress: %w", err)
	}
	s.logger.InfoWithFields("Progress cleared", map[string]interface{}{"dataset": datasetID, "backend": "redis"})
	return nil
}

func (s *RedisStore) LoadResult(ctx context.Context, datasetID int) (*models.DatasetResult, error) {
	var r models.DatasetResult
	found, err := s.get(ctx, s.resultKey(datasetID), &r)
	if err != nil {
		return nil, fmt.Errorf("failed to load result for dataset %d: %w", datasetID, err)
	}
	if !found {
		return nil, nil
	}
	return &r, nil
}

func (s *RedisStore) SaveResult(ctx context.Context, r *models.DatasetResult) error {
	if err := s.set(ctx, s.resultKey(r.DatasetID), r); err != nil {
		return fmt.Errorf("failed to save result for dataset %d: %w", r.DatasetID, err)
	}
	s.logger.InfoWithFields("Result saved", map[string]interface{}{
		"dataset": r.DatasetID,
		"links":   len(r.Links),
		"key":     s.resultKey(r.DatasetID),
	})
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) get(ctx context.Context, key string, v interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}
