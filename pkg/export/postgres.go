// Package export publishes discovered media links to PostgreSQL.
package export

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"archivescraper/pkg/config"
	errs "archivescraper/pkg/errors"
	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
	"archivescraper/pkg/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool the publisher uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Publisher inserts links in batches and skips rows that already exist
type Publisher struct {
	db        DB
	table     string
	batchSize int
	retry     *retry.Config
	logger    logger.Logger
	close     func()
}

// Stats reports the outcome of one Publish
type Stats struct {
	Rows     int
	Inserted int
	Batches  int
}

// Connect opens a pgx pool from configuration
func Connect(ctx context.Context, cfg config.ExportConfig, log logger.Logger) (*Publisher, error) {
	if cfg.PostgresURL == "" {
		return nil, errs.New(errs.ErrorTypeExport, "export.postgres_url is not set", nil)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeExport, "failed to create pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.New(errs.ErrorTypeExport, "failed to reach database", err)
	}

	p, err := NewPublisher(pool, cfg.Table, cfg.BatchSize, log)
	if err != nil {
		pool.Close()
		return nil, err
	}
	p.close = pool.Close
	return p, nil
}

// NewPublisher wraps an existing connection
func NewPublisher(db DB, table string, batchSize int, log logger.Logger) (*Publisher, error) {
	if table == "" {
		table = "media_links"
	}
	if !tableName.MatchString(table) {
		return nil, errs.New(errs.ErrorTypeExport, fmt.Sprintf("invalid table name %q", table), nil)
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if log == nil {
		log = logger.GetLogger()
	}

	cfg := retry.DefaultConfig()
	cfg.Logger = log

	return &Publisher{db: db, table: table, batchSize: batchSize, retry: cfg, logger: log}, nil
}

// Close releases the pool when the publisher owns it
func (p *Publisher) Close() {
	if p.close != nil {
		p.close()
	}
}

// EnsureTable creates the links table if it does not exist
func (p *Publisher) EnsureTable(ctx context.Context) error {
	_, err := p.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			url         TEXT PRIMARY KEY,
			id          TEXT NOT NULL,
			dataset_id  INTEGER NOT NULL,
			filename    TEXT NOT NULL,
			scraped_at  TIMESTAMPTZ NOT NULL
		)`, p.table))
	if err != nil {
		return errs.New(errs.ErrorTypeExport, "failed to create table", err)
	}
	return nil
}

// Publish inserts every link of r. Existing URLs are left untouched.
func (p *Publisher) Publish(ctx context.Context, r *models.DatasetResult) (Stats, error) {
	if err := p.EnsureTable(ctx); err != nil {
		return Stats{}, err
	}

	stats := Stats{Rows: len(r.Links)}
	query := fmt.Sprintf(`
		INSERT INTO %s (url, id, dataset_id, filename, scraped_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`, p.table)

	for _, chunk := range Chunk(r.Links, p.batchSize) {
		inserted, err := retry.DoWithResult(func() (int, error) {
			return p.sendBatch(ctx, query, r.DatasetID, r.ScrapedAt, chunk)
		}, p.retryConfig(ctx))
		if err != nil {
			return stats, errs.New(errs.ErrorTypeExport, fmt.Sprintf("batch %d failed", stats.Batches+1), err)
		}
		stats.Batches++
		stats.Inserted += inserted
	}

	p.logger.InfoWithFields("Links exported", map[string]interface{}{
		"dataset":  r.DatasetID,
		"rows":     stats.Rows,
		"inserted": stats.Inserted,
		"skipped":  stats.Rows - stats.Inserted,
		"table":    p.table,
	})
	return stats, nil
}

func (p *Publisher) retryConfig(ctx context.Context) *retry.Config {
	cfg := *p.retry
	cfg.Context = ctx
	return &cfg
}

func (p *Publisher) sendBatch(ctx context.Context, query string, datasetID int, scrapedAt time.Time, links []models.ExportedLink) (int, error) {
	batch := &pgx.Batch{}
	for _, l := range links {
		batch.Queue(query, l.URL, MediaID(l.Filename), datasetID, l.Filename, scrapedAt)
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range links {
		tag, err := results.Exec()
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// MediaID strips the extension from a filename
func MediaID(filename string) string {
	if i := strings.LastIndex(filename, "."); i > 0 {
		return filename[:i]
	}
	return filename
}

// Chunk splits links into consecutive slices of at most size
func Chunk(links []models.ExportedLink, size int) [][]models.ExportedLink {
	if size <= 0 {
		size = 1
	}
	var chunks [][]models.ExportedLink
	for start := 0; start < len(links); start += size {
		end := min(start+size, len(links))
		chunks = append(chunks, links[start:end])
	}
	return chunks
}
