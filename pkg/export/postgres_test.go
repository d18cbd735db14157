package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"archivescraper/pkg/logger"
	"archivescraper/pkg/models"
	"archivescraper/pkg/retry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB treats url as the primary key and remembers inserted rows
type fakeDB struct {
	execs    []string
	batches  []int
	existing map[string]bool
	execErr  error
	batchErr error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), f.execErr
}

func (f *fakeDB) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batches = append(f.batches, b.Len())
	res := &fakeResults{err: f.batchErr}
	for _, q := range b.QueuedQueries {
		url := q.Arguments[0].(string)
		if f.existing[url] {
			res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 0"))
			continue
		}
		f.existing[url] = true
		res.tags = append(res.tags, pgconn.NewCommandTag("INSERT 0 1"))
	}
	return res
}

type fakeResults struct {
	tags []pgconn.CommandTag
	i    int
	err  error
}

func (r *fakeResults) Exec() (pgconn.CommandTag, error) {
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	tag := r.tags[r.i]
	r.i++
	return tag, nil
}

func (r *fakeResults) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (r *fakeResults) QueryRow() pgx.Row         { return nil }
func (r *fakeResults) Close() error              { return nil }

func makeResult(n int) *models.DatasetResult {
	links := make([]models.ExportedLink, n)
	for i := range links {
		name := "EFTA" + strings.Repeat("0", 4) + string(rune('A'+i%26)) + string(rune('a'+i/26)) + ".mp4"
		links[i] = models.ExportedLink{Filename: name, URL: "https://www.justice.gov/epstein/files/" + name}
	}
	return &models.DatasetResult{DatasetID: 9, TotalPages: 3, ScrapedAt: time.Now(), Links: links}
}

func TestPublishBatches(t *testing.T) {
	db := &fakeDB{existing: map[string]bool{}}
	p, err := NewPublisher(db, "", 100, logger.NewNopLogger())
	require.NoError(t, err)

	r := makeResult(250)
	stats, err := p.Publish(context.Background(), r)
	require.NoError(t, err)

	assert.Equal(t, []int{100, 100, 50}, db.batches)
	assert.Equal(t, Stats{Rows: 250, Inserted: 250, Batches: 3}, stats)
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0], "CREATE TABLE IF NOT EXISTS media_links")

	// second publish inserts nothing new
	stats, err = p.Publish(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Inserted)
}

func TestPublishDuplicateLinks(t *testing.T) {
	db := &fakeDB{existing: map[string]bool{}}
	p, err := NewPublisher(db, "links", 10, logger.NewNopLogger())
	require.NoError(t, err)

	r := makeResult(2)
	r.Links = append(r.Links, r.Links[0])
	stats, err := p.Publish(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 2, stats.Inserted)
}

func TestPublishErrors(t *testing.T) {
	db := &fakeDB{existing: map[string]bool{}, batchErr: errors.New("connection reset")}
	p, err := NewPublisher(db, "", 100, logger.NewNopLogger())
	require.NoError(t, err)
	p.retry = &retry.Config{MaxAttempts: 2, Backoff: &retry.ExponentialBackoff{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}}

	_, err = p.Publish(context.Background(), makeResult(5))
	require.Error(t, err)
	assert.ErrorContains(t, errors.Unwrap(err), "connection reset")
	assert.Len(t, db.batches, 2, "failed batch is retried")

	db = &fakeDB{existing: map[string]bool{}, execErr: errors.New("permission denied")}
	p, _ = NewPublisher(db, "", 100, logger.NewNopLogger())
	_, err = p.Publish(context.Background(), makeResult(5))
	assert.ErrorContains(t, err, "failed to create table")
	assert.Empty(t, db.batches)
}

func TestNewPublisherRejectsBadTable(t *testing.T) {
	_, err := NewPublisher(&fakeDB{}, "links; DROP TABLE x", 100, nil)
	assert.Error(t, err)
}

func TestMediaID(t *testing.T) {
	tests := map[string]string{
		"EFTA00001.mp4":  "EFTA00001",
		"clip.final.MP4": "clip.final",
		"noext":          "noext",
		".hidden":        ".hidden",
	}
	for in, want := range tests {
		if got := MediaID(in); got != want {
			t.Errorf("MediaID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChunk(t *testing.T) {
	links := makeResult(5).Links
	chunks := Chunk(links, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[2], 1)
	assert.Nil(t, Chunk(nil, 100))
}
