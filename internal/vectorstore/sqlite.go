package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS embeddings (
	id         TEXT PRIMARY KEY,
	dims       INTEGER NOT NULL,
	vector     BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_embeddings_dims ON embeddings(dims);
`

// SQLiteStore keeps vectors as little-endian float32 blobs. Distances are
// computed in SQL by vec_distance_cosine / vec_distance_l2, which come from
// the sqlite-vec extension or from the pure-Go registrations in this package,
// depending on the build.
type SQLiteStore struct {
	db     *sql.DB
	metric Metric
}

// OpenSQLite opens or creates the store at path
func OpenSQLite(path string, metric Metric) (*SQLiteStore, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	// One writer; SQLite serializes anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init vector store schema: %w", err)
	}

	return &SQLiteStore{db: db, metric: metric}, nil
}

// Upsert implements Store
func (s *SQLiteStore) Upsert(ctx context.Context, id string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("upsert %s: empty vector", id)
	}

	dims, err := s.dims(ctx, id)
	if err != nil {
		return err
	}
	if dims != 0 && dims != len(vector) {
		return fmt.Errorf("upsert %s: %w: store has %d, got %d", id, ErrDimensionMismatch, dims, len(vector))
	}

	blob, err := serializeVector(vector)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO embeddings (id, dims, vector, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET dims = excluded.dims, vector = excluded.vector, updated_at = excluded.updated_at`,
		id, len(vector), blob, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", id, err)
	}
	return nil
}

// dims returns the dimension of the vectors already stored, ignoring id itself
// so a lone vector may be replaced by one of another size
func (s *SQLiteStore) dims(ctx context.Context, id string) (int, error) {
	var dims int
	err := s.db.QueryRowContext(ctx, `SELECT dims FROM embeddings WHERE id <> ? LIMIT 1`, id).Scan(&dims)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read vector dimensions: %w", err)
	}
	return dims, nil
}

// Query implements Store
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	dims, err := s.dims(ctx, "")
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return []Match{}, nil
	}
	if dims != len(vector) {
		return nil, fmt.Errorf("query: %w: store has %d, got %d", ErrDimensionMismatch, dims, len(vector))
	}

	blob, err := serializeVector(vector)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	fn := "vec_distance_cosine"
	if s.metric == MetricEuclidean {
		fn = "vec_distance_l2"
	}
	if k <= 0 {
		k = -1 // no limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+fn+`(vector, ?) AS distance FROM embeddings ORDER BY distance, id LIMIT ?`,
		blob, k)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Distance); err != nil {
			return nil, fmt.Errorf("query: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Len implements Store
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count vectors: %w", err)
	}
	return n, nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) ([]byte, error) {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf, nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d not multiple of 4", len(blob))
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out, nil
}
