package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/sketch-match/internal/database"
)

// RegistryRepository provides PostgreSQL-backed face registry storage
type RegistryRepository struct {
	pool *Pool
}

// NewRegistryRepository creates a new PostgreSQL registry repository
func NewRegistryRepository(pool *Pool) *RegistryRepository {
	return &RegistryRepository{pool: pool}
}

// Record stores an entry, replacing the previous one for the same collection and object key
func (r *RegistryRepository) Record(ctx context.Context, e database.Entry) error {
	query := `
		INSERT INTO face_registry (collection_id, object_key, external_id, face_ids, indexed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (collection_id, object_key) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			face_ids = EXCLUDED.face_ids,
			indexed_at = EXCLUDED.indexed_at
	`

	faceIDs := e.FaceIDs
	if faceIDs == nil {
		faceIDs = []string{}
	}
	if e.IndexedAt.IsZero() {
		e.IndexedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, query, e.CollectionID, e.ObjectKey, e.ExternalID, pq.Array(faceIDs), e.IndexedAt.UTC())
	if err != nil {
		return fmt.Errorf("record %s: %w", e.ObjectKey, err)
	}
	return nil
}

// Lookup returns the entry for an object key, nil if not found
func (r *RegistryRepository) Lookup(ctx context.Context, collectionID, objectKey string) (*database.Entry, error) {
	query := `
		SELECT external_id, object_key, collection_id, face_ids, indexed_at
		FROM face_registry
		WHERE collection_id = $1 AND object_key = $2
	`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, collectionID, objectKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", objectKey, err)
	}
	return e, nil
}

// LookupFace returns the entry holding faceID, nil if not found
func (r *RegistryRepository) LookupFace(ctx context.Context, collectionID, faceID string) (*database.Entry, error) {
	query := `
		SELECT external_id, object_key, collection_id, face_ids, indexed_at
		FROM face_registry
		WHERE collection_id = $1 AND face_ids @> ARRAY[$2::TEXT]
		LIMIT 1
	`

	e, err := scanEntry(r.pool.QueryRow(ctx, query, collectionID, faceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup face %s: %w", faceID, err)
	}
	return e, nil
}

// ListByExternalID returns the entries indexed under externalID
func (r *RegistryRepository) ListByExternalID(ctx context.Context, collectionID, externalID string) ([]database.Entry, error) {
	query := `
		SELECT external_id, object_key, collection_id, face_ids, indexed_at
		FROM face_registry
		WHERE collection_id = $1 AND external_id = $2
		ORDER BY object_key
	`

	rows, err := r.pool.Query(ctx, query, collectionID, externalID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", externalID, err)
	}
	return scanEntries(rows)
}

// List returns entries whose object key starts with prefix
func (r *RegistryRepository) List(ctx context.Context, prefix string) ([]database.Entry, error) {
	query := `
		SELECT external_id, object_key, collection_id, face_ids, indexed_at
		FROM face_registry
		WHERE object_key LIKE $1
		ORDER BY object_key
	`

	rows, err := r.pool.Query(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("list registry: %w", err)
	}
	return scanEntries(rows)
}

// Count returns the number of registered object keys
func (r *RegistryRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM face_registry").Scan(&count); err != nil {
		return 0, fmt.Errorf("count registry: %w", err)
	}
	return count, nil
}

// Delete removes the entry for an object key
func (r *RegistryRepository) Delete(ctx context.Context, collectionID, objectKey string) error {
	query := "DELETE FROM face_registry WHERE collection_id = $1 AND object_key = $2"
	if _, err := r.pool.Exec(ctx, query, collectionID, objectKey); err != nil {
		return fmt.Errorf("delete %s: %w", objectKey, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*database.Entry, error) {
	var e database.Entry
	var faceIDs pq.StringArray
	if err := row.Scan(&e.ExternalID, &e.ObjectKey, &e.CollectionID, &faceIDs, &e.IndexedAt); err != nil {
		return nil, err
	}
	e.FaceIDs = []string(faceIDs)
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]database.Entry, error) {
	defer rows.Close()

	var entries []database.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registry entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registry: %w", err)
	}
	return entries, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards so prefix matches literally
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
