package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/molbubble/internal/core/ports"
	"github.com/samirrijal/molbubble/internal/pkg/metrics"
)

// PersistRepo implements ports.PersistentStorage with pgx on the persist table.
type PersistRepo struct {
	db        *DB
	namespace string
}

// NewPersistRepo creates a new PersistRepo.
func NewPersistRepo(db *DB, namespace string) *PersistRepo {
	return &PersistRepo{db: db, namespace: namespace}
}

// ReadInt reads an integer value.
func (r *PersistRepo) ReadInt(ctx context.Context, key uint32) (int32, error) {
	metrics.PersistOps.WithLabelValues("postgres", "read").Inc()
	var v *int32
	err := r.db.Pool.QueryRow(ctx, `
		SELECT int_value FROM persist WHERE namespace = $1 AND key = $2
	`, r.namespace, int64(key)).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ports.ErrKeyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read int %d: %w", key, err)
	}
	if v == nil {
		return 0, ports.ErrKeyNotFound
	}
	return *v, nil
}

// WriteInt stores an integer value.
func (r *PersistRepo) WriteInt(ctx context.Context, key uint32, value int32) error {
	metrics.PersistOps.WithLabelValues("postgres", "write").Inc()
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO persist (namespace, key, int_value, data, updated_at)
		VALUES ($1, $2, $3, NULL, NOW())
		ON CONFLICT (namespace, key) DO UPDATE
		SET int_value = EXCLUDED.int_value, data = NULL, updated_at = NOW()
	`, r.namespace, int64(key), value)
	if err != nil {
		return fmt.Errorf("write int %d: %w", key, err)
	}
	return nil
}

// ReadData reads a binary value.
func (r *PersistRepo) ReadData(ctx context.Context, key uint32) ([]byte, error) {
	metrics.PersistOps.WithLabelValues("postgres", "read").Inc()
	var data []byte
	err := r.db.Pool.QueryRow(ctx, `
		SELECT data FROM persist WHERE namespace = $1 AND key = $2
	`, r.namespace, int64(key)).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ports.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read data %d: %w", key, err)
	}
	if data == nil {
		return nil, ports.ErrKeyNotFound
	}
	return data, nil
}

// WriteData stores a binary value.
func (r *PersistRepo) WriteData(ctx context.Context, key uint32, data []byte) error {
	metrics.PersistOps.WithLabelValues("postgres", "write").Inc()
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO persist (namespace, key, int_value, data, updated_at)
		VALUES ($1, $2, NULL, $3, NOW())
		ON CONFLICT (namespace, key) DO UPDATE
		SET int_value = NULL, data = EXCLUDED.data, updated_at = NOW()
	`, r.namespace, int64(key), data)
	if err != nil {
		return fmt.Errorf("write data %d: %w", key, err)
	}
	return nil
}

// Delete removes a key.
func (r *PersistRepo) Delete(ctx context.Context, key uint32) error {
	metrics.PersistOps.WithLabelValues("postgres", "delete").Inc()
	_, err := r.db.Pool.Exec(ctx, `
		DELETE FROM persist WHERE namespace = $1 AND key = $2
	`, r.namespace, int64(key))
	if err != nil {
		return fmt.Errorf("delete %d: %w", key, err)
	}
	return nil
}

// Ping checks the database is reachable.
func (r *PersistRepo) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
