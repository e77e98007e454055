package acl

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lingvodoc/lingvodoc/internal/platform/db"
)

// Reader hands out a Store bound to one consistent snapshot for the duration of fn.
type Reader interface {
	Read(ctx context.Context, fn func(Store) error) error
}

// PGReader opens a read-only transaction per Read.
type PGReader struct {
	pool *pgxpool.Pool
}

// NewPGReader constructs a PGReader.
func NewPGReader(pool *pgxpool.Pool) *PGReader {
	return &PGReader{pool: pool}
}

// Read implements Reader.
func (r *PGReader) Read(ctx context.Context, fn func(Store) error) error {
	return db.WithReadTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(NewPGStore(tx))
	})
}

var _ Reader = (*PGReader)(nil)
