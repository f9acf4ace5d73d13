package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ledgerCacheKey is the Redis set holding already-ingested filenames.
const ledgerCacheKey = "ingest:ledger"

// Ledger is the durable record of container filenames already fully
// ingested — the idempotency boundary of the pipeline. Postgres is the
// source of truth; a Redis set serves as a read-through cache and the
// ledger degrades to Postgres-only when Redis is unavailable.
type Ledger struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewLedger constructs a Ledger. rdb may be nil to run without caching.
func NewLedger(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *Ledger {
	return &Ledger{pool: pool, rdb: rdb, log: log}
}

// Exists reports whether filename has already been fully ingested.
func (l *Ledger) Exists(ctx context.Context, filename string) (bool, error) {
	if l.rdb != nil {
		cached, err := l.rdb.SIsMember(ctx, ledgerCacheKey, filename).Result()
		if err != nil {
			l.log.Warn().Err(err).Msg("ledger cache lookup failed, falling back to postgres")
		} else if cached {
			return true, nil
		}
	}

	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ingested_files WHERE filename = $1)`,
		filename,
	).Scan(&exists)
	if err != nil {
		return false, &PersistenceError{Op: "ledger exists", Err: err}
	}

	if exists && l.rdb != nil {
		// Backfill the cache so the next run short-circuits.
		if err := l.rdb.SAdd(ctx, ledgerCacheKey, filename).Err(); err != nil {
			l.log.Warn().Err(err).Msg("ledger cache backfill failed")
		}
	}

	return exists, nil
}

// Record marks filename as fully ingested. Callers must invoke it only
// after the entire per-file pipeline completed: a crash mid-pipeline must
// leave the file unledgered so the next run retries it.
func (l *Ledger) Record(ctx context.Context, filename string) error {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO ingested_files (filename) VALUES ($1)
		 ON CONFLICT (filename) DO NOTHING`,
		filename,
	)
	if err != nil {
		return &PersistenceError{Op: "ledger record", Err: err}
	}
	if tag.RowsAffected() == 0 {
		l.log.Debug().Str("filename", filename).Msg("filename already ledgered")
	}

	if l.rdb != nil {
		if err := l.rdb.SAdd(ctx, ledgerCacheKey, filename).Err(); err != nil {
			l.log.Warn().Err(err).Msg("ledger cache update failed")
		}
	}

	return nil
}
