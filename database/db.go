package database

import (
	"database/sql"
	"log"

	"github.com/pkg/errors"

	"github.com/tradeflowhq/tradeflow/cache"
	"github.com/tradeflowhq/tradeflow/config"

	_ "github.com/lib/pq"
)

// Datasource is the concrete postgres-backed store. Cache is optional; a
// nil cache simply disables read-through caching of intents.
type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

// NewDataSource connects to postgres and prepares the schema. Constructed
// once at process start and passed to the service explicitly.
func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	ds := &Datasource{Conn: con}
	c, err := cache.NewCache()
	if err != nil {
		log.Printf("intent cache disabled: %v", err)
		return ds, nil
	}
	return ds.WithCache(c), nil
}

// WithCache returns a copy of the datasource that serves intent reads
// through the given cache.
func (d *Datasource) WithCache(c cache.Cache) *Datasource {
	return &Datasource{Conn: d.Conn, Cache: c}
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, errors.Wrap(err, "opening database connection")
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, errors.Wrap(err, "pinging database")
	}
	err = createPendingActionTable(db)
	if err != nil {
		return nil, errors.Wrap(err, "preparing pending_actions schema")
	}
	return db, nil
}

// createPendingActionTable creates the pending_actions table and its
// indexes. The partial unique index is a backstop for the lifecycle-level
// dedup: at most one PENDING row per (session, kind, fingerprint).
func createPendingActionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_actions (
			id SERIAL PRIMARY KEY,
			intent_id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			action_kind TEXT NOT NULL,
			operation_name TEXT NOT NULL,
			payload JSONB,
			payload_fingerprint TEXT NOT NULL,
			preview_summary TEXT,
			status TEXT NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			expires_at TIMESTAMP NOT NULL,
			executing_since TIMESTAMP,
			finished_at TIMESTAMP,
			notes TEXT,
			meta_data JSONB
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_pending_actions_active_fingerprint
			ON pending_actions (session_id, action_kind, payload_fingerprint)
			WHERE status = 'PENDING';

		CREATE INDEX IF NOT EXISTS idx_pending_actions_session
			ON pending_actions (session_id, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_pending_actions_expiry
			ON pending_actions (expires_at)
			WHERE status = 'PENDING';

		CREATE INDEX IF NOT EXISTS idx_pending_actions_executing
			ON pending_actions (executing_since)
			WHERE status = 'EXECUTING';
	`)
	return err
}
