package audit

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS invocations (
	seq           BIGSERIAL PRIMARY KEY,
	invocation_id TEXT        NOT NULL UNIQUE,
	event_id      TEXT        NOT NULL DEFAULT '',
	client_id     TEXT        NOT NULL,
	tool          TEXT        NOT NULL,
	resource      TEXT        NOT NULL,
	operation     TEXT        NOT NULL,
	params_json   JSONB,
	params_canon  BYTEA       NOT NULL,
	outcome_canon BYTEA       NOT NULL,
	status        TEXT        NOT NULL,
	error_msg     TEXT        NOT NULL DEFAULT '',
	item_count    INTEGER     NOT NULL DEFAULT 0,
	duration_ms   BIGINT      NOT NULL DEFAULT 0,
	received_at   TIMESTAMPTZ NOT NULL,
	hash          TEXT        NOT NULL,
	prev_hash     TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS invocations_client_seq ON invocations (client_id, seq);

CREATE TABLE IF NOT EXISTS archive_checkpoints (
	client_id   TEXT        PRIMARY KEY,
	last_seq    BIGINT      NOT NULL,
	last_hash   TEXT        NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);`

// Checkpoint marks the last archived link of a client's chain.
type Checkpoint struct {
	Seq        int64
	Hash       string
	ArchivedAt time.Time
}

// Store persists invocations in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a ledger store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the ledger tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("audit.Migrate: %w", err)
	}
	return nil
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ──────────────────────────────────────────────────────────────────────────────
// Write path
// ──────────────────────────────────────────────────────────────────────────────

// Append seals and inserts inv. A per-client advisory lock serialises chain
// appends so concurrent writers cannot fork the chain.
func (s *Store) Append(ctx context.Context, inv *Invocation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("audit.Append begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", clientLockID(inv.ClientID)); err != nil {
		return fmt.Errorf("audit.Append advisory lock: %w", err)
	}

	prevHash, err := lastHashTx(ctx, tx, inv.ClientID)
	if err != nil {
		return fmt.Errorf("audit.Append last hash: %w", err)
	}
	if err := Seal(prevHash, inv); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO invocations (
			invocation_id, event_id, client_id, tool, resource, operation,
			params_json, params_canon, outcome_canon,
			status, error_msg, item_count, duration_ms,
			received_at, hash, prev_hash
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,
			$10,$11,$12,$13,
			$14,$15,$16
		)`,
		inv.InvocationID, inv.EventID, inv.ClientID, inv.Tool, inv.Resource, inv.Operation,
		[]byte(inv.Params), inv.ParamsCanon, inv.OutcomeCanon,
		inv.Status, inv.ErrorMsg, inv.ItemCount, inv.DurationMS,
		inv.ReceivedAt, inv.Hash, inv.PrevHash,
	)
	if err != nil {
		return fmt.Errorf("audit.Append insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("audit.Append commit: %w", err)
	}
	return nil
}

// SaveCheckpoint records how far a client's chain has been archived.
func (s *Store) SaveCheckpoint(ctx context.Context, clientID string, cp Checkpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO archive_checkpoints (client_id, last_seq, last_hash, archived_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (client_id) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, last_hash = EXCLUDED.last_hash, archived_at = EXCLUDED.archived_at`,
		clientID, cp.Seq, cp.Hash, cp.ArchivedAt)
	if err != nil {
		return fmt.Errorf("audit.SaveCheckpoint: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Read path
// ──────────────────────────────────────────────────────────────────────────────

// Checkpoint returns the archive checkpoint of a client; the zero value when
// nothing has been archived yet.
func (s *Store) Checkpoint(ctx context.Context, clientID string) (Checkpoint, error) {
	var cp Checkpoint
	err := s.pool.QueryRow(ctx, `
		SELECT last_seq, last_hash, archived_at
		FROM archive_checkpoints WHERE client_id = $1`, clientID).
		Scan(&cp.Seq, &cp.Hash, &cp.ArchivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Checkpoint{}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("audit.Checkpoint: %w", err)
	}
	return cp, nil
}

// Links returns up to limit chain links of a client after afterSeq, oldest first.
func (s *Store) Links(ctx context.Context, clientID string, afterSeq int64, limit int) ([]Link, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seq, invocation_id, hash, prev_hash, params_canon, outcome_canon, received_at
		FROM invocations
		WHERE client_id = $1 AND seq > $2
		ORDER BY seq ASC
		LIMIT $3`, clientID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("audit.Links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.Seq, &l.InvocationID, &l.Hash, &l.PrevHash, &l.ParamsCanon, &l.OutcomeCanon, &l.ReceivedAt); err != nil {
			return nil, fmt.Errorf("audit.Links scan: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit.Links iteration: %w", err)
	}
	return links, nil
}

// ClientIDs lists every client with at least one invocation.
func (s *Store) ClientIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT client_id FROM invocations ORDER BY client_id`)
	if err != nil {
		return nil, fmt.Errorf("audit.ClientIDs: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("audit.ClientIDs scan: %w", err)
	}
	return ids, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func lastHashTx(ctx context.Context, tx pgx.Tx, clientID string) (string, error) {
	var h string
	err := tx.QueryRow(ctx, `
		SELECT hash FROM invocations
		WHERE client_id = $1
		ORDER BY seq DESC LIMIT 1`, clientID).Scan(&h)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return h, err
}

// clientLockID produces a deterministic advisory-lock ID from a client ID.
func clientLockID(clientID string) int64 {
	h := fnv.New64a()
	h.Write([]byte("audit:" + clientID))
	return int64(binary.BigEndian.Uint64(h.Sum(nil)))
}
