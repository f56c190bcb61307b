package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/school-election/internal/model"
)

// SessionRepo persists vote access sessions, the ephemeral binding
// between a validated token and one voting attempt.  The hot-path
// methods are transactional: ballot submission locks the session row
// with SELECT ... FOR UPDATE so that two concurrent submissions for the
// same session are linearized and only one is ever treated as first.
type SessionRepo struct{ DB *sql.DB }

// NewSessionRepo returns a repo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a fresh, unconsumed session.  Several sessions may
// exist for the same still-ACTIVE token; consuming any one of them
// marks the token USED, making the others moot.
func (r *SessionRepo) Create(ctx context.Context, id string, tokenID, processID uint64, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO vote_access_sessions (id, token_id, process_id, expires_at) VALUES (?, ?, ?, ?)`,
		id, tokenID, processID, expiresAt.UTC())
	return err
}

// GetForUpdateTx loads a session and takes a row lock on it.  The lock
// is held until the transaction commits or rolls back; a concurrent
// submission for the same session blocks here and then observes
// consumed_at already set.  sql.ErrNoRows is returned for unknown IDs.
func (r *SessionRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.VoteAccessSession, error) {
	var s model.VoteAccessSession
	var consumedAt sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT id, token_id, process_id, expires_at, consumed_at, created_at
		 FROM vote_access_sessions WHERE id = ? FOR UPDATE`, id).
		Scan(&s.ID, &s.TokenID, &s.ProcessID, &s.ExpiresAt, &consumedAt, &s.CreatedAt)
	if err != nil {
		return model.VoteAccessSession{}, err
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		s.ConsumedAt = &t
	}
	return s, nil
}

// ConsumeTx sets consumed_at exactly once.  The guard on consumed_at IS
// NULL backs up the row lock: zero affected rows means the session was
// already consumed and ErrConflict is returned.
func (r *SessionRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE vote_access_sessions SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL`,
		now.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// CountConsumed returns the number of consumed sessions for a process,
// the unique-voter figure shown on the dashboard.
func (r *SessionRepo) CountConsumed(ctx context.Context, processID uint64) (int64, error) {
	var n int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vote_access_sessions WHERE process_id = ? AND consumed_at IS NOT NULL`,
		processID).Scan(&n)
	return n, err
}
