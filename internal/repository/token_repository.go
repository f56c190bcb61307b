package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/school-election/internal/model"
)

// VoterTokenRepo persists one-time voter tokens.  Only the salted hash
// and a short prefix are ever stored; lookups happen by hash.  Status
// mutations are guarded by the current status in the WHERE clause so
// concurrent transitions cannot double-apply.
type VoterTokenRepo struct{ DB *sql.DB }

// NewVoterTokenRepo returns a repo bound to the given database.
func NewVoterTokenRepo(db *sql.DB) *VoterTokenRepo { return &VoterTokenRepo{DB: db} }

// Create inserts an ACTIVE token row and returns its ID.
func (r *VoterTokenRepo) Create(ctx context.Context, processID uint64, tokenHash, prefix string, externalID, document *string, expiresAt time.Time) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO voter_tokens (process_id, token_hash, prefix, status, external_id, document, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		processID, tokenHash, prefix, model.TokenActive, nullStr(externalID), nullStr(document), expiresAt.UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByHash looks a token up by its salted digest.  sql.ErrNoRows is
// returned when no token matches.
func (r *VoterTokenRepo) GetByHash(ctx context.Context, tokenHash string) (model.VoterToken, error) {
	var t model.VoterToken
	var externalID, document sql.NullString
	var usedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, process_id, token_hash, prefix, status, external_id, document, expires_at, used_at, created_at
		 FROM voter_tokens WHERE token_hash = ? LIMIT 1`, tokenHash).
		Scan(&t.ID, &t.ProcessID, &t.TokenHash, &t.Prefix, &t.Status, &externalID, &document, &t.ExpiresAt, &usedAt, &t.CreatedAt)
	if err != nil {
		return model.VoterToken{}, err
	}
	if externalID.Valid {
		v := externalID.String
		t.ExternalID = &v
	}
	if document.Valid {
		v := document.String
		t.Document = &v
	}
	if usedAt.Valid {
		v := usedAt.Time
		t.UsedAt = &v
	}
	return t, nil
}

// MarkExpired transitions an ACTIVE token to EXPIRED.  Validation calls
// this opportunistically when it observes a past expires_at; losing the
// race to another request is harmless, so zero affected rows is not an
// error.
func (r *VoterTokenRepo) MarkExpired(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE voter_tokens SET status = ? WHERE id = ? AND status = ?`,
		model.TokenExpired, id, model.TokenActive)
	return err
}

// MarkUsedTx transitions an ACTIVE token to USED inside the ballot
// submission transaction.  ErrConflict is returned when the token was
// not ACTIVE, which means another session for the same token won the
// race.
func (r *VoterTokenRepo) MarkUsedTx(ctx context.Context, tx *sql.Tx, id uint64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE voter_tokens SET status = ?, used_at = ? WHERE id = ? AND status = ?`,
		model.TokenUsed, now.UTC(), id, model.TokenActive)
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

// Revoke moves a token to REVOKED from any state.  Revoking an already
// revoked token is idempotent.
func (r *VoterTokenRepo) Revoke(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE voter_tokens SET status = ? WHERE id = ?`, model.TokenRevoked, id)
	return err
}

// Reset is the contingency path: it moves a USED, EXPIRED or REVOKED
// token back to ACTIVE with a fresh expiry and clears used_at.  Tokens
// that are already ACTIVE are rejected with ErrConflict.  Previously
// recorded votes are deliberately not retracted.
func (r *VoterTokenRepo) Reset(ctx context.Context, id uint64, newExpiry time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE voter_tokens SET status = ?, expires_at = ?, used_at = NULL
		 WHERE id = ? AND status IN (?, ?, ?)`,
		model.TokenActive, newExpiry.UTC(), id,
		model.TokenUsed, model.TokenExpired, model.TokenRevoked)
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

// SweepExpired opportunistically expires every ACTIVE token of a
// process whose expiry has passed.  Returns the number of tokens
// transitioned.
func (r *VoterTokenRepo) SweepExpired(ctx context.Context, processID uint64, now time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE voter_tokens SET status = ?
		 WHERE process_id = ? AND status = ? AND expires_at <= ?`,
		model.TokenExpired, processID, model.TokenActive, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func nullStr(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
