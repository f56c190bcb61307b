package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/school-election/internal/model"
)

// VoteRepo persists vote records.  Rows are append-only and never
// updated; they are the sole source of truth for scrutiny and the live
// dashboard, so this repo also hosts the aggregate queries both engines
// feed from.
type VoteRepo struct{ DB *sql.DB }

// NewVoteRepo returns a repo bound to the given database.
func NewVoteRepo(db *sql.DB) *VoteRepo { return &VoteRepo{DB: db} }

// InsertBulkTx inserts one vote row per selection within the ballot
// submission transaction.  Passing an empty slice has no effect.
func (r *VoteRepo) InsertBulkTx(ctx context.Context, tx *sql.Tx, votes []model.VoteRecord) error {
	if len(votes) == 0 {
		return nil
	}
	query := `INSERT INTO vote_records (process_id, role_id, session_id, candidate_id, is_blank) VALUES `
	args := make([]interface{}, 0, len(votes)*5)
	for i, v := range votes {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, v.ProcessID, v.RoleID, v.SessionID, nullUint(v.CandidateID), v.IsBlank)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// RoleIDsForSessionTx returns the roles a session already has votes
// for, in insertion order.  Used to replay the original outcome when a
// consumed session is submitted again.
func (r *VoteRepo) RoleIDsForSessionTx(ctx context.Context, tx *sql.Tx, sessionID string) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT role_id FROM vote_records WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TallyRow is one aggregated count from the vote stream: either a
// candidate's votes or, when CandidateID is nil and IsBlank is true,
// the blank votes of a role.
type TallyRow struct {
	RoleID      uint64
	CandidateID *uint64
	IsBlank     bool
	Count       int64
}

// Tally aggregates the recorded votes of a process grouped by role and
// candidate, with blanks counted separately.  The scrutiny engine joins
// these counts with the ballot definition for ordering and labels.
func (r *VoteRepo) Tally(ctx context.Context, processID uint64) ([]TallyRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT role_id, candidate_id, is_blank, COUNT(*)
		 FROM vote_records WHERE process_id = ?
		 GROUP BY role_id, candidate_id, is_blank`, processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TallyRow
	for rows.Next() {
		var t TallyRow
		var candidateID sql.NullInt64
		if err := rows.Scan(&t.RoleID, &candidateID, &t.IsBlank, &t.Count); err != nil {
			return nil, err
		}
		if candidateID.Valid {
			id := uint64(candidateID.Int64)
			t.CandidateID = &id
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LastVoteAt returns the timestamp of the most recent vote of a
// process, or nil when no votes exist.  The dashboard needs it for the
// inactivity alert even when an incremental query returns no new rows.
func (r *VoteRepo) LastVoteAt(ctx context.Context, processID uint64) (*time.Time, error) {
	var last sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM vote_records WHERE process_id = ?`, processID).Scan(&last)
	if err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// ListSince returns the vote records of a process with ID greater than
// the cursor, oldest first.  A zero cursor returns the whole stream.
// The dashboard builds its snapshot from these rows in memory.
func (r *VoteRepo) ListSince(ctx context.Context, processID, sinceID uint64) ([]model.VoteRecord, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, process_id, role_id, session_id, candidate_id, is_blank, created_at
		 FROM vote_records WHERE process_id = ? AND id > ? ORDER BY id`,
		processID, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.VoteRecord
	for rows.Next() {
		var v model.VoteRecord
		var candidateID sql.NullInt64
		if err := rows.Scan(&v.ID, &v.ProcessID, &v.RoleID, &v.SessionID, &candidateID, &v.IsBlank, &v.CreatedAt); err != nil {
			return nil, err
		}
		if candidateID.Valid {
			id := uint64(candidateID.Int64)
			v.CandidateID = &id
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
