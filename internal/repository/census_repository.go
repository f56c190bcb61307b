package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/school-election/internal/census"
	"github.com/iliyamo/school-election/internal/model"
)

// CensusRepo provides data access to census members, per-process
// exclusions and the change events recorded by sync runs.  The census
// is read-mostly during voting; writes happen only through explicit,
// audited admin operations.
type CensusRepo struct {
	db *sql.DB
}

// NewCensusRepo returns a new CensusRepo bound to the given database.
func NewCensusRepo(db *sql.DB) *CensusRepo { return &CensusRepo{db: db} }

// IsEligible reports whether the member identified by externalID may
// vote in the given process: the member must exist, be globally active
// and not be excluded for that process.  A single query keeps the hot
// validation path to one round trip.
func (r *CensusRepo) IsEligible(ctx context.Context, processID uint64, externalID string) (bool, error) {
	var eligible bool
	err := r.db.QueryRowContext(ctx,
		`SELECT m.is_active AND e.id IS NULL
		 FROM census_members m
		 LEFT JOIN census_exclusions e ON e.member_id = m.id AND e.process_id = ?
		 WHERE m.external_id = ?`,
		processID, externalID).Scan(&eligible)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return eligible, nil
}

// Exclude removes a member from eligibility for one process.  The
// operation is idempotent: repeating it refreshes the reason instead of
// failing on the unique (process, member) key.
func (r *CensusRepo) Exclude(ctx context.Context, processID, memberID uint64, reason string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO census_exclusions (process_id, member_id, reason) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE reason = VALUES(reason)`,
		processID, memberID, reason)
	return err
}

// Include lifts an exclusion.  Deleting a non-existent row is a no-op,
// which makes the operation idempotent.
func (r *CensusRepo) Include(ctx context.Context, processID, memberID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM census_exclusions WHERE process_id = ? AND member_id = ?`,
		processID, memberID)
	return err
}

// GetByID loads a single member.
func (r *CensusRepo) GetByID(ctx context.Context, id uint64) (model.CensusMember, error) {
	var m model.CensusMember
	err := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, document, full_name, grade, shift, is_active, created_at, updated_at
		 FROM census_members WHERE id = ?`, id).
		Scan(&m.ID, &m.ExternalID, &m.Document, &m.FullName, &m.Grade, &m.Shift, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// GetByExternalID loads a single member by its external identity.
func (r *CensusRepo) GetByExternalID(ctx context.Context, externalID string) (model.CensusMember, error) {
	var m model.CensusMember
	err := r.db.QueryRowContext(ctx,
		`SELECT id, external_id, document, full_name, grade, shift, is_active, created_at, updated_at
		 FROM census_members WHERE external_id = ? LIMIT 1`, externalID).
		Scan(&m.ID, &m.ExternalID, &m.Document, &m.FullName, &m.Grade, &m.Shift, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// AllMembers returns every census member, active or not.  Used by the
// sync planner to diff against an external snapshot.
func (r *CensusRepo) AllMembers(ctx context.Context) ([]model.CensusMember, error) {
	return r.members(ctx, `SELECT id, external_id, document, full_name, grade, shift, is_active, created_at, updated_at
	                       FROM census_members ORDER BY id`)
}

// ActiveMembers returns the globally active members, for bulk token
// issuance against the whole census.
func (r *CensusRepo) ActiveMembers(ctx context.Context) ([]model.CensusMember, error) {
	return r.members(ctx, `SELECT id, external_id, document, full_name, grade, shift, is_active, created_at, updated_at
	                       FROM census_members WHERE is_active = TRUE ORDER BY id`)
}

func (r *CensusRepo) members(ctx context.Context, q string) ([]model.CensusMember, error) {
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CensusMember
	for rows.Next() {
		var m model.CensusMember
		if err := rows.Scan(&m.ID, &m.ExternalID, &m.Document, &m.FullName, &m.Grade, &m.Shift, &m.IsActive, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountEnabled returns the number of members eligible for a process:
// globally active minus the process's exclusions.  This is the
// denominator of the participation percentage.
func (r *CensusRepo) CountEnabled(ctx context.Context, processID uint64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM census_members m
		 LEFT JOIN census_exclusions e ON e.member_id = m.id AND e.process_id = ?
		 WHERE m.is_active = TRUE AND e.id IS NULL`,
		processID).Scan(&n)
	return n, err
}

// ApplySync executes a sync plan inside one transaction: each change
// mutates the member row and records a census change event.  It returns
// the number of applied changes per kind.
func (r *CensusRepo) ApplySync(ctx context.Context, changes []census.Change) (map[string]int, error) {
	counts := make(map[string]int)
	if len(changes) == 0 {
		return counts, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, ch := range changes {
		memberID := ch.MemberID
		switch ch.Kind {
		case model.CensusEventCreate:
			res, err := tx.ExecContext(ctx,
				`INSERT INTO census_members (external_id, document, full_name, grade, shift, is_active)
				 VALUES (?, ?, ?, ?, ?, TRUE)`,
				ch.Record.ExternalID, ch.Record.Document, ch.Record.FullName, ch.Record.Grade, ch.Record.Shift)
			if err != nil {
				return nil, err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return nil, err
			}
			memberID = uint64(id)
		case model.CensusEventUpdate:
			if _, err := tx.ExecContext(ctx,
				`UPDATE census_members SET document = ?, full_name = ?, grade = ?, shift = ? WHERE id = ?`,
				ch.Record.Document, ch.Record.FullName, ch.Record.Grade, ch.Record.Shift, ch.MemberID); err != nil {
				return nil, err
			}
		case model.CensusEventReactivate:
			if _, err := tx.ExecContext(ctx,
				`UPDATE census_members SET document = ?, full_name = ?, grade = ?, shift = ?, is_active = TRUE WHERE id = ?`,
				ch.Record.Document, ch.Record.FullName, ch.Record.Grade, ch.Record.Shift, ch.MemberID); err != nil {
				return nil, err
			}
		case model.CensusEventDeactivate:
			if _, err := tx.ExecContext(ctx,
				`UPDATE census_members SET is_active = FALSE WHERE id = ?`, ch.MemberID); err != nil {
				return nil, err
			}
		default:
			return nil, ErrConflict
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO census_change_events (member_id, external_id, kind, detail) VALUES (?, ?, ?, ?)`,
			memberID, ch.Record.ExternalID, ch.Kind, ch.Detail); err != nil {
			return nil, err
		}
		counts[ch.Kind]++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return counts, nil
}
