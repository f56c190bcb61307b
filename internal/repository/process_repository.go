package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/school-election/internal/model"
)

// ProcessRepo provides data access to election processes, their roles
// and candidates.  Processes are always created in DRAFT and move
// forward only; the status update uses a guarded UPDATE so concurrent
// transitions cannot skip or repeat a state.
type ProcessRepo struct {
	db *sql.DB
}

// NewProcessRepo returns a new ProcessRepo bound to the given database.
func NewProcessRepo(db *sql.DB) *ProcessRepo { return &ProcessRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions
// that span multiple repositories.
func (r *ProcessRepo) DB() *sql.DB { return r.db }

// Create inserts a new election process in DRAFT status and returns its
// ID.  A requested status is deliberately ignored: every process starts
// DRAFT regardless of what the administrator asked for.
func (r *ProcessRepo) Create(ctx context.Context, name string, opensAt, closesAt *time.Time) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO election_processes (name, status, opens_at, closes_at) VALUES (?, ?, ?, ?)`,
		name, model.ProcessDraft, nullTime(opensAt), nullTime(closesAt))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID loads a single process.  sql.ErrNoRows is returned when the
// process does not exist.
func (r *ProcessRepo) GetByID(ctx context.Context, id uint64) (model.ElectionProcess, error) {
	return scanProcess(r.db.QueryRowContext(ctx,
		`SELECT id, name, status, opens_at, closes_at, created_at, updated_at
		 FROM election_processes WHERE id = ?`, id))
}

// GetByIDTx is GetByID inside an existing transaction.  Used by the
// ballot path so the process window is read under the same snapshot as
// the session row.
func (r *ProcessRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.ElectionProcess, error) {
	return scanProcess(tx.QueryRowContext(ctx,
		`SELECT id, name, status, opens_at, closes_at, created_at, updated_at
		 FROM election_processes WHERE id = ?`, id))
}

type processScanner interface {
	Scan(dest ...interface{}) error
}

func scanProcess(row processScanner) (model.ElectionProcess, error) {
	var p model.ElectionProcess
	var opens, closes sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Status, &opens, &closes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return model.ElectionProcess{}, err
	}
	if opens.Valid {
		t := opens.Time
		p.OpensAt = &t
	}
	if closes.Valid {
		t := closes.Time
		p.ClosesAt = &t
	}
	return p, nil
}

// UpdateStatus moves a process from one lifecycle state to the next.
// The WHERE clause on the current status makes the transition atomic:
// when zero rows are affected the process was not in the expected state
// and ErrConflict is returned.  Opening stamps opens_at when it was
// never scheduled; closing always stamps closes_at.
func (r *ProcessRepo) UpdateStatus(ctx context.Context, id uint64, from, to string, now time.Time) error {
	var res sql.Result
	var err error
	switch to {
	case model.ProcessOpen:
		res, err = r.db.ExecContext(ctx,
			`UPDATE election_processes
			 SET status = ?, opens_at = COALESCE(opens_at, ?)
			 WHERE id = ? AND status = ?`,
			to, now.UTC(), id, from)
	case model.ProcessClosed:
		res, err = r.db.ExecContext(ctx,
			`UPDATE election_processes SET status = ?, closes_at = ?
			 WHERE id = ? AND status = ?`,
			to, now.UTC(), id, from)
	default:
		return ErrConflict
	}
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

// AddRole inserts a role for a process and returns its ID.
func (r *ProcessRepo) AddRole(ctx context.Context, processID uint64, code, title string, order uint32) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO election_roles (process_id, code, title, display_order) VALUES (?, ?, ?, ?)`,
		processID, code, title, order)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// RoleByID loads a single role.
func (r *ProcessRepo) RoleByID(ctx context.Context, id uint64) (model.ElectionRole, error) {
	var role model.ElectionRole
	err := r.db.QueryRowContext(ctx,
		`SELECT id, process_id, code, title, display_order, created_at
		 FROM election_roles WHERE id = ?`, id).
		Scan(&role.ID, &role.ProcessID, &role.Code, &role.Title, &role.DisplayOrder, &role.CreatedAt)
	return role, err
}

// AddCandidate inserts a candidate for a role and returns its ID.
func (r *ProcessRepo) AddCandidate(ctx context.Context, roleID uint64, name string, number uint32, memberID *uint64) (uint64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO election_candidates (role_id, name, number, is_active, census_member_id)
		 VALUES (?, ?, ?, TRUE, ?)`,
		roleID, name, number, nullUint(memberID))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// Ballot bundles the roles of a process with their candidates, ordered
// by role display order then candidate number.  It is the shape handed
// to voters after token validation and the reference used to validate
// ballot selections.
type Ballot struct {
	Roles      []model.ElectionRole
	Candidates map[uint64][]model.ElectionCandidate // keyed by role ID
}

// BallotForProcess loads the roles and candidates of a process.  When
// activeOnly is set, inactive candidates are filtered out (the voter
// view); scrutiny passes false so historical candidates keep their
// counts.
func (r *ProcessRepo) BallotForProcess(ctx context.Context, processID uint64, activeOnly bool) (*Ballot, error) {
	return loadBallot(ctx, r.db.QueryContext, processID, activeOnly)
}

// BallotForProcessTx is BallotForProcess inside an existing transaction,
// used during ballot submission so selection validation sees the same
// snapshot as the locked session row.
func (r *ProcessRepo) BallotForProcessTx(ctx context.Context, tx *sql.Tx, processID uint64, activeOnly bool) (*Ballot, error) {
	return loadBallot(ctx, tx.QueryContext, processID, activeOnly)
}

type queryFunc func(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)

func loadBallot(ctx context.Context, query queryFunc, processID uint64, activeOnly bool) (*Ballot, error) {
	rows, err := query(ctx,
		`SELECT id, process_id, code, title, display_order, created_at
		 FROM election_roles WHERE process_id = ? ORDER BY display_order, id`, processID)
	if err != nil {
		return nil, err
	}
	b := &Ballot{Candidates: make(map[uint64][]model.ElectionCandidate)}
	for rows.Next() {
		var role model.ElectionRole
		if err := rows.Scan(&role.ID, &role.ProcessID, &role.Code, &role.Title, &role.DisplayOrder, &role.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		b.Roles = append(b.Roles, role)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	q := `SELECT c.id, c.role_id, c.name, c.number, c.is_active, c.census_member_id, c.created_at
	      FROM election_candidates c
	      JOIN election_roles r ON r.id = c.role_id
	      WHERE r.process_id = ?`
	if activeOnly {
		q += ` AND c.is_active = TRUE`
	}
	q += ` ORDER BY c.number, c.id`
	crows, err := query(ctx, q, processID)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var c model.ElectionCandidate
		var memberID sql.NullInt64
		if err := crows.Scan(&c.ID, &c.RoleID, &c.Name, &c.Number, &c.IsActive, &memberID, &c.CreatedAt); err != nil {
			return nil, err
		}
		if memberID.Valid {
			mid := uint64(memberID.Int64)
			c.CensusMemberID = &mid
		}
		b.Candidates[c.RoleID] = append(b.Candidates[c.RoleID], c)
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}
	return b, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullUint(v *uint64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
