package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/database"
	"github.com/iliyamo/workbook-assignment/internal/model"
)

// UserRepo mirrors the 'users' table and its user_workbooks index.
type UserRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

func NewUserRepo(db *sql.DB, dialect database.Dialect) *UserRepo {
	return &UserRepo{db: db, dialect: dialect}
}

const userColumns = `id, name, email, is_completed, completed_at, dashboard_expired, link_expires_at, created_at, updated_at`

// Create inserts u.  A repeated email yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Workbooks == nil {
		u.Workbooks = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.IsCompleted, nullTime(u.CompletedAt), u.DashboardExpired,
		nullTime(u.LinkExpiresAt), now, now)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID fetches a user and their workbook index.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	return getUser(ctx, r.db, id, "")
}

// GetByIDTx is GetByID inside a transaction.
func (r *UserRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (model.User, error) {
	return getUser(ctx, tx, id, "")
}

// GetForUpdateTx reads the user row with a write lock so that concurrent
// assignment and submission for the same user are serialised.
func (r *UserRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.User, error) {
	return getUser(ctx, tx, id, forUpdate(r.dialect))
}

// AddWorkbookTx records instanceID in the user's workbook index.
func (r *UserRepo) AddWorkbookTx(ctx context.Context, tx *sql.Tx, userID, instanceID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_workbooks (user_id, instance_id) VALUES (?, ?)`, userID, instanceID)
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// RemoveWorkbookTx drops instanceID from the user's workbook index.  A
// missing entry is not an error.
func (r *UserRepo) RemoveWorkbookTx(ctx context.Context, tx *sql.Tx, userID, instanceID string) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM user_workbooks WHERE user_id = ? AND instance_id = ?`, userID, instanceID)
	return err
}

// ReactivateTx restores dashboard access: clears the completed and expired
// flags and moves the link expiry to linkExpiresAt.
func (r *UserRepo) ReactivateTx(ctx context.Context, tx *sql.Tx, userID string, linkExpiresAt, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET is_completed = ?, dashboard_expired = ?, link_expires_at = ?, updated_at = ? WHERE id = ?`,
		false, false, linkExpiresAt.UTC(), now.UTC(), userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// MarkCompletedTx records a finished bulk submission and expires the
// user's dashboard.
func (r *UserRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE users SET is_completed = ?, completed_at = ?, dashboard_expired = ?, updated_at = ? WHERE id = ?`,
		true, now.UTC(), true, now.UTC(), userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrNotFound
	}
	return nil
}

func getUser(ctx context.Context, q querier, id, suffix string) (model.User, error) {
	var u model.User
	var completedAt, linkExpiresAt sql.NullTime
	err := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`+suffix, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.IsCompleted, &completedAt, &u.DashboardExpired,
		&linkExpiresAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.CompletedAt = timePtr(completedAt)
	u.LinkExpiresAt = timePtr(linkExpiresAt)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()

	rows, err := q.QueryContext(ctx,
		`SELECT instance_id FROM user_workbooks WHERE user_id = ? ORDER BY instance_id`, id)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()
	u.Workbooks = []string{}
	for rows.Next() {
		var iid string
		if err := rows.Scan(&iid); err != nil {
			return model.User{}, err
		}
		u.Workbooks = append(u.Workbooks, iid)
	}
	return u, rows.Err()
}
