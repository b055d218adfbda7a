package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/database"
	"github.com/iliyamo/workbook-assignment/internal/model"
)

// InstanceRepo provides data access to the instances table.  An instance
// row is only ever created by the assignment service and only ever written
// by its owner or by a bulk submission, so every write here is scoped by
// id and, where the caller is a user, by assigned_to.
type InstanceRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewInstanceRepo returns a new InstanceRepo bound to the given database.
func NewInstanceRepo(db *sql.DB, dialect database.Dialect) *InstanceRepo {
	return &InstanceRepo{db: db, dialect: dialect}
}

const instanceColumns = `id, template_id, assigned_to, title, description, answers, status, shareable_link,
                         feedback, submitted_at, reviewed_at, created_at, updated_at`

// SubmitRow is one instance of a bulk submission with its final answers.
type SubmitRow struct {
	ID      string
	Answers []model.Answer
}

// CreateTx inserts inst within the scope of an existing transaction.  A
// second instance for the same (template_id, assigned_to) pair is rejected
// by the unique index and reported as ErrDuplicate.
func (r *InstanceRepo) CreateTx(ctx context.Context, tx *sql.Tx, inst *model.Instance) error {
	if inst.Answers == nil {
		inst.Answers = []model.Answer{}
	}
	answers, err := json.Marshal(inst.Answers)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO instances (`+instanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.TemplateID, inst.AssignedTo, inst.Title, inst.Description, string(answers),
		string(inst.Status), inst.ShareableLink, inst.Feedback, nullTime(inst.SubmittedAt),
		nullTime(inst.ReviewedAt), inst.CreatedAt.UTC(), inst.UpdatedAt.UTC())
	if isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// GetByID returns the instance or ErrNotFound.
func (r *InstanceRepo) GetByID(ctx context.Context, id string) (model.Instance, error) {
	return getInstance(ctx, r.db, `WHERE id = ?`, id)
}

// GetForUpdateTx reads and locks a single instance.
func (r *InstanceRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.Instance, error) {
	return getInstance(ctx, tx, `WHERE id = ?`+forUpdate(r.dialect), id)
}

// ExistsTx reports whether an instance row with id exists.
func (r *InstanceRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM instances WHERE id = ? LIMIT 1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// FindByTemplateAndUserTx returns the instance assigned to userID from
// templateID, or ErrNotFound.  No row lock is taken; callers serialise on
// the user row.
func (r *InstanceRepo) FindByTemplateAndUserTx(ctx context.Context, tx *sql.Tx, templateID, userID string) (model.Instance, error) {
	return getInstance(ctx, tx, `WHERE template_id = ? AND assigned_to = ?`, templateID, userID)
}

// ListByUser returns every instance assigned to userID, oldest first.
func (r *InstanceRepo) ListByUser(ctx context.Context, userID string) ([]model.Instance, error) {
	return listInstances(ctx, r.db, `WHERE assigned_to = ? ORDER BY created_at, id`, userID)
}

// ListByUserTx is ListByUser inside a transaction.
func (r *InstanceRepo) ListByUserTx(ctx context.Context, tx *sql.Tx, userID string) ([]model.Instance, error) {
	return listInstances(ctx, tx, `WHERE assigned_to = ? ORDER BY created_at, id`, userID)
}

// ListByIDsForUpdateTx loads and locks the named instances.  Missing ids
// are simply absent from the result.
func (r *InstanceRepo) ListByIDsForUpdateTx(ctx context.Context, tx *sql.Tx, ids []string) ([]model.Instance, error) {
	if len(ids) == 0 {
		return []model.Instance{}, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	where := `WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `) ORDER BY id` + forUpdate(r.dialect)
	return listInstances(ctx, tx, where, args...)
}

// UpdateAnswersTx stores new answers and status for an instance owned by
// userID.  submittedAt is written only when non-nil.
func (r *InstanceRepo) UpdateAnswersTx(ctx context.Context, tx *sql.Tx, id, userID string, answers []model.Answer, status model.Status, submittedAt *time.Time, now time.Time) error {
	raw, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE instances SET answers = ?, status = ?, submitted_at = COALESCE(?, submitted_at), updated_at = ?
         WHERE id = ? AND assigned_to = ?`,
		string(raw), string(status), nullTime(submittedAt), now.UTC(), id, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// SubmitBulkTx moves every row to submitted with its final answers.  Only
// rows owned by userID and not already frozen are touched.  It returns the
// number of rows actually updated so the caller can detect a discrepancy.
func (r *InstanceRepo) SubmitBulkTx(ctx context.Context, tx *sql.Tx, userID string, rows []SubmitRow, now time.Time) (int64, error) {
	stmt, err := tx.PrepareContext(ctx,
		`UPDATE instances SET answers = ?, status = ?, submitted_at = ?, updated_at = ?
         WHERE id = ? AND assigned_to = ? AND status IN (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var total int64
	for _, row := range rows {
		raw, err := json.Marshal(row.Answers)
		if err != nil {
			return total, err
		}
		res, err := stmt.ExecContext(ctx,
			string(raw), string(model.StatusSubmitted), now.UTC(), now.UTC(), row.ID, userID,
			string(model.StatusAssigned), string(model.StatusInProgress), string(model.StatusCompleted))
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// ReviewTx moves a submitted instance to reviewed and stores feedback.
func (r *InstanceRepo) ReviewTx(ctx context.Context, tx *sql.Tx, id, feedback string, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE instances SET status = ?, feedback = ?, reviewed_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(model.StatusReviewed), feedback, now.UTC(), now.UTC(), id, string(model.StatusSubmitted))
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

// DeleteOwnedTx removes the instance only when it is assigned to userID.
// It returns ErrNotFound when no such row exists.
func (r *InstanceRepo) DeleteOwnedTx(ctx context.Context, tx *sql.Tx, id, userID string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM instances WHERE id = ? AND assigned_to = ?`, id, userID)
	if err != nil {
		return err
	}
	return requireOneRow(res)
}

func getInstance(ctx context.Context, q querier, where string, args ...interface{}) (model.Instance, error) {
	inst, err := scanInstance(q.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM instances `+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Instance{}, ErrNotFound
	}
	return inst, err
}

func listInstances(ctx context.Context, q querier, where string, args ...interface{}) ([]model.Instance, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+instanceColumns+` FROM instances `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Instance{}
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstance(s rowScanner) (model.Instance, error) {
	var inst model.Instance
	var answers, status string
	var submittedAt, reviewedAt sql.NullTime
	err := s.Scan(&inst.ID, &inst.TemplateID, &inst.AssignedTo, &inst.Title, &inst.Description,
		&answers, &status, &inst.ShareableLink, &inst.Feedback, &submittedAt, &reviewedAt,
		&inst.CreatedAt, &inst.UpdatedAt)
	if err != nil {
		return model.Instance{}, err
	}
	if err := json.Unmarshal([]byte(answers), &inst.Answers); err != nil {
		return model.Instance{}, err
	}
	inst.Status = model.Status(status)
	inst.SubmittedAt = timePtr(submittedAt)
	inst.ReviewedAt = timePtr(reviewedAt)
	inst.CreatedAt = inst.CreatedAt.UTC()
	inst.UpdatedAt = inst.UpdatedAt.UTC()
	return inst, nil
}
