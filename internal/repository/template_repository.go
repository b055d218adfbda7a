package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/iliyamo/workbook-assignment/internal/model"
)

// TemplateRepo provides read access to workbook templates plus the admin
// insert used to author them.  Templates are never updated by users.
type TemplateRepo struct {
    db *sql.DB
}

// NewTemplateRepo returns a TemplateRepo bound to the given database.
func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

const templateColumns = `id, title, description, questions, created_at, updated_at`

// Create inserts t.  The caller supplies the ID; timestamps are set here.
func (r *TemplateRepo) Create(ctx context.Context, t *model.Template) error {
    if t.Questions == nil {
        t.Questions = []model.Question{}
    }
    qs, err := json.Marshal(t.Questions)
    if err != nil {
        return err
    }
    now := time.Now().UTC()
    t.CreatedAt, t.UpdatedAt = now, now
    _, err = r.db.ExecContext(ctx,
        `INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
        t.ID, t.Title, t.Description, string(qs), now, now)
    if isDuplicate(err) {
        return ErrDuplicate
    }
    return err
}

// GetByID returns the template or ErrNotFound.
func (r *TemplateRepo) GetByID(ctx context.Context, id string) (model.Template, error) {
    return getTemplate(ctx, r.db, id)
}

// GetByIDTx is GetByID inside a transaction.
func (r *TemplateRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (model.Template, error) {
    return getTemplate(ctx, tx, id)
}

// List returns all templates, newest first.
func (r *TemplateRepo) List(ctx context.Context) ([]model.Template, error) {
    rows, err := r.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY created_at DESC, id`)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := []model.Template{}
    for rows.Next() {
        t, err := scanTemplate(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, t)
    }
    return out, rows.Err()
}

func getTemplate(ctx context.Context, q querier, id string) (model.Template, error) {
    t, err := scanTemplate(q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Template{}, ErrNotFound
    }
    return t, err
}

func scanTemplate(s rowScanner) (model.Template, error) {
    var t model.Template
    var qs string
    if err := s.Scan(&t.ID, &t.Title, &t.Description, &qs, &t.CreatedAt, &t.UpdatedAt); err != nil {
        return model.Template{}, err
    }
    if err := json.Unmarshal([]byte(qs), &t.Questions); err != nil {
        return model.Template{}, err
    }
    t.CreatedAt = t.CreatedAt.UTC()
    t.UpdatedAt = t.UpdatedAt.UTC()
    return t, nil
}
