// Package service holds the workbook business rules: assignment of
// templates to users, the instance status lifecycle, bulk submission and
// access validation.  Services talk to persistence through the interfaces
// below so tests can inject failures into individual steps.
package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/logger"
	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
)

// TxRunner runs fn in a single database transaction.  WithTimeout applies
// the same deadline to single statements run on the pool.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error
	WithTimeout(ctx context.Context) (context.Context, context.CancelFunc)
}

// TemplateStore is read access to templates plus admin authoring.
type TemplateStore interface {
	Create(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id string) (model.Template, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (model.Template, error)
	List(ctx context.Context) ([]model.Template, error)
}

// InstanceStore persists workbook instances.
type InstanceStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, inst *model.Instance) error
	GetByID(ctx context.Context, id string) (model.Instance, error)
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.Instance, error)
	ExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error)
	FindByTemplateAndUserTx(ctx context.Context, tx *sql.Tx, templateID, userID string) (model.Instance, error)
	ListByUser(ctx context.Context, userID string) ([]model.Instance, error)
	ListByUserTx(ctx context.Context, tx *sql.Tx, userID string) ([]model.Instance, error)
	ListByIDsForUpdateTx(ctx context.Context, tx *sql.Tx, ids []string) ([]model.Instance, error)
	UpdateAnswersTx(ctx context.Context, tx *sql.Tx, id, userID string, answers []model.Answer, status model.Status, submittedAt *time.Time, now time.Time) error
	SubmitBulkTx(ctx context.Context, tx *sql.Tx, userID string, rows []repository.SubmitRow, now time.Time) (int64, error)
	ReviewTx(ctx context.Context, tx *sql.Tx, id, feedback string, now time.Time) error
	DeleteOwnedTx(ctx context.Context, tx *sql.Tx, id, userID string) error
}

// UserStore persists users and their workbook index.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (model.User, error)
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (model.User, error)
	AddWorkbookTx(ctx context.Context, tx *sql.Tx, userID, instanceID string) error
	RemoveWorkbookTx(ctx context.Context, tx *sql.Tx, userID, instanceID string) error
	ReactivateTx(ctx context.Context, tx *sql.Tx, userID string, linkExpiresAt, now time.Time) error
	MarkCompletedTx(ctx context.Context, tx *sql.Tx, userID string, now time.Time) error
}

// Repos bundles the persistence dependencies shared by every service.
type Repos struct {
	Tx        TxRunner
	Templates TemplateStore
	Instances InstanceStore
	Users     UserStore
}

// ReposFrom wires Repos to a repository.Store.
func ReposFrom(s *repository.Store) Repos {
	return Repos{Tx: s, Templates: s.Templates(), Instances: s.Instances(), Users: s.Users()}
}

// bounded returns ctx limited by the persistence deadline.
func (r Repos) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return r.Tx.WithTimeout(ctx)
}

// DefaultLinkTTL is how long a user's dashboard stays open after new work
// is assigned.
const DefaultLinkTTL = 30 * 24 * time.Hour

type settings struct {
	now           func() time.Time
	log           *logger.Logger
	notifier      Notifier
	linkTTL       time.Duration
	linkBase      string
	notifyTimeout time.Duration
}

// Option customises a service.
type Option func(*settings)

func WithClock(now func() time.Time) Option   { return func(s *settings) { s.now = now } }
func WithLogger(l *logger.Logger) Option      { return func(s *settings) { s.log = l } }
func WithNotifier(n Notifier) Option          { return func(s *settings) { s.notifier = n } }
func WithLinkTTL(d time.Duration) Option      { return func(s *settings) { s.linkTTL = d } }
func WithLinkBase(base string) Option         { return func(s *settings) { s.linkBase = base } }
func WithNotifyTimeout(d time.Duration) Option { return func(s *settings) { s.notifyTimeout = d } }

func newSettings(opts []Option) settings {
	s := settings{
		now:           time.Now,
		log:           logger.Nop(),
		notifier:      NopNotifier{},
		linkTTL:       DefaultLinkTTL,
		linkBase:      "http://localhost:8080",
		notifyTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func (s settings) clock() time.Time { return s.now().UTC() }

// notify sends a submission notice after commit.  Failures are logged and
// never returned: the submission is already durable.
func (s settings) notify(ctx context.Context, n SubmissionNotice) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.NotifySubmission(ctx, n); err != nil {
		s.log.Warn("submission notification failed", "user_id", n.UserID, "instances", len(n.Instances), "error", err)
	}
}

// checkIDs validates name/value pairs in order and reports the first
// malformed id.
func checkIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if !model.ValidID(pairs[i+1]) {
			return invalidID(pairs[i])
		}
	}
	return nil
}
