package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
	"github.com/iliyamo/workbook-assignment/internal/testutil"
)

func newInstance(t *testing.T, tpl model.Template, userID string) model.Instance {
	now := time.Now().UTC()
	return model.Instance{
		ID:         testutil.MustID(t),
		TemplateID: tpl.ID,
		AssignedTo: userID,
		Title:      tpl.Title,
		Answers:    tpl.BlankAnswers(),
		Status:     model.StatusAssigned,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestTemplateRepo_CreateGetList(t *testing.T) {
	s := testutil.Store(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, s, "Values", "What matters?", "Why?")

	got, err := s.Templates().GetByID(ctx, tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "Values", got.Title)
	assert.Equal(t, []model.Question{{Text: "What matters?"}, {Text: "Why?"}}, got.Questions)

	_, err = s.Templates().GetByID(ctx, testutil.MustID(t))
	assert.ErrorIs(t, err, repository.ErrNotFound)

	list, err := s.Templates().List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUserRepo_DuplicateEmail(t *testing.T) {
	s := testutil.Store(t)
	testutil.SeedUser(t, s, "a@example.com")
	u := model.User{ID: testutil.MustID(t), Name: "B", Email: " A@example.com "}
	err := s.Users().Create(context.Background(), &u)
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestInstanceRepo_UniqueTemplateUserPair(t *testing.T) {
	s := testutil.Store(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, s, "T", "q1")
	u := testutil.SeedUser(t, s, "u@example.com")

	first := newInstance(t, tpl, u.ID)
	second := newInstance(t, tpl, u.ID)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.Instances().CreateTx(ctx, tx, &first)
	}))
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.Instances().CreateTx(ctx, tx, &second)
	})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	s := testutil.Store(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, s, "T", "q1")
	u := testutil.SeedUser(t, s, "u@example.com")
	inst := newInstance(t, tpl, u.ID)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		require.NoError(t, s.Instances().CreateTx(ctx, tx, &inst))
		require.NoError(t, s.Users().AddWorkbookTx(ctx, tx, u.ID, inst.ID))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Instances().GetByID(ctx, inst.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Workbooks)
}

func TestUserRepo_ReactivateAndMarkCompleted(t *testing.T) {
	s := testutil.Store(t)
	ctx := context.Background()
	u := testutil.SeedExpiredUser(t, s, "u@example.com")
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.Users().MarkCompletedTx(ctx, tx, u.ID, now)
	}))
	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	assert.True(t, got.DashboardExpired)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(now))

	exp := now.Add(30 * 24 * time.Hour)
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.Users().ReactivateTx(ctx, tx, u.ID, exp, now)
	}))
	got, err = s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsCompleted)
	assert.False(t, got.DashboardExpired)
	require.NotNil(t, got.LinkExpiresAt)
	assert.True(t, got.LinkExpiresAt.Equal(exp))

	err = s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.Users().ReactivateTx(ctx, tx, testutil.MustID(t), exp, now)
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInstanceRepo_SubmitBulkSkipsFrozenAndForeignRows(t *testing.T) {
	s := testutil.Store(t)
	ctx := context.Background()
	t1 := testutil.SeedTemplate(t, s, "T1", "q1")
	t2 := testutil.SeedTemplate(t, s, "T2", "q1")
	owner := testutil.SeedUser(t, s, "owner@example.com")
	other := testutil.SeedUser(t, s, "other@example.com")

	mine := newInstance(t, t1, owner.ID)
	theirs := newInstance(t, t2, other.ID)
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.Instances().CreateTx(ctx, tx, &mine); err != nil {
			return err
		}
		return s.Instances().CreateTx(ctx, tx, &theirs)
	}))

	answers := []model.Answer{{Question: "q1", Answer: "yes"}}
	var n int64
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		n, err = s.Instances().SubmitBulkTx(ctx, tx, owner.ID, []repository.SubmitRow{
			{ID: mine.ID, Answers: answers},
			{ID: theirs.ID, Answers: answers},
		}, time.Now())
		return err
	}))
	assert.Equal(t, int64(1), n)

	got, err := s.Instances().GetByID(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSubmitted, got.Status)
	assert.Equal(t, answers, got.Answers)
	assert.NotNil(t, got.SubmittedAt)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		n, err = s.Instances().SubmitBulkTx(ctx, tx, owner.ID, []repository.SubmitRow{{ID: mine.ID, Answers: answers}}, time.Now())
		return err
	}))
	assert.Equal(t, int64(0), n, "already submitted rows are not updated again")
}

func TestInstanceRepo_DeleteOwnedCascadesIndex(t *testing.T) {
	s := testutil.Store(t)
	ctx := context.Background()
	tpl := testutil.SeedTemplate(t, s, "T", "q1")
	u := testutil.SeedUser(t, s, "u@example.com")
	inst := newInstance(t, tpl, u.ID)
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.Instances().CreateTx(ctx, tx, &inst); err != nil {
			return err
		}
		return s.Users().AddWorkbookTx(ctx, tx, u.ID, inst.ID)
	}))

	err := s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return s.Instances().DeleteOwnedTx(ctx, tx, inst.ID, testutil.MustID(t))
	})
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.Users().RemoveWorkbookTx(ctx, tx, u.ID, inst.ID); err != nil {
			return err
		}
		return s.Instances().DeleteOwnedTx(ctx, tx, inst.ID, u.ID)
	}))
	got, err := s.Users().GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Workbooks)
}
