package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
)

// SubmitItem is one instance of a submit-all request with its final
// answers.  A nil Answers keeps the stored answers.
type SubmitItem struct {
	ID      string         `json:"id"`
	Answers []model.Answer `json:"answers"`
}

// SubmitResult is the committed state after a bulk submission.
type SubmitResult struct {
	User      model.User       `json:"user"`
	Instances []model.Instance `json:"instances"`
}

// SubmissionService finalises a user's workbooks in one transaction.
type SubmissionService struct {
	repos Repos
	settings
}

// NewSubmissionService returns a SubmissionService over repos.
func NewSubmissionService(repos Repos, opts ...Option) *SubmissionService {
	return &SubmissionService{repos: repos, settings: newSettings(opts)}
}

// SubmitAll moves every named instance to submitted and marks the user
// completed.  The call acts only on the ids it is given.  Any invalid or
// incomplete instance aborts the whole batch with nothing written.  A
// consolidated notice is sent after commit; its failure is only logged.
func (s *SubmissionService) SubmitAll(ctx context.Context, userID string, items []SubmitItem) (SubmitResult, error) {
	if err := checkIDs("userId", userID); err != nil {
		return SubmitResult{}, err
	}
	if len(items) == 0 {
		return SubmitResult{}, invalidRequest("instances must not be empty")
	}
	items, err := dedupeItems(items)
	if err != nil {
		return SubmitResult{}, err
	}

	now := s.clock()
	var res SubmitResult
	err = s.repos.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		u, err := s.repos.Users.GetForUpdateTx(ctx, tx, userID)
		if err != nil {
			return lookupError(err, CodeUserNotFound, "user not found")
		}
		if !CanAccessUser(u, now) {
			owned, err := s.repos.Instances.ListByUserTx(ctx, tx, userID)
			if err != nil {
				return err
			}
			if !hasActiveInstance(owned) {
				return accessExpired()
			}
		}

		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		found, err := s.repos.Instances.ListByIDsForUpdateTx(ctx, tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[string]model.Instance, len(found))
		for _, inst := range found {
			byID[inst.ID] = inst
		}

		rows, err := prepareRows(items, byID, userID)
		if err != nil {
			return err
		}

		n, err := s.repos.Instances.SubmitBulkTx(ctx, tx, userID, rows, now)
		if err != nil {
			return err
		}
		if n != int64(len(rows)) {
			return &Error{
				Kind:    KindTransaction,
				Code:    CodeTransaction,
				Message: fmt.Sprintf("bulk submission updated %d of %d workbooks", n, len(rows)),
			}
		}
		if err := s.repos.Users.MarkCompletedTx(ctx, tx, userID, now); err != nil {
			return err
		}

		if res.User, err = s.repos.Users.GetByIDTx(ctx, tx, userID); err != nil {
			return err
		}
		res.Instances, err = s.repos.Instances.ListByIDsForUpdateTx(ctx, tx, ids)
		return err
	})
	if err != nil {
		return SubmitResult{}, txError("submit all", err)
	}

	s.log.Info("workbooks submitted", "user_id", userID, "count", len(res.Instances))
	notice := SubmissionNotice{
		UserID:      res.User.ID,
		UserName:    res.User.Name,
		UserEmail:   res.User.Email,
		SubmittedAt: now,
		Bulk:        true,
	}
	for _, inst := range res.Instances {
		notice.Instances = append(notice.Instances, NoticeItem{InstanceID: inst.ID, Title: inst.Title})
	}
	s.notify(ctx, notice)
	return res, nil
}

// prepareRows validates the batch against the locked rows.  Ownership,
// state and shape problems are reported first as InvalidInstances; only a
// structurally valid batch is then checked for unanswered questions.
func prepareRows(items []SubmitItem, byID map[string]model.Instance, userID string) ([]repository.SubmitRow, error) {
	var invalid, incomplete []string
	rows := make([]repository.SubmitRow, 0, len(items))
	for _, it := range items {
		inst, ok := byID[it.ID]
		if !ok || inst.AssignedTo != userID || inst.Status.Frozen() {
			invalid = append(invalid, it.ID)
			continue
		}
		answers := inst.Answers
		if it.Answers != nil {
			merged, err := mergeAnswers(inst.Answers, it.Answers)
			if err != nil {
				invalid = append(invalid, it.ID)
				continue
			}
			answers = merged
		}
		if model.AnsweredCount(answers) < len(answers) {
			incomplete = append(incomplete, it.ID)
		}
		rows = append(rows, repository.SubmitRow{ID: it.ID, Answers: answers})
	}

	if len(invalid) > 0 {
		return nil, &Error{
			Kind:    KindValidation,
			Code:    CodeInvalidInstances,
			Message: "instances must belong to the user and not be submitted already",
			IDs:     invalid,
		}
	}
	if len(incomplete) > 0 {
		return nil, &Error{
			Kind:    KindIncompleteWorkbook,
			Code:    CodeIncompleteWorkbook,
			Message: "every question must be answered before submitting",
			IDs:     incomplete,
		}
	}
	return rows, nil
}

// dedupeItems validates ids and drops repeats, keeping the last answers
// supplied for an id.  The result is sorted by id so lock order is stable.
func dedupeItems(items []SubmitItem) ([]SubmitItem, error) {
	seen := make(map[string]int, len(items))
	out := make([]SubmitItem, 0, len(items))
	for _, it := range items {
		if !model.ValidID(it.ID) {
			return nil, invalidID("instances[].id")
		}
		if i, ok := seen[it.ID]; ok {
			out[i] = it
			continue
		}
		seen[it.ID] = len(out)
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
