package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
)

// InstanceService is the single-instance read/write path used through a
// shareable link, plus the admin review transition.
type InstanceService struct {
	repos Repos
	settings
}

// NewInstanceService returns an InstanceService over repos.
func NewInstanceService(repos Repos, opts ...Option) *InstanceService {
	return &InstanceService{repos: repos, settings: newSettings(opts)}
}

// Get returns instanceID for userID after checking ownership and access.
func (s *InstanceService) Get(ctx context.Context, instanceID, userID string) (model.Instance, error) {
	if err := checkIDs("instanceId", instanceID, "user", userID); err != nil {
		return model.Instance{}, err
	}
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		return model.Instance{}, txError("get workbook", lookupError(err, CodeUserNotFound, "user not found"))
	}
	inst, err := s.repos.Instances.GetByID(ctx, instanceID)
	if err != nil {
		return model.Instance{}, txError("get workbook", lookupError(err, CodeNotFound, "workbook instance not found"))
	}
	if inst.AssignedTo != userID {
		return model.Instance{}, notFound(CodeNotFound, "workbook instance not found")
	}
	if !CanAccessInstance(u, inst, s.clock()) {
		return model.Instance{}, accessExpired()
	}
	return inst, nil
}

// Update replaces the answers of an instance and recomputes its status.
// answers may be nil to leave them unchanged (e.g. a bare submit).  When
// requested is submitted the instance is frozen and a notification is
// sent after commit.
func (s *InstanceService) Update(ctx context.Context, instanceID, userID string, answers []model.Answer, requested model.Status) (model.Instance, error) {
	if err := checkIDs("instanceId", instanceID, "user", userID); err != nil {
		return model.Instance{}, err
	}
	if requested == model.StatusReviewed {
		return model.Instance{}, newError(KindValidation, CodeInvalidStatus, "reviewed is set by an administrator")
	}
	if requested != "" && !requested.Valid() {
		return model.Instance{}, newError(KindValidation, CodeInvalidStatus, "unknown status "+string(requested))
	}

	now := s.clock()
	var inst model.Instance
	var owner model.User
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		u, err := s.repos.Users.GetByIDTx(ctx, tx, userID)
		if err != nil {
			return lookupError(err, CodeUserNotFound, "user not found")
		}
		owner = u
		cur, err := s.repos.Instances.GetForUpdateTx(ctx, tx, instanceID)
		if err != nil {
			return lookupError(err, CodeNotFound, "workbook instance not found")
		}
		if cur.AssignedTo != userID {
			return notFound(CodeNotFound, "workbook instance not found")
		}
		if !CanAccessInstance(u, cur, now) {
			return accessExpired()
		}
		if cur.Status.Frozen() {
			return instanceFrozen(string(cur.Status))
		}

		merged := cur.Answers
		if answers != nil {
			if merged, err = mergeAnswers(cur.Answers, answers); err != nil {
				return err
			}
		}
		next, err := NextStatus(cur.Status, model.AnsweredCount(merged), len(merged), requested)
		if err != nil {
			return err
		}

		var submittedAt *time.Time
		if next == model.StatusSubmitted {
			submittedAt = &now
		}
		if err := s.repos.Instances.UpdateAnswersTx(ctx, tx, cur.ID, userID, merged, next, submittedAt, now); err != nil {
			return err
		}
		cur.Answers = merged
		cur.Status = next
		cur.UpdatedAt = now
		if submittedAt != nil {
			cur.SubmittedAt = submittedAt
		}
		inst = cur
		return nil
	})
	if err != nil {
		return model.Instance{}, txError("update workbook", err)
	}

	if inst.Status == model.StatusSubmitted {
		s.notify(ctx, SubmissionNotice{
			UserID:      owner.ID,
			UserName:    owner.Name,
			UserEmail:   owner.Email,
			Instances:   []NoticeItem{{InstanceID: inst.ID, Title: inst.Title}},
			SubmittedAt: now,
		})
	}
	return inst, nil
}

// Review records administrator feedback and moves a submitted instance to
// reviewed.  Answers stay frozen.
func (s *InstanceService) Review(ctx context.Context, instanceID, feedback string) (model.Instance, error) {
	if err := checkIDs("instanceId", instanceID); err != nil {
		return model.Instance{}, err
	}
	now := s.clock()
	var inst model.Instance
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := s.repos.Instances.GetForUpdateTx(ctx, tx, instanceID)
		if err != nil {
			return lookupError(err, CodeNotFound, "workbook instance not found")
		}
		if cur.Status == model.StatusReviewed {
			return newError(KindConflict, CodeInvalidTransition, "workbook has already been reviewed")
		}
		next, err := NextStatus(cur.Status, model.AnsweredCount(cur.Answers), len(cur.Answers), model.StatusReviewed)
		if err != nil {
			return err
		}
		if err := s.repos.Instances.ReviewTx(ctx, tx, cur.ID, feedback, now); err != nil {
			return err
		}
		cur.Status = next
		cur.Feedback = feedback
		cur.ReviewedAt = &now
		cur.UpdatedAt = now
		inst = cur
		return nil
	})
	if err != nil {
		return model.Instance{}, txError("review workbook", err)
	}
	s.log.Info("workbook reviewed", "instance_id", inst.ID)
	return inst, nil
}

// mergeAnswers applies incoming answer text onto the stored questions.  The
// question list is immutable: the lengths must match and any question text
// supplied by the client must equal the stored one.
func mergeAnswers(stored, incoming []model.Answer) ([]model.Answer, error) {
	if len(incoming) != len(stored) {
		return nil, newError(KindValidation, CodeInvalidAnswers,
			"expected "+strconv.Itoa(len(stored))+" answers, got "+strconv.Itoa(len(incoming)))
	}
	out := make([]model.Answer, len(stored))
	for i, a := range incoming {
		if a.Question != "" && strings.TrimSpace(a.Question) != strings.TrimSpace(stored[i].Question) {
			return nil, newError(KindValidation, CodeInvalidAnswers, "question "+strconv.Itoa(i+1)+" does not match the workbook")
		}
		out[i] = model.Answer{Question: stored[i].Question, Answer: a.Answer}
	}
	return out, nil
}

// lookupError maps repository.ErrNotFound onto a NotFound service error.
func lookupError(err error, code, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(code, msg)
	}
	return err
}
