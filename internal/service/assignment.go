package service

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"strings"

	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
)

// AssignmentService creates and removes per-user workbook instances.
type AssignmentService struct {
	repos Repos
	settings
}

// NewAssignmentService returns an AssignmentService over repos.
func NewAssignmentService(repos Repos, opts ...Option) *AssignmentService {
	return &AssignmentService{repos: repos, settings: newSettings(opts)}
}

// Assign copies templateID into a new instance owned by userID.  In one
// transaction it creates the instance, records it in the user's workbook
// index and reopens the user's dashboard for linkTTL.  A second assignment
// of the same pair fails with AlreadyAssigned and changes nothing.
func (s *AssignmentService) Assign(ctx context.Context, templateID, userID string) (model.Instance, error) {
	if err := checkIDs("templateId", templateID, "userId", userID); err != nil {
		return model.Instance{}, err
	}
	id, err := model.NewID()
	if err != nil {
		return model.Instance{}, txError("assign", err)
	}
	now := s.clock()

	var inst model.Instance
	err = s.repos.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		tpl, err := s.repos.Templates.GetByIDTx(ctx, tx, templateID)
		if errors.Is(err, repository.ErrNotFound) {
			isInstance, err := s.repos.Instances.ExistsTx(ctx, tx, templateID)
			if err != nil {
				return err
			}
			if isInstance {
				return newError(KindValidation, CodeNotATemplate, "templateId refers to an assigned instance, not a template")
			}
			return notFound(CodeTemplateNotFound, "template not found")
		}
		if err != nil {
			return err
		}

		if _, err := s.repos.Users.GetForUpdateTx(ctx, tx, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound(CodeUserNotFound, "user not found")
			}
			return err
		}

		if existing, err := s.repos.Instances.FindByTemplateAndUserTx(ctx, tx, templateID, userID); err == nil {
			return alreadyAssigned(existing.ID)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		inst = model.Instance{
			ID:            id,
			TemplateID:    tpl.ID,
			AssignedTo:    userID,
			Title:         tpl.Title,
			Description:   tpl.Description,
			Answers:       tpl.BlankAnswers(),
			Status:        model.StatusAssigned,
			ShareableLink: s.shareableLink(id, userID),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.repos.Instances.CreateTx(ctx, tx, &inst); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return alreadyAssigned("")
			}
			return err
		}
		if err := s.repos.Users.AddWorkbookTx(ctx, tx, userID, inst.ID); err != nil {
			return err
		}
		return s.repos.Users.ReactivateTx(ctx, tx, userID, now.Add(s.linkTTL), now)
	})
	if err != nil {
		return model.Instance{}, txError("assign", err)
	}
	s.log.Info("workbook assigned", "instance_id", inst.ID, "template_id", templateID, "user_id", userID)
	return inst, nil
}

// Unassign deletes an instance owned by userID and drops it from the
// user's workbook index, both in one transaction.
func (s *AssignmentService) Unassign(ctx context.Context, instanceID, userID string) error {
	if err := checkIDs("instanceId", instanceID, "userId", userID); err != nil {
		return err
	}
	err := s.repos.Tx.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.repos.Users.RemoveWorkbookTx(ctx, tx, userID, instanceID); err != nil {
			return err
		}
		if err := s.repos.Instances.DeleteOwnedTx(ctx, tx, instanceID, userID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFound(CodeNotFound, "workbook instance not found for this user")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return txError("unassign", err)
	}
	s.log.Info("workbook unassigned", "instance_id", instanceID, "user_id", userID)
	return nil
}

func (s *AssignmentService) shareableLink(instanceID, userID string) string {
	base := strings.TrimRight(s.linkBase, "/")
	return base + "/workbooks/" + instanceID + "?user=" + url.QueryEscape(userID)
}

func alreadyAssigned(existingID string) *Error {
	e := newError(KindConflict, CodeAlreadyAssigned, "template is already assigned to this user")
	if existingID != "" {
		e.IDs = []string{existingID}
	}
	return e
}
