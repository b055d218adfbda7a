package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/iliyamo/workbook-assignment/internal/model"
	"github.com/iliyamo/workbook-assignment/internal/repository"
)

// CatalogService covers admin authoring of templates and users and the
// read-only views built on top of them.
type CatalogService struct {
	repos Repos
	settings
}

// NewCatalogService returns a CatalogService over repos.
func NewCatalogService(repos Repos, opts ...Option) *CatalogService {
	return &CatalogService{repos: repos, settings: newSettings(opts)}
}

// NewTemplate is the admin input for a template.
type NewTemplate struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Questions   []string `json:"questions"`
}

// NewUser is the admin input for a user.
type NewUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AccessSummary reports whether a user's dashboard is open and how many
// instances they can still work on.
type AccessSummary struct {
	UserID           string     `json:"userId"`
	CanAccess        bool       `json:"canAccess"`
	IsCompleted      bool       `json:"isCompleted"`
	DashboardExpired bool       `json:"dashboardExpired"`
	LinkExpiresAt    *time.Time `json:"linkExpiresAt"`
	ActiveInstances  int        `json:"activeInstances"`
}

// CreateTemplate stores a new template.
func (s *CatalogService) CreateTemplate(ctx context.Context, in NewTemplate) (model.Template, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Template{}, invalidRequest("title is required")
	}
	questions := make([]model.Question, 0, len(in.Questions))
	for _, q := range in.Questions {
		q = strings.TrimSpace(q)
		if q == "" {
			return model.Template{}, invalidRequest("questions must not be blank")
		}
		questions = append(questions, model.Question{Text: q})
	}
	id, err := model.NewID()
	if err != nil {
		return model.Template{}, txError("create template", err)
	}
	now := s.clock()
	t := model.Template{ID: id, CreatedAt: now, UpdatedAt: now}
	t.Title = title
	t.Description = strings.TrimSpace(in.Description)
	t.Questions = questions
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	if err := s.repos.Templates.Create(ctx, &t); err != nil {
		return model.Template{}, txError("create template", err)
	}
	s.log.Info("template created", "template_id", t.ID, "questions", len(questions))
	return t, nil
}

// ListTemplates returns every template.
func (s *CatalogService) ListTemplates(ctx context.Context) ([]model.Template, error) {
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	ts, err := s.repos.Templates.List(ctx)
	if err != nil {
		return nil, txError("list templates", err)
	}
	return ts, nil
}

// GetTemplate returns one template.  An instance id is rejected as
// NotATemplate rather than reported missing.
func (s *CatalogService) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	if err := checkIDs("templateId", id); err != nil {
		return model.Template{}, err
	}
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	t, err := s.repos.Templates.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		if _, ierr := s.repos.Instances.GetByID(ctx, id); ierr == nil {
			return model.Template{}, newError(KindValidation, CodeNotATemplate, "id refers to an assigned instance, not a template")
		}
		return model.Template{}, notFound(CodeTemplateNotFound, "template not found")
	}
	if err != nil {
		return model.Template{}, txError("get template", err)
	}
	return t, nil
}

// CreateUser registers a user.  The dashboard link opens for linkTTL.
func (s *CatalogService) CreateUser(ctx context.Context, in NewUser) (model.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.User{}, invalidRequest("name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(in.Email))
	if err != nil || addr.Address != strings.TrimSpace(in.Email) {
		return model.User{}, invalidRequest("email is not a valid address")
	}
	id, err := model.NewID()
	if err != nil {
		return model.User{}, txError("create user", err)
	}
	exp := s.clock().Add(s.linkTTL)
	u := model.User{ID: id, Name: name, Email: addr.Address, LinkExpiresAt: &exp}
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	if err := s.repos.Users.Create(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.User{}, newError(KindConflict, CodeEmailExists, "a user with this email already exists")
		}
		return model.User{}, txError("create user", err)
	}
	s.log.Info("user created", "user_id", u.ID)
	return u, nil
}

// ListUserWorkbooks returns every instance assigned to userID.
func (s *CatalogService) ListUserWorkbooks(ctx context.Context, userID string) ([]model.Instance, error) {
	if err := checkIDs("userId", userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	if _, err := s.repos.Users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound(CodeUserNotFound, "user not found")
		}
		return nil, txError("list workbooks", err)
	}
	list, err := s.repos.Instances.ListByUser(ctx, userID)
	if err != nil {
		return nil, txError("list workbooks", err)
	}
	return list, nil
}

// Access evaluates the user's dashboard access.
func (s *CatalogService) Access(ctx context.Context, userID string) (AccessSummary, error) {
	if err := checkIDs("userId", userID); err != nil {
		return AccessSummary{}, err
	}
	ctx, cancel := s.repos.bounded(ctx)
	defer cancel()
	u, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AccessSummary{}, notFound(CodeUserNotFound, "user not found")
		}
		return AccessSummary{}, txError("check access", err)
	}
	list, err := s.repos.Instances.ListByUser(ctx, userID)
	if err != nil {
		return AccessSummary{}, txError("check access", err)
	}
	active := 0
	for _, inst := range list {
		if !inst.Status.Frozen() {
			active++
		}
	}
	return AccessSummary{
		UserID:           u.ID,
		CanAccess:        CanAccessUser(u, s.clock()),
		IsCompleted:      u.IsCompleted,
		DashboardExpired: u.DashboardExpired,
		LinkExpiresAt:    u.LinkExpiresAt,
		ActiveInstances:  active,
	}, nil
}
