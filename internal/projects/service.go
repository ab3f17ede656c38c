package projects

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/procureflow/procureflow/internal/shared"
)

// Service implements project management rules.
type Service struct {
	repo   RepositoryPort
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, projectID int64) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "project",
		EntityID: strconv.FormatInt(projectID, 10),
	})
	if err != nil {
		s.logger.Error("record audit", slog.Any("error", err))
	}
}

// Get returns a project with live aggregates.
func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	return s.repo.Get(ctx, id)
}

// List returns all projects with live aggregates.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

// Create registers a new project. Status defaults to active.
func (s *Service) Create(ctx context.Context, actor shared.Principal, in CreateProjectInput) (*Project, error) {
	status := Status(in.Status)
	if status == "" {
		status = StatusActive
	}
	p := &Project{
		Name:        in.Name,
		OwnerName:   in.OwnerName,
		Location:    in.Location,
		Description: in.Description,
		Status:      status,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor.UserID, "project.create", p.ID)
	return p, nil
}

// Update rewrites the mutable fields.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, in UpdateProjectInput) (*Project, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.OwnerName = in.OwnerName
	p.Location = in.Location
	p.Description = in.Description
	p.Status = Status(in.Status)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor.UserID, "project.update", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a project that has no requests or orders yet.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.UserID, "project.delete", id)
	return nil
}
