// internal/service/project.go
package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/ordering"
	"github.com/tackboard/tackboard/internal/repository"
	"github.com/tackboard/tackboard/internal/tenancy"
	"gorm.io/gorm"
)

// ProjectService owns project lifecycle and project membership. Creating a
// project also creates its single board and a default column set, all in
// one transaction.
type ProjectService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewProjectService(db *gorm.DB) *ProjectService {
	return &ProjectService{db: db, validate: validator.New()}
}

var defaultColumns = []string{"To Do", "In Progress", "Done"}

type CreateProjectInput struct {
	Key  string `json:"key" validate:"required,min=2,max=10,uppercase,alphanum"`
	Name string `json:"name" validate:"required,max=100"`
}

// CreateProject creates the project, its board and default columns, and
// enrolls the creator as project admin. Keys are uppercase alphanumeric,
// 2-10 characters, starting with a letter, unique within the organization.
func (s *ProjectService) CreateProject(ctx context.Context, h tenancy.OrgHandle, input CreateProjectInput) (*model.Project, error) {
	if !h.Roles().CanCreateProject() {
		return nil, domain.ErrPermissionDenied
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if input.Key[0] < 'A' || input.Key[0] > 'Z' {
		return nil, &domain.ValidationError{Field: "key", Reason: "must start with a letter"}
	}

	project := &model.Project{
		OrganizationID: h.Org().ID,
		Key:            input.Key,
		Name:           input.Name,
		NextTaskNumber: 1,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)
		if err := projects.Create(ctx, project); err != nil {
			return err
		}
		if err := projects.CreateMember(ctx, &model.ProjectMember{
			ProjectID: project.ID,
			UserID:    h.Caller(),
			Role:      model.ProjectRoleAdmin,
		}); err != nil {
			return err
		}

		boards := repository.NewBoardRepository(tx)
		board := &model.Board{ProjectID: project.ID}
		if err := boards.Create(ctx, board); err != nil {
			return err
		}
		for i, name := range defaultColumns {
			if err := boards.CreateColumn(ctx, &model.Column{
				BoardID:  board.ID,
				Name:     name,
				Position: float64(i+1) * ordering.PositionGap,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

type AddProjectMemberInput struct {
	UserID uuid.UUID         `json:"user_id" validate:"required"`
	Role   model.ProjectRole `json:"role" validate:"required,oneof=admin member viewer"`
}

// AddMember enrolls an organization member into the project. Users outside
// the organization can never hold project roles; that would be a
// cross-tenant reference.
func (s *ProjectService) AddMember(ctx context.Context, h tenancy.ProjectHandle, input AddProjectMemberInput) (*model.ProjectMember, error) {
	if !h.Roles().CanManageMembers() {
		return nil, domain.ErrPermissionDenied
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	if _, err := repository.NewOrganizationRepository(s.db).FindMember(ctx, h.Org().ID, input.UserID); err != nil {
		return nil, &domain.ValidationError{Field: "user_id", Reason: "not a member of the organization"}
	}

	member := &model.ProjectMember{
		ProjectID: h.Project().ID,
		UserID:    input.UserID,
		Role:      input.Role,
	}
	if err := repository.NewProjectRepository(s.db).CreateMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember drops a project membership.
func (s *ProjectService) RemoveMember(ctx context.Context, h tenancy.ProjectHandle, userID uuid.UUID) error {
	if !h.Roles().CanManageMembers() {
		return domain.ErrPermissionDenied
	}
	return repository.NewProjectRepository(s.db).DeleteMember(ctx, h.Project().ID, userID)
}

// ArchiveProject soft-deletes the project; its data stays readable, all
// mutations are rejected. Idempotent.
func (s *ProjectService) ArchiveProject(ctx context.Context, h tenancy.ProjectHandle) error {
	if !h.Roles().CanDeleteProject() {
		return domain.ErrPermissionDenied
	}
	if h.Project().Archived {
		return nil
	}
	return repository.NewProjectRepository(s.db).Archive(ctx, h.Project().ID)
}

// HardDeleteProject cascades over tasks, columns, board, memberships and
// the tasks' activity entries. The caller must echo the project key as an
// explicit confirmation.
func (s *ProjectService) HardDeleteProject(ctx context.Context, h tenancy.ProjectHandle, confirmKey string) error {
	if !h.Roles().CanDeleteProject() {
		return domain.ErrPermissionDenied
	}
	if confirmKey != h.Project().Key {
		return &domain.ValidationError{Field: "confirm_key", Reason: "does not match project key"}
	}
	return repository.NewProjectRepository(s.db).HardDelete(ctx, h.Project().ID)
}

// Projects lists the caller's projects in the organization, i.e. only
// those they hold a project membership in.
func (s *ProjectService) Projects(ctx context.Context, h tenancy.OrgHandle) ([]model.Project, error) {
	all, err := repository.NewProjectRepository(s.db).FindByOrganization(ctx, h.Org().ID)
	if err != nil {
		return nil, err
	}
	visible := make([]model.Project, 0, len(all))
	for _, p := range all {
		if _, err := repository.NewProjectRepository(s.db).FindMember(ctx, p.ID, h.Caller()); err == nil {
			visible = append(visible, p)
		}
	}
	return visible, nil
}
