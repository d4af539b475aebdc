// internal/repository/project.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrDuplicateProjectKey
		}
		return fmt.Errorf("creating project: %w", err)
	}
	return nil
}

func (r *ProjectRepository) FindByKey(ctx context.Context, orgID uuid.UUID, key string) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		First(&project, "organization_id = ? AND key = ?", orgID, key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding project: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding project: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) FindByOrganization(ctx context.Context, orgID uuid.UUID) ([]model.Project, error) {
	var projects []model.Project
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("finding organization projects: %w", err)
	}
	return projects, nil
}

// Archive flips the archived flag only. There is deliberately no full-row
// update on projects: the row carries next_task_number, and writing back a
// copy read outside the current transaction would rewind the counter and
// reissue task numbers.
func (r *ProjectRepository) Archive(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Project{}).
		Where("id = ?", id).
		Update("archived", true)
	if res.Error != nil {
		return fmt.Errorf("archiving project: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// HardDelete removes the project and everything under it. Callers confirm
// the cascade explicitly; archive is the default removal path.
func (r *ProjectRepository) HardDelete(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id IN (?)",
			tx.Model(&model.Task{}).Select("id").Where("project_id = ?", id),
		).Delete(&model.ActivityLogEntry{}).Error; err != nil {
			return fmt.Errorf("deleting activity entries: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		if err := tx.Where("board_id IN (?)",
			tx.Model(&model.Board{}).Select("id").Where("project_id = ?", id),
		).Delete(&model.Column{}).Error; err != nil {
			return fmt.Errorf("deleting columns: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.Board{}).Error; err != nil {
			return fmt.Errorf("deleting board: %w", err)
		}
		if err := tx.Where("project_id = ?", id).Delete(&model.ProjectMember{}).Error; err != nil {
			return fmt.Errorf("deleting project members: %w", err)
		}
		if err := tx.Delete(&model.Project{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	return nil
}

// AllocateTaskNumber issues the next task number for the project as a
// single atomic increment-and-return against the project row. It must run
// on the same transaction that inserts the task; numbers burned by a later
// rollback are gaps, never duplicates.
func (r *ProjectRepository) AllocateTaskNumber(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var number int64
	res := r.db.WithContext(ctx).Raw(
		`UPDATE projects
		    SET next_task_number = next_task_number + 1
		  WHERE id = ?
		 RETURNING next_task_number - 1`,
		projectID,
	).Scan(&number)
	if res.Error != nil {
		return 0, fmt.Errorf("allocating task number: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, domain.ErrNotFound
	}
	return number, nil
}

// Membership

func (r *ProjectRepository) FindMember(ctx context.Context, projectID, userID uuid.UUID) (*model.ProjectMember, error) {
	var m model.ProjectMember
	err := r.db.WithContext(ctx).
		First(&m, "project_id = ? AND user_id = ?", projectID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding project member: %w", err)
	}
	return &m, nil
}

func (r *ProjectRepository) FindMembers(ctx context.Context, projectID uuid.UUID) ([]*model.ProjectMember, error) {
	var members []*model.ProjectMember
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("finding project members: %w", err)
	}
	return members, nil
}

func (r *ProjectRepository) CreateMember(ctx context.Context, m *model.ProjectMember) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("creating project member: %w", err)
	}
	return nil
}

func (r *ProjectRepository) DeleteMember(ctx context.Context, projectID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&model.ProjectMember{})
	if res.Error != nil {
		return fmt.Errorf("deleting project member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}
