// internal/repository/task.go
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	// A unique violation here is either the (column_id, position) ordering
	// index or the (project_id, task_number) invariant; the board service
	// tells the two apart.
	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding task: %w", err)
	}
	return &task, nil
}

// TaskFilter narrows and pages a project-wide task listing. Zero values
// mean "no constraint"; Archived nil includes archived and active tasks
// alike.
type TaskFilter struct {
	Search   string
	Priority model.Priority
	Label    string
	Archived *bool
	Sort     string
	Limit    int
	Offset   int
}

// taskSortOrders whitelists the sortable columns; anything else falls back
// to task-number order.
var taskSortOrders = map[string]string{
	"number":   "task_number ASC",
	"created":  "created_at DESC",
	"updated":  "updated_at DESC",
	"priority": "priority ASC",
	"position": "position ASC",
}

const (
	defaultTaskPageSize = 50
	maxTaskPageSize     = 200
)

// FindByProject lists a project's tasks with optional search, filters,
// sorting and pagination.
func (r *TaskRepository) FindByProject(ctx context.Context, projectID uuid.UUID, f TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if f.Search != "" {
		// LOWER on both sides keeps the match case-insensitive under
		// postgres; sqlite LIKE already is for ASCII.
		pattern := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Label != "" {
		// Labels are stored as an array literal, so a substring match
		// covers single-label lookups.
		q = q.Where("labels LIKE ?", "%"+f.Label+"%")
	}
	if f.Archived != nil {
		q = q.Where("archived = ?", *f.Archived)
	}

	order, ok := taskSortOrders[f.Sort]
	if !ok {
		order = taskSortOrders["number"]
	}
	limit := f.Limit
	if limit <= 0 || limit > maxTaskPageSize {
		limit = defaultTaskPageSize
	}

	var tasks []model.Task
	err := q.Order(order).Limit(limit).Offset(f.Offset).Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("listing project tasks: %w", err)
	}
	return tasks, nil
}

// FindByColumn returns a column's active tasks in board order.
func (r *TaskRepository) FindByColumn(ctx context.Context, columnID uuid.UUID) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("column_id = ? AND archived = ?", columnID, false).
		Order("position ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("finding column tasks: %w", err)
	}
	return tasks, nil
}

// CountActiveInColumn backs WIP-limit enforcement.
func (r *TaskRepository) CountActiveInColumn(ctx context.Context, columnID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("column_id = ? AND archived = ?", columnID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting column tasks: %w", err)
	}
	return count, nil
}

func (r *TaskRepository) Update(ctx context.Context, task *model.Task) error {
	if err := r.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}
