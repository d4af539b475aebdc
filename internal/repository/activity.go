// internal/repository/activity.go
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

type ActivityRepository struct {
	db *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Append writes a log entry. There is deliberately no Update or Delete on
// this repository; the log is immutable once written.
func (r *ActivityRepository) Append(ctx context.Context, entry *model.ActivityLogEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("appending activity entry: %w", err)
	}
	return nil
}

// FindByTask returns a task's log entries, newest first.
func (r *ActivityRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]model.ActivityLogEntry, error) {
	var entries []model.ActivityLogEntry
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("finding activity entries: %w", err)
	}
	return entries, nil
}

// FindLatestByTask returns the most recent entry for a task, or nil when
// the task has none.
func (r *ActivityRepository) FindLatestByTask(ctx context.Context, taskID uuid.UUID) (*model.ActivityLogEntry, error) {
	var entries []model.ActivityLogEntry
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("finding latest activity entry: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
