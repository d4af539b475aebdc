// internal/model/task.go
package model

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is the atomic work item. TaskNumber is scoped to the project,
// assigned once at creation and never reassigned, even after archive or
// hard delete. Position orders the task within its column; the unique
// (column_id, position) index is what turns two concurrent inserts landing
// on the same slot into a detectable conflict instead of a silent tie.
type Task struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ProjectID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_task_number" json:"project_id"`
	BoardID    uuid.UUID `gorm:"type:uuid;not null;index" json:"board_id"`
	ColumnID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_column_position" json:"column_id"`
	TaskNumber int64     `gorm:"not null;uniqueIndex:idx_task_number" json:"task_number"`
	Position   float64   `gorm:"not null;uniqueIndex:idx_column_position" json:"position"`

	Title       string         `gorm:"type:text;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Priority    Priority       `gorm:"type:text;not null;default:'medium'" json:"priority"`
	Labels      pq.StringArray `gorm:"type:text" json:"labels"`
	AssigneeID  *uuid.UUID     `gorm:"type:uuid" json:"assignee_id,omitempty"`
	ReporterID  *uuid.UUID     `gorm:"type:uuid" json:"reporter_id,omitempty"`
	Archived    bool           `gorm:"not null;default:false" json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Column   Column `gorm:"foreignKey:ColumnID" json:"-"`
	Assignee *User  `gorm:"foreignKey:AssigneeID" json:"-"`
	Reporter *User  `gorm:"foreignKey:ReporterID" json:"-"`
}

// Ref renders the human-readable task reference, e.g. "WEB-42".
func (t *Task) Ref(projectKey string) string {
	return projectKey + "-" + strconv.FormatInt(t.TaskNumber, 10)
}
