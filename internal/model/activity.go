// internal/model/activity.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Action kinds recorded per task mutation.
const (
	ActionTaskCreated   = "task_created"
	ActionTaskMoved     = "task_moved"
	ActionTaskUpdated   = "task_updated"
	ActionTaskArchived  = "task_archived"
	ActionTaskDeleted   = "task_deleted"
	ActionColumnCreated = "column_created"
	ActionColumnMoved   = "column_moved"
)

// ActivityLogEntry is append-only: rows are written inside the mutating
// transaction and never updated or deleted afterwards. ActorID is nullable
// so entries survive user deletion; TaskID is nullable because column
// operations log without a task.
type ActivityLogEntry struct {
	ID       uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	TaskID   *uuid.UUID `json:"task_id" gorm:"type:uuid;index"`
	ActorID  *uuid.UUID `json:"actor_id" gorm:"type:uuid"`
	Action   string     `json:"action" gorm:"type:text;not null"`
	Field    string     `json:"field" gorm:"type:text"`
	OldValue string     `json:"old_value" gorm:"type:text"`
	NewValue string     `json:"new_value" gorm:"type:text"`
	Context  JSONMap    `json:"context" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for ActivityLogEntry
func (ActivityLogEntry) TableName() string {
	return "activity_log_entries"
}

// JSONMap represents a generic map stored as JSONB in the database
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for JSONMap
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for JSONMap
func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(JSONMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("type assertion failed: failed to decode JSONB")
	}

	return json.Unmarshal(bytes, m)
}
