// internal/model/board.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// Board is the Kanban surface of a project. One board per project for now,
// created together with the project.
type Board struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project Project  `gorm:"foreignKey:ProjectID" json:"-"`
	Columns []Column `gorm:"foreignKey:BoardID" json:"-"`
}

// Column is a workflow state holding an ordered set of tasks. Position is a
// fractional ordering value, same scheme as Task.Position. WIPLimit of nil
// means unlimited.
type Column struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	BoardID  uuid.UUID `gorm:"type:uuid;not null;index" json:"board_id"`
	Name     string    `gorm:"type:text;not null" json:"name"`
	Position float64   `gorm:"not null" json:"position"`
	WIPLimit *int      `gorm:"column:wip_limit" json:"wip_limit,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Board Board `gorm:"foreignKey:BoardID" json:"-"`
}
