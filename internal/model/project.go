// internal/model/project.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type ProjectRole string

const (
	ProjectRoleAdmin  ProjectRole = "admin"
	ProjectRoleMember ProjectRole = "member"
	ProjectRoleViewer ProjectRole = "viewer"
)

// Project belongs to one organization and owns the task-number sequence.
// NextTaskNumber is only ever touched through
// ProjectRepository.AllocateTaskNumber inside the task-creating
// transaction; reading it anywhere else and writing it back would reopen
// the lost-update race the allocator exists to close.
type Project struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_project_key" json:"organization_id"`
	Key            string    `gorm:"type:text;not null;uniqueIndex:idx_project_key" json:"key"`
	Name           string    `gorm:"type:text;not null" json:"name"`
	NextTaskNumber int64     `gorm:"not null;default:1" json:"-"`
	Archived       bool      `gorm:"not null;default:false" json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
}

// ProjectMember grants a project role independently of any organization
// role: an org owner/admin gets no project capabilities without a row here.
type ProjectMember struct {
	ID        uuid.UUID   `gorm:"type:uuid;primary_key" json:"id"`
	ProjectID uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_project_member" json:"project_id"`
	UserID    uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_project_member" json:"user_id"`
	Role      ProjectRole `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Project Project `gorm:"foreignKey:ProjectID" json:"-"`
	User    User    `gorm:"foreignKey:UserID" json:"-"`
}
