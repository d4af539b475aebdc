// internal/model/organization.go
package model

import (
	"time"

	"github.com/google/uuid"
)

type OrgRole string

const (
	OrgRoleOwner  OrgRole = "owner"
	OrgRoleAdmin  OrgRole = "admin"
	OrgRoleMember OrgRole = "member"
)

// Organization is the tenant boundary. Every project, membership and
// invitation hangs off exactly one organization; nothing in the schema may
// reference rows across organizations.
type Organization struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Slug     string    `gorm:"type:text;uniqueIndex;not null" json:"slug"`
	Name     string    `gorm:"type:text;not null" json:"name"`
	OwnerID  uuid.UUID `gorm:"type:uuid;not null" json:"owner_id"`
	Archived bool      `gorm:"not null;default:false" json:"archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner   User                 `gorm:"foreignKey:OwnerID" json:"-"`
	Members []OrganizationMember `gorm:"foreignKey:OrganizationID" json:"-"`
}

// OrganizationMember links a user into an organization with a role.
// Exactly one member per organization holds OrgRoleOwner at all times; the
// invariant is held transactionally in the organization service since a
// plain unique constraint cannot express "at most one owner who must exist".
type OrganizationMember struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_org_member" json:"organization_id"`
	UserID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_org_member" json:"user_id"`
	Role           OrgRole   `gorm:"type:text;not null" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization Organization `gorm:"foreignKey:OrganizationID" json:"-"`
	User         User         `gorm:"foreignKey:UserID" json:"-"`
}
