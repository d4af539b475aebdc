// internal/authz/authz.go

// Package authz computes effective capabilities from organization and
// project roles. Checks are pure lookups into an enumerated role × action
// table, so the whole permission surface is testable without a database.
//
// Organization and project roles are independent: holding org owner or
// admin grants organization-level capabilities (creating projects, managing
// org membership) but no capability inside a project without an explicit
// ProjectMember row.
package authz

import "github.com/tackboard/tackboard/internal/model"

// Capability names an action a caller may or may not perform.
type Capability string

const (
	CapViewProject       Capability = "view_project"
	CapEditTask          Capability = "edit_task"
	CapDeleteTask        Capability = "delete_task"
	CapManageColumns     Capability = "manage_columns"
	CapManageMembers     Capability = "manage_members"
	CapDeleteProject     Capability = "delete_project"
	CapCreateProject     Capability = "create_project"
	CapManageOrgMembers  Capability = "manage_org_members"
	CapTransferOwnership Capability = "transfer_ownership"
	CapArchiveOrg        Capability = "archive_org"
)

// projectGrants is the project-role half of the matrix. Absence means
// denied.
var projectGrants = map[model.ProjectRole]map[Capability]bool{
	model.ProjectRoleAdmin: {
		CapViewProject:   true,
		CapEditTask:      true,
		CapDeleteTask:    true,
		CapManageColumns: true,
		CapManageMembers: true,
		CapDeleteProject: true,
	},
	model.ProjectRoleMember: {
		CapViewProject: true,
		CapEditTask:    true,
	},
	model.ProjectRoleViewer: {
		CapViewProject: true,
	},
}

// orgGrants is the organization-role half. Only organization-level actions
// appear here; project capabilities never do.
var orgGrants = map[model.OrgRole]map[Capability]bool{
	model.OrgRoleOwner: {
		CapCreateProject:     true,
		CapManageOrgMembers:  true,
		CapTransferOwnership: true,
		CapArchiveOrg:        true,
	},
	model.OrgRoleAdmin: {
		CapCreateProject:    true,
		CapManageOrgMembers: true,
	},
	model.OrgRoleMember: {},
}

// Roles is a caller's resolved role pair for one org/project scope.
// HasProjectRole is false when the caller is not a project member; the zero
// ProjectRole must then be ignored.
type Roles struct {
	Org            model.OrgRole
	Project        model.ProjectRole
	HasProjectRole bool
}

// ProjectCan reports whether the role pair grants a project capability.
func (r Roles) ProjectCan(c Capability) bool {
	if !r.HasProjectRole {
		return false
	}
	return projectGrants[r.Project][c]
}

// OrgCan reports whether the role pair grants an organization capability.
func (r Roles) OrgCan(c Capability) bool {
	return orgGrants[r.Org][c]
}

// Convenience checks matching the operations the board exposes.

func (r Roles) CanViewProject() bool       { return r.ProjectCan(CapViewProject) }
func (r Roles) CanEditTask() bool          { return r.ProjectCan(CapEditTask) }
func (r Roles) CanDeleteTask() bool        { return r.ProjectCan(CapDeleteTask) }
func (r Roles) CanManageColumns() bool     { return r.ProjectCan(CapManageColumns) }
func (r Roles) CanManageMembers() bool     { return r.ProjectCan(CapManageMembers) }
func (r Roles) CanDeleteProject() bool     { return r.ProjectCan(CapDeleteProject) }
func (r Roles) CanCreateProject() bool     { return r.OrgCan(CapCreateProject) }
func (r Roles) CanManageOrgMembers() bool  { return r.OrgCan(CapManageOrgMembers) }
func (r Roles) CanTransferOwnership() bool { return r.OrgCan(CapTransferOwnership) }
func (r Roles) CanArchiveOrg() bool        { return r.OrgCan(CapArchiveOrg) }
