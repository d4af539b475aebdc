// internal/tenancy/guard.go

// Package tenancy resolves caller-scoped resource handles. Every service
// operation takes a handle, never a raw identifier, so business logic
// cannot be invoked on a resource that has not passed through the guard.
// Handles keep their fields unexported for that reason: only the guard can
// mint them.
//
// A resource that does not exist and a resource the caller has no tenant
// access to both resolve to domain.ErrNotFound. The conflation is
// deliberate: distinguishing them would let an unauthorized caller
// enumerate which slugs and ids exist.
package tenancy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/authz"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/repository"
	"gorm.io/gorm"
)

type Guard struct {
	orgs     *repository.OrganizationRepository
	projects *repository.ProjectRepository
	tasks    *repository.TaskRepository
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{
		orgs:     repository.NewOrganizationRepository(db),
		projects: repository.NewProjectRepository(db),
		tasks:    repository.NewTaskRepository(db),
	}
}

// OrgHandle proves the caller holds an active membership in the org.
type OrgHandle struct {
	org    *model.Organization
	caller uuid.UUID
	roles  authz.Roles
}

func (h OrgHandle) Org() *model.Organization { return h.org }
func (h OrgHandle) Caller() uuid.UUID        { return h.caller }
func (h OrgHandle) Roles() authz.Roles       { return h.roles }

// ProjectHandle proves org membership plus project membership.
type ProjectHandle struct {
	OrgHandle
	project *model.Project
}

func (h ProjectHandle) Project() *model.Project { return h.project }

// TaskHandle additionally pins the task the operation targets.
type TaskHandle struct {
	ProjectHandle
	task *model.Task
}

func (h TaskHandle) Task() *model.Task { return h.task }

// ResolveOrg looks up an organization by slug and verifies the caller's
// membership. Archived organizations are invisible.
func (g *Guard) ResolveOrg(ctx context.Context, caller uuid.UUID, slug string) (OrgHandle, error) {
	org, err := g.orgs.FindBySlug(ctx, slug)
	if err != nil {
		return OrgHandle{}, err
	}
	if org.Archived {
		return OrgHandle{}, domain.ErrNotFound
	}
	member, err := g.orgs.FindMember(ctx, org.ID, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return OrgHandle{}, domain.ErrNotFound
		}
		return OrgHandle{}, fmt.Errorf("resolving org membership: %w", err)
	}
	return OrgHandle{
		org:    org,
		caller: caller,
		roles:  authz.Roles{Org: member.Role},
	}, nil
}

// ResolveProject resolves org → project → project membership. A caller who
// is in the org but not in the project gets NotFound, not Forbidden: a
// project you cannot view does not exist for you.
func (g *Guard) ResolveProject(ctx context.Context, caller uuid.UUID, slug, key string) (ProjectHandle, error) {
	oh, err := g.ResolveOrg(ctx, caller, slug)
	if err != nil {
		return ProjectHandle{}, err
	}
	project, err := g.projects.FindByKey(ctx, oh.org.ID, key)
	if err != nil {
		return ProjectHandle{}, err
	}
	return g.projectHandle(ctx, oh, project)
}

// ResolveTask resolves a task id up through its project and org, applying
// the same membership checks as ResolveProject.
func (g *Guard) ResolveTask(ctx context.Context, caller uuid.UUID, taskID uuid.UUID) (TaskHandle, error) {
	task, err := g.tasks.FindByID(ctx, taskID)
	if err != nil {
		return TaskHandle{}, err
	}
	project, err := g.projects.FindByID(ctx, task.ProjectID)
	if err != nil {
		return TaskHandle{}, err
	}
	org, err := g.orgs.FindByID(ctx, project.OrganizationID)
	if err != nil {
		return TaskHandle{}, err
	}
	if org.Archived {
		return TaskHandle{}, domain.ErrNotFound
	}
	member, err := g.orgs.FindMember(ctx, org.ID, caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return TaskHandle{}, domain.ErrNotFound
		}
		return TaskHandle{}, fmt.Errorf("resolving org membership: %w", err)
	}
	oh := OrgHandle{org: org, caller: caller, roles: authz.Roles{Org: member.Role}}
	ph, err := g.projectHandle(ctx, oh, project)
	if err != nil {
		return TaskHandle{}, err
	}
	return TaskHandle{ProjectHandle: ph, task: task}, nil
}

func (g *Guard) projectHandle(ctx context.Context, oh OrgHandle, project *model.Project) (ProjectHandle, error) {
	pm, err := g.projects.FindMember(ctx, project.ID, oh.caller)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ProjectHandle{}, domain.ErrNotFound
		}
		return ProjectHandle{}, fmt.Errorf("resolving project membership: %w", err)
	}
	roles := oh.roles
	roles.Project = pm.Role
	roles.HasProjectRole = true
	return ProjectHandle{
		OrgHandle: OrgHandle{org: oh.org, caller: oh.caller, roles: roles},
		project:   project,
	}, nil
}
