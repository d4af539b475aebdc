package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/service"
)

func TestCreateOrganization(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	creator := e.addUser(nextEmail("creator"))
	org, err := e.orgs.CreateOrganization(ctx, creator, service.CreateOrgInput{
		Slug: "globex", Name: "Globex",
	})
	require.NoError(t, err)
	assert.Equal(t, creator, org.OwnerID)

	// The creator becomes the owner member in the same transaction.
	h, err := e.guard.ResolveOrg(ctx, creator, "globex")
	require.NoError(t, err)
	assert.Equal(t, model.OrgRoleOwner, h.Roles().Org)
}

func TestCreateOrganizationRejectsBadSlugs(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	creator := e.addUser(nextEmail("creator"))

	for _, slug := range []string{"", "a", "Has-Caps", "under_score", "space bad"} {
		_, err := e.orgs.CreateOrganization(ctx, creator, service.CreateOrgInput{
			Slug: slug, Name: "Bad",
		})
		assert.Error(t, err, "slug %q", slug)
	}

	// Duplicate slug surfaces as a validation problem, not a raw DB error.
	_, err := e.orgs.CreateOrganization(ctx, creator, service.CreateOrgInput{
		Slug: "acme", Name: "Imposter",
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "slug", verr.Field)
}

func TestAddOrgMember(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	newcomer := e.addUser(nextEmail("newcomer"))

	m, err := e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: newcomer, Role: model.OrgRoleMember,
	})
	require.NoError(t, err)
	assert.Equal(t, model.OrgRoleMember, m.Role)

	// Twice is a conflict.
	_, err = e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: newcomer, Role: model.OrgRoleMember,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	// The owner role can never be granted through AddMember.
	_, err = e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: e.addUser(nextEmail("wannabe")), Role: model.OrgRoleOwner,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAddOrgMemberRequiresManageCapability(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	plain := e.addUser(nextEmail("plain"))
	_, err := e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: plain, Role: model.OrgRoleMember,
	})
	require.NoError(t, err)

	_, err = e.orgs.AddMember(ctx, e.orgHandle(plain), service.AddOrgMemberInput{
		UserID: e.addUser(nextEmail("other")), Role: model.OrgRoleMember,
	})
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)
}

func TestRemoveMemberNeverRemovesOwner(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	err := e.orgs.RemoveMember(ctx, e.orgHandle(e.owner), e.owner)
	assert.ErrorIs(t, err, domain.ErrCannotRemoveOwner)
}

func TestRemoveMemberCascadesProjectMemberships(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	member := e.addUser(nextEmail("member"))
	e.enroll(member, model.OrgRoleMember, model.ProjectRoleMember)

	require.NoError(t, e.orgs.RemoveMember(ctx, e.orgHandle(e.owner), member))

	var n int64
	require.NoError(t, e.db.Model(&model.ProjectMember{}).
		Where("user_id = ?", member).Count(&n).Error)
	assert.Zero(t, n)

	_, err := e.guard.ResolveOrg(ctx, member, "acme")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransferOwnership(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	successor := e.addUser(nextEmail("successor"))
	_, err := e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: successor, Role: model.OrgRoleAdmin,
	})
	require.NoError(t, err)

	require.NoError(t, e.orgs.TransferOwnership(ctx, e.orgHandle(e.owner), successor))

	var org model.Organization
	require.NoError(t, e.db.First(&org, "slug = ?", "acme").Error)
	assert.Equal(t, successor, org.OwnerID)

	// Exactly one owner member, and the outgoing owner is now an admin.
	var owners int64
	require.NoError(t, e.db.Model(&model.OrganizationMember{}).
		Where("organization_id = ? AND role = ?", org.ID, model.OrgRoleOwner).
		Count(&owners).Error)
	assert.EqualValues(t, 1, owners)

	assert.Equal(t, model.OrgRoleAdmin, e.orgHandle(e.owner).Roles().Org)
	assert.Equal(t, model.OrgRoleOwner, e.orgHandle(successor).Roles().Org)
}

func TestTransferOwnershipRules(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	admin := e.addUser(nextEmail("admin"))
	_, err := e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: admin, Role: model.OrgRoleAdmin,
	})
	require.NoError(t, err)

	// Only the owner may transfer.
	err = e.orgs.TransferOwnership(ctx, e.orgHandle(admin), admin)
	assert.ErrorIs(t, err, domain.ErrPermissionDenied)

	// The target must already be a member.
	err = e.orgs.TransferOwnership(ctx, e.orgHandle(e.owner), e.addUser(nextEmail("outsider")))
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Transferring to the current owner is a no-op.
	require.NoError(t, e.orgs.TransferOwnership(ctx, e.orgHandle(e.owner), e.owner))
	assert.Equal(t, model.OrgRoleOwner, e.orgHandle(e.owner).Roles().Org)
}

func TestArchiveOrganizationDoesNotRevertOwnership(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	// Handle resolved while the founder still owns the org.
	stale := e.orgHandle(e.owner)

	successor := e.addUser(nextEmail("successor"))
	_, err := e.orgs.AddMember(ctx, e.orgHandle(e.owner), service.AddOrgMemberInput{
		UserID: successor, Role: model.OrgRoleAdmin,
	})
	require.NoError(t, err)
	require.NoError(t, e.orgs.TransferOwnership(ctx, e.orgHandle(e.owner), successor))

	require.NoError(t, e.orgs.ArchiveOrganization(ctx, stale))

	var org model.Organization
	require.NoError(t, e.db.First(&org, "id = ?", stale.Org().ID).Error)
	assert.True(t, org.Archived)
	assert.Equal(t, successor, org.OwnerID,
		"archiving from a stale handle must not write the owner back")
}

func TestArchiveOrganizationHidesEverything(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	task := e.createTask(e.owner, "soon unreachable")

	require.NoError(t, e.orgs.ArchiveOrganization(ctx, e.orgHandle(e.owner)))

	_, err := e.guard.ResolveOrg(ctx, e.owner, "acme")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.guard.ResolveTask(ctx, e.owner, task.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
