// internal/service/organization.go
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"github.com/tackboard/tackboard/internal/repository"
	"github.com/tackboard/tackboard/internal/tenancy"
	"gorm.io/gorm"
)

// OrgService owns organization lifecycle and membership. The single-owner
// invariant (exactly one owner member per organization) is enforced here,
// transactionally, since no unique constraint can express it.
type OrgService struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewOrgService(db *gorm.DB) *OrgService {
	return &OrgService{db: db, validate: validator.New()}
}

type CreateOrgInput struct {
	Slug string `json:"slug" validate:"required,min=2,max=50,lowercase"`
	Name string `json:"name" validate:"required,max=100"`
}

// CreateOrganization creates the tenant and its owner membership in one
// transaction; the creator is the owner.
func (s *OrgService) CreateOrganization(ctx context.Context, callerID uuid.UUID, input CreateOrgInput) (*model.Organization, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	for _, r := range input.Slug {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return nil, &domain.ValidationError{Field: "slug", Reason: "only lowercase letters, digits and hyphens"}
		}
	}

	org := &model.Organization{
		Slug:    input.Slug,
		Name:    input.Name,
		OwnerID: callerID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgs := repository.NewOrganizationRepository(tx)
		if err := orgs.Create(ctx, org); err != nil {
			if repository.IsUniqueViolation(err) {
				return &domain.ValidationError{Field: "slug", Reason: "already in use"}
			}
			return err
		}
		return orgs.CreateMember(ctx, &model.OrganizationMember{
			OrganizationID: org.ID,
			UserID:         callerID,
			Role:           model.OrgRoleOwner,
		})
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

type AddOrgMemberInput struct {
	UserID uuid.UUID     `json:"user_id" validate:"required"`
	Role   model.OrgRole `json:"role" validate:"required,oneof=admin member"`
}

// AddMember adds a user to the organization. The owner role cannot be
// granted here; ownership moves only through TransferOwnership.
func (s *OrgService) AddMember(ctx context.Context, h tenancy.OrgHandle, input AddOrgMemberInput) (*model.OrganizationMember, error) {
	if !h.Roles().CanManageOrgMembers() {
		return nil, domain.ErrPermissionDenied
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	member := &model.OrganizationMember{
		OrganizationID: h.Org().ID,
		UserID:         input.UserID,
		Role:           input.Role,
	}
	if err := repository.NewOrganizationRepository(s.db).CreateMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes a non-owner member and their project memberships
// within the organization.
func (s *OrgService) RemoveMember(ctx context.Context, h tenancy.OrgHandle, userID uuid.UUID) error {
	if !h.Roles().CanManageOrgMembers() {
		return domain.ErrPermissionDenied
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgs := repository.NewOrganizationRepository(tx)
		member, err := orgs.FindMember(ctx, h.Org().ID, userID)
		if err != nil {
			return err
		}
		if member.Role == model.OrgRoleOwner {
			return domain.ErrCannotRemoveOwner
		}
		if err := tx.Where(
			"user_id = ? AND project_id IN (?)",
			userID,
			tx.Model(&model.Project{}).Select("id").Where("organization_id = ?", h.Org().ID),
		).Delete(&model.ProjectMember{}).Error; err != nil {
			return fmt.Errorf("removing project memberships: %w", err)
		}
		return orgs.DeleteMember(ctx, h.Org().ID, userID)
	})
}

// TransferOwnership moves the owner role to another existing member. The
// outgoing owner becomes an admin. Before commit the owner count is
// re-checked; anything other than exactly one is an invariant violation
// and aborts the transaction.
func (s *OrgService) TransferOwnership(ctx context.Context, h tenancy.OrgHandle, newOwnerID uuid.UUID) error {
	if !h.Roles().CanTransferOwnership() {
		return domain.ErrPermissionDenied
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgs := repository.NewOrganizationRepository(tx)

		target, err := orgs.FindMember(ctx, h.Org().ID, newOwnerID)
		if err != nil {
			return err
		}
		if target.Role == model.OrgRoleOwner {
			return nil
		}
		current, err := orgs.FindMember(ctx, h.Org().ID, h.Org().OwnerID)
		if err != nil {
			return err
		}

		current.Role = model.OrgRoleAdmin
		if err := orgs.UpdateMember(ctx, current); err != nil {
			return err
		}
		target.Role = model.OrgRoleOwner
		if err := orgs.UpdateMember(ctx, target); err != nil {
			return err
		}

		org := h.Org()
		if err := orgs.UpdateOwner(ctx, org.ID, newOwnerID); err != nil {
			return err
		}

		owners, err := orgs.CountOwners(ctx, org.ID)
		if err != nil {
			return err
		}
		if owners != 1 {
			iv := &domain.InvariantViolation{
				Invariant: "exactly one owner per organization",
				Context: map[string]interface{}{
					"organization_id": org.ID.String(),
					"owner_count":     owners,
				},
				Err: fmt.Errorf("found %d owners", owners),
			}
			slog.ErrorContext(ctx, "owner invariant broken during transfer",
				"organization_id", org.ID, "owner_count", owners)
			return iv
		}
		return nil
	})
}

// ArchiveOrganization soft-deletes the tenant. All resources under it stop
// resolving through the guard.
func (s *OrgService) ArchiveOrganization(ctx context.Context, h tenancy.OrgHandle) error {
	if !h.Roles().CanArchiveOrg() {
		return domain.ErrPermissionDenied
	}
	if h.Org().Archived {
		return nil
	}
	return repository.NewOrganizationRepository(s.db).Archive(ctx, h.Org().ID)
}

// Members lists the organization's memberships.
func (s *OrgService) Members(ctx context.Context, h tenancy.OrgHandle) ([]*model.OrganizationMember, error) {
	return repository.NewOrganizationRepository(s.db).FindMembers(ctx, h.Org().ID)
}
