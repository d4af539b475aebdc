// internal/repository/organization.go
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tackboard/tackboard/internal/domain"
	"github.com/tackboard/tackboard/internal/model"
	"gorm.io/gorm"
)

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("creating organization: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) FindBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding organization: %w", err)
	}
	return &org, nil
}

func (r *OrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding organization: %w", err)
	}
	return &org, nil
}

// FindByUser returns the organizations the user holds an active membership in.
func (r *OrganizationRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]model.Organization, error) {
	var orgs []model.Organization
	if err := r.db.WithContext(ctx).
		Joins("JOIN organization_members ON organizations.id = organization_members.organization_id").
		Where("organization_members.user_id = ? AND organizations.archived = ?", userID, false).
		Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("finding user organizations: %w", err)
	}
	return orgs, nil
}

// Archive flips the archived flag only. Organization rows are never
// written back whole: a full-row Save from a stale in-memory copy could
// revert a concurrent ownership transfer.
func (r *OrganizationRepository) Archive(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ?", id).
		Update("archived", true)
	if res.Error != nil {
		return fmt.Errorf("archiving organization: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateOwner moves the denormalized owner pointer. Only the ownership
// transfer writes it, inside the same transaction that re-checks the
// single-owner invariant.
func (r *OrganizationRepository) UpdateOwner(ctx context.Context, id, ownerID uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&model.Organization{}).
		Where("id = ?", id).
		Update("owner_id", ownerID)
	if res.Error != nil {
		return fmt.Errorf("updating organization owner: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Membership

func (r *OrganizationRepository) FindMember(ctx context.Context, orgID, userID uuid.UUID) (*model.OrganizationMember, error) {
	var m model.OrganizationMember
	err := r.db.WithContext(ctx).
		First(&m, "organization_id = ? AND user_id = ?", orgID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("finding organization member: %w", err)
	}
	return &m, nil
}

func (r *OrganizationRepository) FindMembers(ctx context.Context, orgID uuid.UUID) ([]*model.OrganizationMember, error) {
	var members []*model.OrganizationMember
	if err := r.db.WithContext(ctx).
		Where("organization_id = ?", orgID).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("finding organization members: %w", err)
	}
	return members, nil
}

func (r *OrganizationRepository) CreateMember(ctx context.Context, m *model.OrganizationMember) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		if IsUniqueViolation(err) {
			return domain.ErrAlreadyMember
		}
		return fmt.Errorf("creating organization member: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) UpdateMember(ctx context.Context, m *model.OrganizationMember) error {
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("updating organization member: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) DeleteMember(ctx context.Context, orgID, userID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&model.OrganizationMember{})
	if res.Error != nil {
		return fmt.Errorf("deleting organization member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrMemberNotFound
	}
	return nil
}

// CountOwners counts members holding the owner role. The organization
// service asserts this is exactly one before committing any membership
// change that touches the owner.
func (r *OrganizationRepository) CountOwners(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.OrganizationMember{}).
		Where("organization_id = ? AND role = ?", orgID, model.OrgRoleOwner).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting owners: %w", err)
	}
	return count, nil
}
