package sharing

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Store is the persistence layer for resources, grants and audit entries.
// Service operations bind it to their transaction via WithTx.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store over the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to the given transaction handle.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// --- Resources ---

func (s *Store) CreateResource(ctx context.Context, res *Resource) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(res).Error; err != nil {
		return storeErr("create resource", err)
	}
	return nil
}

// GetResource fetches a resource by type and id.
func (s *Store) GetResource(ctx context.Context, rtype ResourceType, id int64) (*Resource, error) {
	var res Resource
	err := s.db.WithContext(ctx).First(&res, "type = ? AND id = ?", rtype, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr(ReasonNotFound, "resource not found")
		}
		return nil, storeErr("get resource", err)
	}
	return &res, nil
}

// GetResourceByKey fetches a resource by its share key.
func (s *Store) GetResourceByKey(ctx context.Context, key string) (*Resource, error) {
	var res Resource
	err := s.db.WithContext(ctx).First(&res, "share_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr(ReasonKeyNotFound, "no resource with that key")
		}
		return nil, storeErr("get resource by key", err)
	}
	return &res, nil
}

// KeyInUse reports whether any resource currently holds the key.
func (s *Store) KeyInUse(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Resource{}).Where("share_key = ?", key).Count(&count).Error
	if err != nil {
		return false, storeErr("check key uniqueness", err)
	}
	return count > 0, nil
}

// SaveResource persists changes to a resource row. The returned error is
// left untranslated so callers can detect duplicate-key violations.
func (s *Store) SaveResource(ctx context.Context, res *Resource) error {
	return s.db.WithContext(ctx).Save(res).Error
}

// --- Grants ---

// GetGrant fetches the grant row for (resource, user), active or not.
func (s *Store) GetGrant(ctx context.Context, rtype ResourceType, resourceID, userID int64) (*Grant, error) {
	var g Grant
	err := s.db.WithContext(ctx).
		First(&g, "resource_type = ? AND resource_id = ? AND user_id = ?", rtype, resourceID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr(ReasonMemberNotFound, "no grant for user on resource")
		}
		return nil, storeErr("get grant", err)
	}
	return &g, nil
}

func (s *Store) CreateGrant(ctx context.Context, g *Grant) error {
	if g.GrantedAt.IsZero() {
		g.GrantedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(g).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return conflictErr(ReasonAlreadyMember, "grant already exists")
		}
		return storeErr("create grant", err)
	}
	return nil
}

func (s *Store) SaveGrant(ctx context.Context, g *Grant) error {
	if err := s.db.WithContext(ctx).Save(g).Error; err != nil {
		return storeErr("save grant", err)
	}
	return nil
}

// ListGrants returns every grant row for a resource, creator first, then
// oldest grant first.
func (s *Store) ListGrants(ctx context.Context, rtype ResourceType, resourceID int64) ([]Grant, error) {
	var grants []Grant
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ?", rtype, resourceID).
		Order("is_creator DESC, granted_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, storeErr("list grants", err)
	}
	return grants, nil
}

// ListActiveGrants returns active grants for a resource, creator first.
func (s *Store) ListActiveGrants(ctx context.Context, rtype ResourceType, resourceID int64) ([]Grant, error) {
	var grants []Grant
	err := s.db.WithContext(ctx).
		Where("resource_type = ? AND resource_id = ? AND active = ?", rtype, resourceID, true).
		Order("is_creator DESC, granted_at ASC").
		Find(&grants).Error
	if err != nil {
		return nil, storeErr("list active grants", err)
	}
	return grants, nil
}

// CountActiveNonCreator counts active non-creator grants on a resource.
// Used to recompute the shareable flag after revoke/leave.
func (s *Store) CountActiveNonCreator(ctx context.Context, rtype ResourceType, resourceID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Grant{}).
		Where("resource_type = ? AND resource_id = ? AND active = ? AND is_creator = ?", rtype, resourceID, true, false).
		Count(&count).Error
	if err != nil {
		return 0, storeErr("count active grants", err)
	}
	return count, nil
}

// DeleteGrants removes every grant row for a resource (un-share).
func (s *Store) DeleteGrants(ctx context.Context, rtype ResourceType, resourceID int64) error {
	err := s.db.WithContext(ctx).
		Delete(&Grant{}, "resource_type = ? AND resource_id = ?", rtype, resourceID).Error
	if err != nil {
		return storeErr("delete grants", err)
	}
	return nil
}

// ListActiveGrantsForUser returns a user's active, accepted grants across
// all resources. Used by the access resolver.
func (s *Store) ListActiveGrantsForUser(ctx context.Context, userID int64) ([]Grant, error) {
	var grants []Grant
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND accepted = ?", userID, true, true).
		Find(&grants).Error
	if err != nil {
		return nil, storeErr("list grants for user", err)
	}
	return grants, nil
}
