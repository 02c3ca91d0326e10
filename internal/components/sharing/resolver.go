package sharing

import (
	"context"
	"sort"
)

// ListOwnedResources returns every resource owned by the user.
func (s *Store) ListOwnedResources(ctx context.Context, userID int64) ([]Resource, error) {
	var out []Resource
	err := s.db.WithContext(ctx).Where("owner_id = ?", userID).Find(&out).Error
	if err != nil {
		return nil, storeErr("list owned resources", err)
	}
	return out, nil
}

// ListListsInCategories returns every list whose parent category is in ids.
func (s *Store) ListListsInCategories(ctx context.Context, ids []int64) ([]Resource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Resource
	err := s.db.WithContext(ctx).
		Where("type = ? AND category_id IN ?", TypeList, ids).
		Find(&out).Error
	if err != nil {
		return nil, storeErr("list lists in categories", err)
	}
	return out, nil
}

// Resolver answers "what can this user reach, and with what role".
type Resolver struct {
	store *Store
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

type resolvedAccess struct {
	res    Resource
	role   Role
	origin AccessOrigin
}

// originRank orders access origins by precedence when a user reaches
// the same resource more than one way.
func originRank(o AccessOrigin) int {
	switch o {
	case OriginOwner:
		return 0
	case OriginGrant:
		return 1
	default:
		return 2
	}
}

// AccessibleResources returns every resource the user can reach: owned
// resources, resources with a direct active accepted grant, and lists
// reachable through a category grant. When a resource is reachable more
// than one way the strongest origin wins (owner, then direct grant,
// then category). Results are ordered by name.
func (r *Resolver) AccessibleResources(ctx context.Context, userID int64) ([]ResourceRef, error) {
	type key struct {
		rtype ResourceType
		id    int64
	}
	seen := map[key]resolvedAccess{}

	add := func(res Resource, role Role, origin AccessOrigin) {
		k := key{res.Type, res.ID}
		if cur, ok := seen[k]; ok && originRank(cur.origin) <= originRank(origin) {
			return
		}
		seen[k] = resolvedAccess{res: res, role: role, origin: origin}
	}

	owned, err := r.store.ListOwnedResources(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, res := range owned {
		add(res, RoleAdmin, OriginOwner)
	}

	grants, err := r.store.ListActiveGrantsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	var categoryIDs []int64
	categoryRole := map[int64]Role{}
	for _, g := range grants {
		res, err := r.store.GetResource(ctx, g.ResourceType, g.ResourceID)
		if err != nil {
			if KindOf(err) == KindNotFound {
				continue
			}
			return nil, err
		}
		add(*res, g.Role, OriginGrant)
		if g.ResourceType == TypeCategory {
			categoryIDs = append(categoryIDs, g.ResourceID)
			categoryRole[g.ResourceID] = g.Role
		}
	}

	lists, err := r.store.ListListsInCategories(ctx, categoryIDs)
	if err != nil {
		return nil, err
	}
	for _, res := range lists {
		add(res, categoryRole[*res.CategoryID], OriginCategory)
	}

	out := make([]ResourceRef, 0, len(seen))
	for _, ra := range seen {
		out = append(out, ResourceRef{
			Type:   ra.res.Type,
			ID:     ra.res.ID,
			Name:   ra.res.Name,
			Role:   ra.role.External(),
			Origin: ra.origin,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ResolveRole returns the user's effective role on a resource and how
// they reach it. Owners always resolve to admin. A direct grant beats
// an inherited category grant.
func (r *Resolver) ResolveRole(ctx context.Context, rtype ResourceType, resourceID, userID int64) (Role, AccessOrigin, error) {
	res, err := r.store.GetResource(ctx, rtype, resourceID)
	if err != nil {
		return "", "", err
	}
	if res.OwnerID == userID {
		return RoleAdmin, OriginOwner, nil
	}

	grant, err := r.store.GetGrant(ctx, rtype, resourceID, userID)
	if err == nil && grant.Active && grant.Accepted {
		return grant.Role, OriginGrant, nil
	}
	if err != nil && KindOf(err) != KindNotFound {
		return "", "", err
	}

	if res.Type == TypeList && res.CategoryID != nil {
		pg, err := r.store.GetGrant(ctx, TypeCategory, *res.CategoryID, userID)
		if err == nil && pg.Active && pg.Accepted {
			return pg.Role, OriginCategory, nil
		}
		if err != nil && KindOf(err) != KindNotFound {
			return "", "", err
		}
	}

	return "", "", permissionErr(ReasonForbidden, "no access to this resource")
}

// CheckPermission reports whether the user may perform the action.
func (r *Resolver) CheckPermission(ctx context.Context, rtype ResourceType, resourceID, userID int64, action Action) (bool, error) {
	role, _, err := r.ResolveRole(ctx, rtype, resourceID, userID)
	if err != nil {
		if KindOf(err) == KindPermission {
			return false, nil
		}
		return false, err
	}
	return Permits(role, action), nil
}
