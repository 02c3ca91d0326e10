package sharing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/JCampos05/Backend-Taskeer/internal/components/notify"
	"github.com/JCampos05/Backend-Taskeer/internal/platform/logutil"
)

// UserDirectory resolves users for email invitations. Implementations
// return ErrDirectoryUserNotFound when no account matches.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (id int64, name string, err error)
}

// ErrDirectoryUserNotFound is the sentinel a UserDirectory returns for
// unknown email addresses.
var ErrDirectoryUserNotFound = errors.New("no user with that email")

// Service implements the sharing operations. Every mutation runs in a
// single transaction; notifications are dispatched only after commit and
// never affect the operation outcome.
type Service struct {
	db       *gorm.DB
	store    *Store
	keys     *KeyGenerator
	users    UserDirectory
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewService wires a Service over the given database handle.
func NewService(db *gorm.DB, users UserDirectory, notifier notify.Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Service{
		db:       db,
		store:    NewStore(db),
		keys:     NewKeyGenerator(),
		users:    users,
		notifier: notifier,
		logger:   logutil.OrDiscard(logger),
	}
}

// Store exposes the service's store for read-side collaborators.
func (s *Service) Store() *Store { return s.store }

// --- Resource lifecycle ---

// CreateCategory creates a category owned by ownerID. Categories start
// private: no share key and no grants until first shared.
func (s *Service) CreateCategory(ctx context.Context, ownerID int64, name string) (*Resource, error) {
	if name == "" {
		return nil, validationErr(ReasonMissingField, "category name is required")
	}
	res := &Resource{Type: TypeCategory, Name: name, OwnerID: ownerID}
	if err := s.store.CreateResource(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

// CreateList creates a list owned by ownerID, optionally inside a
// category. When the parent category is shared, its active grants are
// copied onto the new list at creation time and the list receives its
// own share key. The copy is a snapshot: later category membership
// changes do not touch existing lists.
func (s *Service) CreateList(ctx context.Context, ownerID int64, name string, categoryID *int64) (*Resource, error) {
	if name == "" {
		return nil, validationErr(ReasonMissingField, "list name is required")
	}

	var res *Resource
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		var parent *Resource
		if categoryID != nil {
			var err error
			parent, err = st.GetResource(ctx, TypeCategory, *categoryID)
			if err != nil {
				return err
			}
			if parent.OwnerID != ownerID {
				return permissionErr(ReasonForbidden, "category belongs to another user")
			}
		}

		res = &Resource{Type: TypeList, Name: name, OwnerID: ownerID, CategoryID: categoryID}
		if err := st.CreateResource(ctx, res); err != nil {
			return err
		}

		if parent == nil || !parent.Shareable {
			return nil
		}
		return s.cascadeGrants(ctx, st, parent, res, ownerID)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// cascadeGrants shares a newly created list the way its parent category
// is shared: fresh key, creator grant for the owner, and a copy of every
// active non-creator category grant.
func (s *Service) cascadeGrants(ctx context.Context, st *Store, parent, list *Resource, ownerID int64) error {
	if _, _, err := s.keys.IssueFor(ctx, st, list); err != nil {
		return err
	}
	if err := s.ensureOwnerGrant(ctx, st, list); err != nil {
		return err
	}

	parentGrants, err := st.ListActiveGrants(ctx, TypeCategory, parent.ID)
	if err != nil {
		return err
	}

	copied := 0
	for _, pg := range parentGrants {
		if pg.IsCreator || pg.UserID == ownerID {
			continue
		}
		g := &Grant{
			ResourceType: TypeList,
			ResourceID:   list.ID,
			UserID:       pg.UserID,
			Role:         pg.Role,
			GrantedBy:    ownerID,
			Accepted:     pg.Accepted,
			Active:       true,
			GrantedAt:    time.Now(),
		}
		if err := st.CreateGrant(ctx, g); err != nil {
			return err
		}
		copied++
	}

	list.Shareable = true
	if err := st.SaveResource(ctx, list); err != nil {
		return storeErr("mark list shareable", err)
	}

	s.audit(ctx, st, TypeList, list.ID, ownerID, AuditCascadeGrants, map[string]any{
		"category_id":   parent.ID,
		"grants_copied": copied,
	})
	return nil
}

// --- Sharing operations ---

// GenerateShareKey returns the resource's share key, creating one on
// first use. Issuing is idempotent: the key is never rotated. The first
// issue also records the owner's creator grant and marks the resource
// shareable.
func (s *Service) GenerateShareKey(ctx context.Context, rtype ResourceType, resourceID, actorID int64) (*KeyResult, error) {
	var out *KeyResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResource(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if err := s.requireManage(ctx, st, res, actorID); err != nil {
			return err
		}

		key, reused, err := s.keys.IssueFor(ctx, st, res)
		if err != nil {
			return err
		}

		if err := s.ensureOwnerGrant(ctx, st, res); err != nil {
			return err
		}
		if !res.Shareable {
			res.Shareable = true
			if err := st.SaveResource(ctx, res); err != nil {
				return storeErr("mark resource shareable", err)
			}
		}

		action := AuditGenerateKey
		if reused {
			action = AuditReuseKey
		}
		s.audit(ctx, st, rtype, resourceID, actorID, action, map[string]any{"key": key})

		out = &KeyResult{Key: key, Reused: reused}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// JoinByKey redeems a share key for the calling user. New members join
// as collaborators; a previously revoked member rejoins as a
// collaborator regardless of the role they once held.
func (s *Service) JoinByKey(ctx context.Context, key string, userID int64) (*JoinResult, error) {
	if !ValidateKey(key) {
		return nil, validationErr(ReasonInvalidKey, "share key must be 8 characters of A-Z0-9")
	}

	var out *JoinResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResourceByKey(ctx, key)
		if err != nil {
			return err
		}
		if res.OwnerID == userID {
			return conflictErr(ReasonAlreadyOwner, "you already own this resource")
		}

		grant, err := st.GetGrant(ctx, res.Type, res.ID, userID)
		switch {
		case err == nil && grant.Active:
			return conflictErr(ReasonAlreadyMember, "you are already a member")
		case err == nil:
			// Rejoining after revocation starts over as collaborator.
			grant.Active = true
			grant.Accepted = true
			grant.Role = RoleCollaborator
			grant.GrantedBy = res.OwnerID
			grant.GrantedAt = time.Now()
			if err := st.SaveGrant(ctx, grant); err != nil {
				return err
			}
		case KindOf(err) == KindNotFound:
			grant = &Grant{
				ResourceType: res.Type,
				ResourceID:   res.ID,
				UserID:       userID,
				Role:         RoleCollaborator,
				GrantedBy:    res.OwnerID,
				Accepted:     true,
				Active:       true,
				GrantedAt:    time.Now(),
			}
			if err := st.CreateGrant(ctx, grant); err != nil {
				return err
			}
		default:
			return err
		}

		s.audit(ctx, st, res.Type, res.ID, userID, AuditJoinByKey, map[string]any{"role": grant.Role.External()})

		out = &JoinResult{ResourceType: res.Type, ResourceID: res.ID, Role: grant.Role.External()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// InviteByEmail grants a user access at the given external role. The
// grant is active immediately; the invitee is notified but does not
// need to accept. Inviting a revoked member reactivates their grant at
// the requested role.
func (s *Service) InviteByEmail(ctx context.Context, rtype ResourceType, resourceID, actorID int64, email, externalRole string) (*InviteResult, error) {
	if email == "" {
		return nil, validationErr(ReasonMissingField, "email is required")
	}
	role, err := ParseExternalRole(externalRole)
	if err != nil {
		return nil, err
	}

	var out *InviteResult
	var events []notify.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResource(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if err := s.requireManage(ctx, st, res, actorID); err != nil {
			return err
		}

		targetID, _, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, ErrDirectoryUserNotFound) {
				return notFoundErr(ReasonUserNotFound, "no account with that email")
			}
			return storeErr("look up user by email", err)
		}
		if targetID == res.OwnerID {
			return conflictErr(ReasonAlreadyOwner, "user already owns this resource")
		}

		grant, err := st.GetGrant(ctx, rtype, resourceID, targetID)
		switch {
		case err == nil && grant.Active:
			return conflictErr(ReasonAlreadyMember, "user is already a member")
		case err == nil:
			grant.Active = true
			grant.Accepted = true
			grant.Role = role
			grant.GrantedBy = actorID
			grant.GrantedAt = time.Now()
			if err := st.SaveGrant(ctx, grant); err != nil {
				return err
			}
		case KindOf(err) == KindNotFound:
			grant = &Grant{
				ResourceType: rtype,
				ResourceID:   resourceID,
				UserID:       targetID,
				Role:         role,
				GrantedBy:    actorID,
				Accepted:     true,
				Active:       true,
				GrantedAt:    time.Now(),
			}
			if err := st.CreateGrant(ctx, grant); err != nil {
				return err
			}
		default:
			return err
		}

		if !res.Shareable {
			res.Shareable = true
			if err := st.SaveResource(ctx, res); err != nil {
				return storeErr("mark resource shareable", err)
			}
		}

		s.audit(ctx, st, rtype, resourceID, actorID, AuditInviteUser, map[string]any{
			"target_user_id": targetID,
			"role":           role.External(),
		})

		events = append(events, notify.Event{
			UserID: targetID,
			Type:   notify.TypeInvitation,
			Title:  "New shared resource",
			Body:   "You were given access to " + res.Name,
			Payload: map[string]any{
				"resource_type": res.Type,
				"resource_id":   res.ID,
				"role":          role.External(),
			},
		})

		out = &InviteResult{GrantedUserID: targetID, Role: role.External()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return out, nil
}

// ModifyRole changes a member's role. The creator grant is immutable.
// On a list inside a shared category the member may have no list grant
// of their own yet; in that case one is materialized from the category
// grant at the new role.
func (s *Service) ModifyRole(ctx context.Context, rtype ResourceType, resourceID, actorID, targetUserID int64, externalRole string) (*ModifyRoleResult, error) {
	role, err := ParseExternalRole(externalRole)
	if err != nil {
		return nil, err
	}

	var out *ModifyRoleResult
	var events []notify.Event
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResource(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if err := s.requireManage(ctx, st, res, actorID); err != nil {
			return err
		}
		if targetUserID == res.OwnerID {
			return permissionErr(ReasonCreatorImmutable, "the owner's role cannot change")
		}

		grant, err := st.GetGrant(ctx, rtype, resourceID, targetUserID)
		switch {
		case err == nil:
			if grant.IsCreator {
				return permissionErr(ReasonCreatorImmutable, "the creator grant cannot change")
			}
			if !grant.Active {
				return notFoundErr(ReasonMemberNotFound, "user is not an active member")
			}
			grant.Role = role
			if err := st.SaveGrant(ctx, grant); err != nil {
				return err
			}
		case KindOf(err) == KindNotFound:
			grant, err = s.materializeFromCategory(ctx, st, res, targetUserID, role)
			if err != nil {
				return err
			}
		default:
			return err
		}

		s.audit(ctx, st, rtype, resourceID, actorID, AuditModifyRole, map[string]any{
			"target_user_id": targetUserID,
			"role":           role.External(),
		})

		events = append(events, notify.Event{
			UserID: targetUserID,
			Type:   notify.TypeRoleChanged,
			Title:  "Your role changed",
			Body:   "Your role on " + res.Name + " is now " + role.External(),
			Payload: map[string]any{
				"resource_type": res.Type,
				"resource_id":   res.ID,
				"role":          role.External(),
			},
		})

		out = &ModifyRoleResult{TargetUserID: targetUserID, NewRole: role.External()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatch(ctx, events)
	return out, nil
}

// materializeFromCategory creates a direct list grant for a user whose
// only access to the list comes through its parent category.
func (s *Service) materializeFromCategory(ctx context.Context, st *Store, res *Resource, targetUserID int64, role Role) (*Grant, error) {
	if res.Type != TypeList || res.CategoryID == nil {
		return nil, notFoundErr(ReasonMemberNotFound, "user is not a member")
	}
	parentGrant, err := st.GetGrant(ctx, TypeCategory, *res.CategoryID, targetUserID)
	if err != nil || !parentGrant.Active {
		return nil, notFoundErr(ReasonMemberNotFound, "user is not a member")
	}
	g := &Grant{
		ResourceType: TypeList,
		ResourceID:   res.ID,
		UserID:       targetUserID,
		Role:         role,
		GrantedBy:    res.OwnerID,
		Accepted:     parentGrant.Accepted,
		Active:       true,
		GrantedAt:    time.Now(),
	}
	if err := st.CreateGrant(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// RevokeAccess deactivates a member's grant. The row is kept so history
// survives and a later re-invite or rejoin can reactivate it.
func (s *Service) RevokeAccess(ctx context.Context, rtype ResourceType, resourceID, actorID, targetUserID int64) error {
	var events []notify.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResource(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if err := s.requireManage(ctx, st, res, actorID); err != nil {
			return err
		}
		if targetUserID == res.OwnerID {
			return permissionErr(ReasonCreatorImmutable, "the owner cannot be revoked")
		}

		grant, err := st.GetGrant(ctx, rtype, resourceID, targetUserID)
		if err != nil {
			return err
		}
		if grant.IsCreator {
			return permissionErr(ReasonCreatorImmutable, "the creator grant cannot be revoked")
		}
		if !grant.Active {
			return notFoundErr(ReasonMemberNotFound, "user is not an active member")
		}

		grant.Active = false
		if err := st.SaveGrant(ctx, grant); err != nil {
			return err
		}
		if err := s.syncShareable(ctx, st, res); err != nil {
			return err
		}

		s.audit(ctx, st, rtype, resourceID, actorID, AuditRevokeAccess, map[string]any{
			"target_user_id": targetUserID,
		})

		events = append(events, notify.Event{
			UserID: targetUserID,
			Type:   notify.TypeAccessRevoked,
			Title:  "Access removed",
			Body:   "Your access to " + res.Name + " was removed",
			Payload: map[string]any{
				"resource_type": res.Type,
				"resource_id":   res.ID,
			},
		})
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatch(ctx, events)
	return nil
}

// Leave deactivates the calling user's own grant. Owners cannot leave
// their own resources; they un-share instead.
func (s *Service) Leave(ctx context.Context, rtype ResourceType, resourceID, userID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResource(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if res.OwnerID == userID {
			return permissionErr(ReasonCreatorImmutable, "the owner cannot leave")
		}

		grant, err := st.GetGrant(ctx, rtype, resourceID, userID)
		if err != nil {
			return err
		}
		if grant.IsCreator {
			return permissionErr(ReasonCreatorImmutable, "the creator cannot leave")
		}
		if !grant.Active {
			return notFoundErr(ReasonMemberNotFound, "you are not an active member")
		}

		grant.Active = false
		if err := st.SaveGrant(ctx, grant); err != nil {
			return err
		}
		if err := s.syncShareable(ctx, st, res); err != nil {
			return err
		}

		s.audit(ctx, st, rtype, resourceID, userID, AuditLeave, nil)
		return nil
	})
}

// Unshare removes every grant on the resource and clears its share key.
// Only the owner may un-share. The freed key may later be issued to a
// different resource.
func (s *Service) Unshare(ctx context.Context, rtype ResourceType, resourceID, actorID int64) error {
	var events []notify.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := s.store.WithTx(tx)

		res, err := st.GetResource(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if res.OwnerID != actorID {
			return permissionErr(ReasonNotOwner, "only the owner can stop sharing")
		}

		grants, err := st.ListActiveGrants(ctx, rtype, resourceID)
		if err != nil {
			return err
		}
		if err := st.DeleteGrants(ctx, rtype, resourceID); err != nil {
			return err
		}

		res.ShareKey = nil
		res.Shareable = false
		if err := st.SaveResource(ctx, res); err != nil {
			return storeErr("clear share key", err)
		}

		s.audit(ctx, st, rtype, resourceID, actorID, AuditUnshare, map[string]any{
			"grants_removed": len(grants),
		})

		for _, g := range grants {
			if g.UserID == actorID {
				continue
			}
			events = append(events, notify.Event{
				UserID: g.UserID,
				Type:   notify.TypeAccessRevoked,
				Title:  "Access removed",
				Body:   res.Name + " is no longer shared",
				Payload: map[string]any{
					"resource_type": res.Type,
					"resource_id":   res.ID,
				},
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.dispatch(ctx, events)
	return nil
}

// --- Read side ---

// Members returns the membership of a resource, creator first. Any
// active member or the owner may read it.
func (s *Service) Members(ctx context.Context, rtype ResourceType, resourceID, actorID int64) ([]GrantInfo, error) {
	res, err := s.store.GetResource(ctx, rtype, resourceID)
	if err != nil {
		return nil, err
	}
	if res.OwnerID != actorID {
		grant, err := s.store.GetGrant(ctx, rtype, resourceID, actorID)
		if err != nil || !grant.Active {
			return nil, permissionErr(ReasonForbidden, "you do not have access to this resource")
		}
	}

	grants, err := s.store.ListGrants(ctx, rtype, resourceID)
	if err != nil {
		return nil, err
	}
	out := make([]GrantInfo, 0, len(grants))
	for _, g := range grants {
		out = append(out, GrantInfo{
			UserID:    g.UserID,
			Role:      g.Role.External(),
			IsCreator: g.IsCreator,
			Accepted:  g.Accepted,
			Active:    g.Active,
			GrantedAt: g.GrantedAt,
		})
	}
	return out, nil
}

// AuditTrail returns the newest audit entries for a resource. Reading
// the trail requires manage rights.
func (s *Service) AuditTrail(ctx context.Context, rtype ResourceType, resourceID, actorID int64, limit int) ([]AuditEntry, error) {
	res, err := s.store.GetResource(ctx, rtype, resourceID)
	if err != nil {
		return nil, err
	}
	if err := s.requireManage(ctx, s.store, res, actorID); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, rtype, resourceID, limit)
}

// --- Helpers ---

// requireManage allows the owner and any active member whose role
// permits manage actions.
func (s *Service) requireManage(ctx context.Context, st *Store, res *Resource, actorID int64) error {
	if res.OwnerID == actorID {
		return nil
	}
	grant, err := st.GetGrant(ctx, res.Type, res.ID, actorID)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return permissionErr(ReasonForbidden, "you do not manage this resource")
		}
		return err
	}
	if !grant.Active || !Permits(grant.Role, ActionManage) {
		return permissionErr(ReasonForbidden, "you do not manage this resource")
	}
	return nil
}

// ensureOwnerGrant upserts the owner's creator grant on a resource. The
// row exists from the moment the resource is first shared.
func (s *Service) ensureOwnerGrant(ctx context.Context, st *Store, res *Resource) error {
	grant, err := st.GetGrant(ctx, res.Type, res.ID, res.OwnerID)
	switch {
	case err == nil:
		if grant.IsCreator && grant.Active {
			return nil
		}
		grant.Role = RoleAdmin
		grant.IsCreator = true
		grant.Accepted = true
		grant.Active = true
		return st.SaveGrant(ctx, grant)
	case KindOf(err) == KindNotFound:
		return st.CreateGrant(ctx, &Grant{
			ResourceType: res.Type,
			ResourceID:   res.ID,
			UserID:       res.OwnerID,
			Role:         RoleAdmin,
			IsCreator:    true,
			GrantedBy:    res.OwnerID,
			Accepted:     true,
			Active:       true,
			GrantedAt:    time.Now(),
		})
	default:
		return err
	}
}

// syncShareable recomputes the shareable flag after a grant goes
// inactive: a resource stays shareable while it has any active
// non-creator grant or a share key. The key survives revocation so
// former members can rejoin, which also keeps list creation cascading
// after a revoke/rejoin cycle.
func (s *Service) syncShareable(ctx context.Context, st *Store, res *Resource) error {
	count, err := st.CountActiveNonCreator(ctx, res.Type, res.ID)
	if err != nil {
		return err
	}
	shareable := count > 0 || res.ShareKey != nil
	if res.Shareable == shareable {
		return nil
	}
	res.Shareable = shareable
	if err := st.SaveResource(ctx, res); err != nil {
		return storeErr("sync shareable flag", err)
	}
	return nil
}

// audit appends an audit entry, logging and swallowing failures so the
// surrounding mutation still commits.
func (s *Service) audit(ctx context.Context, st *Store, rtype ResourceType, resourceID, actorID int64, action string, details map[string]any) {
	if err := st.AppendAudit(ctx, rtype, resourceID, actorID, action, details); err != nil {
		s.logger.Error("audit append failed",
			"action", action,
			"resource_type", rtype,
			"resource_id", resourceID,
			"error", err)
	}
}

// dispatch delivers events after commit. Failures are logged only.
func (s *Service) dispatch(ctx context.Context, events []notify.Event) {
	for _, ev := range events {
		if err := s.notifier.Notify(ctx, ev); err != nil {
			s.logger.Warn("notification dispatch failed",
				"type", ev.Type,
				"user_id", ev.UserID,
				"error", err)
		}
	}
}
