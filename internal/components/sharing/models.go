package sharing

import (
	"time"
)

// ResourceType discriminates the two shareable container kinds.
// One grants table serves both, with ResourceType as tag.
type ResourceType string

const (
	TypeCategory ResourceType = "category"
	TypeList     ResourceType = "list"
)

// ValidResourceType reports whether t is a known resource type.
func ValidResourceType(t ResourceType) bool {
	return t == TypeCategory || t == TypeList
}

// Resource is a shareable container: a category (folder of lists) or a
// list. A list may belong to a category. Task/note body fields live
// outside this engine.
type Resource struct {
	ID         int64        `gorm:"primaryKey" json:"id"`
	Type       ResourceType `gorm:"index;not null" json:"type"`
	Name       string       `gorm:"not null" json:"name"`
	OwnerID    int64        `gorm:"index;not null" json:"owner_id"`
	CategoryID *int64       `gorm:"index" json:"category_id,omitempty"` // lists only

	// ShareKey is unique across the whole table when set; nil until the
	// resource is first shared by key, nil again after un-share.
	ShareKey  *string `gorm:"uniqueIndex" json:"share_key,omitempty"`
	Shareable bool    `gorm:"not null;default:false" json:"shareable"`

	CreatedAt time.Time `json:"created_at"`
}

// Grant is one user's role-bearing access record on one resource.
// Exactly one row exists per (resource type, resource id, user).
type Grant struct {
	ID           int64        `gorm:"primaryKey" json:"id"`
	ResourceType ResourceType `gorm:"uniqueIndex:idx_grant_resource_user;not null" json:"resource_type"`
	ResourceID   int64        `gorm:"uniqueIndex:idx_grant_resource_user;not null" json:"resource_id"`
	UserID       int64        `gorm:"uniqueIndex:idx_grant_resource_user;index;not null" json:"user_id"`
	Role         Role         `gorm:"not null" json:"role"`
	IsCreator    bool         `gorm:"not null;default:false" json:"is_creator"`
	GrantedBy    int64        `gorm:"not null" json:"granted_by"`
	Accepted     bool         `gorm:"not null;default:false" json:"accepted"`
	Active       bool         `gorm:"index;not null;default:true" json:"active"`
	GrantedAt    time.Time    `json:"granted_at"`
}

// GrantInfo is the membership view returned by ListGrants.
type GrantInfo struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"` // external name
	IsCreator bool      `json:"is_creator"`
	Accepted  bool      `json:"accepted"`
	Active    bool      `json:"active"`
	GrantedAt time.Time `json:"granted_at"`
}

// AccessOrigin says how a user reaches a resource.
type AccessOrigin string

const (
	OriginOwner    AccessOrigin = "owner"
	OriginGrant    AccessOrigin = "grant"
	OriginCategory AccessOrigin = "category"
)

// ResourceRef is one entry of a user's accessible-resource set.
type ResourceRef struct {
	Type   ResourceType `json:"type"`
	ID     int64        `json:"id"`
	Name   string       `json:"name"`
	Role   string       `json:"role"` // external name
	Origin AccessOrigin `json:"origin"`
}

// Operation results.

type KeyResult struct {
	Key    string `json:"key"`
	Reused bool   `json:"reused"`
}

type JoinResult struct {
	ResourceType ResourceType `json:"resource_type"`
	ResourceID   int64        `json:"resource_id"`
	Role         string       `json:"role"` // external name
}

type InviteResult struct {
	GrantedUserID int64  `json:"granted_user_id"`
	Role          string `json:"role"` // external name
}

type ModifyRoleResult struct {
	TargetUserID int64  `json:"target_user_id"`
	NewRole      string `json:"new_role"` // external name
}
