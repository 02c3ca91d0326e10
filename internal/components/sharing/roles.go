// Package sharing implements the hierarchical resource-sharing engine:
// share keys, email invitations, role grants, revocation, cascade
// propagation from categories to lists, audit trail and access resolution.
package sharing

// Role is an ordered capability level on a resource.
// The internal names follow the database values of the original schema.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleEditor       Role = "editor"
	RoleCollaborator Role = "colaborador"
	RoleViewer       Role = "visor"
)

// Action is something a role may or may not permit.
type Action string

const (
	ActionView   Action = "view"
	ActionEdit   Action = "edit"
	ActionDelete Action = "delete"
	ActionManage Action = "manage" // invite / revoke / re-role
)

// permissions is the canonical role matrix.
var permissions = map[Role]map[Action]bool{
	RoleAdmin:        {ActionView: true, ActionEdit: true, ActionDelete: true, ActionManage: true},
	RoleEditor:       {ActionView: true, ActionEdit: true, ActionDelete: true},
	RoleCollaborator: {ActionView: true, ActionEdit: true},
	RoleViewer:       {ActionView: true},
}

// Permits reports whether role allows action. Unknown roles permit nothing.
func Permits(role Role, action Action) bool {
	return permissions[role][action]
}

// ValidRole reports whether r is a known internal role.
func ValidRole(r Role) bool {
	_, ok := permissions[r]
	return ok
}

// External role names, as used by clients. The mapping to internal names
// is total: every external name maps to exactly one internal role.
var externalToInternal = map[string]Role{
	"lector":      RoleViewer,
	"colaborador": RoleCollaborator,
	"editor":      RoleEditor,
	"admin":       RoleAdmin,
}

var internalToExternal = map[Role]string{
	RoleViewer:       "lector",
	RoleCollaborator: "colaborador",
	RoleEditor:       "editor",
	RoleAdmin:        "admin",
}

// ParseExternalRole maps an external role name to the internal role.
// Unknown names are a validation error.
func ParseExternalRole(name string) (Role, error) {
	role, ok := externalToInternal[name]
	if !ok {
		return "", validationErr(ReasonInvalidRole, "unknown role "+name)
	}
	return role, nil
}

// External returns the external name for an internal role.
func (r Role) External() string {
	if name, ok := internalToExternal[r]; ok {
		return name
	}
	return string(r)
}
