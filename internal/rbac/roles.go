package rbac

// Role names. Keep these stable; they are part of auth and invitation contracts.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"

	// RoleSuperAdmin is platform staff; it bypasses all role checks.
	RoleSuperAdmin = "super_admin"
)

// InvitableRoles are the roles a team invitation may grant.
var InvitableRoles = []string{RoleOwner, RoleAdmin, RoleMember, RoleViewer}

func IsSuperAdmin(role string) bool { return role == RoleSuperAdmin }

func IsInvitable(role string) bool {
	for _, r := range InvitableRoles {
		if r == role {
			return true
		}
	}
	return false
}
