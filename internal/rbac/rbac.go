package rbac

import "strings"

type Role string
type Permission string

const (
	RoleViewer      Role = "viewer"
	RoleBoardMember Role = "board_member"
	RoleChairman    Role = "chairman"
	RoleSecretary   Role = "secretary"
	RoleAdmin       Role = "admin"
)

const (
	PermMinutesRead       Permission = "minutes.read"
	PermMinutesCreate     Permission = "minutes.create"
	PermMinutesEdit       Permission = "minutes.edit"
	PermMinutesSubmit     Permission = "minutes.submit"
	PermMinutesApprove    Permission = "minutes.approve"
	PermMinutesPublish    Permission = "minutes.publish"
	PermMinutesComment    Permission = "minutes.comment"
	PermSignaturesVerify  Permission = "signatures.verify"
	PermMeetingsConfigure Permission = "meetings.configure"
)

func Can(role Role, perm Permission) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleSecretary:
		return perm != PermMinutesApprove
	case RoleChairman:
		return perm == PermMinutesRead || perm == PermMinutesApprove || perm == PermMinutesPublish ||
			perm == PermMinutesComment || perm == PermSignaturesVerify
	case RoleBoardMember:
		return perm == PermMinutesRead || perm == PermMinutesComment
	case RoleViewer:
		return perm == PermMinutesRead
	default:
		return false
	}
}

// Normalize maps free-form role strings onto known roles. Unknown values
// degrade to viewer.
func Normalize(role string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(role)))
	switch r {
	case RoleViewer, RoleBoardMember, RoleChairman, RoleSecretary, RoleAdmin:
		return r
	case "board-member", "member":
		return RoleBoardMember
	default:
		return RoleViewer
	}
}

func NormalizeAll(roles []string) []Role {
	out := make([]Role, 0, len(roles))
	seen := make(map[Role]struct{}, len(roles))
	for _, raw := range roles {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		role := Normalize(raw)
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	if len(out) == 0 {
		out = append(out, RoleViewer)
	}
	return out
}

// Actor is the explicit identity every operation is evaluated against.
type Actor struct {
	UserID string
	Name   string
	Roles  []Role
}

func (a Actor) Has(perm Permission) bool {
	for _, role := range a.Roles {
		if Can(role, perm) {
			return true
		}
	}
	return false
}

func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSecretary reports whether the actor may act with secretary authority
// (comment resolution and moderation). Admins inherit it.
func (a Actor) IsSecretary() bool {
	return a.HasRole(RoleSecretary) || a.HasRole(RoleAdmin)
}

func (a Actor) RoleStrings() []string {
	out := make([]string, 0, len(a.Roles))
	for _, r := range a.Roles {
		out = append(out, string(r))
	}
	return out
}
