package service

import (
	"github.com/mikespook/gorbac/v2"

	"github.com/xxxsen/dshare/internal/model"
)

const (
	roleOwner     = "role-owner"
	roleOrgAdmin  = "role-org-admin"
	roleSuperuser = "role-superuser"

	PermissionShareIssue   = "share.issue"
	PermissionShareRevoke  = "share.revoke"
	PermissionSharingLevel = "dataset.sharing_level"
	PermissionDelete       = "dataset.delete"
)

// permissionTable answers who may manage a dataset. Roles are derived per
// dataset: the owner, an admin of the dataset's organization, or a superuser.
type permissionTable struct {
	rbac *gorbac.RBAC
}

func newPermissionTable() *permissionTable {
	rbac := gorbac.New()
	grants := map[string][]string{
		roleOwner:     {PermissionShareIssue, PermissionShareRevoke, PermissionSharingLevel, PermissionDelete},
		roleOrgAdmin:  {PermissionShareIssue, PermissionShareRevoke, PermissionSharingLevel, PermissionDelete},
		roleSuperuser: {PermissionShareRevoke, PermissionDelete},
	}
	for roleID, perms := range grants {
		role := gorbac.NewStdRole(roleID)
		for _, perm := range perms {
			_ = role.Assign(gorbac.NewStdPermission(perm))
		}
		_ = rbac.Add(role)
	}
	return &permissionTable{rbac: rbac}
}

func rolesFor(ds *model.Dataset, user *AuthenticatedUser) []string {
	if user == nil {
		return nil
	}
	roles := make([]string, 0, 3)
	if user.ID == ds.OwnerID {
		roles = append(roles, roleOwner)
	}
	if user.IsOrgAdmin && user.OrgID != "" && user.OrgID == ds.OrgID {
		roles = append(roles, roleOrgAdmin)
	}
	if user.IsSuperuser {
		roles = append(roles, roleSuperuser)
	}
	return roles
}

func (p *permissionTable) allowed(ds *model.Dataset, user *AuthenticatedUser, perm string) bool {
	permission := gorbac.NewStdPermission(perm)
	for _, role := range rolesFor(ds, user) {
		if p.rbac.IsGranted(role, permission, nil) {
			return true
		}
	}
	return false
}
