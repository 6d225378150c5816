package models

import "fmt"

// Role 用户角色，五个固定等级，不在运行时增删
type Role string

const (
	RoleVIP               Role = "vip"
	RoleCommercialPartner Role = "commercial_partner"
	RoleShopManager       Role = "shop_manager"
	RoleAdmin             Role = "admin"
	RoleSuperAdmin        Role = "super_admin"
)

// Permission 权限标签
type Permission string

const (
	PermissionMessageCenter         Permission = "message_center"
	PermissionAccount               Permission = "account"
	PermissionTransactionManagement Permission = "transaction_management"
	PermissionWarehouseManagement   Permission = "warehouse_management"
	PermissionDocument              Permission = "document"
	PermissionSettings              Permission = "settings"
	PermissionSystemAccess          Permission = "system_access"
)

type roleDefinition struct {
	rank        int
	label       string
	permissions []Permission
}

// roleTable 角色 -> 标签与权限。高等级的权限集合包含低等级的全部权限。
var roleTable = map[Role]roleDefinition{
	RoleVIP: {
		rank:  1,
		label: "VIP",
		permissions: []Permission{
			PermissionMessageCenter,
			PermissionAccount,
			PermissionSettings,
		},
	},
	RoleCommercialPartner: {
		rank:  1,
		label: "Commercial Partner",
		permissions: []Permission{
			PermissionMessageCenter,
			PermissionAccount,
			PermissionSettings,
		},
	},
	RoleShopManager: {
		rank:  2,
		label: "Shop Manager",
		permissions: []Permission{
			PermissionMessageCenter,
			PermissionAccount,
			PermissionTransactionManagement,
			PermissionSettings,
		},
	},
	RoleAdmin: {
		rank:  3,
		label: "Admin",
		permissions: []Permission{
			PermissionMessageCenter,
			PermissionAccount,
			PermissionTransactionManagement,
			PermissionWarehouseManagement,
			PermissionDocument,
			PermissionSettings,
		},
	},
	RoleSuperAdmin: {
		rank:  4,
		label: "Super Admin",
		permissions: []Permission{
			PermissionMessageCenter,
			PermissionAccount,
			PermissionTransactionManagement,
			PermissionWarehouseManagement,
			PermissionDocument,
			PermissionSettings,
			PermissionSystemAccess,
		},
	},
}

// allRoles 按等级排列
var allRoles = []Role{RoleVIP, RoleCommercialPartner, RoleShopManager, RoleAdmin, RoleSuperAdmin}

// AllRoles 返回全部角色
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// AllPermissions 返回全部已知权限标签
func AllPermissions() []Permission {
	return RoleSuperAdmin.Permissions()
}

// ParseRole 解析角色字符串
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if !role.IsValid() {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

// IsValid 是否为已定义角色
func (r Role) IsValid() bool {
	_, ok := roleTable[r]
	return ok
}

// Label 显示名称
func (r Role) Label() string {
	return roleTable[r].label
}

// Rank 等级，vip 与 commercial_partner 同级
func (r Role) Rank() int {
	return roleTable[r].rank
}

// Permissions 角色的静态权限（返回副本）
func (r Role) Permissions() []Permission {
	perms := roleTable[r].permissions
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// HasPermission 角色是否包含权限
func (r Role) HasPermission(p Permission) bool {
	for _, perm := range roleTable[r].permissions {
		if perm == p {
			return true
		}
	}
	return false
}

// RolesWithPermission 拥有指定权限的角色
func RolesWithPermission(p Permission) []Role {
	var roles []Role
	for _, role := range allRoles {
		if role.HasPermission(p) {
			roles = append(roles, role)
		}
	}
	return roles
}

// IsValid 是否为已知权限标签
func (p Permission) IsValid() bool {
	return RoleSuperAdmin.HasPermission(p)
}
