package handlers

import (
	"shipdesk/internal/models"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// MenuSection 控制台菜单项
type MenuSection struct {
	Key        string            `json:"key"`
	Title      string            `json:"title"`
	Path       string            `json:"path"`
	Permission models.Permission `json:"permission"`
}

var menuSections = []MenuSection{
	{Key: "messages", Title: "Message Center", Path: "/messages", Permission: models.PermissionMessageCenter},
	{Key: "account", Title: "Account", Path: "/account", Permission: models.PermissionAccount},
	{Key: "transactions", Title: "Transaction Management", Path: "/transactions", Permission: models.PermissionTransactionManagement},
	{Key: "warehouse", Title: "Warehouse Management", Path: "/warehouse", Permission: models.PermissionWarehouseManagement},
	{Key: "documents", Title: "Documents", Path: "/documents", Permission: models.PermissionDocument},
	{Key: "settings", Title: "Settings", Path: "/settings", Permission: models.PermissionSettings},
	{Key: "system", Title: "System", Path: "/system", Permission: models.PermissionSystemAccess},
}

type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{}
}

// Menu 按生效权限过滤的菜单
func (h *DashboardHandler) Menu(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}

	sections := make([]MenuSection, 0, len(menuSections))
	for _, section := range menuSections {
		if scope.Effective.HasPermission(section.Permission) {
			sections = append(sections, section)
		}
	}
	response.Success(c, gin.H{
		"role":       scope.Role,
		"role_label": scope.Role.Label(),
		"tenant_id":  scope.TenantID,
		"sections":   sections,
	})
}

// Roles 全部角色及其静态权限
func (h *DashboardHandler) Roles(c *gin.Context) {
	type roleInfo struct {
		Role        models.Role         `json:"role"`
		Label       string              `json:"label"`
		Permissions []models.Permission `json:"permissions"`
	}
	roles := make([]roleInfo, 0, len(models.AllRoles()))
	for _, r := range models.AllRoles() {
		roles = append(roles, roleInfo{Role: r, Label: r.Label(), Permissions: r.Permissions()})
	}
	response.Success(c, roles)
}
