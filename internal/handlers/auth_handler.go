package handlers

import (
	"shipdesk/internal/middleware"
	"shipdesk/internal/models"
	"shipdesk/internal/services"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService       *services.AuthService
	membershipService *services.MembershipService
}

func NewAuthHandler(authService *services.AuthService, membershipService *services.MembershipService) *AuthHandler {
	return &AuthHandler{
		authService:       authService,
		membershipService: membershipService,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type SwitchTenantRequest struct {
	TenantID uint `json:"tenant_id" binding:"required"`
}

// ProfileResponse 当前用户及其生效的角色与权限
type ProfileResponse struct {
	User          *models.User        `json:"user"`
	Role          models.Role         `json:"role"`
	RoleLabel     string              `json:"role_label"`
	Permissions   []models.Permission `json:"permissions"`
	TenantID      *uint               `json:"tenant_id"`
	CurrentTenant *models.Tenant      `json:"current_tenant,omitempty"`
	Memberships   []models.Membership `json:"memberships"`
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrAccountDeactivated):
			response.Error(c, apperrors.CodeAccountDeactivated, "账户已被停用，请联系管理员")
		case apperrors.Is(err, apperrors.ErrUnauthenticated):
			response.Unauthorized(c, "邮箱或密码错误")
		default:
			replyError(c, err, "登录失败")
		}
		return
	}

	response.Success(c, result)
}

// Logout 用户登出，终止当前会话
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.GetPrincipal(c)); err != nil {
		replyError(c, err, "登出失败")
		return
	}
	response.SuccessWithMessage(c, "登出成功", nil)
}

// RefreshToken 刷新Token，旧会话同时失效
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	result, err := h.authService.Refresh(c.Request.Context(), middleware.GetPrincipal(c))
	if err != nil {
		replyError(c, err, "刷新Token失败")
		return
	}
	response.Success(c, result)
}

// Me 当前用户信息
func (h *AuthHandler) Me(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	principal := middleware.GetPrincipal(c)
	ctx := c.Request.Context()

	memberships, err := h.membershipService.ListForUser(ctx, principal.User.ID, true)
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}

	resp := ProfileResponse{
		User:        principal.User,
		Role:        scope.Role,
		RoleLabel:   scope.Role.Label(),
		Permissions: scope.Effective.Granted(),
		TenantID:    scope.TenantID,
		Memberships: memberships,
	}
	if scope.TenantID != nil {
		for i := range memberships {
			if memberships[i].TenantID == *scope.TenantID {
				resp.CurrentTenant = memberships[i].Tenant
				break
			}
		}
	}
	response.Success(c, resp)
}

// SwitchTenant 切换当前操作的租户
func (h *AuthHandler) SwitchTenant(c *gin.Context) {
	var req SwitchTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "请求参数错误: "+err.Error())
		return
	}
	principal := middleware.GetPrincipal(c)

	switched, err := h.membershipService.SwitchTenant(c.Request.Context(), principal.User.ID, req.TenantID)
	if err != nil {
		replyError(c, err, "切换失败")
		return
	}
	if !switched {
		response.Forbidden(c, "您不是该组织的成员")
		return
	}
	response.SuccessWithMessage(c, "切换成功", gin.H{"tenant_id": req.TenantID})
}
