package middleware

import (
	"strings"

	"shipdesk/internal/models"
	"shipdesk/internal/services"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextPrincipal = "principal"
	ContextScope     = "scope"
	ContextUserID    = "user_id"
	ContextTenantID  = "tenant_id"
)

// AuthMiddleware 权限中间件，各个 Require* 可以独立组合
type AuthMiddleware struct {
	auth   *services.AuthService
	access *services.AccessService
}

func NewAuthMiddleware(auth *services.AuthService, access *services.AccessService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth, access: access}
}

// RequireLogin 校验 Bearer 令牌与会话，并把请求主体放入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		principal, err := m.auth.Authenticate(c.Request.Context(), authHeader[7:])
		if err != nil {
			if apperrors.Is(err, apperrors.ErrUnauthenticated) {
				response.Unauthorized(c, "Token无效或已过期")
			} else {
				response.ServerError(c, "认证失败")
			}
			c.Abort()
			return
		}

		c.Set(ContextPrincipal, principal)
		c.Set(ContextUserID, principal.User.ID)
		c.Next()
	}
}

// RequireActive 只检查账户与租户状态
func (m *AuthMiddleware) RequireActive() gin.HandlerFunc {
	return m.authorize(services.Requirement{})
}

// RequirePermission 要求特定权限
func (m *AuthMiddleware) RequirePermission(permission models.Permission) gin.HandlerFunc {
	return m.authorize(services.Requirement{Permission: permission})
}

// RequireRole 要求特定角色
func (m *AuthMiddleware) RequireRole(role models.Role) gin.HandlerFunc {
	return m.authorize(services.Requirement{Role: role})
}

// RequireTenant 租户范围的路由：用户必须属于某个有效租户（超级管理员除外）
func (m *AuthMiddleware) RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID, err := m.access.RequireTenant(c.Request.Context(), GetPrincipal(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if tenantID != nil {
			c.Set(ContextTenantID, *tenantID)
		}
		c.Next()
	}
}

func (m *AuthMiddleware) authorize(req services.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope, err := m.access.Authorize(c.Request.Context(), GetPrincipal(c), req)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(ContextScope, scope)
		if scope.TenantID != nil {
			c.Set(ContextTenantID, *scope.TenantID)
		}
		c.Next()
	}
}

// AbortWithError 访问被拒绝时的统一响应
func AbortWithError(c *gin.Context, err error) {
	switch {
	case apperrors.Is(err, apperrors.ErrAccountDeactivated):
		response.Relogin(c, apperrors.CodeAccountDeactivated, "账户已被停用，请联系管理员")
	case apperrors.Is(err, apperrors.ErrTenantDeactivated):
		response.Relogin(c, apperrors.CodeTenantDeactivated, "所属组织已被停用，请联系管理员")
	case apperrors.Is(err, apperrors.ErrNoTenantAssigned):
		response.Relogin(c, apperrors.CodeNoTenantAssigned, "账户未关联任何组织，请联系管理员")
	case apperrors.Is(err, apperrors.ErrUnauthenticated):
		response.Unauthorized(c, "请先登录")
	case apperrors.Is(err, apperrors.ErrForbidden):
		var forbidden *apperrors.ForbiddenError
		switch {
		case apperrors.As(err, &forbidden) && forbidden.Kind == apperrors.ForbiddenOwnership:
			response.Forbidden(c, "只能操作自己的资源")
		case forbidden != nil:
			response.Forbidden(c, "权限不足：需要 "+forbidden.Value+" "+forbiddenKindLabel(forbidden.Kind))
		default:
			response.Forbidden(c, "权限不足")
		}
	default:
		response.ServerError(c, "权限检查失败")
	}
	c.Abort()
}

func forbiddenKindLabel(kind string) string {
	switch kind {
	case apperrors.ForbiddenRole:
		return "角色"
	case apperrors.ForbiddenPermission:
		return "权限"
	default:
		return kind
	}
}

// GetPrincipal 获取请求主体，未登录时为 nil
func GetPrincipal(c *gin.Context) *services.Principal {
	if v, ok := c.Get(ContextPrincipal); ok {
		if p, ok := v.(*services.Principal); ok {
			return p
		}
	}
	return nil
}

// GetScope 获取授权范围，需要前置 RequireActive/RequirePermission/RequireRole
func GetScope(c *gin.Context) (*services.Scope, bool) {
	if v, ok := c.Get(ContextScope); ok {
		if s, ok := v.(*services.Scope); ok {
			return s, true
		}
	}
	return nil, false
}
