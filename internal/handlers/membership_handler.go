package handlers

import (
	"shipdesk/internal/services"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// MembershipHandler 租户成员管理，路由形如 /tenants/:id/members/:user_id
type MembershipHandler struct {
	service *services.MembershipService
}

func NewMembershipHandler(service *services.MembershipService) *MembershipHandler {
	return &MembershipHandler{service: service}
}

func (h *MembershipHandler) ids(c *gin.Context) (uint, uint, bool) {
	tenantID, ok := parseID(c, "id")
	if !ok {
		return 0, 0, false
	}
	userID, ok := parseID(c, "user_id")
	if !ok {
		return 0, 0, false
	}
	return tenantID, userID, true
}

// Attach 添加成员
func (h *MembershipHandler) Attach(c *gin.Context) {
	tenantID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req services.MembershipInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	membership, err := h.service.Attach(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		replyError(c, err, "添加成员失败")
		return
	}
	response.Success(c, membership)
}

// Update 修改成员角色与权限
func (h *MembershipHandler) Update(c *gin.Context) {
	tenantID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	var req services.MembershipInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	membership, err := h.service.Update(c.Request.Context(), tenantID, userID, req)
	if err != nil {
		replyError(c, err, "更新成员失败")
		return
	}
	response.Success(c, membership)
}

// Deactivate 停用成员关系
func (h *MembershipHandler) Deactivate(c *gin.Context) {
	tenantID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.service.Deactivate(c.Request.Context(), tenantID, userID); err != nil {
		replyError(c, err, "停用成员失败")
		return
	}
	response.SuccessWithMessage(c, "成员已停用", nil)
}

// SetPrimary 设为主组织
func (h *MembershipHandler) SetPrimary(c *gin.Context) {
	tenantID, userID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.service.SetPrimary(c.Request.Context(), tenantID, userID); err != nil {
		replyError(c, err, "设置主组织失败")
		return
	}
	response.SuccessWithMessage(c, "设置成功", nil)
}

// ListForUser 用户的全部成员关系
func (h *MembershipHandler) ListForUser(c *gin.Context) {
	userID, ok := parseID(c, "id")
	if !ok {
		return
	}
	memberships, err := h.service.ListForUser(c.Request.Context(), userID, false)
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}
	response.Success(c, memberships)
}
