package handlers

import (
	"strconv"

	"shipdesk/internal/services"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *services.UserService
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// Create 创建用户
func (h *UserHandler) Create(c *gin.Context) {
	var req services.CreateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		replyError(c, err, "创建失败")
		return
	}
	response.Success(c, user)
}

// GetByID 获取用户
func (h *UserHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "用户不存在")
		return
	}
	response.Success(c, user)
}

// GetAll 分页查询，支持 tenant_id、role、keyword 过滤
func (h *UserHandler) GetAll(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	var tenantID *uint
	if v := c.Query("tenant_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			response.BadRequest(c, "tenant_id 参数错误")
			return
		}
		tid := uint(id)
		tenantID = &tid
	}

	users, total, err := h.service.GetWithFiltersAndPage(c.Request.Context(), tenantID, c.Query("role"), c.Query("keyword"), pageParams)
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, users, pageInfo)
}

// Update 更新用户
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req services.UpdateUserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		replyError(c, err, "更新失败")
		return
	}
	response.Success(c, user)
}

// Activate 启用用户
func (h *UserHandler) Activate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Activate(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "启用失败")
		return
	}
	response.Success(c, user)
}

// Deactivate 停用用户并终止其会话
func (h *UserHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	user, err := h.service.Deactivate(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "停用失败")
		return
	}
	response.Success(c, user)
}

// ResetPassword 重置密码
func (h *UserHandler) ResetPassword(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), id, req.Password); err != nil {
		replyError(c, err, "重置密码失败")
		return
	}
	response.SuccessWithMessage(c, "密码已重置", nil)
}

// GetStats 用户统计
func (h *UserHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}
	response.Success(c, stats)
}
