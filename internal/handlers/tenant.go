package handlers

import (
	"strconv"

	"shipdesk/internal/services"
	"shipdesk/pkg/pagination"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	service           *services.TenantService
	membershipService *services.MembershipService
}

func NewTenantHandler(service *services.TenantService, membershipService *services.MembershipService) *TenantHandler {
	return &TenantHandler{
		service:           service,
		membershipService: membershipService,
	}
}

// Create 创建租户
func (h *TenantHandler) Create(c *gin.Context) {
	var req services.TenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tenant, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		replyError(c, err, "创建失败")
		return
	}
	response.Success(c, tenant)
}

// GetByID 获取租户
func (h *TenantHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	tenant, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "租户不存在")
		return
	}
	response.Success(c, tenant)
}

// GetAll 分页查询，支持 is_active 与 keyword 过滤
func (h *TenantHandler) GetAll(c *gin.Context) {
	pageParams := pagination.ParsePageParams(c)

	var active *bool
	if v := c.Query("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "is_active 参数错误")
			return
		}
		active = &b
	}

	tenants, total, err := h.service.GetWithFiltersAndPage(c.Request.Context(), active, c.Query("keyword"), pageParams)
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, tenants, pageInfo)
}

// Update 更新租户
func (h *TenantHandler) Update(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.TenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	tenant, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		replyError(c, err, "更新失败")
		return
	}
	response.Success(c, tenant)
}

// Delete 删除租户
func (h *TenantHandler) Delete(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		replyError(c, err, "删除失败")
		return
	}
	response.SuccessWithMessage(c, "删除成功", nil)
}

// Activate 激活租户
func (h *TenantHandler) Activate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tenant, err := h.service.Activate(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "激活失败")
		return
	}
	response.Success(c, tenant)
}

// Deactivate 停用租户，成员的下一次请求将被要求重新登录
func (h *TenantHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	tenant, err := h.service.Deactivate(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "停用失败")
		return
	}
	response.Success(c, tenant)
}

// GetStats 租户统计
func (h *TenantHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}
	response.Success(c, stats)
}

// Members 租户成员
func (h *TenantHandler) Members(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	members, err := h.membershipService.ListForTenant(c.Request.Context(), id)
	if err != nil {
		replyError(c, err, "查询失败")
		return
	}
	response.Success(c, members)
}
