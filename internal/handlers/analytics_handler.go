package handlers

import (
	"shipdesk/internal/services"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	service *services.AnalyticsService
}

func NewAnalyticsHandler(service *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

// Summary 发货分析
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	scope, ok := requireScope(c)
	if !ok {
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), scope)
	if err != nil {
		replyError(c, err, "统计失败")
		return
	}
	response.Success(c, summary)
}
