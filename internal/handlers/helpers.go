package handlers

import (
	"strconv"

	"shipdesk/internal/middleware"
	"shipdesk/internal/services"
	apperrors "shipdesk/pkg/errors"
	"shipdesk/pkg/logger"
	"shipdesk/pkg/response"

	"github.com/gin-gonic/gin"
)

// parseID 解析路径中的ID参数
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "ID格式错误")
		return 0, false
	}
	return uint(id), true
}

// requireScope 路由必须前置授权中间件
func requireScope(c *gin.Context) (*services.Scope, bool) {
	scope, ok := middleware.GetScope(c)
	if !ok {
		response.Unauthorized(c, "请先登录")
		return nil, false
	}
	return scope, true
}

// replyError 按错误类型返回；系统错误只返回 message 并记录日志
func replyError(c *gin.Context, err error, message string) {
	switch {
	case apperrors.EndsSession(err),
		apperrors.Is(err, apperrors.ErrUnauthenticated),
		apperrors.Is(err, apperrors.ErrForbidden):
		middleware.AbortWithError(c, err)
	case apperrors.CodeOf(err) == apperrors.CodeServerError:
		logger.GetLogger().WithField("path", c.FullPath()).Errorf("%s: %v", message, err)
		response.ServerError(c, message)
	default:
		response.FromError(c, err, message)
	}
}
