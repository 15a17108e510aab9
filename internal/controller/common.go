package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/middleware"
	"github.com/nsxzhou1114/startpage-api/pkg/response"
)

// parseID 解析路径中的ID，失败时直接返回400
func parseID(c *gin.Context, name, message string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, message, err)
		return 0, false
	}
	return uint(id), true
}

// currentUser 从上下文中获取当前用户名，未登录时直接返回401
func currentUser(c *gin.Context) (string, bool) {
	username, exists := middleware.GetUsername(c)
	if !exists {
		response.Unauthorized(c, "请先登录", nil)
		return "", false
	}
	return username, true
}
