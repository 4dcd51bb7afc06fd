package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/parleychat/parley/internal/services"
)

// statusFromError 把业务错误映射到 HTTP 状态码。
// 不在清单里的错误一律按存储/外部故障算 500。
func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotMember),
		errors.Is(err, services.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, services.ErrGroupNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrMembershipNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrGroupExists),
		errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError 返回错误响应。500 不向外透出内部错误细节。
func respondError(c *gin.Context, err error) {
	status := statusFromError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	c.JSON(status, gin.H{"error": message})
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

// callerFromContext 取认证中间件写入的调用者身份
func callerFromContext(c *gin.Context) (services.Caller, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return services.Caller{}, false
	}
	id, ok := userID.(uint)
	if !ok {
		return services.Caller{}, false
	}
	name, _ := c.Get("user_name")
	nameStr, _ := name.(string)
	return services.Caller{ID: id, Name: nameStr}, true
}

// uintParam 解析路径里的数字参数
func uintParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(v), true
}
