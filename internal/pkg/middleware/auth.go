package middleware

import (
	"net/http"

	"rankkings/internal/domain/user/model"
	"rankkings/pkg/response"

	"github.com/gin-gonic/gin"
)

// 上下文键
const (
	ContextUserID = "userID"
	ContextRole   = "role"
)

// SessionSource 当前登录用户，未登录返回 nil
type SessionSource interface {
	CurrentUser() *model.User
}

// AuthMiddleware 要求存在已登录会话
func AuthMiddleware(session SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := session.CurrentUser()
		if user == nil {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Not signed in")
			c.Abort()
			return
		}

		// 将 userID 和 role 存入上下文
		c.Set(ContextUserID, user.ID)
		c.Set(ContextRole, user.Role)

		c.Next()
	}
}

// AdminMiddleware 管理员权限中间件，需在 AuthMiddleware 之后使用
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(ContextRole)
		if !exists {
			response.Error(c, http.StatusUnauthorized, response.ErrNoPermission, "Unauthorized")
			c.Abort()
			return
		}

		if r, ok := role.(int); !ok || r != model.RoleAdmin {
			response.Error(c, http.StatusForbidden, response.ErrNoPermission, "Admin permission required")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUserID 读取 AuthMiddleware 写入的用户 ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
