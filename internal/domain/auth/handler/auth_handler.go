package handler

import (
	"net/http"

	"rankkings/internal/domain/auth/service"
	"rankkings/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 会话处理器
type AuthHandler struct {
	session *service.SessionManager
}

// NewAuthHandler 创建处理器
func NewAuthHandler(session *service.SessionManager) *AuthHandler {
	return &AuthHandler{session: session}
}

// LoginInput 登录输入，字段校验由会话管理器完成
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterInput 注册输入
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login 处理登录请求
// @Summary 登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param input body LoginInput true "邮箱与密码"
// @Success 200 {object} response.Response
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if _, err := h.session.Login(c.Request.Context(), input.Email, input.Password); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.session.Status())
}

// Register 处理注册请求，成功后即为登录状态
func (h *AuthHandler) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	if _, err := h.session.Register(c.Request.Context(), input.Email, input.Password, input.Name); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.session.Status())
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.session.Logout(c.Request.Context()); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.session.Status())
}

// Reset 清除 success/error 状态
func (h *AuthHandler) Reset(c *gin.Context) {
	if err := h.session.Reset(); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.session.Status())
}

func (h *AuthHandler) State(c *gin.Context) {
	response.Success(c, h.session.Status())
}

// GetWelcome 当前用户是否已看过欢迎页
func (h *AuthHandler) GetWelcome(c *gin.Context) {
	seen, err := h.session.HasSeenWelcome(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"seen": seen})
}

func (h *AuthHandler) MarkWelcome(c *gin.Context) {
	if err := h.session.MarkWelcomeSeen(c.Request.Context()); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, gin.H{"seen": true})
}
