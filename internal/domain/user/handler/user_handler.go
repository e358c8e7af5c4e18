package handler

import (
	"context"
	"net/http"
	"strconv"

	"rankkings/internal/domain/user/model"
	"rankkings/internal/domain/user/service"
	"rankkings/internal/pkg/remote"
	"rankkings/pkg/response"
	"rankkings/pkg/utils"

	"github.com/gin-gonic/gin"
)

// ProfileEditor 当前会话用户的资料修改
type ProfileEditor interface {
	CurrentUser() *model.User
	UpdateInterests(ctx context.Context, interests []string) (*model.User, error)
	UpdateProfileImage(ctx context.Context, uri string) (*model.User, error)
}

// UserHandler 用户处理器
type UserHandler struct {
	service service.UserService
	profile ProfileEditor
}

// NewUserHandler 创建处理器
func NewUserHandler(service service.UserService, profile ProfileEditor) *UserHandler {
	return &UserHandler{service: service, profile: profile}
}

// InterestsInput 兴趣标签
type InterestsInput struct {
	Interests []string `json:"interests"`
}

// AvatarInput 头像地址，空串表示清除
type AvatarInput struct {
	URI string `json:"uri"`
}

// DirectoryUserInput 远端用户目录写入
type DirectoryUserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (in DirectoryUserInput) toRemote() remote.User {
	return remote.User{Name: in.Name, Email: in.Email}
}

// GetMe 当前用户资料
func (h *UserHandler) GetMe(c *gin.Context) {
	current := h.profile.CurrentUser()
	if current == nil {
		response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Not signed in")
		return
	}
	user, err := h.service.GetProfile(c.Request.Context(), current.ID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) UpdateInterests(c *gin.Context) {
	var input InterestsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	user, err := h.profile.UpdateInterests(c.Request.Context(), input.Interests)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) UpdateAvatar(c *gin.Context) {
	var input AvatarInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	user, err := h.profile.UpdateProfileImage(c.Request.Context(), input.URI)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// ListDirectory 远端用户列表，?page=&limit= 分页
func (h *UserHandler) ListDirectory(c *gin.Context) {
	var p utils.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "invalid pagination")
		return
	}

	users, err := h.service.ListDirectory(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, utils.Page(users, p))
}

func (h *UserHandler) GetDirectoryUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, err := h.service.GetDirectoryUser(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) CreateDirectoryUser(c *gin.Context) {
	var input DirectoryUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	user, err := h.service.CreateDirectoryUser(c.Request.Context(), input.toRemote())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// ReplaceDirectoryUser PUT 全量更新
func (h *UserHandler) ReplaceDirectoryUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input DirectoryUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	user, err := h.service.ReplaceDirectoryUser(c.Request.Context(), id, input.toRemote())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

// PatchDirectoryUser PATCH 只更新提供的字段
func (h *UserHandler) PatchDirectoryUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var input DirectoryUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	user, err := h.service.PatchDirectoryUser(c.Request.Context(), id, input.toRemote())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) DeleteDirectoryUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := h.service.DeleteDirectoryUser(c.Request.Context(), id); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, true)
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid id")
		return 0, false
	}
	return uint(id), true
}
