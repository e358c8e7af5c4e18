package handler

import (
	"net/http"
	"strconv"

	"rankkings/internal/domain/post/service"
	"rankkings/pkg/response"

	"github.com/gin-gonic/gin"
)

// DraftHandler 排行榜草稿与发布
type DraftHandler struct {
	draft *service.Draft
}

func NewDraftHandler(draft *service.Draft) *DraftHandler {
	return &DraftHandler{draft: draft}
}

// DraftInput 草稿基本信息
type DraftInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

// AlbumInput 草稿条目
type AlbumInput struct {
	AlbumName     string `json:"albumName"`
	ArtistName    string `json:"artistName"`
	AlbumImageURI string `json:"albumImageUri"`
}

// GetDraft 当前草稿与发布状态
func (h *DraftHandler) GetDraft(c *gin.Context) {
	response.Success(c, h.draft.View())
}

// UpdateDraft 修改标题、描述与可见性
func (h *DraftHandler) UpdateDraft(c *gin.Context) {
	var input DraftInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	h.draft.SetDetails(input.Title, input.Description, input.IsPrivate)
	response.Success(c, h.draft.View())
}

// AddAlbum 追加到末尾
func (h *DraftHandler) AddAlbum(c *gin.Context) {
	var input AlbumInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}
	album, err := h.draft.AddAlbum(input.AlbumName, input.ArtistName, input.AlbumImageURI)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, album)
}

func (h *DraftHandler) RemoveAlbum(c *gin.Context) {
	rank, err := strconv.Atoi(c.Param("rank"))
	if err != nil || rank < 1 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "Invalid rank")
		return
	}
	if err := h.draft.RemoveAlbum(rank); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.draft.View())
}

// Publish 发布草稿；失败时发布状态为 error，需 reset 后重试
// @Summary 发布草稿
// @Tags Draft
// @Produce json
// @Success 200 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /draft/publish [post]
func (h *DraftHandler) Publish(c *gin.Context) {
	post, err := h.draft.Publish(c.Request.Context())
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, post)
}

// Reset 发布状态回到 idle
func (h *DraftHandler) Reset(c *gin.Context) {
	if err := h.draft.Reset(); err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, h.draft.Status())
}
