package response

import (
	"errors"
	"net/http"

	"rankkings/internal/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`    // 业务码
	Message string      `json:"message"` // 提示信息
	Data    interface{} `json:"data"`    // 数据
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, errCode int, msg string) {
	c.JSON(httpCode, Response{
		Code:    errCode,
		Message: msg,
		Data:    nil,
	})
}

// FromError 按错误类别选择 HTTP 状态与业务码
func FromError(c *gin.Context, err error) {
	status, code := Classify(err)
	Error(c, status, code, apperr.Message(err))
}

// Classify 错误类别 → (HTTP 状态, 业务码)
func Classify(err error) (int, int) {
	var re *apperr.RemoteError
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest, ErrInvalidParam
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, ErrNotFound
	case errors.Is(err, apperr.ErrConstraint):
		return http.StatusConflict, ErrConstraint
	case errors.Is(err, apperr.ErrState):
		return http.StatusConflict, ErrStateInvalid
	case errors.As(err, &re):
		switch {
		case re.Status == http.StatusUnauthorized || re.Status == http.StatusForbidden:
			return http.StatusUnauthorized, ErrAuthFailed
		case re.Status == http.StatusNotFound:
			return http.StatusNotFound, ErrNotFound
		case re.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, ErrTooManyRequests
		case re.Status >= 400 && re.Status < 500:
			return http.StatusBadRequest, ErrRemote
		}
		return http.StatusBadGateway, ErrRemote
	case errors.Is(err, apperr.ErrRemote):
		return http.StatusBadGateway, ErrRemote
	}
	return http.StatusInternalServerError, ErrServerInternal
}
