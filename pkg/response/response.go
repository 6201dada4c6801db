package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 通用错误码，业务错误码由 service 层定义
const (
	CodeInvalidBody  = "INVALID_BODY"
	CodeInvalidID    = "INVALID_ID"
	CodeNoToken      = "NO_TOKEN"
	CodeInvalidToken = "INVALID_TOKEN"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeServerError  = "SERVER_ERROR"
)

// ErrorBody 失败响应体，Error 为稳定的符号码
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Success 200，成功时直接返回数据本身
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 201
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{
		Error:   code,
		Message: message,
	})
}

func ParamError(c *gin.Context, code, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func Unauthorized(c *gin.Context, code string) {
	Error(c, http.StatusUnauthorized, code, "")
}

func Forbidden(c *gin.Context) {
	Error(c, http.StatusForbidden, CodeForbidden, "")
}

// ServerError 500，不回显内部错误细节
func ServerError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeServerError, "")
}
