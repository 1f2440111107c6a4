package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helper/internal/model"
	"helper/internal/pkg/ctxutil"
	"helper/internal/service"
)

// TokenHandler 委托凭证缓存管理
// OAuth 同意流程换到的 token 存进固定 key 的缓存，带 TTL，可显式清除
type TokenHandler struct {
	emailService *service.EmailService
}

// NewTokenHandler 创建凭证处理器
func NewTokenHandler(emailService *service.EmailService) *TokenHandler {
	return &TokenHandler{emailService: emailService}
}

// Store 保存委托凭证
func (h *TokenHandler) Store(c *gin.Context) {
	var req model.StoreTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	userID, _ := ctxutil.GetUserID(c.Request.Context())
	if err := h.emailService.StoreToken(c.Request.Context(), userID, req.AccessToken); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "failed to store token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "stored"})
}

// Clear 清除委托凭证
func (h *TokenHandler) Clear(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	if err := h.emailService.ClearToken(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "failed to clear token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0, "message": "cleared"})
}
