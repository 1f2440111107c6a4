package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helper/internal/model"
	"helper/internal/pkg/ctxutil"
	"helper/internal/service"
)

// EmailHandler 邮件发送处理器
type EmailHandler struct {
	directoryService *service.DirectoryService
	emailService     *service.EmailService
}

// NewEmailHandler 创建邮件处理器
func NewEmailHandler(directoryService *service.DirectoryService, emailService *service.EmailService) *EmailHandler {
	return &EmailHandler{
		directoryService: directoryService,
		emailService:     emailService,
	}
}

// Flow 当前邮件旁路状态
// 前端轮询消歧/撰写进度用，从未进入旁路的身份返回 idle
func (h *EmailHandler) Flow(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	c.JSON(http.StatusOK, h.emailService.Flow(userID))
}

// Send 给一组联系人发信
// 每个收件人至多一次发送，失败原样上抛，不重试
func (h *EmailHandler) Send(c *gin.Context) {
	var req model.SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	userID, _ := ctxutil.GetUserID(c.Request.Context())

	contacts := make([]model.Contact, 0, len(req.ContactIDs))
	for _, contactID := range req.ContactIDs {
		contact, err := h.directoryService.GetContact(c.Request.Context(), userID, contactID)
		if err != nil {
			if err == service.ErrNotEducational {
				c.JSON(http.StatusForbidden, model.ErrorResponse{
					Code:    40301,
					Message: err.Error(),
				})
				return
			}
			c.JSON(http.StatusNotFound, model.ErrorResponse{
				Code:    40402,
				Message: "contact not found",
				Detail:  contactID,
			})
			return
		}
		contacts = append(contacts, *contact)
	}

	if err := h.emailService.SendTo(c.Request.Context(), userID, contacts, req.Subject, req.Body, req.AccessToken); err != nil {
		if err == service.ErrNoToken {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{
				Code:    40104,
				Message: err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadGateway, model.ErrorResponse{
			Code:    50201,
			Message: "email send failed",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "sent",
		"sent":    len(contacts),
	})
}
