package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helper/internal/model"
	"helper/internal/pkg/ctxutil"
	"helper/internal/service"
)

// ConversationHandler 会话接口处理器
// 登录与匿名都可用：身份缺失时按匿名会话处理
type ConversationHandler struct {
	chatService *service.ChatService
}

// NewConversationHandler 创建会话处理器
func NewConversationHandler(chatService *service.ChatService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService}
}

// List 会话列表（最近优先）与活跃指针
func (h *ConversationHandler) List(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	resp := h.chatService.List(c.Request.Context(), userID)
	c.JSON(http.StatusOK, resp)
}

// Create 新建会话并置为活跃
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	conv, sync := h.chatService.Create(c.Request.Context(), userID)

	c.JSON(http.StatusCreated, model.TurnResponse{
		Conversation: conv,
		Sync:         sync,
	})
}

// Delete 删除会话
// 删除后集合不会为空（删空自动补建），活跃指针始终有效
func (h *ConversationHandler) Delete(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	convID := c.Param("id")

	ok, sync := h.chatService.Delete(c.Request.Context(), userID, convID)
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40401,
			Message: "conversation not found",
		})
		return
	}

	resp := h.chatService.List(c.Request.Context(), userID)
	c.JSON(http.StatusOK, gin.H{
		"conversations": resp.Conversations,
		"active_id":     resp.ActiveID,
		"sync":          sync,
	})
}

// SetActive 切换活跃会话
func (h *ConversationHandler) SetActive(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	convID := c.Param("id")

	if !h.chatService.SetActive(c.Request.Context(), userID, convID) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40401,
			Message: "conversation not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"active_id": convID})
}

// AppendTurn 向会话追加一个用户回合并派发
// 路径中的会话先被置为活跃；文本与图片皆空时是静默空操作，
// 返回当前会话快照但不追加任何消息
func (h *ConversationHandler) AppendTurn(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	convID := c.Param("id")

	var req model.AppendTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	if !h.chatService.SetActive(c.Request.Context(), userID, convID) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40401,
			Message: "conversation not found",
		})
		return
	}

	resp, err := h.chatService.SendTurn(c.Request.Context(), userID, req.Text, req.Image)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "failed to process turn",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Select 邮件旁路的消歧选择/取消，可附带主题正文直接发送
func (h *ConversationHandler) Select(c *gin.Context) {
	userID, _ := ctxutil.GetUserID(c.Request.Context())
	convID := c.Param("id")

	var req model.SelectContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	if !h.chatService.SetActive(c.Request.Context(), userID, convID) {
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40401,
			Message: "conversation not found",
		})
		return
	}

	resp, err := h.chatService.SelectContact(c.Request.Context(), userID, &req)
	if err != nil {
		status := http.StatusInternalServerError
		code := 50001
		switch err {
		case service.ErrNoSelection:
			status = http.StatusConflict
			code = 40901
		case service.ErrNoToken:
			status = http.StatusUnauthorized
			code = 40104
		}
		c.JSON(status, model.ErrorResponse{
			Code:    code,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}
