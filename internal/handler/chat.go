package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"helper/internal/ai"
	"helper/internal/model"
	"helper/internal/service"
)

// ChatHandler AI 代理处理器
// 对外契约：请求 {message, image?, conversationHistory}，
// 成功 {response}，失败（非2xx）{error, fallbackResponse}
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建代理处理器
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 代理交换接口
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ChatProxyError{
			Error:            "Invalid request body",
			FallbackResponse: ai.FallbackMessage,
		})
		return
	}

	if req.Message == "" && req.Image == "" {
		c.JSON(http.StatusBadRequest, model.ChatProxyError{
			Error:            "message or image is required",
			FallbackResponse: ai.FallbackMessage,
		})
		return
	}

	reply, err := h.chatService.Proxy(c.Request.Context(), &req)
	if err != nil {
		// reply 此时就是固定兜底文案，客户端可直接展示
		c.JSON(http.StatusBadGateway, model.ChatProxyError{
			Error:            "AI service unavailable",
			FallbackResponse: reply,
		})
		return
	}

	c.JSON(http.StatusOK, model.ChatProxyResponse{Response: reply})
}
