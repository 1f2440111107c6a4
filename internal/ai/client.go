package ai

import (
	"context"
	"errors"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"helper/internal/ai/component"
	"helper/internal/config"
	"helper/internal/model"
	"helper/internal/pkg/datauri"
)

// Persona 固定的系统人设指令
// 助手只以 "Helper" 自称，不暴露底层模型提供方
const Persona = "You are Helper, a friendly and knowledgeable AI assistant. " +
	"Always identify yourself as Helper. Never mention the company, model, or " +
	"technology that powers you. If asked who made you or what model you are, " +
	"say only that you are Helper, here to help. Be warm, concise, and useful."

// FallbackMessage 交换失败时的固定回复
// 任何失败（网络、非2xx、响应为空）都以它代替错误进入会话
const FallbackMessage = "I'm having trouble connecting right now, but I'm still here to help! Please try again in a moment."

// ExchangeRequest 一次交换：当前消息 + 可选图片 + 全部历史
type ExchangeRequest struct {
	Message string
	Image   string // data URI
	History []model.Message
}

// Client AI 交换客户端
// 一次阻塞请求换一条助手回复；不流式，不重试
type Client struct {
	cfg   *config.AIConfig
	model einomodel.BaseChatModel
}

// NewClient 创建 AI 客户端
func NewClient(ctx context.Context, cfg *config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("AI API key not configured")
	}

	chatModel, err := component.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return &Client{cfg: cfg, model: chatModel}, nil
}

// NewClientWithModel 以现成的 ChatModel 创建客户端（测试注入用）
func NewClientWithModel(m einomodel.BaseChatModel) *Client {
	return &Client{model: m}
}

// Exchange 执行一次交换
// 成功返回 (回复文本, nil)；失败返回 (FallbackMessage, err)——调用方可以
// 直接把文本写入会话，err 仅用于上报/状态码判断
func (c *Client) Exchange(ctx context.Context, req *ExchangeRequest) (string, error) {
	if c.model == nil {
		return FallbackMessage, errors.New("chat model not configured")
	}

	messages := c.buildMessages(req)

	// 出入站内容含用户对话，仅 Debug 级别输出
	log.Debug().Int("messages", len(messages)).Str("message", req.Message).Msg("AI exchange request")

	resp, err := c.model.Generate(ctx, messages)
	if err != nil {
		log.Warn().Err(err).Msg("AI exchange failed")
		return FallbackMessage, err
	}
	if resp == nil || resp.Content == "" {
		log.Warn().Msg("AI exchange returned empty response")
		return FallbackMessage, errors.New("empty model response")
	}

	log.Debug().Str("response", resp.Content).Msg("AI exchange response")
	return resp.Content, nil
}

// buildMessages 构造 provider 消息序列
// 人设指令在前，随后逐条转换历史，最后是当前用户消息；
// "assistant" 到 provider 角色名的映射只发生在这一层
func (c *Client) buildMessages(req *ExchangeRequest) []*schema.Message {
	messages := make([]*schema.Message, 0, len(req.History)+2)
	messages = append(messages, schema.SystemMessage(Persona))

	for i := range req.History {
		messages = append(messages, toSchemaMessage(&req.History[i]))
	}

	messages = append(messages, userMessage(req.Message, req.Image))
	return messages
}

func toSchemaMessage(msg *model.Message) *schema.Message {
	role := schema.User
	if msg.Role == model.RoleAssistant {
		role = schema.Assistant
	}

	if msg.Image == "" {
		return &schema.Message{Role: role, Content: msg.Content}
	}

	return &schema.Message{
		Role:         role,
		MultiContent: contentParts(msg.Content, msg.Image),
	}
}

func userMessage(text, image string) *schema.Message {
	if image == "" {
		return schema.UserMessage(text)
	}
	return &schema.Message{
		Role:         schema.User,
		MultiContent: contentParts(text, image),
	}
}

// contentParts 文本part + 内联图片part
// data URI 拆成 mime 类型与 base64 载荷后交给 provider
func contentParts(text, image string) []schema.ChatMessagePart {
	parts := make([]schema.ChatMessagePart, 0, 2)
	if text != "" {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeText,
			Text: text,
		})
	}

	// 内联 data URI 拆出 mime 类型；普通 URL 原样透传给 provider
	imageURL := &schema.ChatMessageImageURL{URL: image}
	if datauri.IsDataURI(image) {
		if parsed, err := datauri.Parse(image); err == nil {
			imageURL.MIMEType = parsed.MimeType
		} else {
			log.Warn().Err(err).Msg("failed to parse message image data URI")
		}
	}

	parts = append(parts, schema.ChatMessagePart{
		Type:     schema.ChatMessagePartTypeImageURL,
		ImageURL: imageURL,
	})
	return parts
}
