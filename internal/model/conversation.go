package model

import (
	"time"
)

// 消息角色，仅两种；provider 专用的角色名只在 AI 边界层映射
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle 新会话的占位标题
// 标题仍为占位值时，首条用户消息的前缀会被提取为新标题
const DefaultTitle = "New Chat"

// TitleMaxRunes 标题截断长度（按rune计，超出追加省略号）
const TitleMaxRunes = 30

// Conversation 会话实体
// ConversationID 由调用方生成（UUID），在会话整个生命周期内稳定；
// (UserID, ConversationID) 是远端存储的 upsert key
type Conversation struct {
	ID             string    `bson:"_id,omitempty" json:"-"`
	ConversationID string    `bson:"conversation_id" json:"id"`
	UserID         string    `bson:"user_id" json:"user_id,omitempty"`
	Title          string    `bson:"title" json:"title"`
	Messages       []Message `bson:"messages" json:"messages"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

// Message 消息
// 追加后不可变；属于且仅属于一个会话
type Message struct {
	ID        string    `bson:"id" json:"id"`
	Role      string    `bson:"role" json:"role"`
	Content   string    `bson:"content" json:"content"`
	Image     string    `bson:"image,omitempty" json:"image,omitempty"` // data URI（mime+base64 自描述）
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// IsEmpty 文本与图片均为空
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Image == ""
}

// DeriveTitle 从消息文本推导会话标题
// 取前 TitleMaxRunes 个rune，超出时追加省略号
func DeriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= TitleMaxRunes {
		return text
	}
	return string(runes[:TitleMaxRunes]) + "..."
}

// Clone 深拷贝（同步快照用）
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]Message, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}
