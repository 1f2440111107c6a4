package model

// ChatProxyResponse AI 代理接口成功响应
type ChatProxyResponse struct {
	Response string `json:"response"`
}

// ChatProxyError AI 代理接口失败响应（非2xx状态码）
type ChatProxyError struct {
	Error            string `json:"error"`
	FallbackResponse string `json:"fallbackResponse"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// DirectorySearchResponse 通讯录检索响应
type DirectorySearchResponse struct {
	Contacts []Contact `json:"contacts"`
}

// SyncResult 单个会话的远端同步结果
// 并发写入互不影响，部分失败可观测但不阻塞用户
type SyncResult struct {
	ConversationID string `json:"conversation_id"`
	Error          string `json:"error,omitempty"`
}

// EmailFlowView 邮件旁路状态（对外视图）
type EmailFlowView struct {
	State      string    `json:"state"` // idle / selecting / composing / sent / failed
	Query      string    `json:"query,omitempty"`
	Candidates []Contact `json:"candidates,omitempty"`
	Selected   *Contact  `json:"selected,omitempty"`
	Notice     string    `json:"notice,omitempty"`
}

// TurnResponse 一次用户回合的处理结果
// 聊天路径填 Assistant；邮件旁路填 EmailFlow（该回合跳过 AI 交换）
type TurnResponse struct {
	Conversation *Conversation  `json:"conversation"`
	Assistant    *Message       `json:"assistant,omitempty"`
	EmailFlow    *EmailFlowView `json:"email_flow,omitempty"`
	Sync         []SyncResult   `json:"sync,omitempty"`
}

// ConversationListResponse 会话列表响应
type ConversationListResponse struct {
	Conversations []*Conversation `json:"conversations"`
	ActiveID      string          `json:"active_id"`
	Total         int             `json:"total"`
}
