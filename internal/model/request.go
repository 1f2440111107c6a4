package model

// ChatProxyRequest AI 代理接口请求
// message 与 image 至少一个非空（由 Handler 校验，两者皆空静默拒绝）
type ChatProxyRequest struct {
	Message             string           `json:"message"`
	Image               string           `json:"image,omitempty"` // data URI
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
}

// HistoryMessage 代理接口中的历史消息
type HistoryMessage struct {
	Role    string `json:"role"` // user / assistant
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// AppendTurnRequest 追加用户消息请求
type AppendTurnRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"` // data URI
}

// SelectContactRequest 联系人消歧选择请求
type SelectContactRequest struct {
	ContactID string `json:"contact_id,omitempty"`
	Dismiss   bool   `json:"dismiss,omitempty"` // 取消选择，回到 idle
	Subject   string `json:"subject,omitempty"`
	Body      string `json:"body,omitempty"`
}

// DirectorySearchRequest 通讯录检索请求
type DirectorySearchRequest struct {
	Query       string `json:"query" binding:"required"`
	AccessToken string `json:"accessToken,omitempty"`
}

// SendEmailRequest 发送邮件请求
type SendEmailRequest struct {
	ContactIDs  []string `json:"contact_ids" binding:"required"`
	Subject     string   `json:"subject" binding:"required"`
	Body        string   `json:"body" binding:"required"`
	AccessToken string   `json:"access_token,omitempty"` // 为空时取缓存的委托token
}

// StoreTokenRequest 保存委托token请求
type StoreTokenRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}
