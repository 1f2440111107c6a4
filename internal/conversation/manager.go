package conversation

import (
	"sync"
	"time"

	"helper/internal/model"
	"helper/internal/pkg/id"
)

// Manager 会话状态管理器
// 持有一个用户（或匿名会话）的内存会话集合与活跃指针，是会话期间的
// 数据权威；持久化层只接收推送，不反向覆盖（会话启动加载除外）。
//
// 不变量：
//   - 集合在用户在线期间永不为空（删除后自动补齐）
//   - 活跃指针要么为空要么指向集合内成员，每次删除后校验
//   - 消息只追加，不修改不重排
type Manager struct {
	mu       sync.Mutex
	userID   string
	convs    []*model.Conversation // 最近优先
	activeID string
	greeting string // 开场白文本，空串表示新会话不注入
}

// New 创建管理器
func New(userID, greeting string) *Manager {
	return &Manager{
		userID:   userID,
		greeting: greeting,
	}
}

// UserID 归属用户（匿名为空串）
func (m *Manager) UserID() string {
	return m.userID
}

// NewConversation 创建会话并置为活跃，前插到集合头部
// 无失败路径
func (m *Manager) NewConversation() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.newLocked().Clone()
}

func (m *Manager) newLocked() *model.Conversation {
	now := time.Now()
	conv := &model.Conversation{
		ConversationID: id.New(),
		UserID:         m.userID,
		Title:          model.DefaultTitle,
		Messages:       []model.Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if m.greeting != "" {
		conv.Messages = append(conv.Messages, model.Message{
			ID:        id.New(),
			Role:      model.RoleAssistant,
			Content:   m.greeting,
			Timestamp: now,
		})
	}

	m.convs = append([]*model.Conversation{conv}, m.convs...)
	m.activeID = conv.ConversationID
	return conv
}

// Delete 按标识删除会话
// 删除的是活跃会话时，活跃指针移到新的头部；集合删空则补建一个，
// 保证任何删除序列之后集合非空且活跃指针有效
func (m *Manager) Delete(convID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(convID)
	if idx < 0 {
		return false
	}

	m.convs = append(m.convs[:idx], m.convs[idx+1:]...)

	if m.activeID == convID {
		if len(m.convs) > 0 {
			m.activeID = m.convs[0].ConversationID
		} else {
			m.newLocked()
		}
	}
	return true
}

// AppendUserTurn 向活跃会话追加用户消息
// 文本与图片均为空时静默忽略（返回 nil,false）；
// 标题仍为占位值且文本非空时，从文本推导新标题
func (m *Manager) AppendUserTurn(text, image string) (*model.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if text == "" && image == "" {
		return nil, false
	}

	conv := m.activeLocked()
	if conv == nil {
		conv = m.newLocked()
	}

	msg := model.Message{
		ID:        id.New(),
		Role:      model.RoleUser,
		Content:   text,
		Image:     image,
		Timestamp: time.Now(),
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp

	if conv.Title == model.DefaultTitle && text != "" {
		conv.Title = model.DeriveTitle(text)
	}

	return &msg, true
}

// AppendAssistantTurn 向指定会话追加助手消息
// 目标标识贯穿整个异步交换：会话在响应到达前被删除时，结果直接丢弃
// （返回 nil,false），不会落到别的会话上
func (m *Manager) AppendAssistantTurn(convID, text string) (*model.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(convID)
	if idx < 0 {
		return nil, false
	}

	conv := m.convs[idx]
	msg := model.Message{
		ID:        id.New(),
		Role:      model.RoleAssistant,
		Content:   text,
		Timestamp: time.Now(),
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = msg.Timestamp

	return &msg, true
}

// SetActive 切换活跃会话
func (m *Manager) SetActive(convID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexLocked(convID) < 0 {
		return false
	}
	m.activeID = convID
	return true
}

// ActiveID 当前活跃会话标识
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// Active 当前活跃会话（深拷贝）
func (m *Manager) Active() *model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv := m.activeLocked()
	if conv == nil {
		return nil
	}
	return conv.Clone()
}

// Get 按标识查询（深拷贝）
func (m *Manager) Get(convID string) (*model.Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(convID)
	if idx < 0 {
		return nil, false
	}
	return m.convs[idx].Clone(), true
}

// History 指定会话的消息快照
func (m *Manager) History(convID string) ([]model.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexLocked(convID)
	if idx < 0 {
		return nil, false
	}
	conv := m.convs[idx]
	msgs := make([]model.Message, len(conv.Messages))
	copy(msgs, conv.Messages)
	return msgs, true
}

// Snapshot 全集合深拷贝（同步推送用）
func (m *Manager) Snapshot() []*model.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*model.Conversation, len(m.convs))
	for i, c := range m.convs {
		out[i] = c.Clone()
	}
	return out
}

// Replace 以加载结果整体替换内存状态（仅会话启动时调用）
// 空集合会触发补建，维持非空不变量
func (m *Manager) Replace(convs []*model.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.convs = convs
	if len(m.convs) == 0 {
		m.newLocked()
		return
	}
	m.activeID = m.convs[0].ConversationID
}

// Len 会话数量
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.convs)
}

func (m *Manager) activeLocked() *model.Conversation {
	if m.activeID == "" {
		return nil
	}
	idx := m.indexLocked(m.activeID)
	if idx < 0 {
		return nil
	}
	return m.convs[idx]
}

func (m *Manager) indexLocked(convID string) int {
	for i, c := range m.convs {
		if c.ConversationID == convID {
			return i
		}
	}
	return -1
}
