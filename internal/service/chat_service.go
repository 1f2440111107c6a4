package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"helper/internal/ai"
	"helper/internal/conversation"
	"helper/internal/intent"
	"helper/internal/model"
)

// Greeting 新会话的助手开场白
const Greeting = "Hi! I'm Helper. Ask me anything, or attach an image and I'll take a look."

// Exchanger AI 交换端口
type Exchanger interface {
	Exchange(ctx context.Context, req *ai.ExchangeRequest) (string, error)
}

// ChatService 会话编排服务
// 每个身份（登录用户或匿名会话）一个 conversation.Manager，内存状态是
// 权威数据；每次变更后推送到本地存储（无条件）与远端存储（有身份时），
// 推送失败只降级为可观测的告警，不回滚内存
type ChatService struct {
	aiClient Exchanger
	remote   ConversationStore // 可为 nil（未配置 MongoDB）
	local    LocalStore
	email    *EmailService
	archive  *ArchiveService // 可为 nil（归档关闭）
	greeting string

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// sessionEntry 某个身份的会话管理器槽位
// 启动加载通过 once 串行化：加载完成前并发请求在 Do 上等待，
// 不会拿到半初始化的管理器
type sessionEntry struct {
	once sync.Once
	mgr  *conversation.Manager
}

// NewChatService 创建会话编排服务
func NewChatService(aiClient Exchanger, remote ConversationStore, local LocalStore, email *EmailService, archive *ArchiveService) *ChatService {
	return &ChatService{
		aiClient: aiClient,
		remote:   remote,
		local:    local,
		email:    email,
		archive:  archive,
		greeting: Greeting,
		sessions: make(map[string]*sessionEntry),
	}
}

// session 取（或建）某身份的会话管理器
// 首次访问执行会话启动加载：有身份查远端（按最近更新排序），
// 匿名身份或远端不可用时读本地存储；为空则由 Replace 补建一个。
// 管理器在启动加载完成后才对外可见，加载中的 Replace 不可能覆盖
// 已落下的回合
func (s *ChatService) session(ctx context.Context, userID string) *conversation.Manager {
	s.mu.Lock()
	entry, ok := s.sessions[userID]
	if !ok {
		entry = &sessionEntry{}
		s.sessions[userID] = entry
	}
	s.mu.Unlock()

	entry.once.Do(func() {
		mgr := conversation.New(userID, s.greeting)

		var convs []*model.Conversation
		useLocal := userID == "" || s.remote == nil
		if userID != "" && s.remote != nil {
			loaded, err := s.remote.ListByUserID(ctx, userID)
			if err != nil {
				log.Warn().Err(err).Msg("failed to load conversations from remote store")
				useLocal = true
			} else {
				convs = loaded
			}
		}
		if useLocal && s.local != nil {
			loaded, err := s.local.Load(userID)
			if err != nil {
				log.Warn().Err(err).Msg("failed to load conversations from local store")
			} else {
				convs = loaded
			}
		}

		mgr.Replace(convs)
		entry.mgr = mgr
	})
	return entry.mgr
}

// List 会话列表（最近优先）与活跃指针
func (s *ChatService) List(ctx context.Context, userID string) *model.ConversationListResponse {
	mgr := s.session(ctx, userID)
	convs := mgr.Snapshot()
	return &model.ConversationListResponse{
		Conversations: convs,
		ActiveID:      mgr.ActiveID(),
		Total:         len(convs),
	}
}

// Create 新建会话并置为活跃
func (s *ChatService) Create(ctx context.Context, userID string) (*model.Conversation, []model.SyncResult) {
	mgr := s.session(ctx, userID)
	conv := mgr.NewConversation()
	return conv, s.Sync(ctx, userID)
}

// Delete 删除会话
// 远端行一并删除；集合删空由 Manager 自动补建，调用后活跃指针必有效
func (s *ChatService) Delete(ctx context.Context, userID, convID string) (bool, []model.SyncResult) {
	mgr := s.session(ctx, userID)
	if !mgr.Delete(convID) {
		return false, nil
	}

	if userID != "" && s.remote != nil {
		if err := s.remote.Delete(ctx, userID, convID); err != nil {
			log.Warn().Err(err).Str("conversation_id", convID).Msg("failed to delete remote conversation")
		}
	}
	return true, s.Sync(ctx, userID)
}

// SetActive 切换活跃会话
func (s *ChatService) SetActive(ctx context.Context, userID, convID string) bool {
	return s.session(ctx, userID).SetActive(convID)
}

// SendTurn 处理一个用户回合
// 文本与图片皆空是静默空操作。用户消息先落会话再派发；邮件意图走旁路
// 且本回合跳过 AI 交换，其余走 AI 交换。助手回复按会话标识回写，会话
// 已被删除时结果丢弃
func (s *ChatService) SendTurn(ctx context.Context, userID, text, image string) (*model.TurnResponse, error) {
	mgr := s.session(ctx, userID)

	userMsg, ok := mgr.AppendUserTurn(text, image)
	if !ok {
		// 空回合：不追加、不派发、不同步
		return &model.TurnResponse{Conversation: mgr.Active()}, nil
	}
	convID := mgr.ActiveID()

	if s.archive != nil && image != "" {
		if _, err := s.archive.ArchiveImage(ctx, convID, userMsg.ID, image); err != nil {
			log.Warn().Err(err).Msg("failed to archive message image")
		}
	}

	resp := &model.TurnResponse{}

	if it := intent.Classify(text); it.Kind == intent.KindEmail {
		resp.EmailFlow = s.runEmailFlow(ctx, mgr, userID, convID, it.Name)
	} else {
		resp.Assistant = s.runExchange(ctx, mgr, convID, text, image)
	}

	resp.Sync = s.Sync(ctx, userID)
	resp.Conversation, _ = mgr.Get(convID)
	if resp.Conversation == nil {
		resp.Conversation = mgr.Active()
	}
	return resp, nil
}

// runExchange 聊天路径：一次阻塞交换，任何失败都以固定兜底文案入会话
func (s *ChatService) runExchange(ctx context.Context, mgr *conversation.Manager, convID, text, image string) *model.Message {
	var history []model.Message
	if msgs, ok := mgr.History(convID); ok && len(msgs) > 0 {
		// 当前这条用户消息不算历史
		history = msgs[:len(msgs)-1]
	}

	reply, err := s.aiClient.Exchange(ctx, &ai.ExchangeRequest{
		Message: text,
		Image:   image,
		History: history,
	})
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", convID).Msg("AI exchange degraded to fallback")
	}

	msg, ok := mgr.AppendAssistantTurn(convID, reply)
	if !ok {
		log.Info().Str("conversation_id", convID).Msg("conversation deleted before reply arrived, dropping result")
		return nil
	}
	return msg
}

// runEmailFlow 邮件旁路：检索、消歧状态迁移；授权失败转为用户可见的拒绝
func (s *ChatService) runEmailFlow(ctx context.Context, mgr *conversation.Manager, userID, convID, name string) *model.EmailFlowView {
	view, err := s.email.Begin(ctx, userID, name)
	if err != nil {
		notice := "Something went wrong while looking up your directory."
		if err == ErrNotEducational {
			notice = "Directory search requires an educational account."
		}
		return &model.EmailFlowView{State: FlowFailed, Query: name, Notice: notice}
	}

	// 未命中且配置了回写提示：提示文案进入会话记录
	if view.State == FlowIdle && view.Notice != "" {
		if _, ok := mgr.AppendAssistantTurn(convID, view.Notice); !ok {
			log.Info().Str("conversation_id", convID).Msg("conversation deleted before email-flow notice")
		}
	}
	return view
}

// SelectContact 消歧选择/取消，可附带主题与正文直接发送
func (s *ChatService) SelectContact(ctx context.Context, userID string, req *model.SelectContactRequest) (*model.TurnResponse, error) {
	mgr := s.session(ctx, userID)
	convID := mgr.ActiveID()

	resp := &model.TurnResponse{}

	if req.Dismiss {
		resp.EmailFlow = s.email.Dismiss(userID)
		resp.Conversation = mgr.Active()
		return resp, nil
	}

	if req.ContactID != "" {
		view, err := s.email.Select(ctx, userID, req.ContactID)
		if err != nil {
			return nil, err
		}
		resp.EmailFlow = view
	}

	// 选定后带了主题与正文：直接发送并把结果写进会话
	if req.Subject != "" || req.Body != "" {
		view, err := s.email.SendComposed(ctx, userID, req.Subject, req.Body, "")
		if view != nil {
			resp.EmailFlow = view
			if view.Notice != "" {
				if _, ok := mgr.AppendAssistantTurn(convID, view.Notice); !ok {
					log.Info().Str("conversation_id", convID).Msg("conversation deleted before send notice")
				}
			}
		}
		if err != nil && err != ErrNoSelection {
			log.Warn().Err(err).Msg("composed email send failed")
		}
		if err == ErrNoSelection || err == ErrNoToken {
			return nil, err
		}
	}

	resp.Sync = s.Sync(ctx, userID)
	resp.Conversation = mgr.Active()
	return resp, nil
}

// Proxy 无状态代理交换：历史由调用方整体携带
func (s *ChatService) Proxy(ctx context.Context, req *model.ChatProxyRequest) (string, error) {
	history := make([]model.Message, 0, len(req.ConversationHistory))
	for _, h := range req.ConversationHistory {
		role := model.RoleUser
		if h.Role == model.RoleAssistant {
			role = model.RoleAssistant
		}
		history = append(history, model.Message{
			Role:    role,
			Content: h.Content,
			Image:   h.Image,
		})
	}

	return s.aiClient.Exchange(ctx, &ai.ExchangeRequest{
		Message: req.Message,
		Image:   req.Image,
		History: history,
	})
}

// Sync 把内存状态推送到存储
// 本地存储无条件整体写入；有身份时每个会话并发 upsert 到远端，
// 会话之间没有顺序约束，单个失败记录进结果但不回滚不重试
func (s *ChatService) Sync(ctx context.Context, userID string) []model.SyncResult {
	mgr := s.session(ctx, userID)
	snapshot := mgr.Snapshot()

	if s.local != nil {
		if err := s.local.Save(userID, snapshot); err != nil {
			log.Warn().Err(err).Msg("failed to save conversations to local store")
		}
	}

	if userID == "" || s.remote == nil {
		return nil
	}

	results := make([]model.SyncResult, len(snapshot))
	var wg sync.WaitGroup
	for i, conv := range snapshot {
		wg.Add(1)
		go func(i int, conv *model.Conversation) {
			defer wg.Done()
			result := model.SyncResult{ConversationID: conv.ConversationID}
			if err := s.remote.Upsert(ctx, conv); err != nil {
				log.Warn().Err(err).Str("conversation_id", conv.ConversationID).Msg("remote sync failed")
				result.Error = err.Error()
			}
			results[i] = result
		}(i, conv)
	}
	wg.Wait()

	return results
}
