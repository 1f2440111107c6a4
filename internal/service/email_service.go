package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"helper/internal/model"
	"helper/internal/pkg/cache"
)

// 邮件旁路错误
// Handler 层把 ErrNoToken 映射为 401，ErrNoSelection 映射为 409
var (
	ErrNoToken     = errors.New("no delegated email credential available")
	ErrNoSelection = errors.New("no contact selected")
)

// 旁路状态机的状态值（对外视图用字符串）
const (
	FlowIdle      = "idle"
	FlowSelecting = "selecting"
	FlowComposing = "composing"
	FlowSent      = "sent"
	FlowFailed    = "failed"
)

// flowState 单个用户的消歧状态
type flowState struct {
	state      string
	query      string
	candidates []model.Contact
	selected   *model.Contact
}

// EmailService 邮件旁路服务
// 通讯录消歧状态机 + 委托凭证缓存 + Gmail 发送。
// 发送不重试：每个收件人至多发出一次请求，失败原样上抛
type EmailService struct {
	directory    *DirectoryService
	sender       MailSender
	tokens       TokenCache
	noMatchReply bool

	mu    sync.Mutex
	flows map[string]*flowState // key: userID（匿名为空串）
}

// NewEmailService 创建邮件旁路服务
func NewEmailService(directory *DirectoryService, sender MailSender, tokens TokenCache, noMatchReply bool) *EmailService {
	return &EmailService{
		directory:    directory,
		sender:       sender,
		tokens:       tokens,
		noMatchReply: noMatchReply,
		flows:        make(map[string]*flowState),
	}
}

// Begin 以联系人名启动旁路
// 检索结果决定状态迁移：未命中回到 idle（可配置是否附带提示文案），
// 唯一命中直接进入 composing，多命中进入 selecting 等待选择
func (s *EmailService) Begin(ctx context.Context, userID, name string) (*model.EmailFlowView, error) {
	var candidates []model.Contact
	if name != "" {
		found, err := s.directory.Search(ctx, userID, name)
		if err != nil {
			s.setFlow(userID, &flowState{state: FlowFailed})
			return nil, err
		}
		candidates = found
	}

	switch len(candidates) {
	case 0:
		fs := &flowState{state: FlowIdle, query: name}
		s.setFlow(userID, fs)
		view := s.view(fs)
		if s.noMatchReply {
			view.Notice = noMatchNotice(name)
		}
		return view, nil
	case 1:
		selected := candidates[0]
		fs := &flowState{state: FlowComposing, query: name, selected: &selected}
		s.setFlow(userID, fs)
		return s.view(fs), nil
	default:
		fs := &flowState{state: FlowSelecting, query: name, candidates: candidates}
		s.setFlow(userID, fs)
		return s.view(fs), nil
	}
}

// Select 在 selecting 状态下挑选候选人，进入 composing
func (s *EmailService) Select(ctx context.Context, userID, contactID string) (*model.EmailFlowView, error) {
	s.mu.Lock()
	fs, ok := s.flows[userID]
	s.mu.Unlock()

	if !ok || fs.state != FlowSelecting {
		return nil, ErrNoSelection
	}

	for i := range fs.candidates {
		if fs.candidates[i].ID == contactID {
			selected := fs.candidates[i]
			next := &flowState{state: FlowComposing, query: fs.query, selected: &selected}
			s.setFlow(userID, next)
			return s.view(next), nil
		}
	}
	return nil, fmt.Errorf("contact %s is not among the candidates", contactID)
}

// Dismiss 放弃当前旁路，回到 idle
func (s *EmailService) Dismiss(userID string) *model.EmailFlowView {
	fs := &flowState{state: FlowIdle}
	s.setFlow(userID, fs)
	return s.view(fs)
}

// SendComposed 对 composing 状态中已选定的联系人发信
func (s *EmailService) SendComposed(ctx context.Context, userID, subject, body, accessToken string) (*model.EmailFlowView, error) {
	s.mu.Lock()
	fs, ok := s.flows[userID]
	s.mu.Unlock()

	if !ok || fs.state != FlowComposing || fs.selected == nil {
		return nil, ErrNoSelection
	}

	selected := *fs.selected
	err := s.SendTo(ctx, userID, []model.Contact{selected}, subject, body, accessToken)

	next := &flowState{state: FlowSent, selected: &selected}
	if err != nil {
		next.state = FlowFailed
	}
	s.setFlow(userID, next)

	view := s.view(next)
	if err != nil {
		view.Notice = fmt.Sprintf("Failed to send email to %s.", selected.Name)
		return view, err
	}
	view.Notice = fmt.Sprintf("Email sent to %s!", selected.Name)
	return view, nil
}

// SendTo 给一组已解析的联系人逐个发信
// 每个收件人一封，至多发送一次；任何失败原样上抛，不重试
func (s *EmailService) SendTo(ctx context.Context, userID string, contacts []model.Contact, subject, body, accessToken string) error {
	token, err := s.resolveToken(ctx, userID, accessToken)
	if err != nil {
		return err
	}

	for _, contact := range contacts {
		msgID, err := s.sender.Send(ctx, token, contact.Email, subject, body)
		if err != nil {
			log.Warn().Err(err).Str("to", contact.Email).Msg("email send failed")
			return fmt.Errorf("send to %s: %w", contact.Email, err)
		}
		log.Info().Str("to", contact.Email).Str("message_id", msgID).Msg("email sent")
	}
	return nil
}

// Flow 当前旁路状态视图
func (s *EmailService) Flow(userID string) *model.EmailFlowView {
	s.mu.Lock()
	fs, ok := s.flows[userID]
	s.mu.Unlock()

	if !ok {
		return &model.EmailFlowView{State: FlowIdle}
	}
	return s.view(fs)
}

// StoreToken 缓存委托凭证（固定key，按用户区分，带TTL）
func (s *EmailService) StoreToken(ctx context.Context, userID, token string) error {
	if s.tokens == nil {
		return errors.New("credential cache not configured")
	}
	return s.tokens.SetString(ctx, cache.GmailTokenKey(userID), token, cache.GmailTokenTTL)
}

// ClearToken 清除缓存的委托凭证
func (s *EmailService) ClearToken(ctx context.Context, userID string) error {
	if s.tokens == nil {
		return nil
	}
	return s.tokens.Delete(ctx, cache.GmailTokenKey(userID))
}

// resolveToken 凭证解析顺序：请求显式携带 > 缓存；两者皆无则拒绝
// 显式携带的凭证顺手写入缓存，后续回合免重复授权
func (s *EmailService) resolveToken(ctx context.Context, userID, explicit string) (string, error) {
	if explicit != "" {
		if s.tokens != nil {
			if err := s.StoreToken(ctx, userID, explicit); err != nil {
				log.Warn().Err(err).Msg("failed to cache delegated token")
			}
		}
		return explicit, nil
	}

	if s.tokens == nil {
		return "", ErrNoToken
	}
	token, err := s.tokens.GetString(ctx, cache.GmailTokenKey(userID))
	if err != nil {
		if !cache.IsMiss(err) {
			log.Warn().Err(err).Msg("failed to read delegated token cache")
		}
		return "", ErrNoToken
	}
	return token, nil
}

func (s *EmailService) setFlow(userID string, fs *flowState) {
	s.mu.Lock()
	s.flows[userID] = fs
	s.mu.Unlock()
}

func (s *EmailService) view(fs *flowState) *model.EmailFlowView {
	view := &model.EmailFlowView{
		State: fs.state,
		Query: fs.query,
	}
	if len(fs.candidates) > 0 {
		view.Candidates = make([]model.Contact, len(fs.candidates))
		copy(view.Candidates, fs.candidates)
	}
	if fs.selected != nil {
		selected := *fs.selected
		view.Selected = &selected
	}
	return view
}

// noMatchNotice 未命中时的提示文案
func noMatchNotice(name string) string {
	if name == "" {
		return "I couldn't tell who you want to email. Try \"send an email to <name>\"."
	}
	return fmt.Sprintf("I couldn't find %q in your directory.", name)
}
