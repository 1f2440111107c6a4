package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"helper/internal/ai"
	"helper/internal/model"
	"helper/internal/model/auth"
)

// 本文件是 service 层测试共用的内存假实现

type fakeUsers struct {
	users map[string]*auth.User
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (*auth.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

type fakeContacts struct {
	contacts []model.Contact
}

func (f *fakeContacts) SearchByName(_ context.Context, ownerID, query string) ([]model.Contact, error) {
	var out []model.Contact
	q := strings.ToLower(query)
	for _, c := range f.contacts {
		if c.OwnerID == ownerID && strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeContacts) FindByID(_ context.Context, ownerID, contactID string) (*model.Contact, error) {
	for i := range f.contacts {
		if f.contacts[i].OwnerID == ownerID && f.contacts[i].ID == contactID {
			c := f.contacts[i]
			return &c, nil
		}
	}
	return nil, errors.New("not found")
}

type sentMail struct {
	token   string
	to      string
	subject string
	body    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, accessToken, to, subject, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{token: accessToken, to: to, subject: subject, body: body})
	if f.err != nil {
		return "", f.err
	}
	return "msg-id", nil
}

type fakeTokens struct {
	mu sync.Mutex
	m  map[string]string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{m: make(map[string]string)}
}

func (f *fakeTokens) SetString(_ context.Context, key, value string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = value
	return nil
}

func (f *fakeTokens) GetString(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.m[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeTokens) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.m, k)
	}
	return nil
}

// fakeRemote 远端会话存储：按 (userID, convID) 建行，可注入单个会话的
// 写失败，也可拖慢列表读取来模拟启动加载在途
type fakeRemote struct {
	mu        sync.Mutex
	rows      map[string]*model.Conversation
	failIDs   map[string]bool
	listDelay time.Duration
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rows:    make(map[string]*model.Conversation),
		failIDs: make(map[string]bool),
	}
}

func (f *fakeRemote) key(userID, convID string) string {
	return userID + "/" + convID
}

func (f *fakeRemote) Upsert(_ context.Context, conv *model.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[conv.ConversationID] {
		return errors.New("injected upsert failure")
	}
	f.rows[f.key(conv.UserID, conv.ConversationID)] = conv.Clone()
	return nil
}

func (f *fakeRemote) ListByUserID(_ context.Context, userID string) ([]*model.Conversation, error) {
	if f.listDelay > 0 {
		time.Sleep(f.listDelay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Conversation
	for k, v := range f.rows {
		if strings.HasPrefix(k, userID+"/") {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) Delete(_ context.Context, userID, convID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, f.key(userID, convID))
	return nil
}

func (f *fakeRemote) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeExchanger struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (f *fakeExchanger) Exchange(_ context.Context, _ *ai.ExchangeRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return ai.FallbackMessage, f.err
	}
	return f.reply, nil
}

func (f *fakeExchanger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
