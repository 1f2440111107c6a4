package service

import (
	"context"
	"time"

	"helper/internal/model"
	"helper/internal/model/auth"
)

// 服务层依赖以端口形式注入，存储与凭证访问不走包级全局，
// 测试时用内存实现替换

// ConversationStore 远端会话存储端口
type ConversationStore interface {
	Upsert(ctx context.Context, conv *model.Conversation) error
	ListByUserID(ctx context.Context, userID string) ([]*model.Conversation, error)
	Delete(ctx context.Context, userID, convID string) error
}

// LocalStore 本地会话存储端口（匿名/离线兜底，无条件写入）
type LocalStore interface {
	Save(owner string, convs []*model.Conversation) error
	Load(owner string) ([]*model.Conversation, error)
}

// ContactDirectory 通讯录检索端口
type ContactDirectory interface {
	SearchByName(ctx context.Context, ownerID, query string) ([]model.Contact, error)
	FindByID(ctx context.Context, ownerID, contactID string) (*model.Contact, error)
}

// UserFinder 用户查询端口（教育账号标记的来源）
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*auth.User, error)
}

// MailSender 邮件发送端口
type MailSender interface {
	Send(ctx context.Context, accessToken, to, subject, body string) (string, error)
}

// TokenCache 委托凭证缓存端口
type TokenCache interface {
	SetString(ctx context.Context, key, value string, expiration time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}
