package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"helper/internal/model"
)

// ErrNotEducational 非教育账号访问通讯录
// Handler 层映射为 403
var ErrNotEducational = errors.New("directory search requires an educational account")

// DirectoryService 通讯录检索服务
// 检索前校验教育账号标记；结果严格限定在请求者自己的通讯录内
type DirectoryService struct {
	users    UserFinder
	contacts ContactDirectory
}

// NewDirectoryService 创建通讯录服务
func NewDirectoryService(users UserFinder, contacts ContactDirectory) *DirectoryService {
	return &DirectoryService{
		users:    users,
		contacts: contacts,
	}
}

// Search 按名称检索联系人（大小写不敏感的子串匹配）
// 前置条件：请求者持有教育账号标记；匿名请求一律拒绝
func (s *DirectoryService) Search(ctx context.Context, userID, query string) ([]model.Contact, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Contact{}, nil
	}

	contacts, err := s.contacts.SearchByName(ctx, userID, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("directory search failed")
		return nil, err
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	return contacts, nil
}

// GetContact 按ID获取联系人（同样受教育账号门槛保护）
func (s *DirectoryService) GetContact(ctx context.Context, userID, contactID string) (*model.Contact, error) {
	if err := s.authorize(ctx, userID); err != nil {
		return nil, err
	}
	return s.contacts.FindByID(ctx, userID, contactID)
}

// authorize 教育账号门槛
// 授权失败时不泄露任何通讯录数据，直接拒绝
func (s *DirectoryService) authorize(ctx context.Context, userID string) error {
	if userID == "" || s.users == nil || s.contacts == nil {
		return ErrNotEducational
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return ErrNotEducational
	}
	if !user.Educational {
		return ErrNotEducational
	}
	return nil
}
