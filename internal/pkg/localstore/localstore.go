package localstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"helper/internal/model"
)

// Store 本地会话存储
// 匿名/离线场景的持久化兜底：整个会话集合序列化为一个JSON文件，
// 文件名由固定的 owner key 派生。时间戳经 JSON 序列化后可完整还原。
type Store struct {
	dir string
}

// New 创建本地会话存储
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create localstore dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save 写入某个 owner 的全部会话（覆盖写）
func (s *Store) Save(owner string, convs []*model.Conversation) error {
	data, err := json.MarshalIndent(convs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}

	path := s.path(owner)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conversations: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load 读取某个 owner 的全部会话
// 文件不存在时返回空集合，不视为错误
func (s *Store) Load(owner string) ([]*model.Conversation, error) {
	data, err := os.ReadFile(s.path(owner))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read conversations: %w", err)
	}

	var convs []*model.Conversation
	if err := json.Unmarshal(data, &convs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversations: %w", err)
	}
	return convs, nil
}

// path owner key 经哈希后作为文件名，避免路径注入
func (s *Store) path(owner string) string {
	if owner == "" {
		owner = "anonymous"
	}
	sum := sha256.Sum256([]byte(owner))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:8])+".json")
}
