package service

import (
	"bytes"
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"helper/internal/pkg/datauri"
	"helper/internal/pkg/storage"
)

// ArchiveService 附件归档服务
// 入站图片（data URI）解码后落到对象存储，key 带会话/消息标识；
// 归档是尽力而为，失败不影响会话流程，内存里的 data URI 始终是权威数据
type ArchiveService struct {
	store storage.Storage
}

// NewArchiveService 创建归档服务
func NewArchiveService(store storage.Storage) *ArchiveService {
	return &ArchiveService{store: store}
}

// ArchiveImage 归档一张消息图片，返回存储key
func (s *ArchiveService) ArchiveImage(ctx context.Context, convID, msgID, imageURI string) (string, error) {
	parsed, err := datauri.Parse(imageURI)
	if err != nil {
		return "", err
	}
	data, err := parsed.Decode()
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("attachments/%s/%s%s", convID, msgID, extForMime(parsed.MimeType))
	if _, err := s.store.Upload(ctx, key, bytes.NewReader(data), parsed.MimeType); err != nil {
		return "", err
	}

	log.Debug().Str("key", key).Int("bytes", len(data)).Msg("archived message image")
	return key, nil
}

func extForMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
