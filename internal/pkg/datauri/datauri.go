package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotDataURI = errors.New("not a data URI")
	ErrNoPayload  = errors.New("data URI has no payload")
)

// Parsed 解析后的 data URI
type Parsed struct {
	MimeType string // 如 image/png
	Base64   string // base64 载荷（未解码）
}

// Parse 解析自描述 data URI（data:<mime>;base64,<payload>）
// 拆分为 mime 类型和 base64 载荷，供 AI 边界层构造图片消息
func Parse(uri string) (*Parsed, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, ErrNotDataURI
	}

	rest := strings.TrimPrefix(uri, "data:")
	meta, payload, found := strings.Cut(rest, ",")
	if !found || payload == "" {
		return nil, ErrNoPayload
	}

	mime := meta
	if i := strings.Index(meta, ";"); i >= 0 {
		mime = meta[:i]
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	if !strings.Contains(meta, "base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %s", meta)
	}

	return &Parsed{MimeType: mime, Base64: payload}, nil
}

// Decode 解码 base64 载荷为原始字节
func (p *Parsed) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(p.Base64)
}

// IsDataURI 判断字符串是否为 data URI
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}
