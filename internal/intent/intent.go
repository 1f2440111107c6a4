package intent

import (
	"regexp"
	"strings"
)

// Kind 意图类别
type Kind int

const (
	// KindChat 普通聊天，走 AI 交换
	KindChat Kind = iota
	// KindEmail 发邮件意图，走通讯录/邮件旁路，本回合跳过 AI 交换
	KindEmail
)

// Intent 分类结果（带标签的变体）
type Intent struct {
	Kind Kind
	// Name 邮件意图中提取的目标联系人名，可能为空（提取失败时由旁路按未命中处理）
	Name string
}

// send ... email ... to <name>，名字截止到下一个句读符
var emailTargetRe = regexp.MustCompile(`(?i)send\b.*?\bemail\b.*?\bto\s+([^.!?,;\n]+)`)

// Classify 对用户消息做意图分类
//
// 启发式规则：文本不区分大小写地同时包含 "send" 和 "email" 两个词元
// 即视为邮件意图。这不是可靠的意图识别器——顺带提到 email 的消息会被
// 误路由，这是已知限制；规则收敛在本包内，便于替换而不动派发逻辑。
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	if !containsToken(lower, "send") || !containsToken(lower, "email") {
		return Intent{Kind: KindChat}
	}

	name := ""
	if m := emailTargetRe.FindStringSubmatch(text); m != nil {
		name = strings.TrimSpace(m[1])
	}
	return Intent{Kind: KindEmail, Name: name}
}

// containsToken 按词边界匹配，避免 "sender" 之类误命中
func containsToken(lower, token string) bool {
	idx := 0
	for {
		i := strings.Index(lower[idx:], token)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(token)
		before := start == 0 || !isWordChar(lower[start-1])
		after := end == len(lower) || !isWordChar(lower[end])
		if before && after {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9' || b == '_'
}
