package channel

import (
	"context"
	"sync"
)

// Script 预置应答通道：按顺序消费预设回复，测试与自动模式使用
// 回复耗尽后每次 Prompt 都按超时处理
type Script struct {
	mu       sync.Mutex
	replies  []string
	Prompts  []string
	Notices  []string
}

// NewScript 创建预置应答通道
func NewScript(replies ...string) *Script {
	return &Script{replies: replies}
}

// Notify 记录通知文本
func (s *Script) Notify(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Notices = append(s.Notices, text)
	return nil
}

// Prompt 记录提问并弹出下一条预设回复
func (s *Script) Prompt(_ context.Context, text string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, text)
	if len(s.replies) == 0 {
		return "", false, nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, true, nil
}

// PromptCount 已发出的提问次数
func (s *Script) PromptCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}
