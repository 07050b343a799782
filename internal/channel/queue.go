package channel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingPrompt 等待远端回复的提问
type PendingPrompt struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	reply chan string
}

// Queue HTTP 桥接通道：提问进入待答队列，由 HTTP 接口列出并回答
// 同一时刻流水线只会挂起一个提问，但队列按 ID 寻址以防竞态
type Queue struct {
	mu      sync.Mutex
	pending map[string]*PendingPrompt
	notices []string
}

// NewQueue 创建待答队列
func NewQueue() *Queue {
	return &Queue{pending: make(map[string]*PendingPrompt)}
}

// Notify 记录通知（由 HTTP 接口轮询读取）
func (q *Queue) Notify(text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices = append(q.notices, text)
	if len(q.notices) > 200 {
		q.notices = q.notices[len(q.notices)-200:]
	}
	return nil
}

// Prompt 入队并阻塞等待回复；ctx 超时返回 ok=false
func (q *Queue) Prompt(ctx context.Context, text string) (string, bool, error) {
	p := &PendingPrompt{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: time.Now(),
		reply:     make(chan string, 1),
	}

	q.mu.Lock()
	q.pending[p.ID] = p
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.pending, p.ID)
		q.mu.Unlock()
	}()

	select {
	case reply := <-p.reply:
		return reply, true, nil
	case <-ctx.Done():
		return "", false, nil
	}
}

// Pending 当前待答提问列表
func (q *Queue) Pending() []PendingPrompt {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]PendingPrompt, 0, len(q.pending))
	for _, p := range q.pending {
		out = append(out, PendingPrompt{ID: p.ID, Text: p.Text, CreatedAt: p.CreatedAt})
	}
	return out
}

// Reply 按 ID 回答一个待答提问；ID 不存在（已超时或已回答）返回 false
func (q *Queue) Reply(id, text string) bool {
	q.mu.Lock()
	p, ok := q.pending[id]
	q.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case p.reply <- text:
		return true
	default:
		return false
	}
}

// Notices 最近的通知文本
func (q *Queue) Notices() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.notices))
	copy(out, q.notices)
	return out
}
