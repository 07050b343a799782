package channel

import "context"

// Channel 人工应答通道：解析器与拆解引擎通过它发通知、发提问并等待回复
// Prompt 的第二个返回值为 false 表示等待超时（调用方走确定性兜底路径）
type Channel interface {
	Notify(text string) error
	Prompt(ctx context.Context, text string) (reply string, ok bool, err error)
}
