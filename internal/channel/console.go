package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// Console 终端应答通道：提问打印到 stdout，回复从 stdin 读取
type Console struct {
	out   io.Writer
	lines chan string
}

// NewConsole 创建终端通道
func NewConsole() *Console {
	c := &Console{
		out:   os.Stdout,
		lines: make(chan string),
	}
	go c.readLoop(os.Stdin)
	return c
}

func (c *Console) readLoop(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		c.lines <- strings.TrimSpace(scanner.Text())
	}
	close(c.lines)
}

// Notify 打印一条通知
func (c *Console) Notify(text string) error {
	_, err := fmt.Fprintln(c.out, text)
	return err
}

// Prompt 打印提问并等待一行输入；ctx 超时返回 ok=false
func (c *Console) Prompt(ctx context.Context, text string) (string, bool, error) {
	if _, err := fmt.Fprintln(c.out, text); err != nil {
		return "", false, err
	}
	select {
	case line, open := <-c.lines:
		if !open {
			return "", false, io.EOF
		}
		return line, true, nil
	case <-ctx.Done():
		return "", false, nil
	}
}
