package util

import (
	"encoding/json"
	"fmt"
	"os"
	"syscall"
	"time"
)

// lockDoc 锁文件内容
type lockDoc struct {
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
}

// Lock 单实例运行锁：同步流程是单写者，靠锁文件做进程级互斥
type Lock struct {
	path string
}

// AcquireLock 获取运行锁
// 锁文件存在但持有进程已退出时视为陈旧锁，直接接管
func AcquireLock(path string) (*Lock, error) {
	if data, err := os.ReadFile(path); err == nil {
		var doc lockDoc
		if jsonErr := json.Unmarshal(data, &doc); jsonErr == nil && processAlive(doc.PID) {
			return nil, fmt.Errorf("another instance is running (pid %d, since %s)", doc.PID, doc.StartedAt)
		}
		// 陈旧锁，接管
		_ = os.Remove(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read lock file %s: %w", path, err)
	}

	doc := lockDoc{PID: os.Getpid(), StartedAt: time.Now().Format("2006-01-02 15:04:05")}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write lock file %s: %w", path, err)
	}
	return &Lock{path: path}, nil
}

// Release 释放运行锁
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file %s: %w", l.path, err)
	}
	return nil
}

// processAlive 进程是否仍然存在（signal 0 探测）
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
