package util

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquireLockRejectsLiveHolder(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sync.lock")

	l, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	// 持有者（本进程）还活着，再次获取必须失败
	if _, err := AcquireLock(path); err == nil {
		t.Fatal("second acquire must fail while holder is alive")
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	// 释放后可以重新获取
	l2, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
	_ = l2.Release()
}

func TestAcquireLockTakesOverStaleLock(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sync.lock")

	// 不存在的 PID 视为陈旧锁
	data, _ := json.Marshal(lockDoc{PID: 999999999, StartedAt: "2026-01-01 00:00:00"})
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	l, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock over stale lock: %v", err)
	}
	_ = l.Release()
}

func TestAcquireLockTakesOverGarbageFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sync.lock")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	l, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock over garbage: %v", err)
	}
	_ = l.Release()
}
