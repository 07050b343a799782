package store

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ColorStore 颜色澄清结果的持久化缓存：原始颜色文案 → 人工判定的颜色
// 同一文案只打扰人工一次，后续运行静默复用
type ColorStore struct {
	path  string
	hints map[string]string
	log   *zap.Logger
}

// NewColorStore 加载（或初始化）颜色判定缓存
func NewColorStore(path string, log *zap.Logger) (*ColorStore, error) {
	s := &ColorStore{
		path:  path,
		hints: make(map[string]string),
		log:   log,
	}
	if fileExists(path) {
		if err := readJSON(path, &s.hints); err != nil {
			return nil, fmt.Errorf("failed to load color hints from %s: %w", path, err)
		}
	}
	log.Info("颜色判定缓存已加载", zap.String("path", path), zap.Int("count", len(s.hints)))
	return s, nil
}

func colorKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Get 查询某个原始文案的已判定颜色
func (s *ColorStore) Get(raw string) (string, bool) {
	v, ok := s.hints[colorKey(raw)]
	return v, ok
}

// Put 写入一条判定并立即持久化
func (s *ColorStore) Put(raw, resolved string) error {
	s.hints[colorKey(raw)] = resolved
	if err := writeJSONAtomic(s.path, s.hints); err != nil {
		return fmt.Errorf("failed to save color hints to %s: %w", s.path, err)
	}
	return nil
}

// Len 缓存条目数
func (s *ColorStore) Len() int {
	return len(s.hints)
}
