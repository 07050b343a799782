package store

import (
	"fmt"

	"go.uber.org/zap"

	"ordersync/internal/model"
)

// MappingStore 身份键到目录身份的持久化缓存
// 启动时整体读入，每次变更后整体重写；条目只增改，不自动过期
type MappingStore struct {
	path     string
	mappings map[string]model.Mapping
	log      *zap.Logger
}

// NewMappingStore 加载（或初始化）映射缓存
func NewMappingStore(path string, log *zap.Logger) (*MappingStore, error) {
	s := &MappingStore{
		path:     path,
		mappings: make(map[string]model.Mapping),
		log:      log,
	}
	if fileExists(path) {
		if err := readJSON(path, &s.mappings); err != nil {
			return nil, fmt.Errorf("failed to load mappings from %s: %w", path, err)
		}
	}
	log.Info("映射缓存已加载", zap.String("path", path), zap.Int("count", len(s.mappings)))
	return s, nil
}

// Get 按身份键查询缓存
func (s *MappingStore) Get(key string) (model.Mapping, bool) {
	m, ok := s.mappings[key]
	return m, ok
}

// Put 写入（或覆盖）一条映射并立即持久化
func (s *MappingStore) Put(key string, m model.Mapping) error {
	s.mappings[key] = m
	if err := writeJSONAtomic(s.path, s.mappings); err != nil {
		return fmt.Errorf("failed to save mappings to %s: %w", s.path, err)
	}
	return nil
}

// Delete 删除一条映射（显式重新解析路径使用）并持久化
func (s *MappingStore) Delete(key string) error {
	if _, ok := s.mappings[key]; !ok {
		return nil
	}
	delete(s.mappings, key)
	if err := writeJSONAtomic(s.path, s.mappings); err != nil {
		return fmt.Errorf("failed to save mappings to %s: %w", s.path, err)
	}
	return nil
}

// Len 缓存条目数
func (s *MappingStore) Len() int {
	return len(s.mappings)
}

// Path 底层文件路径
func (s *MappingStore) Path() string {
	return s.path
}
