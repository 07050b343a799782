package store

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/model"
)

const bundleEpsilon = 0.01

// bundleDoc 组合包文件的顶层结构
type bundleDoc struct {
	Bundles map[string]*model.Bundle `json:"bundles"`
}

// BundleStore 组合包（bundle）登记表：身份键 → 人工拆解结果
type BundleStore struct {
	path string
	doc  bundleDoc
	log  *zap.Logger
}

// NewBundleStore 加载（或初始化）组合包登记表
func NewBundleStore(path string, log *zap.Logger) (*BundleStore, error) {
	s := &BundleStore{
		path: path,
		doc:  bundleDoc{Bundles: make(map[string]*model.Bundle)},
		log:  log,
	}
	if fileExists(path) {
		if err := readJSON(path, &s.doc); err != nil {
			return nil, fmt.Errorf("failed to load bundles from %s: %w", path, err)
		}
		if s.doc.Bundles == nil {
			s.doc.Bundles = make(map[string]*model.Bundle)
		}
		// 加载时重新校验价格守恒，脏数据立即暴露而不是写进台账
		for key, b := range s.doc.Bundles {
			if err := validateBundle(b); err != nil {
				return nil, fmt.Errorf("bundle %q is invalid: %w", key, err)
			}
		}
	}
	log.Info("组合包登记表已加载", zap.String("path", path), zap.Int("count", len(s.doc.Bundles)))
	return s, nil
}

func validateBundle(b *model.Bundle) error {
	if len(b.Components) == 0 {
		return fmt.Errorf("bundle has no components")
	}
	var sum float64
	for _, c := range b.Components {
		sum += c.Price
	}
	if math.Abs(sum-b.TotalPrice) > bundleEpsilon {
		return fmt.Errorf("component prices sum to %.2f, want %.2f", sum, b.TotalPrice)
	}
	return nil
}

// Has 是否存在指定身份键的组合包
func (s *BundleStore) Has(key string) bool {
	_, ok := s.doc.Bundles[key]
	return ok
}

// Get 读取组合包并刷新 last_used 时间
func (s *BundleStore) Get(key string) (*model.Bundle, bool) {
	b, ok := s.doc.Bundles[key]
	if !ok {
		return nil, false
	}
	b.LastUsedAt = time.Now().Format("2006-01-02 15:04:05")
	if err := writeJSONAtomic(s.path, s.doc); err != nil {
		s.log.Warn("刷新组合包使用时间失败", zap.String("key", key), zap.Error(err))
	}
	return b, true
}

// Create 校验价格守恒后持久化一个新组合包；校验失败不落盘
func (s *BundleStore) Create(key, originalName string, components []model.BundleComponent, totalPrice float64) error {
	b := &model.Bundle{
		OriginalName: originalName,
		Components:   components,
		TotalPrice:   totalPrice,
	}
	if err := validateBundle(b); err != nil {
		return err
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	b.CreatedAt = now
	b.LastUsedAt = now

	s.doc.Bundles[key] = b
	if err := writeJSONAtomic(s.path, s.doc); err != nil {
		delete(s.doc.Bundles, key)
		return fmt.Errorf("failed to save bundles to %s: %w", s.path, err)
	}
	s.log.Info("已创建组合包", zap.String("key", key), zap.Int("components", len(components)))
	return nil
}

// Delete 删除组合包
func (s *BundleStore) Delete(key string) error {
	if _, ok := s.doc.Bundles[key]; !ok {
		return fmt.Errorf("bundle %q not found", key)
	}
	delete(s.doc.Bundles, key)
	if err := writeJSONAtomic(s.path, s.doc); err != nil {
		return fmt.Errorf("failed to save bundles to %s: %w", s.path, err)
	}
	return nil
}

// All 全部组合包（按身份键索引）
func (s *BundleStore) All() map[string]*model.Bundle {
	return s.doc.Bundles
}

// Stats 组合包统计信息
type Stats struct {
	TotalBundles    int     `json:"total_bundles"`
	TotalComponents int     `json:"total_components"`
	AvgComponents   float64 `json:"avg_components"`
}

// GetStats 汇总组合包数量与组件数
func (s *BundleStore) GetStats() Stats {
	st := Stats{TotalBundles: len(s.doc.Bundles)}
	for _, b := range s.doc.Bundles {
		st.TotalComponents += len(b.Components)
	}
	if st.TotalBundles > 0 {
		st.AvgComponents = float64(st.TotalComponents) / float64(st.TotalBundles)
	}
	return st
}
