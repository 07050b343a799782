package store

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/model"
)

// excludedDoc 排除清单文件结构
type excludedDoc struct {
	ExcludedOrders []string `json:"excluded_orders"`
	LastUpdated    string   `json:"last_updated,omitempty"`
}

// ExcludedStore 被整单排除的订单号集合；命中即跳过全部下游处理
type ExcludedStore struct {
	path     string
	excluded map[string]struct{}
	log      *zap.Logger
}

// NewExcludedStore 加载（或初始化）排除清单
func NewExcludedStore(path string, log *zap.Logger) (*ExcludedStore, error) {
	s := &ExcludedStore{
		path:     path,
		excluded: make(map[string]struct{}),
		log:      log,
	}
	if fileExists(path) {
		var doc excludedDoc
		if err := readJSON(path, &doc); err != nil {
			return nil, fmt.Errorf("failed to load excluded orders from %s: %w", path, err)
		}
		for _, id := range doc.ExcludedOrders {
			s.excluded[id] = struct{}{}
		}
	}
	log.Info("排除清单已加载", zap.String("path", path), zap.Int("count", len(s.excluded)))
	return s, nil
}

func (s *ExcludedStore) save() error {
	doc := excludedDoc{
		ExcludedOrders: s.List(),
		LastUpdated:    time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := writeJSONAtomic(s.path, doc); err != nil {
		return fmt.Errorf("failed to save excluded orders to %s: %w", s.path, err)
	}
	return nil
}

// IsExcluded 订单是否被排除
func (s *ExcludedStore) IsExcluded(orderID string) bool {
	_, ok := s.excluded[orderID]
	return ok
}

// Exclude 加入排除清单并立即持久化；重复加入是幂等的
func (s *ExcludedStore) Exclude(orderID string) error {
	if _, ok := s.excluded[orderID]; ok {
		return nil
	}
	s.excluded[orderID] = struct{}{}
	s.log.Info("订单加入排除清单", zap.String("order_id", orderID))
	return s.save()
}

// Include 移出排除清单并立即持久化
func (s *ExcludedStore) Include(orderID string) error {
	if _, ok := s.excluded[orderID]; !ok {
		return nil
	}
	delete(s.excluded, orderID)
	s.log.Info("订单移出排除清单", zap.String("order_id", orderID))
	return s.save()
}

// Filter 按排除清单切分订单列表，返回（保留，排除）
func (s *ExcludedStore) Filter(orders []model.Order) (kept, excluded []model.Order) {
	for _, o := range orders {
		if s.IsExcluded(o.ID) {
			excluded = append(excluded, o)
		} else {
			kept = append(kept, o)
		}
	}
	if len(excluded) > 0 {
		s.log.Info("已跳过排除订单", zap.Int("count", len(excluded)))
	}
	return kept, excluded
}

// List 排序后的排除订单号列表
func (s *ExcludedStore) List() []string {
	out := make([]string, 0, len(s.excluded))
	for id := range s.excluded {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Count 排除订单数量
func (s *ExcludedStore) Count() int {
	return len(s.excluded)
}
