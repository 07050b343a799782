package store

import (
	"fmt"
	"time"

	"ordersync/internal/model"
)

// ordersDoc 订单导出文件结构
type ordersDoc struct {
	Orders     []model.Order `json:"orders"`
	ExportedAt string        `json:"exported_at,omitempty"`
}

// ReadOrders 从导出文件读取订单列表
func ReadOrders(path string) ([]model.Order, error) {
	var doc ordersDoc
	if err := readJSON(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to load orders from %s: %w", path, err)
	}
	return doc.Orders, nil
}

// WriteOrders 原子写出订单列表
func WriteOrders(path string, orders []model.Order) error {
	doc := ordersDoc{
		Orders:     orders,
		ExportedAt: time.Now().Format("2006-01-02 15:04:05"),
	}
	if err := writeJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("failed to save orders to %s: %w", path, err)
	}
	return nil
}
