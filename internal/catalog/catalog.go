package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ordersync/internal/model"
)

// Load 从工作簿的目录表读取商品目录
// 列布局：A 名称、B 类别、C 参考价（可空）；首行视为表头
func Load(path, sheet string, log *zap.Logger) ([]model.CatalogEntry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog workbook %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog sheet %q: %w", sheet, err)
	}

	var entries []model.CatalogEntry
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) == 0 {
			continue
		}
		name := strings.TrimSpace(row[0])
		if name == "" {
			continue
		}
		e := model.CatalogEntry{Name: name}
		if len(row) > 1 {
			e.Category = strings.TrimSpace(row[1])
		}
		if len(row) > 2 {
			if p, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64); err == nil {
				e.ReferencePrice = p
			}
		}
		entries = append(entries, e)
	}

	log.Info("商品目录已加载", zap.String("path", path), zap.String("sheet", sheet), zap.Int("entries", len(entries)))
	return entries, nil
}
