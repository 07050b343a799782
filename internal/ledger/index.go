package ledger

import (
	"strings"

	"ordersync/internal/model"
)

// buildIndex 从整表内容建立 订单号 → 连续行区间 的索引
// 同一订单的行出现在不连续的位置即判定该订单区间损坏（interleave）
func buildIndex(rows [][]string) (map[string]model.OrderRowRange, map[string]bool) {
	index := make(map[string]model.OrderRowRange)
	corrupt := make(map[string]bool)

	for i := headerRowCount; i < len(rows); i++ {
		rowNum := i + 1
		var orderID string
		if len(rows[i]) > 1 {
			orderID = strings.TrimSpace(rows[i][1])
		}
		if orderID == "" {
			continue
		}
		r, seen := index[orderID]
		if !seen {
			index[orderID] = model.OrderRowRange{OrderID: orderID, StartRow: rowNum, EndRow: rowNum}
			continue
		}
		if rowNum == r.EndRow+1 {
			r.EndRow = rowNum
			index[orderID] = r
			continue
		}
		corrupt[orderID] = true
	}
	return index, corrupt
}

// lastUsedRow 最后一个非空行的行号（任一列有内容即算非空）
func lastUsedRow(rows [][]string) int {
	for i := len(rows) - 1; i >= 0; i-- {
		for _, cell := range rows[i] {
			if strings.TrimSpace(cell) != "" {
				return i + 1
			}
		}
	}
	return 0
}
