package ledger

import (
	"sort"
	"strings"

	"ordersync/internal/model"
)

// multisetKey (resolved_name, status) 多重集合的键
func multisetKey(name string, status model.Status) string {
	return name + "\x00" + string(status)
}

// desiredMultiset 由新解析数据构建期望多重集合
func desiredMultiset(units []model.UnitRow) map[string]int {
	m := make(map[string]int, len(units))
	for _, u := range units {
		m[multisetKey(u.ResolvedName, u.Status)]++
	}
	return m
}

// actualMultiset 读取既有区间重建实际多重集合
func (b *Book) actualMultiset(r model.OrderRowRange) (map[string]int, error) {
	m := make(map[string]int, r.Len())
	for row := r.StartRow; row <= r.EndRow; row++ {
		name, err := b.cellString(colName, row)
		if err != nil {
			return nil, err
		}
		statusCell, err := b.cellString(colStatus, row)
		if err != nil {
			return nil, err
		}
		m[multisetKey(strings.TrimSpace(name), model.StatusFromCell(statusCell))]++
	}
	return m, nil
}

// sameMultiset 两个多重集合是否相等
func sameMultiset(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, n := range a {
		if b[k] != n {
			return false
		}
	}
	return true
}

// sortUnits 台账写入顺序：订单号、目录名称（不区分大小写）、状态优先级
func sortUnits(units []model.UnitRow) []model.UnitRow {
	out := make([]model.UnitRow, len(units))
	copy(out, units)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		ni, nj := strings.ToLower(out[i].ResolvedName), strings.ToLower(out[j].ResolvedName)
		if ni != nj {
			return ni < nj
		}
		return out[i].Status.Priority() < out[j].Status.Priority()
	})
	return out
}

// materializeRows 叶子单元 → 台账行（公式列留空，落位时由同步器补写）
func materializeRows(units []model.UnitRow, sourceTag string) []model.LedgerRow {
	sorted := sortUnits(units)
	rows := make([]model.LedgerRow, len(sorted))
	for i, u := range sorted {
		rows[i] = model.LedgerRow{
			Date:             u.OrderDate,
			OrderID:          u.OrderID,
			SourceTag:        sourceTag,
			StatusCell:       model.StatusCell(u.Status),
			Price:            u.Price,
			ResolvedName:     u.ResolvedName,
			ResolvedCategory: u.ResolvedCategory,
			SplitFlags:       u.SplitFlags(),
		}
	}
	return rows
}
