package reconcile

import (
	"go.uber.org/zap"

	"ordersync/internal/model"
)

// groupKey 状态归并的分组维度：同一订单里同名同拆分规模的叶子单元必须同状态
type groupKey struct {
	orderID    string
	name       string
	splitTotal int
}

// Harmonize 按优先级归并拆分组的状态：优先级数字最小（进度最靠前）的状态获胜
// 只有 split_total>1 的分组参与归并，非拆分行原样保留（同名普通行状态可以合法不同）
// 返回新切片，输入不被修改；未知状态优先级最低，永远不会覆盖已知状态
func Harmonize(units []model.UnitRow, log *zap.Logger) []model.UnitRow {
	winners := make(map[groupKey]model.Status)
	for _, u := range units {
		if !u.IsSplit() {
			continue
		}
		k := groupKey{orderID: u.OrderID, name: u.ResolvedName, splitTotal: u.SplitTotal}
		cur, ok := winners[k]
		if !ok || u.Status.Priority() < cur.Priority() {
			winners[k] = u.Status
		}
	}

	out := make([]model.UnitRow, len(units))
	changed := 0
	for i, u := range units {
		out[i] = u
		if !u.IsSplit() {
			continue
		}
		k := groupKey{orderID: u.OrderID, name: u.ResolvedName, splitTotal: u.SplitTotal}
		if w := winners[k]; w != u.Status {
			out[i].Status = w
			changed++
		}
	}
	if changed > 0 {
		log.Info("状态已归并", zap.Int("units", len(units)), zap.Int("changed", changed))
	}
	return out
}
