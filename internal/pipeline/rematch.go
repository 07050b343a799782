package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ordersync/internal/model"
	"ordersync/internal/resolver"
)

// Rematch 显式重新解析：对一批订单的全部唯一身份绕过缓存重新走解析流程
// 返回重新解析的身份数；要求拆解/排除的回复在这里同样生效
func (p *Pipeline) Rematch(ctx context.Context, orders []model.Order) (int, error) {
	kept, _ := p.excluded.Filter(orders)

	seen := make(map[string]bool)
	count := 0
	for _, o := range kept {
		for _, item := range o.Items {
			key, err := p.resolver.KeyFor(ctx, item)
			if err != nil {
				return count, fmt.Errorf("failed to build identity key for order %s: %w", item.OrderID, err)
			}
			if seen[key] {
				continue
			}
			seen[key] = true

			res, err := p.resolver.ResolveFresh(ctx, item)
			if err != nil {
				return count, fmt.Errorf("failed to rematch %q (order %s): %w", item.Name, item.OrderID, err)
			}
			switch res.Outcome {
			case resolver.OutcomeExcludeOrder:
				if err := p.excluded.Exclude(item.OrderID); err != nil {
					p.log.Warn("写入排除清单失败", zap.String("order_id", item.OrderID), zap.Error(err))
				}
			case resolver.OutcomeResolved:
				count++
				p.log.Info("身份已重新解析", zap.String("key", key), zap.String("resolved", res.Name))
			}
		}
	}
	return count, nil
}

// CollectUnits 只做解析与展开，不写台账（导出/调试用途）
// 与 Run 一致：单个订单失败只剔除该订单
func (p *Pipeline) CollectUnits(ctx context.Context, orders []model.Order) ([]model.UnitRow, error) {
	kept, _ := p.excluded.Filter(orders)
	failed := make(map[string]error)
	plans := p.resolveBatch(ctx, kept, failed)
	var result Result
	plans = p.dropExcluded(plans, &result)
	units := p.expand(ctx, plans, failed)
	return dropFailedUnits(units, failed), nil
}
