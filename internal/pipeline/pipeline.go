package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/config"
	"ordersync/internal/decompose"
	"ordersync/internal/ledger"
	"ordersync/internal/model"
	"ordersync/internal/reconcile"
	"ordersync/internal/resolver"
	"ordersync/internal/store"
)

// Pipeline 同步主流程：排除过滤 → 身份解析 → 拆解展开 → 状态归并 → 台账同步
type Pipeline struct {
	cfg      *config.AppConfig
	excluded *store.ExcludedStore
	resolver *resolver.Resolver
	engine   *decompose.Engine
	ch       channel.Channel
	runLog   *store.RunLog
	log      *zap.Logger
}

// New 组装同步流程
func New(cfg *config.AppConfig, excluded *store.ExcludedStore, res *resolver.Resolver,
	engine *decompose.Engine, ch channel.Channel, runLog *store.RunLog, log *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		excluded: excluded,
		resolver: res,
		engine:   engine,
		ch:       ch,
		runLog:   runLog,
		log:      log,
	}
}

// Result 一次同步运行的结果
type Result struct {
	RunID          string               `json:"run_id"`
	OrdersIn       int                  `json:"orders_in"`
	OrdersExcluded int                  `json:"orders_excluded"`
	Units          int                  `json:"units"`
	Summary        ledger.Summary       `json:"summary"`
	OrderResults   []ledger.OrderResult `json:"-"`
}

// itemPlan 单个行项目的展开计划
type itemPlan struct {
	item      model.LineItem
	orderDate string
	key       string
	// decompose 人工在解析阶段要求拆解
	decompose bool
	res       resolver.Resolution
}

// Run 执行一次完整同步；单个订单/行项目的失败不中断批次
func (p *Pipeline) Run(ctx context.Context, orders []model.Order) (*Result, error) {
	runID := uuid.NewString()
	if p.runLog != nil {
		if err := p.runLog.Begin(runID, p.cfg.Ledger.SourceTag); err != nil {
			p.log.Warn("登记运行记录失败", zap.Error(err))
		}
	}

	result, err := p.run(ctx, orders, runID)

	if p.runLog != nil {
		status := "completed"
		rec := store.RunRecord{}
		if result != nil {
			rec = store.RunRecord{
				OrdersTotal:    result.OrdersIn,
				OrdersAppended: result.Summary.Appended,
				OrdersReplaced: result.Summary.Replaced,
				OrdersSkipped:  result.Summary.Skipped,
				OrdersCorrupt:  result.Summary.Corrupt,
				RowsAdded:      result.Summary.RowsAdded,
				RowsRemoved:    result.Summary.RowsRemoved,
			}
		}
		if err != nil {
			status = "failed"
			rec.ErrorMessage = err.Error()
		}
		if cerr := p.runLog.Complete(runID, status, rec); cerr != nil {
			p.log.Warn("更新运行记录失败", zap.Error(cerr))
		}
	}
	return result, err
}

func (p *Pipeline) run(ctx context.Context, orders []model.Order, runID string) (*Result, error) {
	result := &Result{RunID: runID, OrdersIn: len(orders)}

	kept, excludedOrders := p.excluded.Filter(orders)
	result.OrdersExcluded = len(excludedOrders)

	// 先解析整个批次的全部唯一身份，保证台账 diff 看到的是完整的期望状态
	// 单个订单的解析/拆解失败只剔除该订单，批次继续
	failed := make(map[string]error)
	plans := p.resolveBatch(ctx, kept, failed)
	// 解析阶段可能产生新的整单排除
	plans = p.dropExcluded(plans, result)

	units := p.expand(ctx, plans, failed)
	units = dropFailedUnits(units, failed)
	units = reconcile.Harmonize(units, p.log)
	result.Units = len(units)

	if len(units) == 0 {
		p.log.Info("没有可同步的单元", zap.String("run_id", runID))
		p.mergeFailures(result, failed)
		p.notifySummary(result)
		return result, nil
	}

	book, err := ledger.Open(p.cfg.Ledger.Path, p.cfg.Ledger.Sheet, p.log)
	if err != nil {
		return result, err
	}
	defer func() { _ = book.Close() }()

	sync := ledger.NewSynchronizer(book, p.cfg.Ledger.SourceTag, p.cfg.Ledger.CapacityBlock, p.log)
	summary, orderResults, err := sync.Sync(units)
	result.Summary = summary
	result.OrderResults = orderResults
	if err != nil {
		return result, err
	}

	p.mergeFailures(result, failed)
	p.notifySummary(result)
	return result, nil
}

// mergeFailures 把解析/拆解阶段整单失败的订单并入运行结果
func (p *Pipeline) mergeFailures(result *Result, failed map[string]error) {
	for oid, ferr := range failed {
		result.OrderResults = append(result.OrderResults, ledger.OrderResult{
			OrderID: oid, Outcome: ledger.OutcomeFailed, Err: ferr,
		})
	}
	result.Summary.Failed += len(failed)
}

// resolveBatch 逐订单逐行项目解析身份；同一身份键只解析一次。
// 单个行项目解析失败记入 failed 并剔除整单，其余订单继续。
func (p *Pipeline) resolveBatch(ctx context.Context, orders []model.Order, failed map[string]error) []itemPlan {
	resolved := make(map[string]resolver.Resolution)
	decomposeKeys := make(map[string]bool)
	excludeOrders := make(map[string]bool)

	var plans []itemPlan
	for _, o := range orders {
		for _, item := range o.Items {
			if failed[item.OrderID] != nil {
				continue
			}
			key, err := p.resolver.KeyFor(ctx, item)
			if err != nil {
				p.log.Error("构建身份键失败，整单跳过",
					zap.String("order_id", item.OrderID), zap.String("name", item.Name), zap.Error(err))
				failed[item.OrderID] = fmt.Errorf("failed to build identity key for %q: %w", item.Name, err)
				continue
			}
			plan := itemPlan{item: item, orderDate: o.Date, key: key}

			// 带组合包的商品无需解析，展开阶段直接套用
			if p.engine.Has(key) {
				plan.decompose = true
				plans = append(plans, plan)
				continue
			}
			if decomposeKeys[key] {
				plan.decompose = true
				plans = append(plans, plan)
				continue
			}
			if res, ok := resolved[key]; ok {
				plan.res = res
				plans = append(plans, plan)
				continue
			}

			res, err := p.resolver.Resolve(ctx, item)
			if err != nil {
				p.log.Error("身份解析失败，整单跳过",
					zap.String("order_id", item.OrderID), zap.String("key", key), zap.Error(err))
				failed[item.OrderID] = fmt.Errorf("failed to resolve %q: %w", item.Name, err)
				continue
			}
			switch res.Outcome {
			case resolver.OutcomePendingDecompose:
				decomposeKeys[key] = true
				plan.decompose = true
			case resolver.OutcomeExcludeOrder:
				excludeOrders[item.OrderID] = true
			default:
				resolved[key] = res
				plan.res = res
			}
			plans = append(plans, plan)
		}
	}

	for oid := range excludeOrders {
		if err := p.excluded.Exclude(oid); err != nil {
			p.log.Warn("写入排除清单失败", zap.String("order_id", oid), zap.Error(err))
		}
	}
	return plans
}

// dropExcluded 剔除解析阶段被整单排除的订单
func (p *Pipeline) dropExcluded(plans []itemPlan, result *Result) []itemPlan {
	out := plans[:0]
	dropped := make(map[string]bool)
	for _, plan := range plans {
		if p.excluded.IsExcluded(plan.item.OrderID) {
			dropped[plan.item.OrderID] = true
			continue
		}
		out = append(out, plan)
	}
	result.OrdersExcluded += len(dropped)
	return out
}

// expand 行项目 → 叶子单元：组合包展开、等额拆分或按数量复制。
// 拆解失败记入 failed，该订单的单元随后由 dropFailedUnits 统一剔除。
func (p *Pipeline) expand(ctx context.Context, plans []itemPlan, failed map[string]error) []model.UnitRow {
	var units []model.UnitRow
	for _, plan := range plans {
		if failed[plan.item.OrderID] != nil {
			continue
		}
		if plan.decompose {
			got, err := p.decomposeItem(ctx, plan)
			if err != nil {
				p.log.Error("拆解失败，整单跳过",
					zap.String("order_id", plan.item.OrderID), zap.String("key", plan.key), zap.Error(err))
				failed[plan.item.OrderID] = err
				continue
			}
			units = append(units, got...)
			continue
		}
		units = append(units, duplicateUnits(plan)...)
	}
	return units
}

// dropFailedUnits 剔除解析后才失败的订单已产出的单元
func dropFailedUnits(units []model.UnitRow, failed map[string]error) []model.UnitRow {
	if len(failed) == 0 {
		return units
	}
	out := units[:0]
	for _, u := range units {
		if failed[u.OrderID] != nil {
			continue
		}
		out = append(out, u)
	}
	return out
}

// decomposeItem 拆解单个行项目；人工放弃后按普通行项目兜底
func (p *Pipeline) decomposeItem(ctx context.Context, plan itemPlan) ([]model.UnitRow, error) {
	if got, ok := p.engine.Apply(plan.key, plan.item, plan.orderDate); ok {
		return got, nil
	}
	got, err := p.engine.Decompose(ctx, plan.key, plan.item, plan.orderDate)
	if err == nil {
		return got, nil
	}
	if errors.Is(err, decompose.ErrAbandoned) {
		p.log.Warn("拆解被放弃，按普通行项目处理",
			zap.String("order_id", plan.item.OrderID), zap.String("key", plan.key))
		fallback := plan
		fallback.res = resolver.Resolution{
			Outcome:  resolver.OutcomeResolved,
			Name:     plan.item.Name,
			Category: p.cfg.Resolve.DefaultCategory,
		}
		return duplicateUnits(fallback), nil
	}
	return nil, fmt.Errorf("failed to decompose %q: %w", plan.item.Name, err)
}

// duplicateUnits 普通行项目按数量复制，每个单元带完整单价
func duplicateUnits(plan itemPlan) []model.UnitRow {
	n := plan.item.Quantity
	if n < 1 {
		n = 1
	}
	name, category := plan.res.Name, plan.res.Category
	if name == "" {
		name = plan.item.Name
	}
	units := make([]model.UnitRow, n)
	for i := 0; i < n; i++ {
		units[i] = model.UnitRow{
			OrderID:          plan.item.OrderID,
			OrderDate:        plan.orderDate,
			SourceName:       plan.item.Name,
			Color:            plan.item.Color,
			ResolvedName:     name,
			ResolvedCategory: category,
			Price:            plan.item.UnitPrice,
			Status:           plan.item.Status,
		}
	}
	return units
}

// notifySummary 把变更摘要经通道转发给人工
func (p *Pipeline) notifySummary(r *Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "同步完成（运行 %s）\n", shortRunID(r.RunID))
	fmt.Fprintf(&b, "订单：%d（排除 %d）\n", r.OrdersIn, r.OrdersExcluded)
	fmt.Fprintf(&b, "新增 %d，重写 %d，跳过 %d", r.Summary.Appended, r.Summary.Replaced, r.Summary.Skipped)
	if r.Summary.Corrupt > 0 {
		fmt.Fprintf(&b, "\n区间损坏 %d（已跳过，需人工修复）", r.Summary.Corrupt)
	}
	if r.Summary.Failed > 0 {
		fmt.Fprintf(&b, "\n失败 %d", r.Summary.Failed)
	}
	if err := p.ch.Notify(b.String()); err != nil {
		p.log.Warn("发送变更摘要失败", zap.Error(err))
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
