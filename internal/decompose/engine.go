package decompose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/model"
	"ordersync/internal/store"
)

// ErrAbandoned 人工连续多次给出无效拆解输入后放弃，调用方按普通行项目处理
var ErrAbandoned = errors.New("decomposition abandoned")

// 组件价格之和与行项目总价允许的误差
const priceEpsilon = 0.01

// 无效输入重试上限
const maxAttempts = 3

// Engine 拆解引擎：组合包展开与等额拆分
type Engine struct {
	bundles         *store.BundleStore
	ch              channel.Channel
	log             *zap.Logger
	minUnits        int
	maxUnits        int
	defaultCategory string
	timeout         time.Duration
}

// NewEngine 创建拆解引擎；min/max 非法时回退到 2..20
func NewEngine(bundles *store.BundleStore, ch channel.Channel, log *zap.Logger, minUnits, maxUnits int, defaultCategory string, timeout time.Duration) *Engine {
	if minUnits < 2 {
		minUnits = 2
	}
	if maxUnits < minUnits {
		maxUnits = 20
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Engine{bundles: bundles, ch: ch, log: log, minUnits: minUnits, maxUnits: maxUnits, defaultCategory: defaultCategory, timeout: timeout}
}

// prompt 发送提问并等待回复，统一套用超时
func (e *Engine) prompt(ctx context.Context, text string) (string, bool, error) {
	pctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.ch.Prompt(pctx, text)
}

// Apply 已有组合包直接展开，不发任何提问；无组合包时返回 false
// 同步流程对带组合包的商品走这里，复用确认只在人工显式要求拆解时发生
func (e *Engine) Apply(key string, item model.LineItem, orderDate string) ([]model.UnitRow, bool) {
	b, ok := e.bundles.Get(key)
	if !ok {
		return nil, false
	}
	return e.expandBundle(item, key, b, orderDate), true
}

// Has 是否存在指定身份键的组合包
func (e *Engine) Has(key string) bool {
	return e.bundles.Has(key)
}

// Decompose 把一个行项目拆解为叶子单元
// 已有同键组合包时先询问是否复用；否则交互式定义组件清单或等额份数
func (e *Engine) Decompose(ctx context.Context, key string, item model.LineItem, orderDate string) ([]model.UnitRow, error) {
	if b, ok := e.bundles.Get(key); ok {
		reuse, err := e.confirmReuse(ctx, item, b)
		if err != nil {
			return nil, err
		}
		if reuse {
			return e.expandBundle(item, key, b, orderDate), nil
		}
		if err := e.bundles.Delete(key); err != nil {
			return nil, fmt.Errorf("failed to drop stale bundle %q: %w", key, err)
		}
	}
	return e.defineInteractive(ctx, key, item, orderDate)
}

// confirmReuse 询问是否复用既有组合包；超时按复用处理（已校验过的数据优于打断流程）
func (e *Engine) confirmReuse(ctx context.Context, item model.LineItem, b *model.Bundle) (bool, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "已有组合包：%s（总价 %.2f）\n组件：\n", b.OriginalName, b.TotalPrice)
	for i, c := range b.Components {
		fmt.Fprintf(&sb, "%d. %s（%s）- %.2f\n", i+1, c.ResolvedName, c.ResolvedCategory, c.Price)
	}
	sb.WriteString("回复 是 复用；回复 否 重新定义")

	reply, ok, err := e.prompt(ctx, sb.String())
	if err != nil {
		return false, err
	}
	if !ok {
		e.log.Warn("组合包复用确认超时，按复用处理", zap.String("order_id", item.OrderID))
		return true, nil
	}
	return strings.TrimSpace(reply) != "否", nil
}

// defineInteractive 交互式定义拆解：组件清单或等额份数，最多 3 次无效输入
func (e *Engine) defineInteractive(ctx context.Context, key string, item model.LineItem, orderDate string) ([]model.UnitRow, error) {
	total := item.Total()
	var sb strings.Builder
	fmt.Fprintf(&sb, "拆解商品：%s\n数量：%d，单价：%.2f，总价：%.2f\n", item.Name, item.Quantity, item.UnitPrice, total)
	fmt.Fprintf(&sb, "回复组件清单 \"名称 | 类别 | 价格\"（多个组件用 ; 分隔，价格按单件计，合计须等于 %.2f）\n", item.UnitPrice)
	fmt.Fprintf(&sb, "或回复数字 N（%d-%d）做等额拆分", e.minUnits, e.maxUnits)
	text := sb.String()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		reply, ok, err := e.prompt(ctx, text)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.log.Warn("拆解输入超时，放弃拆解", zap.String("order_id", item.OrderID), zap.String("name", item.Name))
			return nil, ErrAbandoned
		}

		trimmed := strings.TrimSpace(reply)
		if n, err := strconv.Atoi(trimmed); err == nil {
			if n < e.minUnits || n > e.maxUnits {
				text = fmt.Sprintf("份数 %d 超出范围 %d-%d，请重新输入", n, e.minUnits, e.maxUnits)
				continue
			}
			return e.expandSplit(item, n, orderDate)
		}

		components, err := parseComponents(trimmed)
		if err != nil {
			text = fmt.Sprintf("无法解析组件清单：%v\n请按 \"名称 | 类别 | 价格\" 重新输入（; 分隔）", err)
			continue
		}
		if err := checkComponentSum(components, item.UnitPrice); err != nil {
			text = fmt.Sprintf("组件价格校验失败：%v\n请重新输入", err)
			continue
		}
		if err := e.bundles.Create(key, item.Name, components, item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to save bundle %q: %w", key, err)
		}
		b, _ := e.bundles.Get(key)
		return e.expandBundle(item, key, b, orderDate), nil
	}

	e.log.Warn("拆解输入连续无效，放弃拆解",
		zap.String("order_id", item.OrderID), zap.String("name", item.Name), zap.Int("attempts", maxAttempts))
	return nil, ErrAbandoned
}

// parseComponents 解析 "名称 | 类别 | 价格; 名称 | 类别 | 价格" 形式的组件清单
func parseComponents(reply string) ([]model.BundleComponent, error) {
	var components []model.BundleComponent
	for _, part := range strings.Split(reply, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, "|")
		if len(fields) != 3 {
			return nil, fmt.Errorf("component %q must have 3 fields", part)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("component %q has invalid price: %w", part, err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("component %q price must be positive", part)
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			return nil, fmt.Errorf("component %q has empty name", part)
		}
		components = append(components, model.BundleComponent{
			ResolvedName:     name,
			ResolvedCategory: strings.TrimSpace(fields[1]),
			Price:            price,
		})
	}
	if len(components) < 2 {
		return nil, fmt.Errorf("bundle needs at least 2 components, got %d", len(components))
	}
	return components, nil
}

// checkComponentSum 组件价格之和须与单件价格在误差内一致
func checkComponentSum(components []model.BundleComponent, unitPrice float64) error {
	sum := decimal.Zero
	for _, c := range components {
		sum = sum.Add(decimal.NewFromFloat(c.Price))
	}
	got, _ := sum.Float64()
	if math.Abs(got-unitPrice) > priceEpsilon {
		return fmt.Errorf("components sum to %.2f, want %.2f", got, unitPrice)
	}
	return nil
}

// expandBundle 按数量复制组合包组件为叶子单元
func (e *Engine) expandBundle(item model.LineItem, key string, b *model.Bundle, orderDate string) []model.UnitRow {
	units := make([]model.UnitRow, 0, len(b.Components)*item.Quantity)
	for i := 0; i < item.Quantity; i++ {
		for _, c := range b.Components {
			units = append(units, model.UnitRow{
				OrderID:          item.OrderID,
				OrderDate:        orderDate,
				SourceName:       item.Name,
				Color:            item.Color,
				ResolvedName:     c.ResolvedName,
				ResolvedCategory: c.ResolvedCategory,
				Price:            c.Price,
				Status:           item.Status,
				BundleKey:        key,
			})
		}
	}
	return units
}

// expandSplit 等额拆分为 n 个合成单元，带 i/n 拆分标记
func (e *Engine) expandSplit(item model.LineItem, n int, orderDate string) ([]model.UnitRow, error) {
	total := item.Total()
	prices, err := SplitUnits(total, n)
	if err != nil {
		return nil, err
	}
	units := make([]model.UnitRow, n)
	for i, p := range prices {
		units[i] = model.UnitRow{
			OrderID:          item.OrderID,
			OrderDate:        orderDate,
			SourceName:       item.Name,
			Color:            item.Color,
			ResolvedName:     item.Name,
			ResolvedCategory: e.defaultCategory,
			Price:            p,
			Status:           item.Status,
			SplitIndex:       i + 1,
			SplitTotal:       n,
			OriginalPrice:    total,
		}
	}
	return units, nil
}
