package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/config"
	"ordersync/internal/decompose"
	"ordersync/internal/ledger"
	"ordersync/internal/model"
	"ordersync/internal/resolver"
	"ordersync/internal/store"
)

func newTestPipeline(t *testing.T, ch channel.Channel) (*Pipeline, *store.ExcludedStore, string) {
	t.Helper()
	dir := t.TempDir()
	log := zap.NewNop()

	cfg := config.DefaultConfig()
	cfg.Ledger.Path = filepath.Join(dir, "ledger.xlsx")
	cfg.Ledger.CapacityBlock = 0

	excluded, err := store.NewExcludedStore(filepath.Join(dir, "excluded.json"), log)
	if err != nil {
		t.Fatalf("NewExcludedStore: %v", err)
	}
	mappings, err := store.NewMappingStore(filepath.Join(dir, "mappings.json"), log)
	if err != nil {
		t.Fatalf("NewMappingStore: %v", err)
	}
	bundles, err := store.NewBundleStore(filepath.Join(dir, "bundles.json"), log)
	if err != nil {
		t.Fatalf("NewBundleStore: %v", err)
	}

	colors, err := store.NewColorStore(filepath.Join(dir, "color_hints.json"), log)
	if err != nil {
		t.Fatalf("NewColorStore: %v", err)
	}

	catalog := []model.CatalogEntry{
		{Name: "Картридж 052", Category: "картридж"},
		{Name: "Тонер универсальный", Category: "тонер"},
	}
	res := resolver.New(catalog, mappings, colors, ch, log, resolver.Options{
		DefaultCategory: "耗材",
		PromptTimeout:   time.Second,
	})
	engine := decompose.NewEngine(bundles, ch, log, 2, 20, "耗材", time.Second)

	return New(cfg, excluded, res, engine, ch, nil, log), excluded, cfg.Ledger.Path
}

func order(id, date string, items ...model.LineItem) model.Order {
	for i := range items {
		items[i].OrderID = id
	}
	return model.Order{ID: id, Date: date, Items: items}
}

func TestRunEndToEnd(t *testing.T) {
	t.Parallel()
	// 未知商品回复 OK 用默认类别
	ch := channel.NewScript("OK")
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Картридж 052", Quantity: 2, UnitPrice: 990, Status: model.StatusPendingPickup},
			model.LineItem{Name: "Загадочный товар", Quantity: 1, UnitPrice: 120, Status: model.StatusPendingPickup},
		),
	}
	result, err := p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// 数量 2 复制 + 1 = 3 个单元
	if result.Units != 3 {
		t.Fatalf("units = %d, want 3", result.Units)
	}
	if result.Summary.Appended != 1 {
		t.Fatalf("summary = %+v", result.Summary)
	}
	// 完全匹配静默，只有未知商品提问一次
	if ch.PromptCount() != 1 {
		t.Fatalf("prompts = %d, want 1", ch.PromptCount())
	}
	if len(ch.Notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(ch.Notices))
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript()
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Картридж 052", Quantity: 1, UnitPrice: 990, Status: model.StatusPendingPickup},
		),
	}
	if _, err := p.Run(context.Background(), orders); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	result, err := p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Summary.Skipped != 1 || result.Summary.HasChanges() {
		t.Fatalf("second run summary = %+v, want 1 skipped", result.Summary)
	}
	if ch.PromptCount() != 0 {
		t.Fatalf("prompts = %d, want 0", ch.PromptCount())
	}
}

func TestRunExcludeReplyDropsWholeOrder(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("排除")
	p, excluded, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Случайный мусор", Quantity: 1, UnitPrice: 5, Status: model.StatusPendingPickup},
		),
	}
	result, err := p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Units != 0 || result.OrdersExcluded != 1 {
		t.Fatalf("result = %+v", result)
	}
	if !excluded.IsExcluded("O-1") {
		t.Fatal("order must be persisted as excluded")
	}

	// 第二次运行直接被排除过滤器拦截，不再提问
	result, err = p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.OrdersExcluded != 1 || ch.PromptCount() != 1 {
		t.Fatalf("result = %+v, prompts = %d", result, ch.PromptCount())
	}
}

func TestRunDecomposeCreatesAndReappliesBundle(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript(
		"拆分",
		"Картридж 052 | картридж | 800; Тонер универсальный | тонер | 190",
	)
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Набор картридж+тонер", Quantity: 1, UnitPrice: 990, Status: model.StatusPendingPickup},
		),
	}
	result, err := p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Units != 2 {
		t.Fatalf("units = %d, want 2", result.Units)
	}
	if ch.PromptCount() != 2 {
		t.Fatalf("prompts = %d, want 2", ch.PromptCount())
	}

	// 第二次遇到同款商品：组合包静默套用，不再提问
	orders2 := []model.Order{
		order("O-2", "2026-08-02",
			model.LineItem{Name: "Набор картридж+тонер", Quantity: 2, UnitPrice: 990, Status: model.StatusPendingPickup},
		),
	}
	result, err = p.Run(context.Background(), orders2)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if result.Units != 4 {
		t.Fatalf("units = %d, want 4", result.Units)
	}
	if ch.PromptCount() != 2 {
		t.Fatalf("prompts = %d, want 2 (bundle must apply silently)", ch.PromptCount())
	}
}

func TestRunSplitStatusReconciled(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("拆分", "2")
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Крупная покупка", Quantity: 1, UnitPrice: 100, Status: model.StatusPendingPickup},
		),
	}
	result, err := p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Units != 2 {
		t.Fatalf("units = %d, want 2", result.Units)
	}
	if result.Summary.Appended != 1 {
		t.Fatalf("summary = %+v", result.Summary)
	}
}

// brokenChannel 前 n 次 Prompt 返回错误，之后转交内层通道
type brokenChannel struct {
	*channel.Script
	failures int
}

func (b *brokenChannel) Prompt(ctx context.Context, text string) (string, bool, error) {
	if b.failures > 0 {
		b.failures--
		return "", false, errors.New("channel is down")
	}
	return b.Script.Prompt(ctx, text)
}

func TestRunContinuesPastFailingOrder(t *testing.T) {
	t.Parallel()
	// O-1 的未知商品触发提问，通道报错 → 整单失败；O-2 完全匹配不提问，照常入账
	ch := &brokenChannel{Script: channel.NewScript(), failures: 1}
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Загадочный товар", Quantity: 1, UnitPrice: 120, Status: model.StatusPendingPickup},
		),
		order("O-2", "2026-08-01",
			model.LineItem{Name: "Картридж 052", Quantity: 2, UnitPrice: 990, Status: model.StatusPendingPickup},
		),
	}
	result, err := p.Run(context.Background(), orders)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Summary.Appended != 1 || result.Summary.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 appended / 1 failed", result.Summary)
	}
	if result.Units != 2 {
		t.Fatalf("units = %d, want 2 (only O-2)", result.Units)
	}
	var failedOrder *ledger.OrderResult
	for i := range result.OrderResults {
		if result.OrderResults[i].Outcome == ledger.OutcomeFailed {
			failedOrder = &result.OrderResults[i]
		}
	}
	if failedOrder == nil || failedOrder.OrderID != "O-1" || failedOrder.Err == nil {
		t.Fatalf("order results = %+v, want O-1 FAILED with error", result.OrderResults)
	}
}

func TestCollectUnitsAbandonedDecomposeFallsBackToDefaultCategory(t *testing.T) {
	t.Parallel()
	// 要求拆分后回复耗尽 → 三次尝试全部超时 → 放弃，按普通行项目兜底
	ch := channel.NewScript("拆分")
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Набор неизвестный", Quantity: 2, UnitPrice: 500, Status: model.StatusPendingPickup},
		),
	}
	units, err := p.CollectUnits(context.Background(), orders)
	if err != nil {
		t.Fatalf("CollectUnits: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}
	for _, u := range units {
		if u.ResolvedName != "Набор неизвестный" || u.ResolvedCategory != "耗材" {
			t.Fatalf("unit = %q/%q, want name kept and default category", u.ResolvedName, u.ResolvedCategory)
		}
	}
}

func TestCollectUnits(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript()
	p, _, _ := newTestPipeline(t, ch)

	orders := []model.Order{
		order("O-1", "2026-08-01",
			model.LineItem{Name: "Картридж 052", Quantity: 3, UnitPrice: 990, Status: model.StatusReceived},
		),
	}
	units, err := p.CollectUnits(context.Background(), orders)
	if err != nil {
		t.Fatalf("CollectUnits: %v", err)
	}
	if len(units) != 3 {
		t.Fatalf("units = %d, want 3", len(units))
	}
	for _, u := range units {
		if u.ResolvedName != "Картридж 052" || u.ResolvedCategory != "картридж" {
			t.Fatalf("unit = %+v", u)
		}
	}
}
