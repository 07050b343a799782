package resolver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/model"
	"ordersync/internal/store"
)

func testCatalog() []model.CatalogEntry {
	return []model.CatalogEntry{
		{Name: "Картридж лазерный 052", Category: "картридж"},
		{Name: "Тонер универсальный", Category: "тонер"},
		{Name: "Фотобарабан DR-2335", Category: "барабан"},
	}
}

func newTestResolver(t *testing.T, ch channel.Channel, opts Options) (*Resolver, *store.MappingStore) {
	t.Helper()
	dir := t.TempDir()
	ms, err := store.NewMappingStore(filepath.Join(dir, "mappings.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewMappingStore: %v", err)
	}
	cs, err := store.NewColorStore(filepath.Join(dir, "color_hints.json"), zap.NewNop())
	if err != nil {
		t.Fatalf("NewColorStore: %v", err)
	}
	return New(testCatalog(), ms, cs, ch, zap.NewNop(), opts), ms
}

func TestResolveExactMatchSilent(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript()
	r, _ := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-1", Name: "картридж лазерный 052", Quantity: 1, UnitPrice: 990}
	res, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeResolved {
		t.Fatalf("outcome = %v, want OutcomeResolved", res.Outcome)
	}
	if res.Name != "Картридж лазерный 052" || res.Category != "картридж" {
		t.Fatalf("resolved = %q/%q", res.Name, res.Category)
	}
	if ch.PromptCount() != 0 {
		t.Fatalf("exact match must not prompt, got %d prompts", ch.PromptCount())
	}
}

func TestResolveCacheHitNeverReprompts(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("1")
	r, ms := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-2", Name: "Лазерный 052", Quantity: 1, UnitPrice: 990}
	first, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if first.FromCache {
		t.Fatal("first resolve must not come from cache")
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("first resolve prompts = %d, want 1", ch.PromptCount())
	}
	if ms.Len() != 1 {
		t.Fatalf("mapping count = %d, want 1", ms.Len())
	}

	second, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second resolve must hit the cache")
	}
	if second.Name != first.Name || second.Category != first.Category {
		t.Fatalf("cache returned %q/%q, want %q/%q", second.Name, second.Category, first.Name, first.Category)
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("cache hit must not prompt again, got %d prompts", ch.PromptCount())
	}
}

func TestResolveNumberedSelection(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("2")
	r, _ := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-3", Name: "тонер", Quantity: 1, UnitPrice: 300}
	res, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Outcome != OutcomeResolved {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	// "тонер" 是 "Тонер универсальный" 的子串（80 分，唯一候选），回复 2 越界 → 兜底最优候选
	if res.Name != "Тонер универсальный" {
		t.Fatalf("resolved = %q", res.Name)
	}
}

func TestResolveManualOverride(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("Самовывоз коробка | упаковка")
	r, ms := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-4", Name: "Коробка картонная", Quantity: 1, UnitPrice: 50}
	res, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Name != "Самовывоз коробка" || res.Category != "упаковка" {
		t.Fatalf("resolved = %q/%q", res.Name, res.Category)
	}
	m, ok := ms.Get(Key(item.Name, ""))
	if !ok {
		t.Fatal("manual override must be cached")
	}
	if m.ResolvedName != "Самовывоз коробка" {
		t.Fatalf("cached name = %q", m.ResolvedName)
	}
}

func TestResolveDecomposeAndExcludeNotCached(t *testing.T) {
	t.Parallel()
	for _, tt := range []struct {
		reply string
		want  Outcome
	}{
		{"拆分", OutcomePendingDecompose},
		{"排除", OutcomeExcludeOrder},
	} {
		ch := channel.NewScript(tt.reply)
		r, ms := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

		item := model.LineItem{OrderID: "A-5", Name: "Неизвестный набор", Quantity: 1, UnitPrice: 1500}
		res, err := r.Resolve(context.Background(), item)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.reply, err)
		}
		if res.Outcome != tt.want {
			t.Fatalf("Resolve(%q) outcome = %v, want %v", tt.reply, res.Outcome, tt.want)
		}
		if ms.Len() != 0 {
			t.Fatalf("Resolve(%q) must not cache, got %d entries", tt.reply, ms.Len())
		}
	}
}

func TestResolveTimeoutFallbackIsCached(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript() // 无预设回复 → 每次 Prompt 都超时
	r, ms := newTestResolver(t, ch, Options{DefaultCategory: "耗材", PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-6", Name: "Неизвестный товар", Quantity: 1, UnitPrice: 120}
	res, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected timeout fallback")
	}
	if res.Name != "Неизвестный товар" || res.Category != "耗材" {
		t.Fatalf("fallback = %q/%q", res.Name, res.Category)
	}
	if ms.Len() != 1 {
		t.Fatalf("timeout fallback must be cached, got %d entries", ms.Len())
	}

	// 再次解析走缓存，不再发提问
	if _, err := r.Resolve(context.Background(), item); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("prompts = %d, want 1", ch.PromptCount())
	}
}

func TestResolveAutoModeNeverPrompts(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript()
	r, _ := newTestResolver(t, ch, Options{AutoMode: true, PromptTimeout: time.Second})

	for _, name := range []string{"тонер", "Совсем неизвестный товар"} {
		if _, err := r.Resolve(context.Background(), model.LineItem{OrderID: "A-7", Name: name, Quantity: 1}); err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
	}
	if ch.PromptCount() != 0 {
		t.Fatalf("auto mode prompts = %d, want 0", ch.PromptCount())
	}
}

func TestResolveFreshIgnoresCache(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("старое имя | старый тип", "новое имя | новый тип")
	r, _ := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-8", Name: "Загадочный товар", Quantity: 1, UnitPrice: 10}
	if _, err := r.Resolve(context.Background(), item); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	res, err := r.ResolveFresh(context.Background(), item)
	if err != nil {
		t.Fatalf("ResolveFresh: %v", err)
	}
	if res.FromCache {
		t.Fatal("ResolveFresh must not hit the cache")
	}
	if res.Name != "новое имя" {
		t.Fatalf("resolved = %q", res.Name)
	}
	if ch.PromptCount() != 2 {
		t.Fatalf("prompts = %d, want 2", ch.PromptCount())
	}
}

func TestKeyForColorClarification(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("黑")
	r, _ := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-9", Name: "Картридж", Color: "Космический синий"}
	key, err := r.KeyFor(context.Background(), item)
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	if key != "картридж|black" {
		t.Fatalf("key = %q", key)
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("prompts = %d, want 1", ch.PromptCount())
	}

	// 词表可判定的颜色不发澄清提问
	key, err = r.KeyFor(context.Background(), model.LineItem{Name: "Картридж", Color: "тёмно-серый"})
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	if key != "картридж|black" {
		t.Fatalf("key = %q", key)
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("prompts = %d, want 1", ch.PromptCount())
	}
}

func TestColorClarificationIsCached(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript("黑")
	r, _ := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-10", Name: "Картридж лазерный 052", Color: "Космический синий"}
	first, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("prompts = %d, want 1 (clarification only, exact match is silent)", ch.PromptCount())
	}

	// 同一 (名称, 颜色) 再来一遍：颜色判定与映射都走缓存，零提问
	second, err := r.Resolve(context.Background(), item)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if ch.PromptCount() != 1 {
		t.Fatalf("prompts = %d, want 1 (second resolve must be prompt-free)", ch.PromptCount())
	}
	if !second.FromCache || second.Name != first.Name {
		t.Fatalf("second = %+v, want cache hit of %q", second, first.Name)
	}
}

func TestColorClarificationTimeoutIsCachedToo(t *testing.T) {
	t.Parallel()
	ch := channel.NewScript() // 所有提问都超时
	r, _ := newTestResolver(t, ch, Options{PromptTimeout: time.Second})

	item := model.LineItem{OrderID: "A-11", Name: "Картридж лазерный 052", Color: "Космический синий"}
	if _, err := r.Resolve(context.Background(), item); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	// 澄清超时保留原始文案，键为 "картридж лазерный 052|космический синий"，
	// 该兜底同样被缓存：第二次不再发任何提问
	prompts := ch.PromptCount()
	if _, err := r.Resolve(context.Background(), item); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if ch.PromptCount() != prompts {
		t.Fatalf("prompts grew from %d to %d, second resolve must be prompt-free", prompts, ch.PromptCount())
	}
}
