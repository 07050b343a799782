package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ordersync/internal/channel"
	"ordersync/internal/model"
	"ordersync/internal/store"
)

// Outcome 解析结果的种类
type Outcome int

const (
	// OutcomeResolved 已得到目录身份
	OutcomeResolved Outcome = iota
	// OutcomePendingDecompose 人工要求走拆解流程
	OutcomePendingDecompose
	// OutcomeExcludeOrder 人工要求整单排除
	OutcomeExcludeOrder
)

// Resolution 解析结果（标签联合）：只有 OutcomeResolved 时名称/类别有效
type Resolution struct {
	Outcome  Outcome
	Name     string
	Category string
	// FromCache 命中缓存，未发生任何人工交互
	FromCache bool
	// TimedOut 等待人工回复超时，走了确定性兜底
	TimedOut bool
}

// 提问回复里的指令词
const (
	replyOK        = "OK"
	replyDecompose = "拆分"
	replyExclude   = "排除"
)

// Resolver 身份解析器：身份键 → 目录身份，带持久缓存与人工兜底协议
type Resolver struct {
	catalog         []model.CatalogEntry
	mappings        *store.MappingStore
	colors          *store.ColorStore
	ch              channel.Channel
	log             *zap.Logger
	defaultCategory string
	timeout         time.Duration
	autoMode        bool
}

// Options 解析器参数
type Options struct {
	DefaultCategory string
	PromptTimeout   time.Duration
	// AutoMode 不发任何提问，直接取最优候选或默认类别
	AutoMode bool
}

// New 创建解析器
func New(catalog []model.CatalogEntry, mappings *store.MappingStore, colors *store.ColorStore, ch channel.Channel, log *zap.Logger, opts Options) *Resolver {
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = "耗材"
	}
	if opts.PromptTimeout <= 0 {
		opts.PromptTimeout = 5 * time.Minute
	}
	return &Resolver{
		catalog:         catalog,
		mappings:        mappings,
		colors:          colors,
		ch:              ch,
		log:             log,
		defaultCategory: opts.DefaultCategory,
		timeout:         opts.PromptTimeout,
		autoMode:        opts.AutoMode,
	}
}

// prompt 发送提问并等待回复，统一套用超时
func (r *Resolver) prompt(ctx context.Context, text string) (string, bool, error) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.ch.Prompt(pctx, text)
}

// KeyFor 计算行项目的身份键；颜色无法判定时通过通道做二选一澄清
// 澄清结果持久缓存：同一颜色文案只打扰人工一次
func (r *Resolver) KeyFor(ctx context.Context, item model.LineItem) (string, error) {
	color := NormalizeColor(item.Color)
	if color == ColorUnresolved {
		if cached, ok := r.colors.Get(item.Color); ok {
			return Key(item.Name, cached), nil
		}
		resolved, err := r.clarifyColor(ctx, item)
		if err != nil {
			return "", err
		}
		if err := r.colors.Put(item.Color, resolved); err != nil {
			return "", err
		}
		color = resolved
	}
	return Key(item.Name, color), nil
}

// clarifyColor 模糊颜色的二选一澄清；超时保留原始文案，不让哨兵值进入键
func (r *Resolver) clarifyColor(ctx context.Context, item model.LineItem) (string, error) {
	text := fmt.Sprintf("颜色无法判定：%q（商品：%s）\n回复 1=黑 / 2=白（或直接回复 黑/白）", item.Color, item.Name)
	reply, ok, err := r.prompt(ctx, text)
	if err != nil {
		return "", err
	}
	if !ok {
		r.log.Warn("颜色澄清超时，保留原始颜色文案",
			zap.String("order_id", item.OrderID), zap.String("color", item.Color))
		return item.Color, nil
	}
	switch strings.TrimSpace(reply) {
	case "1", "黑", "black", "Black":
		return ColorBlack, nil
	case "2", "白", "white", "White":
		return ColorWhite, nil
	default:
		r.log.Warn("颜色澄清回复无效，保留原始颜色文案",
			zap.String("order_id", item.OrderID), zap.String("reply", reply))
		return item.Color, nil
	}
}

// Resolve 解析一个行项目的目录身份
// 顺序：缓存命中 → 100 分静默采纳 → 人工交互（编号/手工/拆分/排除）→ 超时兜底
func (r *Resolver) Resolve(ctx context.Context, item model.LineItem) (Resolution, error) {
	return r.resolve(ctx, item, false)
}

// ResolveFresh 显式重新解析：忽略已有缓存条目（rematch 流程）
func (r *Resolver) ResolveFresh(ctx context.Context, item model.LineItem) (Resolution, error) {
	return r.resolve(ctx, item, true)
}

func (r *Resolver) resolve(ctx context.Context, item model.LineItem, fresh bool) (Resolution, error) {
	key, err := r.KeyFor(ctx, item)
	if err != nil {
		return Resolution{}, err
	}

	if !fresh {
		if m, ok := r.mappings.Get(key); ok {
			return Resolution{Outcome: OutcomeResolved, Name: m.ResolvedName, Category: m.ResolvedCategory, FromCache: true}, nil
		}
	}

	matches := FindMatches(r.catalog, item.Name)

	// 100 分直接采纳并缓存，避免明显匹配也去打扰人工
	if len(matches) > 0 && matches[0].Score == scoreExact {
		best := matches[0].Entry
		if err := r.cache(key, item, best.Name, best.Category); err != nil {
			return Resolution{}, err
		}
		r.log.Info("目录完全匹配", zap.String("key", key), zap.String("resolved", best.Name))
		return Resolution{Outcome: OutcomeResolved, Name: best.Name, Category: best.Category}, nil
	}

	if r.autoMode {
		name, category := r.fallback(item, matches)
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category}, nil
	}

	if len(matches) == 0 {
		return r.resolveNoMatch(ctx, key, item)
	}
	return r.resolveWithCandidates(ctx, key, item, matches)
}

// fallback 超时/自动模式的确定性兜底：最优候选，否则原名+默认类别
func (r *Resolver) fallback(item model.LineItem, matches []Candidate) (string, string) {
	if len(matches) > 0 {
		return matches[0].Entry.Name, matches[0].Entry.Category
	}
	return item.Name, r.defaultCategory
}

func (r *Resolver) cache(key string, item model.LineItem, name, category string) error {
	return r.mappings.Put(key, model.Mapping{
		ResolvedName:     name,
		ResolvedCategory: category,
		OriginalName:     item.Name,
		Color:            item.Color,
	})
}

func itemHeader(item model.LineItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "订单商品：%s\n", item.Name)
	if item.Color != "" {
		fmt.Fprintf(&b, "颜色：%s\n", item.Color)
	}
	fmt.Fprintf(&b, "数量：%d，单价：%.2f\n", item.Quantity, item.UnitPrice)
	return b.String()
}

// resolveNoMatch 目录无任何候选：OK 用默认类别，或手工输入
func (r *Resolver) resolveNoMatch(ctx context.Context, key string, item model.LineItem) (Resolution, error) {
	var b strings.Builder
	b.WriteString("目录中未找到该商品\n")
	b.WriteString(itemHeader(item))
	fmt.Fprintf(&b, "回复 OK 使用默认类别 %q；或回复 \"名称 | 类别\" 手工指定；回复 拆分 / 排除 走对应流程", r.defaultCategory)

	reply, ok, err := r.prompt(ctx, b.String())
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		name, category := item.Name, r.defaultCategory
		r.log.Warn("等待回复超时，使用默认类别",
			zap.String("order_id", item.OrderID), zap.String("key", key))
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category, TimedOut: true}, nil
	}

	switch {
	case strings.EqualFold(strings.TrimSpace(reply), replyOK):
		name, category := item.Name, r.defaultCategory
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category}, nil
	case strings.TrimSpace(reply) == replyDecompose:
		return Resolution{Outcome: OutcomePendingDecompose}, nil
	case strings.TrimSpace(reply) == replyExclude:
		return Resolution{Outcome: OutcomeExcludeOrder}, nil
	case strings.Contains(reply, "|"):
		name, category := parseManual(reply)
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category}, nil
	default:
		r.log.Warn("回复无法识别，使用默认类别",
			zap.String("order_id", item.OrderID), zap.String("reply", reply))
		name, category := item.Name, r.defaultCategory
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category}, nil
	}
}

// resolveWithCandidates 展示前 5 候选并处理人工选择
func (r *Resolver) resolveWithCandidates(ctx context.Context, key string, item model.LineItem, matches []Candidate) (Resolution, error) {
	var b strings.Builder
	b.WriteString("找到相似商品\n")
	b.WriteString(itemHeader(item))
	b.WriteString("候选：\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s（%s）- %d%%\n", i+1, m.Entry.Name, m.Entry.Category, m.Score)
	}
	fmt.Fprintf(&b, "回复 1-%d 选择；或 \"名称 | 类别\" 手工指定；回复 拆分 / 排除 走对应流程", len(matches))

	reply, ok, err := r.prompt(ctx, b.String())
	if err != nil {
		return Resolution{}, err
	}
	if !ok {
		name, category := r.fallback(item, matches)
		r.log.Warn("等待回复超时，采用最优候选",
			zap.String("order_id", item.OrderID), zap.String("key", key), zap.String("resolved", name))
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category, TimedOut: true}, nil
	}

	trimmed := strings.TrimSpace(reply)
	switch {
	case trimmed == replyDecompose:
		return Resolution{Outcome: OutcomePendingDecompose}, nil
	case trimmed == replyExclude:
		return Resolution{Outcome: OutcomeExcludeOrder}, nil
	case strings.Contains(reply, "|"):
		name, category := parseManual(reply)
		if err := r.cache(key, item, name, category); err != nil {
			return Resolution{}, err
		}
		return Resolution{Outcome: OutcomeResolved, Name: name, Category: category}, nil
	}

	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(matches) {
		chosen := matches[n-1].Entry
		if cerr := r.cache(key, item, chosen.Name, chosen.Category); cerr != nil {
			return Resolution{}, cerr
		}
		return Resolution{Outcome: OutcomeResolved, Name: chosen.Name, Category: chosen.Category}, nil
	}

	// 无效回复按原始行为取最优候选
	name, category := r.fallback(item, matches)
	r.log.Warn("回复无法识别，采用最优候选",
		zap.String("order_id", item.OrderID), zap.String("reply", reply))
	if err := r.cache(key, item, name, category); err != nil {
		return Resolution{}, err
	}
	return Resolution{Outcome: OutcomeResolved, Name: name, Category: category}, nil
}

// parseManual 解析 "名称 | 类别" 形式的手工输入
func parseManual(reply string) (string, string) {
	parts := strings.SplitN(reply, "|", 2)
	name := strings.TrimSpace(parts[0])
	category := ""
	if len(parts) > 1 {
		category = strings.TrimSpace(parts[1])
	}
	return name, category
}
