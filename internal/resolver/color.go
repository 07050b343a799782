package resolver

import "strings"

// 规范颜色值
const (
	ColorBlack = "Black"
	ColorWhite = "White"
	// ColorUnresolved 颜色词表无法判定时的哨兵值，折入身份键前必须人工澄清
	ColorUnresolved = "UNRESOLVED_COLOR"
)

// 深色系词表 → Black
var darkWords = []string{
	"black", "dark", "chrome", "graphite", "gray", "grey", "charcoal",
	"чёрный", "черный", "темный", "тёмный", "серый", "графит",
	"黑", "深", "灰", "石墨",
}

// 浅色系词表 → White
var lightWords = []string{
	"white", "light", "ivory", "snow", "cream",
	"белый", "светлый", "молочный",
	"白", "浅", "米",
}

// NormalizeColor 纯函数：按词表把颜色文案归一化为 Black/White，否则返回哨兵值
// 空输入返回空串（无颜色商品不参与颜色澄清）
func NormalizeColor(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	for _, w := range darkWords {
		if strings.Contains(s, w) {
			return ColorBlack
		}
	}
	for _, w := range lightWords {
		if strings.Contains(s, w) {
			return ColorWhite
		}
	}
	return ColorUnresolved
}
