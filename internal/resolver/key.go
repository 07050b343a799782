package resolver

import "strings"

// NormalizeName 归一化文本：转小写并压缩空白
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Key 构造身份键：normalize(name)+"|"+normalize(color)
// 颜色为空时只用名称，避免所有无颜色商品都带一个悬空分隔符
func Key(name, color string) string {
	n := NormalizeName(name)
	c := NormalizeName(color)
	if c == "" {
		return n
	}
	return n + "|" + c
}
