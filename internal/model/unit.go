package model

import "strconv"

// UnitRow 展开后的叶子记录：一行对应一个物理单元
// 三种来源：普通行项目按数量复制、组合包组件、等额拆分出的合成单元
type UnitRow struct {
	OrderID          string  `json:"order_number"`
	OrderDate        string  `json:"date"`
	SourceName       string  `json:"name"`
	Color            string  `json:"color,omitempty"`
	ResolvedName     string  `json:"mapped_name"`
	ResolvedCategory string  `json:"mapped_type"`
	Price            float64 `json:"price"`
	Status           Status  `json:"status"`

	// 拆分标记：SplitTotal>1 时本行属于一个拆分组
	SplitIndex    int     `json:"split_index,omitempty"`
	SplitTotal    int     `json:"split_total,omitempty"`
	OriginalPrice float64 `json:"original_price,omitempty"`

	// 组合包标记
	BundleKey string `json:"bundle_key,omitempty"`
}

// IsSplit 本行是否属于等额拆分组
func (u UnitRow) IsSplit() bool {
	return u.SplitTotal > 1
}

// SplitFlags 台账 I 列的拆分标记文本，如 "2/3"；非拆分行为空
func (u UnitRow) SplitFlags() string {
	if !u.IsSplit() {
		return ""
	}
	return strconv.Itoa(u.SplitIndex) + "/" + strconv.Itoa(u.SplitTotal)
}
