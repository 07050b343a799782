package model

// LedgerRow 台账中的一行持久化记录（A~I 列）
type LedgerRow struct {
	Date             string  // A: 订单日期
	OrderID          string  // B: 订单号
	SourceTag        string  // C: 来源标记
	StatusCell       string  // D: 状态单元格（TRUE/FALSE/文本）
	FormulaCell      string  // E: 订单汇总公式（仅订单首行非空）
	Price            float64 // F: 单价
	ResolvedName     string  // G: 目录名称
	ResolvedCategory string  // H: 目录类别
	SplitFlags       string  // I: 拆分标记，如 "2/3"
}

// OrderRowRange 同一订单在台账中占据的连续行区间（闭区间，1 基）
type OrderRowRange struct {
	OrderID  string
	StartRow int
	EndRow   int
}

// Len 区间内的行数
func (r OrderRowRange) Len() int {
	if r.EndRow < r.StartRow {
		return 0
	}
	return r.EndRow - r.StartRow + 1
}

// Contains 行号是否落在区间内
func (r OrderRowRange) Contains(row int) bool {
	return row >= r.StartRow && row <= r.EndRow
}
