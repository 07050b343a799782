package decompose

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SplitUnits 把总价等分为 n 份：每份四舍五入到分，最后一份吸收尾差
// 保证 sum(units) 与 total 精确相等（分级精度）
func SplitUnits(total float64, n int) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("split count %d must be at least 2", n)
	}
	if total <= 0 {
		return nil, fmt.Errorf("split total %.2f must be positive", total)
	}

	d := decimal.NewFromFloat(total).Round(2)
	unit := d.Div(decimal.NewFromInt(int64(n))).Round(2)
	last := d.Sub(unit.Mul(decimal.NewFromInt(int64(n - 1))))
	if !unit.IsPositive() || !last.IsPositive() {
		return nil, fmt.Errorf("split of %.2f into %d units leaves a non-positive remainder", total, n)
	}

	units := make([]float64, n)
	for i := 0; i < n-1; i++ {
		units[i], _ = unit.Float64()
	}
	units[n-1], _ = last.Float64()
	return units, nil
}
