package ledger

import (
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"ordersync/internal/model"
)

// 台账列布局（A~I）
const (
	colDate        = "A"
	colOrderID     = "B"
	colSourceTag   = "C"
	colStatus      = "D"
	colFormula     = "E"
	colPrice       = "F"
	colName        = "G"
	colCategory    = "H"
	colSplitFlags  = "I"
	lastColumn     = colSplitFlags
	headerRowCount = 1
)

var headerTitles = []string{"日期", "订单号", "来源", "已收货", "汇总", "价格", "商品", "类别", "拆分"}

// Book 台账工作簿的读写封装
type Book struct {
	f     *excelize.File
	path  string
	sheet string
	log   *zap.Logger
}

// Open 打开台账工作簿；文件或工作表不存在时创建并写入表头
func Open(path, sheet string, log *zap.Logger) (*Book, error) {
	var f *excelize.File
	if _, err := os.Stat(path); err == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open ledger workbook %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		f = excelize.NewFile()
	} else {
		return nil, fmt.Errorf("failed to stat ledger workbook %s: %w", path, err)
	}

	b := &Book{f: f, path: path, sheet: sheet, log: log}
	if err := b.ensureSheet(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return b, nil
}

func (b *Book) ensureSheet() error {
	idx, err := b.f.GetSheetIndex(b.sheet)
	if err != nil {
		return fmt.Errorf("failed to look up sheet %q: %w", b.sheet, err)
	}
	if idx >= 0 {
		return nil
	}
	if _, err := b.f.NewSheet(b.sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", b.sheet, err)
	}
	for i, title := range headerTitles {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := b.f.SetCellValue(b.sheet, cell, title); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}
	b.log.Info("已创建台账工作表", zap.String("path", b.path), zap.String("sheet", b.sheet))
	return nil
}

// Save 落盘
func (b *Book) Save() error {
	if err := b.f.SaveAs(b.path); err != nil {
		return fmt.Errorf("failed to save ledger workbook %s: %w", b.path, err)
	}
	return nil
}

// Close 释放工作簿
func (b *Book) Close() error {
	return b.f.Close()
}

// ReadRows 整表读出（含表头行，1 基行号与切片下标+1 对应）
func (b *Book) ReadRows() ([][]string, error) {
	rows, err := b.f.GetRows(b.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger sheet %q: %w", b.sheet, err)
	}
	return rows, nil
}

// cellString 读单元格文本
func (b *Book) cellString(col string, row int) (string, error) {
	v, err := b.f.GetCellValue(b.sheet, fmt.Sprintf("%s%d", col, row))
	if err != nil {
		return "", fmt.Errorf("failed to read cell %s%d: %w", col, row, err)
	}
	return v, nil
}

// orderIDAt 读指定行的订单号列
func (b *Book) orderIDAt(row int) (string, error) {
	v, err := b.cellString(colOrderID, row)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(v), nil
}

// insertRows 在 row 前插入 n 个空行
func (b *Book) insertRows(row, n int) error {
	if err := b.f.InsertRows(b.sheet, row, n); err != nil {
		return fmt.Errorf("failed to insert %d rows at %d: %w", n, row, err)
	}
	return nil
}

// removeRow 删除指定行
func (b *Book) removeRow(row int) error {
	if err := b.f.RemoveRow(b.sheet, row); err != nil {
		return fmt.Errorf("failed to remove row %d: %w", row, err)
	}
	return nil
}

// writeRow 覆写一整行（A~I）
func (b *Book) writeRow(row int, r model.LedgerRow) error {
	cells := []struct {
		col string
		val interface{}
	}{
		{colDate, r.Date},
		{colOrderID, r.OrderID},
		{colSourceTag, r.SourceTag},
		{colStatus, r.StatusCell},
		{colPrice, r.Price},
		{colName, r.ResolvedName},
		{colCategory, r.ResolvedCategory},
		{colSplitFlags, r.SplitFlags},
	}
	for _, c := range cells {
		if err := b.f.SetCellValue(b.sheet, fmt.Sprintf("%s%d", c.col, row), c.val); err != nil {
			return fmt.Errorf("failed to write cell %s%d: %w", c.col, row, err)
		}
	}
	if r.FormulaCell != "" {
		if err := b.f.SetCellFormula(b.sheet, fmt.Sprintf("%s%d", colFormula, row), r.FormulaCell); err != nil {
			return fmt.Errorf("failed to write formula at row %d: %w", row, err)
		}
	} else if err := b.f.SetCellValue(b.sheet, fmt.Sprintf("%s%d", colFormula, row), ""); err != nil {
		return fmt.Errorf("failed to clear formula at row %d: %w", row, err)
	}
	return nil
}

// groupBorderStyle 分组边界的底边框样式（懒创建）
func (b *Book) groupBorderStyle() (int, error) {
	return b.f.NewStyle(&excelize.Style{
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
}

// plainStyle 无边框样式，重写区间时先清掉旧边界
func (b *Book) plainStyle() (int, error) {
	return b.f.NewStyle(&excelize.Style{})
}

// setRowStyle 给一行 A~I 套样式
func (b *Book) setRowStyle(row, styleID int) error {
	top := fmt.Sprintf("%s%d", colDate, row)
	bottom := fmt.Sprintf("%s%d", lastColumn, row)
	if err := b.f.SetCellStyle(b.sheet, top, bottom, styleID); err != nil {
		return fmt.Errorf("failed to style row %d: %w", row, err)
	}
	return nil
}

// ensureCapacity 尾部空行缓冲不足一个块时按块扩展工作表维度
// 返回是否实际扩展了维度
func (b *Book) ensureCapacity(lastUsedRow, block int) (bool, error) {
	if block <= 0 {
		return false, nil
	}
	dim, err := b.f.GetSheetDimension(b.sheet)
	if err != nil {
		return false, fmt.Errorf("failed to read sheet dimension: %w", err)
	}
	currentLast := 0
	if parts := strings.Split(dim, ":"); len(parts) == 2 {
		if _, r, err := excelize.CellNameToCoordinates(parts[1]); err == nil {
			currentLast = r
		}
	}
	if currentLast-lastUsedRow >= block {
		return false, nil
	}
	target := lastUsedRow + block
	newDim := fmt.Sprintf("A1:%s%d", lastColumn, target)
	if err := b.f.SetSheetDimension(b.sheet, newDim); err != nil {
		return false, fmt.Errorf("failed to grow sheet dimension to %s: %w", newDim, err)
	}
	b.log.Debug("已扩展台账容量", zap.Int("last_used_row", lastUsedRow), zap.Int("capacity_rows", target))
	return true, nil
}
