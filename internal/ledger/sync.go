package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ordersync/internal/model"
)

// ErrRangeCorrupt 订单区间与其它订单交错，拒绝对其做任何破坏性写入
var ErrRangeCorrupt = errors.New("order row range is corrupt")

// Outcome 单个订单的同步终态
type Outcome string

const (
	OutcomeAppended Outcome = "APPENDED"
	OutcomeSkipped  Outcome = "SKIPPED"
	OutcomeReplaced Outcome = "REPLACED"
	OutcomeReported Outcome = "REPORTED"
	OutcomeFailed   Outcome = "FAILED"
)

// OrderResult 单个订单的同步结果
type OrderResult struct {
	OrderID     string
	Outcome     Outcome
	RowsAdded   int
	RowsRemoved int
	Err         error
}

// Summary 一次同步的汇总计数
type Summary struct {
	Appended    int `json:"appended"`
	Replaced    int `json:"replaced"`
	Skipped     int `json:"skipped"`
	Corrupt     int `json:"corrupt"`
	Failed      int `json:"failed"`
	RowsAdded   int `json:"rows_added"`
	RowsRemoved int `json:"rows_removed"`
}

// HasChanges 本次同步是否产生了任何写入
func (s Summary) HasChanges() bool {
	return s.Appended > 0 || s.Replaced > 0
}

// Synchronizer 台账同步器：按订单做最小化的插入/删除/重写
type Synchronizer struct {
	book          *Book
	sourceTag     string
	capacityBlock int
	log           *zap.Logger
}

// NewSynchronizer 创建同步器
func NewSynchronizer(book *Book, sourceTag string, capacityBlock int, log *zap.Logger) *Synchronizer {
	return &Synchronizer{book: book, sourceTag: sourceTag, capacityBlock: capacityBlock, log: log}
}

// Sync 把一批叶子单元同步进台账并落盘
// 单个订单的失败只影响该订单，批次继续
func (s *Synchronizer) Sync(units []model.UnitRow) (Summary, []OrderResult, error) {
	byOrder := make(map[string][]model.UnitRow)
	for _, u := range units {
		byOrder[u.OrderID] = append(byOrder[u.OrderID], u)
	}

	sheet, err := s.book.ReadRows()
	if err != nil {
		return Summary{}, nil, err
	}
	index, corrupt := buildIndex(sheet)

	var existing, fresh []string
	for oid := range byOrder {
		if _, ok := index[oid]; ok {
			existing = append(existing, oid)
		} else {
			fresh = append(fresh, oid)
		}
	}
	// 既有订单从下往上处理：区间内的插入/删除不影响其上方的区间
	sort.Slice(existing, func(i, j int) bool { return index[existing[i]].StartRow > index[existing[j]].StartRow })
	sort.Strings(fresh)

	var summary Summary
	var results []OrderResult

	for _, oid := range existing {
		res := s.syncExisting(oid, byOrder[oid], index[oid], corrupt[oid])
		results = append(results, res)
		tally(&summary, res)
	}

	for _, oid := range fresh {
		res := s.appendOrder(oid, byOrder[oid])
		results = append(results, res)
		tally(&summary, res)
	}

	grew := false
	if s.capacityBlock > 0 {
		after, err := s.book.ReadRows()
		if err != nil {
			return summary, results, err
		}
		grew, err = s.book.ensureCapacity(lastUsedRow(after), s.capacityBlock)
		if err != nil {
			return summary, results, err
		}
	}

	// 全部订单都跳过且容量无变化时不落盘，不改动台账文件
	if !summary.HasChanges() && !grew {
		return summary, results, nil
	}

	if err := s.book.Save(); err != nil {
		return summary, results, err
	}
	return summary, results, nil
}

func tally(sum *Summary, res OrderResult) {
	switch res.Outcome {
	case OutcomeAppended:
		sum.Appended++
	case OutcomeReplaced:
		sum.Replaced++
	case OutcomeSkipped:
		sum.Skipped++
	case OutcomeReported:
		sum.Corrupt++
	case OutcomeFailed:
		sum.Failed++
	}
	sum.RowsAdded += res.RowsAdded
	sum.RowsRemoved += res.RowsRemoved
}

// syncExisting 同步索引中已有的订单
func (s *Synchronizer) syncExisting(oid string, units []model.UnitRow, r model.OrderRowRange, knownCorrupt bool) OrderResult {
	if knownCorrupt {
		s.log.Warn("订单区间与其它订单交错，跳过并上报",
			zap.String("order_id", oid), zap.Int("start_row", r.StartRow), zap.Int("end_row", r.EndRow))
		return OrderResult{OrderID: oid, Outcome: OutcomeReported, Err: ErrRangeCorrupt}
	}

	desired := desiredMultiset(units)
	actual, err := s.book.actualMultiset(r)
	if err != nil {
		return OrderResult{OrderID: oid, Outcome: OutcomeFailed, Err: err}
	}
	if sameMultiset(desired, actual) {
		return OrderResult{OrderID: oid, Outcome: OutcomeSkipped}
	}

	// 破坏性写入前再次校验区间连续性
	if err := s.revalidate(oid, r); err != nil {
		s.log.Warn("区间连续性校验失败，跳过并上报", zap.String("order_id", oid), zap.Error(err))
		return OrderResult{OrderID: oid, Outcome: OutcomeReported, Err: err}
	}

	rows := materializeRows(units, s.sourceTag)
	added, removed := 0, 0
	delta := len(rows) - r.Len()
	switch {
	case delta > 0:
		if err := s.book.insertRows(r.StartRow, delta); err != nil {
			return OrderResult{OrderID: oid, Outcome: OutcomeFailed, Err: err}
		}
		added = delta
	case delta < 0:
		for i := 0; i < -delta; i++ {
			if err := s.book.removeRow(r.EndRow - i); err != nil {
				return OrderResult{OrderID: oid, Outcome: OutcomeFailed, Err: err}
			}
		}
		removed = -delta
	}

	if err := s.writeRange(r.StartRow, rows); err != nil {
		return OrderResult{OrderID: oid, Outcome: OutcomeFailed, Err: err}
	}
	s.log.Info("订单已重写", zap.String("order_id", oid),
		zap.Int("rows", len(rows)), zap.Int("added", added), zap.Int("removed", removed))
	return OrderResult{OrderID: oid, Outcome: OutcomeReplaced, RowsAdded: added, RowsRemoved: removed}
}

// appendOrder 把新订单追加到最后一个非空行之后
func (s *Synchronizer) appendOrder(oid string, units []model.UnitRow) OrderResult {
	sheet, err := s.book.ReadRows()
	if err != nil {
		return OrderResult{OrderID: oid, Outcome: OutcomeFailed, Err: err}
	}
	start := lastUsedRow(sheet) + 1
	if start <= headerRowCount {
		start = headerRowCount + 1
	}

	rows := materializeRows(units, s.sourceTag)
	if err := s.writeRange(start, rows); err != nil {
		return OrderResult{OrderID: oid, Outcome: OutcomeFailed, Err: err}
	}
	s.log.Info("订单已追加", zap.String("order_id", oid), zap.Int("rows", len(rows)), zap.Int("start_row", start))
	return OrderResult{OrderID: oid, Outcome: OutcomeAppended, RowsAdded: len(rows)}
}

// revalidate 区间内每一行都必须属于该订单
func (s *Synchronizer) revalidate(oid string, r model.OrderRowRange) error {
	for row := r.StartRow; row <= r.EndRow; row++ {
		got, err := s.book.orderIDAt(row)
		if err != nil {
			return err
		}
		if got != oid {
			return fmt.Errorf("row %d belongs to %q, not %q: %w", row, got, oid, ErrRangeCorrupt)
		}
	}
	return nil
}

// writeRange 覆写一个订单区间：行内容、首行汇总公式、名称分组边界
func (s *Synchronizer) writeRange(start int, rows []model.LedgerRow) error {
	if len(rows) == 0 {
		return nil
	}
	end := start + len(rows) - 1
	rows[0].FormulaCell = fmt.Sprintf("SUM(%s%d:%s%d)", colPrice, start, colPrice, end)

	plain, err := s.book.plainStyle()
	if err != nil {
		return fmt.Errorf("failed to build plain style: %w", err)
	}
	border, err := s.book.groupBorderStyle()
	if err != nil {
		return fmt.Errorf("failed to build border style: %w", err)
	}

	for i, row := range rows {
		num := start + i
		if err := s.book.writeRow(num, row); err != nil {
			return err
		}
		style := plain
		if isGroupBoundary(rows, i) {
			style = border
		}
		if err := s.book.setRowStyle(num, style); err != nil {
			return err
		}
	}
	return nil
}

// isGroupBoundary 名称分组的最后一行（含订单最后一行）画底边框
func isGroupBoundary(rows []model.LedgerRow, i int) bool {
	if i == len(rows)-1 {
		return true
	}
	return !strings.EqualFold(rows[i].ResolvedName, rows[i+1].ResolvedName)
}
