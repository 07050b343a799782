package model

import "strings"

// Status 商品单元的规范状态
type Status string

const (
	StatusReceived      Status = "received"
	StatusReadyForPickup Status = "ready_for_pickup"
	StatusCancelled     Status = "cancelled"
	StatusPendingPickup Status = "pending_pickup"
)

// statusPriority 状态优先级：数值越小越优先（拆分组状态对齐时取最小者）
var statusPriority = map[Status]int{
	StatusReceived:       1,
	StatusReadyForPickup: 2,
	StatusCancelled:      3,
	StatusPendingPickup:  4,
}

// Priority 返回状态优先级；未知状态排在已知状态之后
func (s Status) Priority() int {
	if p, ok := statusPriority[s]; ok {
		return p
	}
	return 99
}

// Known 是否为四种规范状态之一
func (s Status) Known() bool {
	_, ok := statusPriority[s]
	return ok
}

// statusAliases 供应商页面文案到规范状态的映射
var statusAliases = map[string]Status{
	"received":         StatusReceived,
	"ready_for_pickup": StatusReadyForPickup,
	"cancelled":        StatusCancelled,
	"canceled":         StatusCancelled,
	"pending_pickup":   StatusPendingPickup,
	"in_transit":       StatusPendingPickup,
	"получен":          StatusReceived,
	"забрать":          StatusReadyForPickup,
	"в пункте выдачи":  StatusReadyForPickup,
	"отменен":          StatusCancelled,
	"отменён":          StatusCancelled,
	"в пути":           StatusPendingPickup,
	"已收货":              StatusReceived,
	"待取货":              StatusReadyForPickup,
	"已取消":              StatusCancelled,
	"运输中":              StatusPendingPickup,
}

// NormalizeStatus 将抓取到的状态文案归一化为规范状态；无法识别时原样保留
func NormalizeStatus(raw string) Status {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := statusAliases[key]; ok {
		return s
	}
	return Status(key)
}

// StatusCell 台账 D 列的显示值：已收货打勾，待取货明确不打勾，其余保留文本
func StatusCell(s Status) string {
	switch s {
	case StatusReceived:
		return "TRUE"
	case StatusReadyForPickup:
		return "FALSE"
	default:
		return string(s)
	}
}

// StatusFromCell StatusCell 的逆映射，读台账区间重建实际状态时使用
func StatusFromCell(cell string) Status {
	switch strings.ToUpper(strings.TrimSpace(cell)) {
	case "TRUE":
		return StatusReceived
	case "FALSE":
		return StatusReadyForPickup
	default:
		return Status(strings.TrimSpace(cell))
	}
}
