package model

// Order 一个抓取到的订单及其行项目
type Order struct {
	ID    string     `json:"order_number"`
	Date  string     `json:"date"`
	Items []LineItem `json:"items"`
}

// LineItem 抓取组件产出的原始行项目，核心内部不修改
type LineItem struct {
	OrderID   string  `json:"order_number"`
	Name      string  `json:"name"`
	Color     string  `json:"color,omitempty"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
	Status    Status  `json:"status"`
}

// Total 行项目总价
func (it LineItem) Total() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

// CatalogEntry 商品目录条目（外部加载，核心只读）
type CatalogEntry struct {
	Name           string  `json:"name"`
	Category       string  `json:"type"`
	ReferencePrice float64 `json:"price,omitempty"`
}

// Mapping 身份键到目录身份的缓存条目
type Mapping struct {
	ResolvedName     string `json:"mapped_name"`
	ResolvedCategory string `json:"mapped_type"`
	OriginalName     string `json:"original_name,omitempty"`
	Color            string `json:"color,omitempty"`
}

// BundleComponent 组合包的单个组件及人工定价
type BundleComponent struct {
	ResolvedName     string  `json:"mapped_name"`
	ResolvedCategory string  `json:"mapped_type"`
	Price            float64 `json:"price"`
}

// Bundle 一个组合商品到多个目录组件的持久化拆解
type Bundle struct {
	OriginalName string            `json:"original_name"`
	Components   []BundleComponent `json:"components"`
	TotalPrice   float64           `json:"total_price"`
	CreatedAt    string            `json:"created_at"`
	LastUsedAt   string            `json:"last_used"`
}
