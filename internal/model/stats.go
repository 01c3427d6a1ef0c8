package model

// SaleStats is the derived aggregate the Stats Aggregator computes and
// caches under sale_stats:<saleId> (spec.md §4.I).
type SaleStats struct {
	SaleID            string  `json:"saleId"`
	TotalOrders       int     `json:"totalOrders"`
	Confirmed         int     `json:"confirmed"`
	Pending           int     `json:"pending"`
	Failed            int     `json:"failed"`
	TotalQuantity     int     `json:"totalQuantity"`
	AvailableQuantity int     `json:"availableQuantity"`
	SoldQuantity      int     `json:"soldQuantity"`
	ConversionRate    float64 `json:"conversionRate"`
}
