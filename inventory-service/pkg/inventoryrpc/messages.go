package inventoryrpc

type StockInfo struct {
	ProductID   string `json:"product_id"`
	Total       int32  `json:"total"`
	Reserved    int32  `json:"reserved"`
	Available   int32  `json:"available"`
	LastUpdated string `json:"last_updated,omitempty"`
}

type GetStockRequest struct {
	ProductIDs []string `json:"product_ids"`
}

type GetStockResponse struct {
	Stocks []*StockInfo `json:"stocks"`
}

type GetAvailableRequest struct {
	ProductID string `json:"product_id"`
}

type GetAvailableResponse struct {
	ProductID string `json:"product_id"`
	Available int32  `json:"available"`
}

type ReserveRequest struct {
	CheckoutID string `json:"checkout_id"`
	ProductID  string `json:"product_id"`
	Quantity   int32  `json:"quantity"`
}

type ReserveResponse struct {
	ReservationID string `json:"reservation_id"`
	ExpiresAt     string `json:"expires_at"`
}

type CommitRequest struct {
	ReservationID string `json:"reservation_id"`
}

type CommitResponse struct {
	Success bool `json:"success"`
}

type ReleaseRequest struct {
	ReservationID string `json:"reservation_id"`
}

type ReleaseResponse struct {
	Success bool `json:"success"`
}

type RestockRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type RestockResponse struct {
	Stock *StockInfo `json:"stock"`
}

type ListStockRequest struct{}

type ListStockResponse struct {
	Stocks []*StockInfo `json:"stocks"`
}

// SetStockRequest replaces a product's total. Repeating it has no further effect.
type SetStockRequest struct {
	ProductID string `json:"product_id"`
	Total     int32  `json:"total"`
}

type SetStockResponse struct {
	Stock *StockInfo `json:"stock"`
}
