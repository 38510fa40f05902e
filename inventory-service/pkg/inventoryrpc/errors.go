package inventoryrpc

import (
	"fmt"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ErrorDomain             = "inventory.lagc"
	ReasonInsufficientStock = "INSUFFICIENT_STOCK"
)

// InsufficientStockError builds a FailedPrecondition status that carries the
// available quantity in an ErrorInfo detail.
func InsufficientStockError(productID string, requested, available int32) error {
	st := status.New(codes.FailedPrecondition,
		fmt.Sprintf("insufficient stock for %s: requested %d, available %d", productID, requested, available))
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason: ReasonInsufficientStock,
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"product_id": productID,
			"requested":  strconv.Itoa(int(requested)),
			"available":  strconv.Itoa(int(available)),
		},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// StockShortage is the decoded form of an InsufficientStockError status.
type StockShortage struct {
	ProductID string
	Requested int32
	Available int32
}

// ParseInsufficientStock extracts the shortage carried by err, if any.
func ParseInsufficientStock(err error) (StockShortage, bool) {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.FailedPrecondition {
		return StockShortage{}, false
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetReason() != ReasonInsufficientStock {
			continue
		}
		requested, _ := strconv.Atoi(info.GetMetadata()["requested"])
		available, _ := strconv.Atoi(info.GetMetadata()["available"])
		return StockShortage{
			ProductID: info.GetMetadata()["product_id"],
			Requested: int32(requested),
			Available: int32(available),
		}, true
	}
	return StockShortage{}, false
}
