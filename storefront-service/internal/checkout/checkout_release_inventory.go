package checkout

import (
	"context"
	"time"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
)

// releaseInventory returns every held line to the pool. Releases run even if
// ctx is already cancelled; a hold that cannot be released expires on the
// ledger.
func (s *Service) releaseInventory(ctx context.Context, session *domain.CheckoutSession) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	for i := range session.Lines {
		line := &session.Lines[i]
		if line.ReservationID == "" {
			continue
		}
		if err := s.inventory.Release(ctx, line.ReservationID); err != nil {
			s.logger.WarnContext(ctx, "failed to release reservation",
				"checkout_id", session.ID, "reservation_id", line.ReservationID, "error", err)
			continue
		}
		line.ReservationID = ""
	}
}
