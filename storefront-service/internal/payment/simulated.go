package payment

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
)

var refusals = []string{
	"unknown reason",
	"insufficient funds",
	"card expired",
	"do not honor",
	"suspected fraud",
	"limit exceeded",
}

// Simulated settles charges locally after Delay. Rolls below SuccessRatio
// succeed and the rest are declined with a random refusal.
type Simulated struct {
	SuccessRatio float64
	Delay        time.Duration
	roll         func() float64
	waiters      *waiters
}

func NewSimulated(successRatio float64, delay time.Duration) *Simulated {
	return &Simulated{
		SuccessRatio: successRatio,
		Delay:        delay,
		roll:         rand.Float64,
		waiters:      newWaiters(),
	}
}

func (s *Simulated) Name() string { return "simulated" }

func (s *Simulated) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	ch := s.waiters.register(req.Reference, pricing.ToMinorUnits(req.Amount), req.Currency)
	defer s.waiters.forget(req.Reference)

	if req.OnAuthorize != nil {
		req.OnAuthorize("simulated://pay/" + req.Reference)
	}

	timer := time.NewTimer(s.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.waiters.resolve(req.Reference, calcOutcome(s.roll(), s.SuccessRatio))
	case <-ctx.Done():
	case res := <-ch:
		return res, nil
	}
	return s.waiters.await(ctx, req.Reference, ch), nil
}

func (s *Simulated) Cancel(reference string) bool {
	return s.waiters.resolve(reference, ChargeResult{Status: StatusCancelled, Reason: "closed by customer"})
}

func calcOutcome(roll, successRatio float64) ChargeResult {
	if roll < successRatio {
		return ChargeResult{Status: StatusSuccess, PaymentReference: "SIM-" + uuid.NewString()}
	}
	span := 1 - successRatio
	idx := 0
	if span > 0 {
		idx = int((roll - successRatio) / span * float64(len(refusals)))
	}
	if idx >= len(refusals) {
		idx = 0
	}
	return ChargeResult{Status: StatusFailed, Reason: refusals[idx]}
}
