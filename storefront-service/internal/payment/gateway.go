// Package payment charges shoppers through a hosted payment page and waits
// for the outcome.
package payment

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess   Status = "success"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

type ChargeRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Email     string
	Reference string
	// OnAuthorize receives the URL the shopper must visit to pay. It is
	// called before Charge starts waiting.
	OnAuthorize func(authorizationURL string)
}

type ChargeResult struct {
	Status           Status
	PaymentReference string
	Reason           string
}

// Gateway charges a shopper. Charge blocks until the payment succeeds,
// fails, is cancelled through Cancel, or ctx is done. A done ctx is reported
// as StatusCancelled unless an outcome had already been delivered. A returned
// error means the charge could not be started.
type Gateway interface {
	Name() string
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Cancel(reference string) bool
}

var (
	_ Gateway = (*Paystack)(nil)
	_ Gateway = (*Simulated)(nil)
)

type waiter struct {
	ch       chan ChargeResult
	amount   int64
	currency string
}

// waiters parks pending charges by reference until their outcome arrives.
type waiters struct {
	mu sync.Mutex
	m  map[string]*waiter
}

func newWaiters() *waiters {
	return &waiters{m: make(map[string]*waiter)}
}

func (w *waiters) register(reference string, amount int64, currency string) <-chan ChargeResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt := &waiter{ch: make(chan ChargeResult, 1), amount: amount, currency: currency}
	w.m[reference] = wt
	return wt.ch
}

func (w *waiters) lookup(reference string) (*waiter, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, ok := w.m[reference]
	return wt, ok
}

// resolve delivers the first outcome for reference. Later outcomes and
// unknown references are ignored.
func (w *waiters) resolve(reference string, res ChargeResult) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	wt, ok := w.m[reference]
	if !ok {
		return false
	}
	delete(w.m, reference)
	wt.ch <- res
	return true
}

func (w *waiters) forget(reference string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.m, reference)
}

// await blocks until reference is resolved or ctx is done. When ctx ends the
// waiter is withdrawn first, so an outcome delivered before that point is
// returned instead of a cancellation.
func (w *waiters) await(ctx context.Context, reference string, ch <-chan ChargeResult) ChargeResult {
	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
	}

	w.forget(reference)
	select {
	case res := <-ch:
		return res
	default:
		return ChargeResult{Status: StatusCancelled, Reason: ctx.Err().Error()}
	}
}
