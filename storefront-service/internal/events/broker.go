// Package events fans cart changes out to in-process subscribers such as
// the server-sent events stream.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindItemAdded   Kind = "item_added"
	KindItemUpdated Kind = "item_updated"
	KindItemRemoved Kind = "item_removed"
	KindCleared     Kind = "cleared"
)

type CartChanged struct {
	Kind      Kind            `json:"kind"`
	CartID    string          `json:"cart_id"`
	Version   int64           `json:"version"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	At        time.Time       `json:"at"`
}

const subscriberBuffer = 8

// Broker delivers events per cart id. Publish never blocks: a subscriber that
// falls behind loses its oldest pending event.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[chan CartChanged]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[chan CartChanged]struct{})}
}

// Subscribe returns a channel of changes to cartID. The channel is closed
// once ctx is done.
func (b *Broker) Subscribe(ctx context.Context, cartID string) <-chan CartChanged {
	ch := make(chan CartChanged, subscriberBuffer)

	b.mu.Lock()
	if b.subs[cartID] == nil {
		b.subs[cartID] = make(map[chan CartChanged]struct{})
	}
	b.subs[cartID][ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs[cartID], ch)
		if len(b.subs[cartID]) == 0 {
			delete(b.subs, cartID)
		}
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

func (b *Broker) Publish(ev CartChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[ev.CartID] {
		for {
			select {
			case ch <- ev:
			default:
				select {
				case <-ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribers reports how many subscribers listen on cartID.
func (b *Broker) Subscribers(cartID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[cartID])
}
