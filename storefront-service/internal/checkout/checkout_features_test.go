package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/payment"
)

type checkoutTestContext struct {
	products map[string]*domain.Product
	ledger   *fakeLedger
	carts    *fakeCarts
	store    *memStore
	gateway  *recordingGateway
	discount decimal.Decimal
	user     *domain.User

	svc     *Service
	session *domain.CheckoutSession
	err     error
}

// recordingGateway is a Simulated gateway that remembers the last amount.
type recordingGateway struct {
	*payment.Simulated
	charged decimal.Decimal
}

func (g *recordingGateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	g.charged = req.Amount
	return g.Simulated.Charge(ctx, req)
}

func (c *checkoutTestContext) reset() {
	c.products = map[string]*domain.Product{}
	c.ledger = newFakeLedger(map[string]int{})
	c.carts = &fakeCarts{carts: map[string]*domain.Cart{"cart-1": domain.NewCart("cart-1", time.Now())}}
	c.store = newMemStore()
	c.gateway = &recordingGateway{Simulated: payment.NewSimulated(1, time.Millisecond)}
	c.discount = decimal.Zero
	c.user = &domain.User{ID: "guest-user", Email: "guest@example.com"}
	c.svc = nil
	c.session = nil
	c.err = nil
}

func (c *checkoutTestContext) service() *Service {
	return NewService(c.store, c.ledger, c.gateway, c.carts, fixedDiscount{percent: c.discount},
		Config{Currency: "GHS", HoldTimeout: time.Minute, ReadyTimeout: 2 * time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (c *checkoutTestContext) theCatalogHasPricedWithSizes(id string, price int, sizes string) error {
	c.products[id] = &domain.Product{ID: id, Name: id, Price: decimal.NewFromInt(int64(price)), Sizes: strings.Split(sizes, ",")}
	return nil
}

func (c *checkoutTestContext) theCatalogHasPriced(id string, price int) error {
	c.products[id] = &domain.Product{ID: id, Name: id, Price: decimal.NewFromInt(int64(price))}
	return nil
}

func (c *checkoutTestContext) theLedgerHolds(n int, id string) error {
	c.ledger.available[id] = n
	return nil
}

func (c *checkoutTestContext) iAmAMemberWithDiscount(percent int) error {
	c.discount = decimal.NewFromInt(int64(percent))
	c.user = &domain.User{ID: "member-1", Email: "ama@example.com"}
	return nil
}

func (c *checkoutTestContext) cart() *domain.Cart {
	return c.carts.carts["cart-1"]
}

func (c *checkoutTestContext) iAddInSize(n int, id, size string) error {
	p, ok := c.products[id]
	if !ok {
		return fmt.Errorf("unknown product %q", id)
	}
	return c.cart().AddItem(p, n, domain.Variant{Size: size})
}

func (c *checkoutTestContext) iAdd(n int, id string) error {
	return c.iAddInSize(n, id, "")
}

func (c *checkoutTestContext) totals() (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	t, err := c.cart().Totals(c.discount)
	return t.Subtotal, t.DiscountAmount, t.Total, err
}

func expectMoney(name string, got decimal.Decimal, want string) error {
	if got.StringFixed(2) != want {
		return fmt.Errorf("%s: expected %s, got %s", name, want, got.StringFixed(2))
	}
	return nil
}

func (c *checkoutTestContext) theSubtotalIs(want string) error {
	sub, _, _, err := c.totals()
	if err != nil {
		return err
	}
	return expectMoney("subtotal", sub, want)
}

func (c *checkoutTestContext) theDiscountIs(want string) error {
	_, disc, _, err := c.totals()
	if err != nil {
		return err
	}
	return expectMoney("discount", disc, want)
}

func (c *checkoutTestContext) theTotalIs(want string) error {
	_, _, total, err := c.totals()
	if err != nil {
		return err
	}
	return expectMoney("total", total, want)
}

func (c *checkoutTestContext) request() domain.CheckoutRequest {
	return domain.CheckoutRequest{CartID: "cart-1", User: c.user, IdempotencyKey: "feature-key"}
}

func (c *checkoutTestContext) iCheckOutAndPay() error {
	c.session, c.err = c.service().Checkout(context.Background(), c.request())
	if c.session == nil && c.err != nil {
		return c.err
	}
	return nil
}

func (c *checkoutTestContext) iBeginCheckout() error {
	c.gateway.Simulated = payment.NewSimulated(1, time.Hour)
	c.svc = c.service()
	c.session, c.err = c.svc.Begin(context.Background(), c.request())
	return c.err
}

func (c *checkoutTestContext) iCloseThePaymentPage() error {
	if _, err := c.svc.Cancel(context.Background(), c.session.Reference); err != nil {
		return err
	}
	c.svc.Wait()
	stored := c.store.session(c.session.ID)
	c.session = &stored
	return nil
}

func (c *checkoutTestContext) theCheckoutIs(status string) error {
	if string(c.session.Status) != status {
		return fmt.Errorf("expected status %s, got %s (%s)", status, c.session.Status, c.session.FailureDetail)
	}
	return nil
}

func (c *checkoutTestContext) theCheckoutIsBecauseOf(status, reason string) error {
	if err := c.theCheckoutIs(status); err != nil {
		return err
	}
	if string(c.session.FailureReason) != reason {
		return fmt.Errorf("expected failure %s, got %s", reason, c.session.FailureReason)
	}
	return nil
}

func (c *checkoutTestContext) theShortageNamesWithAvailable(id string, available int) error {
	var shortage *domain.InsufficientStockError
	if !errors.As(c.err, &shortage) {
		return fmt.Errorf("expected insufficient stock error, got %v", c.err)
	}
	if shortage.ProductID != id || shortage.Available != available {
		return fmt.Errorf("expected shortage of %s with %d available, got %+v", id, available, shortage)
	}
	return nil
}

func (c *checkoutTestContext) theChargedAmountIs(want string) error {
	return expectMoney("charged amount", c.gateway.charged, want)
}

func (c *checkoutTestContext) theLedgerHasAvailable(n int, id string) error {
	if got := c.ledger.availableOf(id); got != n {
		return fmt.Errorf("expected %d of %s available, got %d", n, id, got)
	}
	return nil
}

func (c *checkoutTestContext) myCartIsEmpty() error {
	if n := c.carts.itemCount("cart-1"); n != 0 {
		return fmt.Errorf("expected empty cart, got %d items", n)
	}
	return nil
}

func (c *checkoutTestContext) myCartHasLines(n int) error {
	if got := len(c.cart().Items); got != n {
		return fmt.Errorf("expected %d lines, got %d", n, got)
	}
	return nil
}

func (c *checkoutTestContext) lineHasQuantity(line, qty int) error {
	items := c.cart().Items
	if line < 1 || line > len(items) {
		return fmt.Errorf("no line %d", line)
	}
	if items[line-1].Quantity != qty {
		return fmt.Errorf("expected quantity %d, got %d", qty, items[line-1].Quantity)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the catalog has "([^"]*)" priced (\d+) with sizes "([^"]*)"$`, tc.theCatalogHasPricedWithSizes)
	ctx.Step(`^the catalog has "([^"]*)" priced (\d+)$`, tc.theCatalogHasPriced)
	ctx.Step(`^the ledger holds (\d+) of "([^"]*)"$`, tc.theLedgerHolds)
	ctx.Step(`^I am a member with a (\d+)% discount$`, tc.iAmAMemberWithDiscount)

	// When steps
	ctx.Step(`^I add (\d+) "([^"]*)" in size "([^"]*)"$`, tc.iAddInSize)
	ctx.Step(`^I add (\d+) "([^"]*)"$`, tc.iAdd)
	ctx.Step(`^I check out and pay$`, tc.iCheckOutAndPay)
	ctx.Step(`^I begin checkout$`, tc.iBeginCheckout)
	ctx.Step(`^I close the payment page$`, tc.iCloseThePaymentPage)

	// Then steps
	ctx.Step(`^the subtotal is (\d+\.\d\d)$`, tc.theSubtotalIs)
	ctx.Step(`^the discount is (\d+\.\d\d)$`, tc.theDiscountIs)
	ctx.Step(`^the total is (\d+\.\d\d)$`, tc.theTotalIs)
	ctx.Step(`^the checkout is "([^"]*)"$`, tc.theCheckoutIs)
	ctx.Step(`^the checkout is "([^"]*)" because of "([^"]*)"$`, tc.theCheckoutIsBecauseOf)
	ctx.Step(`^the shortage names "([^"]*)" with (\d+) available$`, tc.theShortageNamesWithAvailable)
	ctx.Step(`^the charged amount is (\d+\.\d\d)$`, tc.theChargedAmountIs)
	ctx.Step(`^the ledger has (\d+) of "([^"]*)" available$`, tc.theLedgerHasAvailable)
	ctx.Step(`^my cart is empty$`, tc.myCartIsEmpty)
	ctx.Step(`^my cart has (\d+) lines?$`, tc.myCartHasLines)
	ctx.Step(`^line (\d+) has quantity (\d+)$`, tc.lineHasQuantity)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
