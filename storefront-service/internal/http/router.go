// Package http exposes the storefront over a chi router: catalog, carts,
// checkout, order history, membership, admin operations and the payment
// webhook.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nana-k-osei/LAGC/pkg/pricing"
)

type RouterConfig struct {
	Catalog   Catalog
	Carts     Carts
	Events    CartEvents
	Checkouts Checkouts
	Members   Members
	Stock     Stock
	Orders    Orders
	Auth      TokenParser
	Pricing   pricing.Policy
	// Webhooks is nil when the payment gateway has no callbacks.
	Webhooks       Webhooks
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	products := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	carts := NewCartHandler(cfg.Carts, cfg.Members, cfg.Events, cfg.Pricing, cfg.RequestTimeout, cfg.Logger)
	checkouts := NewCheckoutHandler(cfg.Checkouts, cfg.RequestTimeout)
	members := NewMemberHandler(cfg.Members, cfg.RequestTimeout)
	admin := NewAdminHandler(cfg.Members, cfg.Stock, cfg.RequestTimeout)
	orders := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Webhooks != nil {
		webhooks := NewWebhookHandler(cfg.Webhooks, cfg.Logger)
		r.Post("/webhooks/paystack", webhooks.Paystack)
	}

	withTimeout := func(r chi.Router) chi.Router {
		return r.With(middleware.Timeout(cfg.RequestTimeout), middleware.Compress(5))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticate(cfg.Auth))

		api := withTimeout(r)
		api.Get("/products", products.ListProducts)
		api.Get("/products/{id}", products.GetProduct)
		api.Get("/inventory/{productId}", admin.Availability)

		r.Route("/cart", func(r chi.Router) {
			// The event stream outlives the request timeout.
			r.Get("/events", carts.Events)

			cart := withTimeout(r)
			cart.Get("/", carts.GetCart)
			cart.Delete("/", carts.ClearCart)
			cart.Get("/totals", carts.Totals)
			cart.Post("/items", carts.AddItem)
			cart.Put("/items/{index}", carts.UpdateQuantity)
			cart.Delete("/items/{index}", carts.RemoveItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r = withTimeout(r)
			r.Post("/", checkouts.InitiateCheckout)
			r.Get("/{id}", checkouts.GetCheckout)
			r.Post("/{reference}/cancel", checkouts.CancelCheckout)
		})

		r.Route("/orders", func(r chi.Router) {
			r = withTimeout(r).With(RequireUser)
			r.Get("/", orders.ListOrders)
			r.Get("/{reference}", orders.GetOrder)
		})

		r.Route("/members", func(r chi.Router) {
			r = withTimeout(r).With(RequireUser)
			r.Post("/", members.SignUp)
			r.Get("/me", members.Me)
		})

		r.Route("/admin", func(r chi.Router) {
			r = withTimeout(r).With(RequireAdmin)
			r.Put("/discount", admin.SetDiscount)
			r.Get("/discount/history", admin.DiscountHistory)
			r.Get("/members", admin.ListMembers)
			r.Put("/members/{userId}/status", admin.SetMemberStatus)
			r.Get("/inventory", admin.ListStock)
			r.Put("/inventory/{productId}", admin.SetStock)
			r.Post("/inventory/{productId}/restock", admin.Restock)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
