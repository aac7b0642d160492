// Package handler exposes the storefront services over HTTP.
package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/pricelist"
	"github.com/xenking/storefront/internal/domain/pricing"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// CheckoutLimit is the number of orders one user may place per
	// CheckoutWindow. Zero disables the limit.
	CheckoutLimit  int
	CheckoutWindow time.Duration
}

// Handler serves the storefront API.
type Handler struct {
	cfg       Config
	orders    *order.Service
	resolver  *pricing.Resolver
	contracts *contract.Service
	lists     *pricelist.Service
	auth      *auth.Authenticator
	validate  *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	orders *order.Service,
	resolver *pricing.Resolver,
	contracts *contract.Service,
	lists *pricelist.Service,
	authenticator *auth.Authenticator,
) *Handler {
	return &Handler{
		cfg:       cfg,
		orders:    orders,
		resolver:  resolver,
		contracts: contracts,
		lists:     lists,
		auth:      authenticator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes returns the API router. Every route requires a bearer token; the
// admin subtree additionally requires an admin account.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.authenticate)

	r.With(h.checkoutLimiter()).Post("/orders", h.createOrder)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Get("/prices", h.getPrices)

	r.Route("/admin", func(r chi.Router) {
		r.Use(requireAdmin)

		r.Route("/contracts", func(r chi.Router) {
			r.Get("/", h.getContract)
			r.Post("/", h.createContract)
			r.Put("/", h.updateContract)
			r.Delete("/", h.deleteContract)
		})

		r.Post("/price-lists", h.createPriceList)
		r.Route("/price-lists/{listID}", func(r chi.Router) {
			r.Get("/", h.getPriceList)
			r.Put("/", h.updatePriceList)
			r.Delete("/", h.deletePriceList)
			r.Post("/products/{productID}", h.assignProduct)
			r.Put("/products/{productID}", h.updateProductPrice)
			r.Delete("/products/{productID}", h.removeProduct)
			r.Put("/users/{userID}", h.assignUser)
		})
		r.Delete("/users/{userID}/price-list", h.unassignUser)
	})

	return r
}

func (h *Handler) checkoutLimiter() func(http.Handler) http.Handler {
	if h.cfg.CheckoutLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(h.cfg.CheckoutLimit, h.cfg.CheckoutWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				return p.UserID, nil
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeMessage(w, http.StatusTooManyRequests, "too many orders, retry later")
		}),
	)
}
