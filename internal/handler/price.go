package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/pricing"
)

const maxQuoteProducts = 100

// getPrices quotes the caller's prices for ?product=... ids. Admins may
// quote for another account with ?user=.
func (h *Handler) getPrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	ids := query["product"]
	if len(ids) == 0 || len(ids) > maxQuoteProducts {
		h.writeError(w, r, badRequest("between 1 and %d product ids required", maxQuoteProducts))
		return
	}

	userID := principal(r).UserID
	if u := query.Get("user"); u != "" && u != userID {
		if !principal(r).Admin {
			writeMessage(w, http.StatusForbidden, "admin access required")
			return
		}
		userID = u
	}

	q, err := h.resolver.Quote(r.Context(), userID, ids)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeQuote(e, q, h.resolver.Strategy())
	})
}

func encodeQuote(e *jx.Encoder, q *pricing.Quote, strategy pricing.Strategy) {
	e.ObjStart()
	e.FieldStart("userId")
	e.Str(q.UserID)
	e.FieldStart("strategy")
	e.Str(string(strategy))
	e.FieldStart("prices")
	e.ArrStart()
	for _, p := range q.Prices {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(p.ProductID)
		e.FieldStart("basePrice")
		money(e, p.Base)
		e.FieldStart("price")
		money(e, p.Final)
		e.FieldStart("source")
		e.Str(string(p.Source))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("skipped")
	strArray(e, q.Skipped)
	e.ObjEnd()
}
