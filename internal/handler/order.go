package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront/internal/domain/order"
)

type createOrderRequest struct {
	Name        string   `validate:"max=200"`
	Email       string   `validate:"omitempty,email,max=320"`
	Phone       string   `validate:"max=50"`
	Address     string   `validate:"max=500"`
	CityCountry string   `validate:"max=200"`
	Products    []string `validate:"max=500,dive,required,max=64"`
}

func (req *createOrderRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "name":
		req.Name, err = d.Str()
	case "email":
		req.Email, err = d.Str()
	case "phone":
		req.Phone, err = d.Str()
	case "address":
		req.Address, err = d.Str()
	case "cityCountry":
		req.CityCountry, err = d.Str()
	case "products":
		req.Products, err = decodeStrings(d)
	default:
		err = d.Skip()
	}
	return err
}

// createOrder places an order for the authenticated user.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.orders.CreateOrder(r.Context(), order.CreateRequest{
		UserID: principal(r).UserID,
		Contact: order.Contact{
			Name:        req.Name,
			Email:       req.Email,
			Phone:       req.Phone,
			Address:     req.Address,
			CityCountry: req.CityCountry,
		},
		ProductIDs: req.Products,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		encodeOrder(e, res.Order, res.Skipped)
	})
}

// getOrder returns an order to its owner or to an admin. Other callers get
// 404 so order ids cannot be probed.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if p := principal(r); !p.Admin && p.UserID != o.UserID {
		h.writeError(w, r, order.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o, nil)
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order, skipped []string) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("userId")
	e.Str(o.UserID)

	c := o.Contact
	e.FieldStart("contact")
	e.ObjStart()
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("email")
	e.Str(c.Email)
	e.FieldStart("phone")
	e.Str(c.Phone)
	e.FieldStart("address")
	e.Str(c.Address)
	e.FieldStart("cityCountry")
	e.Str(c.CityCountry)
	e.ObjEnd()

	e.FieldStart("lines")
	e.ArrStart()
	for _, l := range o.Lines {
		e.ObjStart()
		e.FieldStart("position")
		e.Int(l.Position)
		e.FieldStart("productId")
		e.Str(l.ProductID)
		e.FieldStart("basePrice")
		money(e, l.BasePrice)
		e.FieldStart("price")
		money(e, l.FinalPrice)
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("subtotal")
	money(e, o.Subtotal)
	e.FieldStart("discount")
	money(e, o.Discount)
	if o.DiscountRuleID != "" {
		e.FieldStart("discountRuleId")
		e.Str(o.DiscountRuleID)
	}
	e.FieldStart("taxRate")
	e.Int(o.TaxRate)
	e.FieldStart("tax")
	money(e, o.TaxAmount)
	e.FieldStart("total")
	money(e, o.Total)
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	if skipped != nil {
		e.FieldStart("skipped")
		strArray(e, skipped)
	}
	e.ObjEnd()
}
