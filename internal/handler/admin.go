package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/contract"
	"github.com/xenking/storefront/internal/domain/pricelist"
)

type contractRequest struct {
	UserID    string `validate:"required,max=64"`
	ProductID string `validate:"required,max=64"`
	Price     decimal.Decimal
	hasPrice  bool
}

func (req *contractRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "userId":
		req.UserID, err = d.Str()
	case "productId":
		req.ProductID, err = d.Str()
	case "price":
		req.Price, err = decodeDecimal(d)
		req.hasPrice = err == nil
	default:
		err = d.Skip()
	}
	return err
}

func (h *Handler) decodeContract(w http.ResponseWriter, r *http.Request, needPrice bool) (*contractRequest, error) {
	var req contractRequest
	if err := decodeBody(w, r, req.decode); err != nil {
		return nil, err
	}
	if err := h.validateStruct(&req); err != nil {
		return nil, err
	}
	if needPrice && !req.hasPrice {
		return nil, badRequest("price is required")
	}
	return &req, nil
}

func (h *Handler) getContract(w http.ResponseWriter, r *http.Request) {
	userID, productID := r.URL.Query().Get("user"), r.URL.Query().Get("product")
	if userID == "" || productID == "" {
		h.writeError(w, r, badRequest("user and product query parameters are required"))
		return
	}
	c, err := h.contracts.Get(r.Context(), userID, productID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeContract(e, c) })
}

func (h *Handler) createContract(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeContract(w, r, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.contracts.Create(r.Context(), contract.Request{
		UserID: req.UserID, ProductID: req.ProductID, Price: req.Price,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeContract(e, c) })
}

func (h *Handler) updateContract(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeContract(w, r, true)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.contracts.Update(r.Context(), contract.Request{
		UserID: req.UserID, ProductID: req.ProductID, Price: req.Price,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeContract(e, c) })
}

func (h *Handler) deleteContract(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeContract(w, r, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.contracts.Delete(r.Context(), req.UserID, req.ProductID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeContract(e *jx.Encoder, c *contract.Price) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("userId")
	e.Str(c.UserID)
	e.FieldStart("productId")
	e.Str(c.ProductID)
	e.FieldStart("price")
	money(e, c.Price)
	e.ObjEnd()
}

type priceListRequest struct {
	Name        string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	Active      bool
}

func (req *priceListRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "name":
		req.Name, err = d.Str()
	case "description":
		req.Description, err = d.Str()
	case "active":
		req.Active, err = d.Bool()
	default:
		err = d.Skip()
	}
	return err
}

func (h *Handler) createPriceList(w http.ResponseWriter, r *http.Request) {
	req := priceListRequest{Active: true}
	if err := decodeBody(w, r, req.decode); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pl, err := h.lists.Create(r.Context(), pricelist.CreateRequest{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodePriceList(e, pl) })
}

func (h *Handler) getPriceList(w http.ResponseWriter, r *http.Request) {
	pl, err := h.lists.Get(r.Context(), chi.URLParam(r, "listID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePriceList(e, pl) })
}

// updatePriceList applies the body over the stored list; omitted fields keep
// their current values.
func (h *Handler) updatePriceList(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "listID")
	current, err := h.lists.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	req := priceListRequest{
		Name:        current.Name,
		Description: current.Description,
		Active:      current.Active,
	}
	if err := decodeBody(w, r, req.decode); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.validateStruct(&req); err != nil {
		h.writeError(w, r, err)
		return
	}
	pl, err := h.lists.Update(r.Context(), id, pricelist.UpdateRequest{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodePriceList(e, pl) })
}

func (h *Handler) deletePriceList(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.Delete(r.Context(), chi.URLParam(r, "listID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodePriceBody(w http.ResponseWriter, r *http.Request) (decimal.Decimal, error) {
	var (
		price decimal.Decimal
		seen  bool
	)
	err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "price" {
			return d.Skip()
		}
		v, err := decodeDecimal(d)
		price, seen = v, err == nil
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	if !seen {
		return decimal.Zero, badRequest("price is required")
	}
	return price, nil
}

func (h *Handler) assignProduct(w http.ResponseWriter, r *http.Request) {
	price, err := decodePriceBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.lists.AssignProduct(r.Context(), chi.URLParam(r, "listID"), chi.URLParam(r, "productID"), price); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateProductPrice(w http.ResponseWriter, r *http.Request) {
	price, err := decodePriceBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.lists.UpdateProductPrice(r.Context(), chi.URLParam(r, "listID"), chi.URLParam(r, "productID"), price); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.RemoveProduct(r.Context(), chi.URLParam(r, "listID"), chi.URLParam(r, "productID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) assignUser(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.AssignUser(r.Context(), chi.URLParam(r, "listID"), chi.URLParam(r, "userID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unassignUser(w http.ResponseWriter, r *http.Request) {
	if err := h.lists.UnassignUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodePriceList(e *jx.Encoder, pl *pricelist.PriceList) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(pl.ID)
	e.FieldStart("name")
	e.Str(pl.Name)
	e.FieldStart("description")
	e.Str(pl.Description)
	e.FieldStart("sku")
	e.Str(pl.SKU)
	e.FieldStart("active")
	e.Bool(pl.Active)
	e.ObjEnd()
}
