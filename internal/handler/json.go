package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
)

const maxBodyBytes = 1 << 20

// requestError is a malformed or invalid request body.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeBody reads the request body and hands each top-level field to fn.
// The body must hold exactly one JSON object.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	data = bytes.TrimSpace(data)
	obj, err := jx.DecodeBytes(data).Raw()
	if err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	if len(obj) != len(data) {
		return badRequest("unexpected data after JSON object")
	}
	if err := jx.DecodeBytes(obj).Obj(fn); err != nil {
		var re *requestError
		if errors.As(err, &re) {
			return re
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, badRequest("price must be a number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, badRequest("invalid price %q", raw)
	}
	return v, nil
}

func (h *Handler) validateStruct(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest("%v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Field()+" failed "+fe.Tag())
	}
	return &requestError{msg: "invalid request: " + strings.Join(msgs, ", ")}
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

// writeError maps err to a status code. Server-side failures are logged and
// their details withheld from the client.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	if errors.As(err, &re) {
		writeMessage(w, http.StatusBadRequest, re.msg)
		return
	}

	status := statusFor(apperr.KindOf(err))
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeMessage(w, status, http.StatusText(status))
		return
	}
	writeMessage(w, status, err.Error())
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidState:
		return http.StatusUnprocessableEntity
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func money(e *jx.Encoder, v decimal.Decimal) {
	e.Raw([]byte(v.StringFixed(2)))
}

func strArray(e *jx.Encoder, vals []string) {
	e.ArrStart()
	for _, v := range vals {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	out := []string{}
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
