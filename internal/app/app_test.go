package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/pkg/health"
)

func TestRouter(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{
		TokenPepper: "pepper",
		Database:    DatabaseConfig{Driver: "sqlite", URL: ":memory:"},
		Pricing:     PricingConfig{Strategy: "lowest_contract"},
		RateLimit:   RateLimitConfig{Max: 5, Window: time.Minute},
	}

	st, err := OpenStore(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	require.NoError(t, st.Users.Upsert(ctx, &user.User{ID: "u1", Name: "Ann", Email: "ann@example.com"}))
	require.NoError(t, st.Products.Upsert(ctx, &product.Product{
		ID: "p1", Name: "Widget", SKU: "W", Price: decimal.RequireFromString("12.50"), Published: true,
	}))
	authn := auth.NewAuthenticator(st.Tokens, []byte(cfg.TokenPepper))
	require.NoError(t, st.Tokens.Create(ctx, &auth.Token{ID: "t1", Hash: authn.Hash("secret"), UserID: "u1"}))

	tp, mp := tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider()
	h, err := newHandler(cfg, st, st.Modifiers, tp, mp)
	require.NoError(t, err)

	hs := health.New()
	hs.AddReadiness(health.Check{Name: "sqlite", Func: st.Ping})
	hs.SetReady(true)

	srv := httptest.NewServer(newRouter(cfg, zap.NewNop(), tp, mp, hs, h))
	t.Cleanup(srv.Close)

	get := func(path, token string) (*http.Response, string) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(data)
	}

	resp, body := get("/livez", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, _ = get("/readyz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = get("/api/prices?product=p1", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = get("/api/prices?product=p1", "secret")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Contains(t, body, `"strategy":"lowest_contract"`)
	assert.Contains(t, body, `"price":12.50`)

	resp, _ = get("/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "unknown database driver")
}
