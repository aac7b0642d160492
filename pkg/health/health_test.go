package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func ok(context.Context) error { return nil }

func failWith(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type probeBody struct {
	Status string
	Checks map[string]string
}

func serve(t *testing.T, fn http.HandlerFunc) (int, probeBody) {
	t.Helper()
	w := httptest.NewRecorder()
	fn(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body probeBody
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			body.Status = s
			return err
		case "checks":
			body.Checks = map[string]string{}
			return d.Obj(func(d *jx.Decoder, name string) error {
				s, err := d.Str()
				body.Checks[name] = s
				return err
			})
		default:
			return d.Skip()
		}
	})
	require.NoError(t, err)
	return w.Code, body
}

func TestLive(t *testing.T) {
	tests := []struct {
		name   string
		check  CheckFunc
		polls  int
		status int
		checks map[string]string
	}{
		{name: "no polls yet", check: failWith("down"), polls: 0, status: http.StatusOK},
		{name: "passing", check: ok, polls: 3, status: http.StatusOK},
		{name: "below threshold", check: failWith("down"), polls: 2, status: http.StatusOK},
		{
			name: "failing", check: failWith("down"), polls: 3,
			status: http.StatusServiceUnavailable, checks: map[string]string{"db": "down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			h.AddLiveness(Check{Name: "db", Func: tt.check})
			for range tt.polls {
				h.liveness[0].poll(context.Background())
			}

			status, body := serve(t, h.Live)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.checks, body.Checks)
			if tt.status == http.StatusOK {
				assert.Equal(t, "ok", body.Status)
			} else {
				assert.Equal(t, "unhealthy", body.Status)
			}
		})
	}
}

func TestReady_Gate(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "db", Func: Ping(pingerFunc(ok))})

	status, body := serve(t, h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, body.Checks, "ready")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	status, _ = serve(t, h.Ready)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestReady_OneCheckFailing(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "db", Func: ok})
	h.AddReadiness(Check{Name: "redis", Func: Ping(pingerFunc(failWith("connection refused"))), FailAfter: 1})
	h.SetReady(true)

	for _, p := range h.readiness {
		p.poll(context.Background())
	}

	status, body := serve(t, h.Ready)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, map[string]string{"redis": "connection refused"}, body.Checks)
	assert.False(t, h.IsReady())
}

func TestProbe_Recovers(t *testing.T) {
	var down atomic.Bool
	down.Store(true)
	p := newProbe(Check{Name: "flaky", RecoverAfter: 2, Func: func(context.Context) error {
		if down.Load() {
			return errors.New("down")
		}
		return nil
	}})
	ctx := context.Background()

	for range 3 {
		p.poll(ctx)
	}
	msg, failed := p.failure()
	assert.True(t, failed)
	assert.Equal(t, "down", msg)

	down.Store(false)
	p.poll(ctx)
	_, failed = p.failure()
	assert.True(t, failed, "one success is below RecoverAfter")

	p.poll(ctx)
	_, failed = p.failure()
	assert.False(t, failed)
}

func TestProbe_Timeout(t *testing.T) {
	p := newProbe(Check{Name: "slow", Timeout: 10 * time.Millisecond, FailAfter: 1, Func: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	p.poll(context.Background())

	msg, failed := p.failure()
	assert.True(t, failed)
	assert.Contains(t, msg, "deadline exceeded")
}

func TestStartStop(t *testing.T) {
	var calls atomic.Int64
	h := New()
	h.AddLiveness(Check{Name: "count", Func: func(context.Context) error {
		calls.Add(1)
		return nil
	}})
	h.AddReadiness(Check{Name: "goroutines", Func: Goroutines(1 << 20)})
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	h.Start(context.Background(), 5*time.Millisecond)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.Live(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, calls.Load())
}

func TestGoroutines(t *testing.T) {
	assert.NoError(t, Goroutines(1<<20)(context.Background()))
	assert.ErrorContains(t, Goroutines(0)(context.Background()), "limit 0")
}
