// Package health serves liveness and readiness probes for the storefront.
//
// Checks are polled in the background and the probe endpoints only report
// the last observed state. A check flips to failing after FailAfter
// consecutive errors and back to passing after RecoverAfter successes.
package health

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// CheckFunc returns nil while the checked component works.
type CheckFunc func(ctx context.Context) error

// Pinger is a dependency with a cheap round trip, such as a database pool or
// a redis client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping adapts a Pinger to a CheckFunc.
func Ping(p Pinger) CheckFunc {
	return p.Ping
}

// Goroutines fails when the process runs more than limit goroutines.
func Goroutines(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}

// Check describes one registered probe check.
type Check struct {
	Name    string
	Timeout time.Duration
	Func    CheckFunc
	// FailAfter defaults to 3, RecoverAfter to 1.
	FailAfter    int
	RecoverAfter int
}

type probe struct {
	Check

	passing atomic.Bool
	lastErr atomic.Pointer[string]

	// Touched only by the polling goroutine.
	fails, oks int
}

func newProbe(c Check) *probe {
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	if c.FailAfter <= 0 {
		c.FailAfter = 3
	}
	if c.RecoverAfter <= 0 {
		c.RecoverAfter = 1
	}
	p := &probe{Check: c}
	p.passing.Store(true)
	return p
}

func (p *probe) poll(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := p.Func(ctx)
	if err == nil {
		p.lastErr.Store(nil)
		p.fails = 0
		p.oks++
		if p.oks >= p.RecoverAfter && !p.passing.Swap(true) {
			zctx.From(ctx).Info("Health check recovered", zap.String("check", p.Name))
		}
		return
	}

	msg := err.Error()
	p.lastErr.Store(&msg)
	p.oks = 0
	p.fails++
	if p.fails >= p.FailAfter && p.passing.Swap(false) {
		zctx.From(ctx).Warn("Health check failing", zap.String("check", p.Name), zap.Error(err))
	}
}

func (p *probe) failure() (string, bool) {
	if p.passing.Load() {
		return "", false
	}
	if msg := p.lastErr.Load(); msg != nil {
		return *msg, true
	}
	return "failing", true
}

// Health tracks liveness and readiness checks.
type Health struct {
	ready atomic.Bool

	mu        sync.Mutex
	liveness  []*probe
	readiness []*probe
	stop      context.CancelFunc
	wg        sync.WaitGroup
}

// New returns a Health that reports not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLiveness registers a check for /livez.
func (h *Health) AddLiveness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(c))
}

// AddReadiness registers a check for /readyz.
func (h *Health) AddReadiness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(c))
}

// Start polls every registered check each interval until Stop is called or
// ctx ends.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		return
	}
	ctx, h.stop = context.WithCancel(ctx)

	for _, p := range append(append([]*probe(nil), h.liveness...), h.readiness...) {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				p.poll(ctx)
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
	}
}

// Stop ends polling and waits for the pollers to exit. Safe to call twice.
func (h *Health) Stop() {
	h.mu.Lock()
	stop := h.stop
	h.stop = nil
	h.mu.Unlock()

	if stop != nil {
		stop()
	}
	h.wg.Wait()
}

// SetReady toggles the manual readiness gate. Draining servers set it to
// false before shutting down.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness check passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(failures(h.snapshot(&h.readiness))) == 0
}

func (h *Health) snapshot(list *[]*probe) []*probe {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*probe(nil), (*list)...)
}

// Live serves /livez.
func (h *Health) Live(w http.ResponseWriter, _ *http.Request) {
	respond(w, failures(h.snapshot(&h.liveness)))
}

// Ready serves /readyz.
func (h *Health) Ready(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(&h.readiness))
	if !h.ready.Load() {
		failed["ready"] = "not accepting traffic"
	}
	respond(w, failed)
}

func failures(probes []*probe) map[string]string {
	out := make(map[string]string)
	for _, p := range probes {
		if msg, failed := p.failure(); failed {
			out[p.Name] = msg
		}
	}
	return out
}

func respond(w http.ResponseWriter, failed map[string]string) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.ObjStart()
	e.FieldStart("status")
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		status = http.StatusServiceUnavailable
		e.Str("unhealthy")

		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)
		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
