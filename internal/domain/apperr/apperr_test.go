package apperr

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	sentinel := New(KindNotFound, "product not found")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain error", err: errors.New("boom"), want: KindUnknown},
		{name: "sentinel", err: sentinel, want: KindNotFound},
		{name: "wrapped sentinel", err: fmt.Errorf("resolve: %w", sentinel), want: KindNotFound},
		{name: "unavailable", err: Unavailable(errors.New("dial tcp"), "query"), want: KindUnavailable},
		{name: "go-faster wrap", err: errors.Wrap(New(KindConflict, "exists"), "create"), want: KindConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestSentinelIdentity(t *testing.T) {
	a := New(KindNotFound, "a")
	b := New(KindNotFound, "a")

	err := errors.Wrap(a, "lookup")
	require.ErrorIs(t, err, a)
	assert.NotErrorIs(t, err, b)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "gone", New(KindNotFound, "gone").Error())
	assert.Equal(t, "query: dial", Wrap(errors.New("dial"), KindUnavailable, "query").Error())
	assert.Equal(t, "dial", Wrap(errors.New("dial"), KindUnavailable, "").Error())
	assert.NoError(t, Wrap(nil, KindUnavailable, "query"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "conflict", KindConflict.String())
	assert.Equal(t, "invalid_state", KindInvalidState.String())
	assert.Equal(t, "unavailable", KindUnavailable.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
