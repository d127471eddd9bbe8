package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoadKeepsRequestOrder(t *testing.T) {
	reg := New()
	reg.Register("a", 1)
	reg.Register("b", "two")
	reg.RegisterFunc("c", func(context.Context) (any, error) { return 3.0, nil })

	values, err := reg.Load(context.Background(), "c", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, []any{3.0, 1, "two"}, values)
	assert.True(t, reg.Has("a"))
	assert.False(t, reg.Has("z"))
}

func TestFactoryRunsUntilFirstSuccess(t *testing.T) {
	var calls atomic.Int32
	reg := New()
	reg.RegisterFunc("flaky", func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("not yet")
		}
		return "ok", nil
	})

	_, err := reg.Load(context.Background(), "flaky")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"flaky"`)

	for i := 0; i < 3; i++ {
		values, err := reg.Load(context.Background(), "flaky", "flaky")
		require.NoError(t, err)
		assert.Equal(t, []any{"ok", "ok"}, values)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestUnknownModule(t *testing.T) {
	reg := New()
	reg.Register("a", 1)

	_, err := reg.Load(context.Background(), "a", "missing")
	require.ErrorIs(t, err, ErrUnknownModule)
	assert.Contains(t, err.Error(), "missing")
}

func TestResolveContinuation(t *testing.T) {
	reg := New()
	reg.Register("x", "X")
	reg.Register("y", "Y")

	var got []any
	err := reg.Resolve(context.Background(), []string{"x", "y"}, func(values ...any) {
		got = values
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"X", "Y"}, got)
}

func TestFailureCancelsBatch(t *testing.T) {
	reg := New()
	boom := errors.New("boom")
	reg.RegisterFunc("bad", func(context.Context) (any, error) { return nil, boom })
	reg.RegisterFunc("slow", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, err := reg.Load(context.Background(), "slow", "bad")
	require.ErrorIs(t, err, boom)
}
