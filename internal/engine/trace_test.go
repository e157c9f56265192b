package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeModule returns fixed results, or err when set.
type fakeModule struct {
	result uint32
	err    error
	closed bool
}

func (f *fakeModule) CallI32I32_I32(context.Context, string, uint32, uint32) (uint32, error) {
	return f.result, f.err
}

func (f *fakeModule) CallI32_I32(context.Context, string, uint32) (uint32, error) {
	return f.result, f.err
}

func (f *fakeModule) Close(context.Context) error {
	f.closed = true
	return nil
}

func TestWithTrace(t *testing.T) {
	ctx := context.Background()

	t.Run("nil writer", func(t *testing.T) {
		m := &fakeModule{}
		require.Same(t, m, WithTrace(m, "arith", nil))
	})

	t.Run("calls", func(t *testing.T) {
		var buf bytes.Buffer
		m := WithTrace(&fakeModule{result: 0xffffffff}, "arith", &buf)

		result, err := m.CallI32I32_I32(ctx, "add", 0x7fffffff, 0x80000000)
		require.NoError(t, err)
		require.Equal(t, uint32(0xffffffff), result)

		_, err = m.CallI32_I32(ctx, "isAnswerFortyTwo", 42)
		require.NoError(t, err)

		require.Equal(t, `--> arith.add(2147483647,-2147483648)
<-- -1
--> arith.isAnswerFortyTwo(42)
<-- -1
`, buf.String())
	})

	t.Run("error", func(t *testing.T) {
		var buf bytes.Buffer
		m := WithTrace(&fakeModule{err: errors.New("unreachable")}, "arith", &buf)

		_, err := m.CallI32_I32(ctx, "isAnswerFortyTwo", 1)
		require.EqualError(t, err, "unreachable")
		require.Equal(t, "--> arith.isAnswerFortyTwo(1)\n<-- error: unreachable\n", buf.String())
	})

	t.Run("close", func(t *testing.T) {
		f := &fakeModule{}
		require.NoError(t, WithTrace(f, "arith", &bytes.Buffer{}).Close(ctx))
		require.True(t, f.closed)
	})
}
