package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/experimental/logging"
)

// WithTrace wraps m to write a line to w before and after each call, in the same style as wazero's logging
// listener. This is used by runtimes that have no listener of their own. When w is nil, m is returned as is.
func WithTrace(m Module, moduleName string, w logging.Writer) Module {
	if w == nil {
		return m
	}
	return &tracedModule{delegate: m, moduleName: moduleName, w: w}
}

type tracedModule struct {
	delegate   Module
	moduleName string
	// mu keeps the call and return lines of one call together.
	mu sync.Mutex
	w  logging.Writer
}

// CallI32I32_I32 implements Module.CallI32I32_I32
func (t *tracedModule) CallI32I32_I32(ctx context.Context, funcName string, x, y uint32) (uint32, error) {
	result, err := t.delegate.CallI32I32_I32(ctx, funcName, x, y)
	t.trace(funcName, result, err, int32(x), int32(y))
	return result, err
}

// CallI32_I32 implements Module.CallI32_I32
func (t *tracedModule) CallI32_I32(ctx context.Context, funcName string, x uint32) (uint32, error) {
	result, err := t.delegate.CallI32_I32(ctx, funcName, x)
	t.trace(funcName, result, err, int32(x))
	return result, err
}

func (t *tracedModule) trace(funcName string, result uint32, err error, params ...int32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	args := ""
	for i, p := range params {
		if i > 0 {
			args += ","
		}
		args += fmt.Sprint(p)
	}
	_, _ = fmt.Fprintf(t.w, "--> %s.%s(%s)\n", t.moduleName, funcName, args)
	if err != nil {
		_, _ = fmt.Fprintf(t.w, "<-- error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(t.w, "<-- %d\n", int32(result))
}

// Close implements Module.Close
func (t *tracedModule) Close(ctx context.Context) error {
	return t.delegate.Close(ctx)
}
