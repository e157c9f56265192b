package interop

import (
	"context"
	"sync"

	"github.com/wasm-interop/arith"
	"github.com/wasm-interop/arith/internal/engine"
)

// Module is a loaded module. It is safe for concurrent use.
type Module struct {
	name, path, source string

	// mu guards closing against calls in flight.
	mu      sync.RWMutex
	closed  bool
	runtime engine.Runtime
	mod     engine.Module
	onClose func()
}

// Name returns the name the module was instantiated as: the file name without extension, or "arith" for the
// built-in module.
func (m *Module) Name() string {
	return m.name
}

// Path returns the path passed to Loader.LoadModule.
func (m *Module) Path() string {
	return m.path
}

// Source returns the absolute path of the binary read, or BuiltinSource.
func (m *Module) Source() string {
	return m.source
}

// Runtime returns the name of the runtime executing the module.
func (m *Module) Runtime() string {
	return m.runtime.Name()
}

// Add calls the "add" export. The sum wraps on overflow like arith.Add.
func (m *Module) Add(ctx context.Context, a, b int32) (int32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, ErrClosed
	}

	result, err := m.mod.CallI32I32_I32(ctx, arith.ExportAdd, uint32(a), uint32(b))
	if err != nil {
		return 0, err
	}
	return int32(result), nil
}

// IsAnswerFortyTwo calls the "isAnswerFortyTwo" export. Any non-zero result is true.
func (m *Module) IsAnswerFortyTwo(ctx context.Context, x int32) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}

	result, err := m.mod.CallI32_I32(ctx, arith.ExportIsAnswerFortyTwo, uint32(x))
	if err != nil {
		return false, err
	}
	return result != 0, nil
}

// Close closes the module and removes it from the Loader that loaded it. Closing twice is a no-op.
func (m *Module) Close(ctx context.Context) error {
	if m.onClose != nil {
		m.onClose()
	}
	return m.close(ctx)
}

func (m *Module) close(ctx context.Context) (err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	err = m.mod.Close(ctx)
	if closeErr := m.runtime.Close(ctx); closeErr != nil {
		err = closeErr
	}
	return
}
