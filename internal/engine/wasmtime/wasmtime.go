//go:build amd64 && cgo

// Package wasmtime registers the runtime "wasmtime", backed by wasmtime-go. Importing this package links the
// wasm C API, so it must not be linked together with package wasmer.
package wasmtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytecodealliance/wasmtime-go"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasm-interop/arith/internal/engine"
)

// Name is the name this runtime is registered as.
const Name = "wasmtime"

func init() {
	engine.Register(Name, New)
}

// New returns a new wasmtime runtime.
func New() engine.Runtime {
	return &wasmtimeRuntime{}
}

type wasmtimeRuntime struct {
	engine    *wasmtime.Engine
	module    *wasmtime.Module
	needsWASI bool
}

type wasmtimeModule struct {
	// mu serializes calls, as a wasmtime.Store isn't goroutine-safe.
	mu    sync.Mutex
	store *wasmtime.Store
	funcs map[string]*wasmtime.Func
}

// Name implements engine.Runtime.Name
func (r *wasmtimeRuntime) Name() string {
	return Name
}

// Compile implements engine.Runtime.Compile
func (r *wasmtimeRuntime) Compile(_ context.Context, cfg *engine.RuntimeConfig) (err error) {
	r.engine = wasmtime.NewEngine()
	if r.module, err = wasmtime.NewModule(r.engine, cfg.ModuleWasm); err != nil {
		return
	}
	for _, imp := range r.module.Type().Imports() {
		if engine.NeedsWASI(imp.Module()) {
			r.needsWASI = true
			break
		}
	}
	return
}

// Instantiate implements engine.Runtime.Instantiate
func (r *wasmtimeRuntime) Instantiate(_ context.Context, cfg *engine.RuntimeConfig) (mod engine.Module, err error) {
	// We can't reuse a store because even if we call close, re-instantiating too many times leads to:
	// >> resource limit exceeded: instance count too high at 10001
	wm := &wasmtimeModule{funcs: map[string]*wasmtime.Func{}}
	wm.store = wasmtime.NewStore(r.engine)

	linker := wasmtime.NewLinker(r.engine)

	// Instantiate WASI, if needed.
	if r.needsWASI {
		if err = linker.DefineWasi(); err != nil {
			return
		}
		wm.store.SetWasi(wasmtime.NewWasiConfig())
	}

	instance, err := linker.Instantiate(wm.store, r.module)
	if err != nil {
		return
	}

	// Reactors built with -buildmode=c-shared initialize in "_initialize".
	if initialize := instance.GetFunc(wm.store, "_initialize"); initialize != nil {
		if _, err = initialize.Call(wm.store); err != nil {
			return
		}
	}

	// Ensure function exports exist.
	for _, funcName := range cfg.FuncNames {
		for _, exportName := range cfg.ExportNames(funcName) {
			fn := instance.GetFunc(wm.store, exportName)
			if fn == nil {
				continue
			}
			ft := fn.Type(wm.store)
			sig := engine.Signature{Params: valueTypes(ft.Params()), Results: valueTypes(ft.Results())}
			if err = cfg.CheckSignature(funcName, exportName, sig); err != nil {
				return
			}
			wm.funcs[funcName] = fn
			break
		}
		if _, ok := wm.funcs[funcName]; !ok {
			return nil, cfg.NotExportedError(funcName)
		}
	}

	mod = engine.WithTrace(wm, cfg.ModuleName, cfg.Trace)
	return
}

func valueTypes(vts []*wasmtime.ValType) []api.ValueType {
	ret := make([]api.ValueType, len(vts))
	for i, vt := range vts {
		switch vt.Kind() {
		case wasmtime.KindI32:
			ret[i] = api.ValueTypeI32
		case wasmtime.KindI64:
			ret[i] = api.ValueTypeI64
		case wasmtime.KindF32:
			ret[i] = api.ValueTypeF32
		case wasmtime.KindF64:
			ret[i] = api.ValueTypeF64
		case wasmtime.KindExternref:
			ret[i] = api.ValueTypeExternref
		}
	}
	return ret
}

// Close implements engine.Runtime.Close
func (r *wasmtimeRuntime) Close(_ context.Context) error {
	r.module = nil
	r.engine = nil
	return nil // wasmtime only closes via finalizer
}

func (m *wasmtimeModule) call(funcName string, params ...interface{}) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return 0, engine.ErrClosed
	}
	fn, ok := m.funcs[funcName]
	if !ok {
		return 0, fmt.Errorf("%s is %w", funcName, engine.ErrNotExported)
	}
	if result, err := fn.Call(m.store, params...); err != nil {
		return 0, err
	} else {
		return uint32(result.(int32)), nil
	}
}

// CallI32I32_I32 implements engine.Module.CallI32I32_I32
func (m *wasmtimeModule) CallI32I32_I32(_ context.Context, funcName string, x, y uint32) (uint32, error) {
	return m.call(funcName, int32(x), int32(y))
}

// CallI32_I32 implements engine.Module.CallI32_I32
func (m *wasmtimeModule) CallI32_I32(_ context.Context, funcName string, x uint32) (uint32, error) {
	return m.call(funcName, int32(x))
}

// Close implements engine.Module.Close
func (m *wasmtimeModule) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = nil
	m.funcs = nil
	return nil // wasmtime only closes via finalizer
}
