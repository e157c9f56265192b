//go:build amd64 && cgo && !windows

// Package wasmer registers the runtime "wasmer", backed by wasmer-go. Importing this package links the wasm C API,
// so it must not be linked together with package wasmtime.
package wasmer

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"github.com/wasmerio/wasmer-go/wasmer"

	"github.com/wasm-interop/arith/internal/engine"
)

// Name is the name this runtime is registered as.
const Name = "wasmer"

func init() {
	engine.Register(Name, New)
}

// New returns a new wasmer runtime.
func New() engine.Runtime {
	return &wasmerRuntime{}
}

type wasmerRuntime struct {
	engine    *wasmer.Engine
	store     *wasmer.Store
	module    *wasmer.Module
	needsWASI bool
}

type wasmerModule struct {
	// mu serializes calls, as wasmer instances aren't goroutine-safe.
	mu       sync.Mutex
	instance *wasmer.Instance
	funcs    map[string]*wasmer.Function
}

// Name implements engine.Runtime.Name
func (r *wasmerRuntime) Name() string {
	return Name
}

// Compile implements engine.Runtime.Compile
func (r *wasmerRuntime) Compile(_ context.Context, cfg *engine.RuntimeConfig) (err error) {
	r.engine = wasmer.NewEngine()
	r.store = wasmer.NewStore(r.engine)
	if r.module, err = wasmer.NewModule(r.store, cfg.ModuleWasm); err != nil {
		return
	}
	for _, imp := range r.module.Imports() {
		if engine.NeedsWASI(imp.Module()) {
			r.needsWASI = true
			break
		}
	}
	return
}

// Instantiate implements engine.Runtime.Instantiate
func (r *wasmerRuntime) Instantiate(_ context.Context, cfg *engine.RuntimeConfig) (mod engine.Module, err error) {
	wm := &wasmerModule{funcs: map[string]*wasmer.Function{}}

	// Instantiate WASI, if needed.
	var importObject *wasmer.ImportObject
	if r.needsWASI {
		var wasiEnv *wasmer.WasiEnvironment
		if wasiEnv, err = wasmer.NewWasiStateBuilder(cfg.ModuleName).Finalize(); err != nil {
			return
		}
		if importObject, err = wasiEnv.GenerateImportObject(r.store, r.module); err != nil {
			return
		}
	} else {
		importObject = wasmer.NewImportObject()
	}

	// TODO: wasmer_module_set_name is not exposed in wasmer-go
	if wm.instance, err = wasmer.NewInstance(r.module, importObject); err != nil {
		return
	}

	// Reactors built with -buildmode=c-shared initialize in "_initialize".
	if initialize, lookupErr := wm.instance.Exports.GetRawFunction("_initialize"); lookupErr == nil && initialize != nil {
		if _, err = initialize.Call(); err != nil {
			wm.instance.Close()
			return
		}
	}

	// Ensure function exports exist.
	for _, funcName := range cfg.FuncNames {
		for _, exportName := range cfg.ExportNames(funcName) {
			fn, lookupErr := wm.instance.Exports.GetRawFunction(exportName)
			if lookupErr != nil || fn == nil {
				continue
			}
			ft := fn.Type()
			sig := engine.Signature{Params: valueTypes(ft.Params()), Results: valueTypes(ft.Results())}
			if err = cfg.CheckSignature(funcName, exportName, sig); err != nil {
				wm.instance.Close()
				return
			}
			wm.funcs[funcName] = fn
			break
		}
		if _, ok := wm.funcs[funcName]; !ok {
			wm.instance.Close()
			return nil, cfg.NotExportedError(funcName)
		}
	}

	mod = engine.WithTrace(wm, cfg.ModuleName, cfg.Trace)
	return
}

func valueTypes(vts []*wasmer.ValueType) []api.ValueType {
	ret := make([]api.ValueType, len(vts))
	for i, vt := range vts {
		switch vt.Kind() {
		case wasmer.I32:
			ret[i] = api.ValueTypeI32
		case wasmer.I64:
			ret[i] = api.ValueTypeI64
		case wasmer.F32:
			ret[i] = api.ValueTypeF32
		case wasmer.F64:
			ret[i] = api.ValueTypeF64
		case wasmer.AnyRef:
			ret[i] = api.ValueTypeExternref
		}
	}
	return ret
}

// Close implements engine.Runtime.Close
func (r *wasmerRuntime) Close(_ context.Context) error {
	if mod := r.module; mod != nil {
		mod.Close()
	}
	r.module = nil
	if store := r.store; store != nil {
		store.Close()
	}
	r.store = nil
	r.engine = nil
	return nil
}

func (m *wasmerModule) call(funcName string, params ...interface{}) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.instance == nil {
		return 0, engine.ErrClosed
	}
	fn, ok := m.funcs[funcName]
	if !ok {
		return 0, fmt.Errorf("%s is %w", funcName, engine.ErrNotExported)
	}
	if result, err := fn.Call(params...); err != nil {
		return 0, err
	} else {
		return uint32(result.(int32)), nil
	}
}

// CallI32I32_I32 implements engine.Module.CallI32I32_I32
func (m *wasmerModule) CallI32I32_I32(_ context.Context, funcName string, x, y uint32) (uint32, error) {
	return m.call(funcName, int32(x), int32(y))
}

// CallI32_I32 implements engine.Module.CallI32_I32
func (m *wasmerModule) CallI32_I32(_ context.Context, funcName string, x uint32) (uint32, error) {
	return m.call(funcName, int32(x))
}

// Close implements engine.Module.Close
func (m *wasmerModule) Close(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if instance := m.instance; instance != nil {
		instance.Close()
	}
	m.instance = nil
	m.funcs = nil
	return nil
}
