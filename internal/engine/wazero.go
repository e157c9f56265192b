package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/experimental/logging"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const (
	// RuntimeWazero compiles to native code where supported, otherwise interprets.
	RuntimeWazero = "wazero"
	// RuntimeWazeroInterpreter always interprets.
	RuntimeWazeroInterpreter = "wazero-interpreter"
)

func init() {
	Register(RuntimeWazero, func() Runtime {
		return newWazeroRuntime(RuntimeWazero, wazero.NewRuntimeConfig, compileWasm)
	})
	Register(RuntimeWazeroInterpreter, func() Runtime {
		return newWazeroRuntime(RuntimeWazeroInterpreter, wazero.NewRuntimeConfigInterpreter, compileWasm)
	})
}

// compileFunc compiles the module described by cfg into r.
type compileFunc func(ctx context.Context, r wazero.Runtime, cfg *RuntimeConfig) (wazero.CompiledModule, error)

func compileWasm(ctx context.Context, r wazero.Runtime, cfg *RuntimeConfig) (wazero.CompiledModule, error) {
	return r.CompileModule(ctx, cfg.ModuleWasm)
}

func newWazeroRuntime(name string, newConfig func() wazero.RuntimeConfig, compile compileFunc) *wazeroRuntime {
	return &wazeroRuntime{name: name, newConfig: newConfig, compile: compile}
}

type wazeroRuntime struct {
	name      string
	newConfig func() wazero.RuntimeConfig
	compile   compileFunc

	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	compiled wazero.CompiledModule
	// exports maps each required function name to the export that satisfied it.
	exports   map[string]string
	needsWASI bool
}

type wazeroModule struct {
	wasi    api.Closer
	mod     api.Module
	exports map[string]string
}

// Name implements Runtime.Name
func (r *wazeroRuntime) Name() string {
	return r.name
}

// Compile implements Runtime.Compile
func (r *wazeroRuntime) Compile(ctx context.Context, cfg *RuntimeConfig) (err error) {
	rc := r.newConfig()
	if dir := cfg.CacheDir; dir != "" {
		if r.cache, err = wazero.NewCompilationCacheWithDir(dir); err != nil {
			return fmt.Errorf("invalid cache dir: %w", err)
		}
		rc = rc.WithCompilationCache(r.cache)
	}
	r.runtime = wazero.NewRuntimeWithConfig(ctx, rc)

	// Listeners are bound when functions are compiled.
	if cfg.Trace != nil {
		ctx = experimental.WithFunctionListenerFactory(ctx, logging.NewLoggingListenerFactory(cfg.Trace))
	}
	if r.compiled, err = r.compile(ctx, r.runtime, cfg); err != nil {
		return
	}

	for _, f := range r.compiled.ImportedFunctions() {
		moduleName, _, _ := f.Import()
		if NeedsWASI(moduleName) {
			r.needsWASI = true
			break
		}
	}

	r.exports, err = resolveExports(cfg, r.compiled.ExportedFunctions())
	return
}

// resolveExports finds the export satisfying each required function, checking its signature.
func resolveExports(cfg *RuntimeConfig, defs map[string]api.FunctionDefinition) (map[string]string, error) {
	exports := make(map[string]string, len(cfg.FuncNames))
	for _, funcName := range cfg.FuncNames {
		for _, exportName := range cfg.ExportNames(funcName) {
			def, ok := defs[exportName]
			if !ok {
				continue
			}
			sig := Signature{Params: def.ParamTypes(), Results: def.ResultTypes()}
			if err := cfg.CheckSignature(funcName, exportName, sig); err != nil {
				return nil, err
			}
			exports[funcName] = exportName
			break
		}
		if _, ok := exports[funcName]; !ok {
			return nil, cfg.NotExportedError(funcName)
		}
	}
	return exports, nil
}

// Instantiate implements Runtime.Instantiate
func (r *wazeroRuntime) Instantiate(ctx context.Context, cfg *RuntimeConfig) (mod Module, err error) {
	m := &wazeroModule{exports: r.exports}

	// Instantiate WASI, if needed.
	if r.needsWASI {
		if m.wasi, err = wasi_snapshot_preview1.Instantiate(ctx, r.runtime); err != nil {
			return
		}
	}

	// Reactors built with -buildmode=c-shared initialize in "_initialize". Missing start functions are skipped.
	modCfg := wazero.NewModuleConfig().
		WithName(cfg.ModuleName).
		WithStartFunctions("_initialize")
	if m.mod, err = r.runtime.InstantiateModule(ctx, r.compiled, modCfg); err != nil {
		if m.wasi != nil {
			_ = m.wasi.Close(ctx)
		}
		return
	}
	mod = m
	return
}

// Close implements Runtime.Close
func (r *wazeroRuntime) Close(ctx context.Context) (err error) {
	if compiled := r.compiled; compiled != nil {
		err = compiled.Close(ctx)
	}
	r.compiled = nil
	if runtime := r.runtime; runtime != nil {
		if closeErr := runtime.Close(ctx); closeErr != nil {
			err = closeErr
		}
	}
	r.runtime = nil
	if cache := r.cache; cache != nil {
		if closeErr := cache.Close(ctx); closeErr != nil {
			err = closeErr
		}
	}
	r.cache = nil
	return
}

// call looks up the function on each call as api.Function is not goroutine-safe.
func (m *wazeroModule) call(ctx context.Context, funcName string, params ...uint64) (uint64, error) {
	if m.mod == nil {
		return 0, ErrClosed
	}
	exportName, ok := m.exports[funcName]
	if !ok {
		return 0, fmt.Errorf("%s is %w", funcName, ErrNotExported)
	}
	fn := m.mod.ExportedFunction(exportName)
	if fn == nil {
		return 0, fmt.Errorf("%s is %w", exportName, ErrNotExported)
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return 0, err
	}
	if len(results) > 0 {
		return results[0], nil
	}
	return 0, nil
}

// CallI32I32_I32 implements Module.CallI32I32_I32
func (m *wazeroModule) CallI32I32_I32(ctx context.Context, funcName string, x, y uint32) (uint32, error) {
	result, err := m.call(ctx, funcName, uint64(x), uint64(y))
	return uint32(result), err
}

// CallI32_I32 implements Module.CallI32_I32
func (m *wazeroModule) CallI32_I32(ctx context.Context, funcName string, x uint32) (uint32, error) {
	result, err := m.call(ctx, funcName, uint64(x))
	return uint32(result), err
}

// Close implements Module.Close
func (m *wazeroModule) Close(ctx context.Context) (err error) {
	if mod := m.mod; mod != nil {
		err = mod.Close(ctx)
	}
	m.mod = nil
	if wasi := m.wasi; wasi != nil {
		if closeErr := wasi.Close(ctx); closeErr != nil {
			err = closeErr
		}
	}
	m.wasi = nil
	return
}
