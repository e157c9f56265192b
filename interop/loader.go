// Package interop loads WebAssembly modules exporting "add" and "isAnswerFortyTwo", and calls them from Go.
//
// A Loader caches each module by the path it was loaded from, so loading the same path twice compiles it once:
//
//	loader := interop.NewLoader(interop.NewLoaderConfig())
//	defer loader.Close(ctx)
//
//	mod, err := loader.LoadModule(ctx, "arith.wasm")
//	if err != nil {
//		return err
//	}
//	sum, err := mod.Add(ctx, 7, 9)
package interop

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/wasm-interop/arith/internal/engine"
	"github.com/wasm-interop/arith/internal/wasmgen"
)

var (
	// ErrLoaderClosed is returned by LoadModule after Loader.Close.
	ErrLoaderClosed = errors.New("loader closed")
	// ErrClosed is returned when calling a function on a closed Module.
	ErrClosed = engine.ErrClosed
	// ErrNotExported is returned when a module doesn't export one of the arithmetic functions.
	ErrNotExported = engine.ErrNotExported
	// ErrSignatureMismatch is returned when an arithmetic export has unexpected parameter or result types.
	ErrSignatureMismatch = engine.ErrSignatureMismatch
	// ErrUnknownRuntime is returned when LoaderConfig.WithRuntime names a runtime that isn't available.
	ErrUnknownRuntime = engine.ErrUnknownRuntime
)

// BuiltinSource is the source reported for the module loaded from an empty path.
const BuiltinSource = "<built-in>"

// ResolveWasmPath returns the path of the WebAssembly binary for path. wasm-bindgen writes JavaScript glue to
// "<name>.js" next to the binary "<name>_bg.wasm", so a ".js" path is resolved to its binary. Other paths are
// returned as is.
func ResolveWasmPath(path string) string {
	if trimmed := strings.TrimSuffix(path, ".js"); trimmed != path {
		return trimmed + "_bg.wasm"
	}
	return path
}

// Loader compiles, instantiates and caches modules by path. It is safe for concurrent use.
type Loader struct {
	config *LoaderConfig

	mu      sync.Mutex
	modules map[string]*Module
	closed  bool
}

// NewLoader returns a Loader configured by config. Use NewLoaderConfig for defaults.
func NewLoader(config *LoaderConfig) *Loader {
	if config == nil {
		config = NewLoaderConfig()
	}
	return &Loader{config: config.clone(), modules: map[string]*Module{}}
}

// LoadModule returns the module at path, loading it on first use. Subsequent calls with the same path return the
// same Module without reading the path again, until that Module is closed.
//
// An empty path loads a built-in module implementing the functions in WebAssembly. A ".js" path is resolved with
// ResolveWasmPath.
func (l *Loader) LoadModule(ctx context.Context, path string) (*Module, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrLoaderClosed
	}
	if m, ok := l.modules[path]; ok {
		l.logf("Wasm module already loaded: %s\n", path)
		return m, nil
	}

	m, source, err := l.load(ctx, path)
	if err != nil {
		l.logf("Failed to load WASM module from %s: %v\n", path, err)
		return nil, err
	}
	l.modules[path] = m
	l.logf("Successfully loaded WASM module from: %s\n", source)
	return m, nil
}

// GetModule returns the module previously loaded from path, if it is still open.
func (l *Loader) GetModule(path string) (*Module, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[path]
	return m, ok
}

// Close closes all modules. Further calls to LoadModule return ErrLoaderClosed.
func (l *Loader) Close(ctx context.Context) (err error) {
	l.mu.Lock()
	modules := l.modules
	l.modules = map[string]*Module{}
	l.closed = true
	l.mu.Unlock()

	for _, m := range modules {
		if closeErr := m.close(ctx); closeErr != nil {
			err = closeErr
		}
	}
	return
}

// forget removes m from the cache, unless path was since loaded again.
func (l *Loader) forget(path string, m *Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.modules[path] == m {
		delete(l.modules, path)
	}
}

// load reads, compiles and instantiates the module at path. source is the absolute path read, or BuiltinSource.
func (l *Loader) load(ctx context.Context, path string) (m *Module, source string, err error) {
	name := wasmgen.ArithModuleName
	var wasm []byte
	if path == "" {
		source = BuiltinSource
		wasm = wasmgen.ArithModule()
	} else {
		wasmPath := ResolveWasmPath(path)
		if source, err = filepath.Abs(wasmPath); err != nil {
			return nil, wasmPath, fmt.Errorf("invalid path %q: %w", wasmPath, err)
		}
		if wasm, err = os.ReadFile(source); err != nil {
			return nil, source, fmt.Errorf("error reading wasm binary: %w", err)
		}
		name = strings.TrimSuffix(filepath.Base(wasmPath), filepath.Ext(wasmPath))
	}

	rt, err := engine.New(l.config.runtime)
	if err != nil {
		return nil, source, err
	}

	cfg := engine.NewArithConfig(name, wasm)
	cfg.CacheDir = l.config.cacheDir
	cfg.Trace = l.config.trace

	if err = rt.Compile(ctx, cfg); err != nil {
		_ = rt.Close(ctx)
		return nil, source, fmt.Errorf("error compiling wasm binary: %w", err)
	}
	mod, err := rt.Instantiate(ctx, cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, source, fmt.Errorf("error instantiating wasm binary: %w", err)
	}

	m = &Module{name: name, path: path, source: source, runtime: rt, mod: mod}
	m.onClose = func() { l.forget(path, m) }
	return m, source, nil
}

func (l *Loader) logf(format string, args ...interface{}) {
	if w := l.config.logWriter; w != nil {
		_, _ = fmt.Fprintf(w, format, args...)
	}
}

