package interop

import (
	"io"

	"github.com/tetratelabs/wazero/experimental/logging"

	"github.com/wasm-interop/arith/internal/engine"
)

// LoaderConfig controls how a Loader compiles and instantiates modules, with the default implementation as
// NewLoaderConfig.
//
// Note: LoaderConfig is immutable. Each WithXXX function returns a new instance including the corresponding change.
type LoaderConfig struct {
	runtime   string
	cacheDir  string
	logWriter io.Writer
	trace     logging.Writer
}

// NewLoaderConfig returns a LoaderConfig using the "wazero" runtime, with no compilation cache and no logging.
func NewLoaderConfig() *LoaderConfig {
	return &LoaderConfig{runtime: engine.RuntimeWazero}
}

// clone ensures all fields are copied even if nil.
func (c *LoaderConfig) clone() *LoaderConfig {
	ret := *c
	return &ret
}

// WithRuntime selects the WebAssembly runtime by name. See Runtimes for valid names.
//
// An unknown name isn't an error until LoadModule, which returns ErrUnknownRuntime.
func (c *LoaderConfig) WithRuntime(name string) *LoaderConfig {
	ret := c.clone()
	ret.runtime = name
	return ret
}

// WithCompilationCache sets a writeable directory for native code compiled from wasm. Contents are re-used for the
// same version of the runtime. Runtimes that don't compile ahead of time ignore this.
func (c *LoaderConfig) WithCompilationCache(dir string) *LoaderConfig {
	ret := c.clone()
	ret.cacheDir = dir
	return ret
}

// WithLogWriter sets where the Loader writes a line for each module it loads or fails to load. Defaults to discard.
func (c *LoaderConfig) WithLogWriter(w io.Writer) *LoaderConfig {
	ret := c.clone()
	ret.logWriter = w
	return ret
}

// WithTrace sets where a line is written for each call into, and return from, a loaded module. Defaults to none.
func (c *LoaderConfig) WithTrace(w logging.Writer) *LoaderConfig {
	ret := c.clone()
	ret.trace = w
	return ret
}

// Runtimes returns the names valid for LoaderConfig.WithRuntime, in lexicographic order. "wasmtime" and "wasmer"
// are only present when built with the tag of the same name.
func Runtimes() []string {
	return engine.Names()
}
