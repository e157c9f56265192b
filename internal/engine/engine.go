// Package engine abstracts the WebAssembly implementation used to run a module exporting the arithmetic functions.
//
// A Runtime compiles one module and instantiates it any number of times. Each Module calls exported functions
// with fixed i32 signatures, which is all the arithmetic exports need.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental/logging"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

var (
	// ErrNotExported is returned when a required function, and each of its aliases, is missing from the exports.
	ErrNotExported = errors.New("not an exported function")
	// ErrSignatureMismatch is returned when an export doesn't have the expected parameter and result types.
	ErrSignatureMismatch = errors.New("signature mismatch")
	// ErrClosed is returned when calling a function on a closed Module.
	ErrClosed = errors.New("module closed")
	// ErrUnknownRuntime is returned by New for a name that was never registered.
	ErrUnknownRuntime = errors.New("unknown runtime")
)

// Signature is the parameter and result types expected of an exported function.
type Signature struct {
	Params, Results []api.ValueType
}

// String returns the signature in the form "(i32, i32) -> i32".
func (s Signature) String() string {
	return "(" + valueTypeNames(s.Params) + ") -> " + valueTypeNames(s.Results)
}

func valueTypeNames(vts []api.ValueType) string {
	names := make([]string, len(vts))
	for i, vt := range vts {
		names[i] = api.ValueTypeName(vt)
	}
	return strings.Join(names, ", ")
}

// Equal returns true if both signatures have the same parameter and result types.
func (s Signature) Equal(that Signature) bool {
	return string(s.Params) == string(that.Params) && string(s.Results) == string(that.Results)
}

// RuntimeConfig is the input to Runtime.Compile and Runtime.Instantiate.
type RuntimeConfig struct {
	// ModuleName is the name the module is instantiated as.
	ModuleName string
	// ModuleWasm is the WebAssembly binary. Runtimes that implement the functions in Go ignore it.
	ModuleWasm []byte
	// FuncNames are the functions that must be exported for Instantiate to succeed.
	FuncNames []string
	// Aliases are alternative export names tried, in order, when a name in FuncNames isn't exported.
	Aliases map[string][]string
	// Signatures are checked on Instantiate for each name in FuncNames that has an entry.
	Signatures map[string]Signature
	// CacheDir is a writeable directory for compiled code. Ignored by runtimes that don't support it.
	CacheDir string
	// Trace receives a line for each function call and return, when non-nil.
	Trace logging.Writer
}

// ExportNames returns funcName followed by any aliases configured for it.
func (c *RuntimeConfig) ExportNames(funcName string) []string {
	return append([]string{funcName}, c.Aliases[funcName]...)
}

// CheckSignature returns ErrSignatureMismatch if funcName has an expected signature that differs from actual.
func (c *RuntimeConfig) CheckSignature(funcName, exportName string, actual Signature) error {
	if expected, ok := c.Signatures[funcName]; ok && !expected.Equal(actual) {
		return fmt.Errorf("%w: %s is %s, expected %s", ErrSignatureMismatch, exportName, actual, expected)
	}
	return nil
}

// NotExportedError returns ErrNotExported wrapped with the names that were tried for funcName.
func (c *RuntimeConfig) NotExportedError(funcName string) error {
	names := c.ExportNames(funcName)
	if len(names) == 1 {
		return fmt.Errorf("%s is %w", funcName, ErrNotExported)
	}
	return fmt.Errorf("%s is %w (tried %s)", funcName, ErrNotExported, strings.Join(names, ", "))
}

// NeedsWASI returns true if any of the import module names is "wasi_snapshot_preview1". Modules built with
// GOOS=wasip1 import it, even when their exports never call it.
func NeedsWASI(importModuleNames ...string) bool {
	for _, name := range importModuleNames {
		if name == wasi_snapshot_preview1.ModuleName {
			return true
		}
	}
	return false
}

// Runtime compiles a module once, and instantiates it on demand.
type Runtime interface {
	// Name is the name this runtime was registered with.
	Name() string
	// Compile compiles RuntimeConfig.ModuleWasm. This must be called once, before Instantiate.
	Compile(context.Context, *RuntimeConfig) error
	// Instantiate instantiates the compiled module, resolving RuntimeConfig.FuncNames.
	Instantiate(context.Context, *RuntimeConfig) (Module, error)
	// Close releases the compiled module. Modules should be closed first.
	Close(context.Context) error
}

// Module is an instantiated module. Implementations are safe for concurrent use.
type Module interface {
	// CallI32I32_I32 calls a function with the signature (i32, i32) -> i32.
	CallI32I32_I32(ctx context.Context, funcName string, x, y uint32) (uint32, error)
	// CallI32_I32 calls a function with the signature (i32) -> i32.
	CallI32_I32(ctx context.Context, funcName string, x uint32) (uint32, error)
	// Close releases the instance.
	Close(context.Context) error
}

var runtimes = map[string]func() Runtime{}

// Register makes a runtime available by name. This panics if the name is already registered, so it is intended
// to be called from init.
func Register(name string, newRuntime func() Runtime) {
	if _, ok := runtimes[name]; ok {
		panic(fmt.Errorf("runtime %q already registered", name))
	}
	runtimes[name] = newRuntime
}

// New returns a new runtime registered under name or ErrUnknownRuntime.
func New(name string) (Runtime, error) {
	newRuntime, ok := runtimes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownRuntime, name, strings.Join(Names(), ", "))
	}
	return newRuntime(), nil
}

// Names returns the registered runtime names in lexicographic order.
func Names() []string {
	names := make([]string, 0, len(runtimes))
	for name := range runtimes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
