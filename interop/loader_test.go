package interop

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasm-interop/arith/internal/engine"
	"github.com/wasm-interop/arith/internal/testing/hammer"
	"github.com/wasm-interop/arith/internal/wasmgen"
)

// testCtx is an arbitrary, non-default context. Non-nil also prevents linter errors.
var testCtx = context.WithValue(context.Background(), struct{}{}, "arbitrary")

// writeArithWasm writes the built-in module to dir/name, returning its path.
func writeArithWasm(t *testing.T, dir, name string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, wasmgen.ArithModule(), 0o600))
	return path
}

func newTestLoader(t *testing.T, config *LoaderConfig) *Loader {
	l := NewLoader(config)
	t.Cleanup(func() { require.NoError(t, l.Close(testCtx)) })
	return l
}

func TestResolveWasmPath(t *testing.T) {
	tests := []struct{ input, expected string }{
		{input: "pkg/arith.js", expected: "pkg/arith_bg.wasm"},
		{input: "arith.js", expected: "arith_bg.wasm"},
		{input: "arith.wasm", expected: "arith.wasm"},
		{input: "arith.json", expected: "arith.json"},
		{input: "", expected: ""},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, ResolveWasmPath(tt.input), tt.input)
	}
}

func TestLoader_LoadModule(t *testing.T) {
	path := writeArithWasm(t, t.TempDir(), "math.wasm")

	for _, runtime := range []string{engine.RuntimeWazero, engine.RuntimeWazeroInterpreter, engine.RuntimeGo} {
		runtime := runtime
		t.Run(runtime, func(t *testing.T) {
			l := newTestLoader(t, NewLoaderConfig().WithRuntime(runtime))

			m, err := l.LoadModule(testCtx, path)
			require.NoError(t, err)
			require.Equal(t, "math", m.Name())
			require.Equal(t, path, m.Path())
			require.Equal(t, path, m.Source())
			require.Equal(t, runtime, m.Runtime())

			sum, err := m.Add(testCtx, 7, 9)
			require.NoError(t, err)
			require.Equal(t, int32(16), sum)

			sum, err = m.Add(testCtx, math.MaxInt32, 1)
			require.NoError(t, err)
			require.Equal(t, int32(math.MinInt32), sum)

			ok, err := m.IsAnswerFortyTwo(testCtx, 42)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = m.IsAnswerFortyTwo(testCtx, -42)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestLoader_LoadModule_Builtin(t *testing.T) {
	l := newTestLoader(t, nil)

	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)
	require.Equal(t, wasmgen.ArithModuleName, m.Name())
	require.Equal(t, BuiltinSource, m.Source())

	sum, err := m.Add(testCtx, -7, -9)
	require.NoError(t, err)
	require.Equal(t, int32(-16), sum)
}

func TestLoader_LoadModule_WasmBindgenGlue(t *testing.T) {
	dir := t.TempDir()
	writeArithWasm(t, dir, "arith_bg.wasm")
	jsPath := filepath.Join(dir, "arith.js")

	l := newTestLoader(t, nil)
	m, err := l.LoadModule(testCtx, jsPath)
	require.NoError(t, err)
	require.Equal(t, "arith_bg", m.Name())
	require.Equal(t, jsPath, m.Path())
	require.Equal(t, filepath.Join(dir, "arith_bg.wasm"), m.Source())

	cached, ok := l.GetModule(jsPath)
	require.True(t, ok)
	require.Same(t, m, cached)
}

func TestLoader_LoadModule_Cached(t *testing.T) {
	path := writeArithWasm(t, t.TempDir(), "arith.wasm")
	var log bytes.Buffer
	l := newTestLoader(t, NewLoaderConfig().WithLogWriter(&log))

	first, err := l.LoadModule(testCtx, path)
	require.NoError(t, err)

	// The second load must not read the file.
	require.NoError(t, os.Remove(path))
	second, err := l.LoadModule(testCtx, path)
	require.NoError(t, err)
	require.Same(t, first, second)

	require.Equal(t, "Successfully loaded WASM module from: "+path+"\n"+
		"Wasm module already loaded: "+path+"\n", log.String())
}

func TestLoader_LoadModule_GoRuntime(t *testing.T) {
	l := newTestLoader(t, NewLoaderConfig().WithRuntime(engine.RuntimeGo))

	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)

	var sum int32
	require.NotPanics(t, func() { sum, err = m.Add(testCtx, 7, 9) })
	require.NoError(t, err)
	require.Equal(t, int32(16), sum)

	var ok bool
	require.NotPanics(t, func() { ok, err = m.IsAnswerFortyTwo(testCtx, 42) })
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoader_LoadModule_Concurrent(t *testing.T) {
	path := writeArithWasm(t, t.TempDir(), "arith.wasm")
	l := newTestLoader(t, nil)

	P := 8
	if testing.Short() {
		P = 4
	}
	modules := make([]*Module, P)
	hammer.NewHammer(t, P, 1).Run(func(p, n int) {
		m, err := l.LoadModule(testCtx, path)
		require.NoError(t, err)
		modules[p] = m
	}, nil)
	if t.Failed() {
		return
	}

	for _, m := range modules {
		require.Same(t, modules[0], m)
	}
}

func TestLoader_LoadModule_Errors(t *testing.T) {
	dir := t.TempDir()
	notWasmPath := filepath.Join(dir, "bears.wasm")
	require.NoError(t, os.WriteFile(notWasmPath, []byte("pooh"), 0o600))

	onlyAddPath := filepath.Join(dir, "only_add.wasm")
	require.NoError(t, os.WriteFile(onlyAddPath, wasmgen.EncodeModule(&wasmgen.Module{Funcs: []wasmgen.Func{
		{
			Name:    "add",
			Params:  engine.ArithSignatures["add"].Params,
			Results: engine.ArithSignatures["add"].Results,
			Body:    []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeI32Add},
		},
	}}), 0o600))

	tests := []struct {
		name        string
		config      *LoaderConfig
		path        string
		expectedErr error
		message     string
	}{
		{
			name:    "missing file",
			path:    filepath.Join(dir, "non-existent.wasm"),
			message: "error reading wasm binary",
		},
		{
			name:    "not wasm",
			path:    notWasmPath,
			message: "error compiling wasm binary",
		},
		{
			name:        "missing export",
			path:        onlyAddPath,
			expectedErr: ErrNotExported,
			message:     "isAnswerFortyTwo is not an exported function",
		},
		{
			name:        "unknown runtime",
			config:      NewLoaderConfig().WithRuntime("pooh"),
			path:        "",
			expectedErr: ErrUnknownRuntime,
			message:     `unknown runtime: "pooh"`,
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			config := tt.config
			if config == nil {
				config = NewLoaderConfig()
			}
			var log bytes.Buffer
			l := newTestLoader(t, config.WithLogWriter(&log))

			_, err := l.LoadModule(testCtx, tt.path)
			require.Error(t, err)
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
			}
			require.Contains(t, err.Error(), tt.message)
			require.Contains(t, log.String(), "Failed to load WASM module from "+tt.path+": ")

			_, ok := l.GetModule(tt.path)
			require.False(t, ok)
		})
	}
}

func TestLoader_GetModule(t *testing.T) {
	l := newTestLoader(t, nil)

	_, ok := l.GetModule("")
	require.False(t, ok)

	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)

	got, ok := l.GetModule("")
	require.True(t, ok)
	require.Same(t, m, got)
}

func TestLoader_Close(t *testing.T) {
	l := NewLoader(nil)
	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)

	require.NoError(t, l.Close(testCtx))

	_, err = m.Add(testCtx, 1, 2)
	require.ErrorIs(t, err, ErrClosed)

	_, err = l.LoadModule(testCtx, "")
	require.ErrorIs(t, err, ErrLoaderClosed)

	_, ok := l.GetModule("")
	require.False(t, ok)
}

func TestModule_Close(t *testing.T) {
	l := newTestLoader(t, nil)
	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)

	require.NoError(t, m.Close(testCtx))
	require.NoError(t, m.Close(testCtx)) // no-op

	_, err = m.IsAnswerFortyTwo(testCtx, 42)
	require.ErrorIs(t, err, ErrClosed)

	// Closing a module forgets it, so the next load is a new module.
	_, ok := l.GetModule("")
	require.False(t, ok)
	reloaded, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)
	require.NotSame(t, m, reloaded)
}

func TestModule_Concurrent(t *testing.T) {
	l := newTestLoader(t, nil)
	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)

	P := 8
	N := 200
	if testing.Short() {
		P = 4
		N = 20
	}
	hammer.NewHammer(t, P, N).Run(func(p, n int) {
		sum, err := m.Add(testCtx, int32(p), int32(n))
		require.NoError(t, err)
		require.Equal(t, int32(p+n), sum)

		ok, err := m.IsAnswerFortyTwo(testCtx, int32(p+n))
		require.NoError(t, err)
		require.Equal(t, p+n == 42, ok)
	}, nil)
}

func TestLoaderConfig_Trace(t *testing.T) {
	var trace bytes.Buffer
	l := newTestLoader(t, NewLoaderConfig().WithTrace(&trace))
	m, err := l.LoadModule(testCtx, "")
	require.NoError(t, err)

	_, err = m.Add(testCtx, 7, 9)
	require.NoError(t, err)
	require.Contains(t, trace.String(), "arith.add")
}

func TestLoaderConfig_Immutable(t *testing.T) {
	base := NewLoaderConfig()
	changed := base.WithRuntime(engine.RuntimeGo).WithCompilationCache("/tmp/cache")

	require.Equal(t, engine.RuntimeWazero, base.runtime)
	require.Equal(t, "", base.cacheDir)
	require.Equal(t, engine.RuntimeGo, changed.runtime)
	require.Equal(t, "/tmp/cache", changed.cacheDir)
}

func TestRuntimes(t *testing.T) {
	require.Subset(t, Runtimes(), []string{engine.RuntimeGo, engine.RuntimeWazero, engine.RuntimeWazeroInterpreter})
}

func TestExports(t *testing.T) {
	var names []string
	for _, d := range Exports() {
		names = append(names, d.String())
	}
	require.Equal(t, []string{"add(i32, i32) -> i32", "isAnswerFortyTwo(i32) -> i32"}, names)
	require.Equal(t, []string{"is_answer_forty_two"}, Exports()[1].Aliases)
}
