// Package enginetest contains tests common to any engine.Runtime implementation. Defining these as top-level
// functions lets each runtime package dispatch to them, including those built only with cgo:
//
//	func TestArith(t *testing.T) {
//		enginetest.RunTestArith(t, New)
//	}
package enginetest

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasm-interop/arith"
	"github.com/wasm-interop/arith/internal/engine"
	"github.com/wasm-interop/arith/internal/testing/hammer"
	"github.com/wasm-interop/arith/internal/wasmgen"
)

const i32, i64 = api.ValueTypeI32, api.ValueTypeI64

// testCtx is an arbitrary, non-default context. Non-nil also prevents linter errors.
var testCtx = context.WithValue(context.Background(), struct{}{}, "arbitrary")

// instantiate compiles and instantiates cfg, closing both when the test completes.
func instantiate(t *testing.T, newRuntime func() engine.Runtime, cfg *engine.RuntimeConfig) engine.Module {
	r := newRuntime()
	require.NoError(t, r.Compile(testCtx, cfg))
	t.Cleanup(func() { require.NoError(t, r.Close(testCtx)) })

	m, err := r.Instantiate(testCtx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Close(testCtx)) })
	return m
}

// add calls the "add" export with signed arguments.
func add(t *testing.T, m engine.Module, a, b int32) int32 {
	result, err := m.CallI32I32_I32(testCtx, arith.ExportAdd, uint32(a), uint32(b))
	require.NoError(t, err)
	return int32(result)
}

// isAnswerFortyTwo calls the "isAnswerFortyTwo" export, returning its raw i32 result.
func isAnswerFortyTwo(t *testing.T, m engine.Module, x int32) uint32 {
	result, err := m.CallI32_I32(testCtx, arith.ExportIsAnswerFortyTwo, uint32(x))
	require.NoError(t, err)
	return result
}

// RunTestArith ensures the runtime calls both exports of wasmgen.ArithModule with the same results as package arith.
func RunTestArith(t *testing.T, newRuntime func() engine.Runtime) {
	m := instantiate(t, newRuntime, engine.NewArithConfig("arith", wasmgen.ArithModule()))

	samples := []int32{math.MinInt32, -42, -1, 0, 1, 41, 42, 43, math.MaxInt32}
	for _, a := range samples {
		for _, b := range samples {
			require.Equal(t, arith.Add(a, b), add(t, m, a, b), "add(%d, %d)", a, b)
		}
	}
	require.Equal(t, int32(math.MinInt32), add(t, m, math.MaxInt32, 1))

	require.Equal(t, uint32(1), isAnswerFortyTwo(t, m, 42))
	for _, x := range []int32{0, -42, 41, 43, math.MaxInt32, math.MinInt32} {
		require.Equal(t, uint32(0), isAnswerFortyTwo(t, m, x), "isAnswerFortyTwo(%d)", x)
	}
}

// RunTestArith_Concurrent ensures a module can be called from many goroutines at once.
func RunTestArith_Concurrent(t *testing.T, newRuntime func() engine.Runtime) {
	m := instantiate(t, newRuntime, engine.NewArithConfig("arith", wasmgen.ArithModule()))

	P := 8               // max count of goroutines
	N := 100             // work per goroutine
	if testing.Short() { // Adjust down if `-test.short`
		P = 4
		N = 20
	}

	hammer.NewHammer(t, P, N).Run(func(p, n int) {
		require.Equal(t, int32(p+n), add(t, m, int32(p), int32(n)))
		require.Equal(t, uint32(1), isAnswerFortyTwo(t, m, 42))
	}, nil)
}

// RunTestTrace ensures RuntimeConfig.Trace records calls to the exports.
func RunTestTrace(t *testing.T, newRuntime func() engine.Runtime) {
	var trace bytes.Buffer
	cfg := engine.NewArithConfig("arith", wasmgen.ArithModule())
	cfg.Trace = &trace
	m := instantiate(t, newRuntime, cfg)

	require.Equal(t, int32(16), add(t, m, 7, 9))
	require.Contains(t, trace.String(), "arith.add")
	require.Contains(t, trace.String(), "16")
}

// RunTestWasmBindgenAlias ensures "is_answer_forty_two" satisfies "isAnswerFortyTwo", as wasm-bindgen names it that
// way when exported from Rust.
func RunTestWasmBindgenAlias(t *testing.T, newRuntime func() engine.Runtime) {
	bin := wasmgen.EncodeModule(&wasmgen.Module{Funcs: []wasmgen.Func{
		{
			Name: arith.ExportAdd, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32},
			Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeI32Add},
		},
		{
			Name: engine.WasmBindgenIsAnswerFortyTwo, Params: []api.ValueType{i32}, Results: []api.ValueType{i32},
			Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 42, wasmgen.OpcodeI32Eq},
		},
	}})
	m := instantiate(t, newRuntime, engine.NewArithConfig("bindgen", bin))

	require.Equal(t, uint32(1), isAnswerFortyTwo(t, m, 42))
	require.Equal(t, uint32(0), isAnswerFortyTwo(t, m, 7))
}

// RunTestWASIReactor ensures a reactor importing "wasi_snapshot_preview1", as built with GOOS=wasip1, instantiates
// and calls its exports.
func RunTestWASIReactor(t *testing.T, newRuntime func() engine.Runtime) {
	m := instantiate(t, newRuntime, engine.NewArithConfig("arith", wasmgen.ArithReactorModule()))

	require.Equal(t, int32(16), add(t, m, 7, 9))
	require.Equal(t, int32(math.MinInt32), add(t, m, math.MaxInt32, 1))
	require.Equal(t, uint32(1), isAnswerFortyTwo(t, m, 42))
	require.Equal(t, uint32(0), isAnswerFortyTwo(t, m, 41))
}

// RunTestInitialize ensures a reactor's "_initialize" export runs on Instantiate, by exporting one that traps.
func RunTestInitialize(t *testing.T, newRuntime func() engine.Runtime) {
	bin := wasmgen.EncodeModule(&wasmgen.Module{Funcs: []wasmgen.Func{
		{
			Name: arith.ExportAdd, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32},
			Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeI32Add},
		},
		{
			Name: arith.ExportIsAnswerFortyTwo, Params: []api.ValueType{i32}, Results: []api.ValueType{i32},
			Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeI32Const, 42, wasmgen.OpcodeI32Eq},
		},
		{Name: "_initialize", Body: []byte{wasmgen.OpcodeUnreachable}},
	}})
	cfg := engine.NewArithConfig("reactor", bin)

	r := newRuntime()
	defer r.Close(testCtx)
	require.NoError(t, r.Compile(testCtx, cfg))

	m, err := r.Instantiate(testCtx, cfg)
	if m != nil {
		_ = m.Close(testCtx)
	}
	require.Error(t, err)
}

// RunTestErrors ensures modules without the expected exports fail on Compile or Instantiate.
func RunTestErrors(t *testing.T, newRuntime func() engine.Runtime) {
	addFunc := wasmgen.Func{
		Name: arith.ExportAdd, Params: []api.ValueType{i32, i32}, Results: []api.ValueType{i32},
		Body: []byte{wasmgen.OpcodeLocalGet, 0, wasmgen.OpcodeLocalGet, 1, wasmgen.OpcodeI32Add},
	}

	tests := []struct {
		name        string
		wasm        []byte
		expectedErr error
	}{
		{
			name:        "missing isAnswerFortyTwo",
			wasm:        wasmgen.EncodeModule(&wasmgen.Module{Funcs: []wasmgen.Func{addFunc}}),
			expectedErr: engine.ErrNotExported,
		},
		{
			name: "isAnswerFortyTwo takes i64",
			wasm: wasmgen.EncodeModule(&wasmgen.Module{Funcs: []wasmgen.Func{addFunc, {
				Name: arith.ExportIsAnswerFortyTwo, Params: []api.ValueType{i64}, Results: []api.ValueType{i32},
				Body: []byte{wasmgen.OpcodeI32Const, 0},
			}}}),
			expectedErr: engine.ErrSignatureMismatch,
		},
	}

	for _, tc := range tests {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			cfg := engine.NewArithConfig("arith", tt.wasm)
			r := newRuntime()
			defer r.Close(testCtx)

			err := r.Compile(testCtx, cfg)
			if err == nil {
				var m engine.Module
				m, err = r.Instantiate(testCtx, cfg)
				if m != nil {
					_ = m.Close(testCtx)
				}
			}
			require.ErrorIs(t, err, tt.expectedErr)
		})
	}

	t.Run("invalid binary", func(t *testing.T) {
		r := newRuntime()
		defer r.Close(testCtx)
		require.Error(t, r.Compile(testCtx, engine.NewArithConfig("arith", []byte("pooh"))))
	})
}
