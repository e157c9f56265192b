package engine

import (
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wasm-interop/arith"
)

// RuntimeGo implements the arithmetic exports in Go, as a wazero host module. RuntimeConfig.ModuleWasm is ignored.
const RuntimeGo = "go"

func init() {
	Register(RuntimeGo, func() Runtime {
		// Exports of a host module are only callable directly under the interpreter.
		return newWazeroRuntime(RuntimeGo, wazero.NewRuntimeConfigInterpreter, compileHostModule)
	})
}

func compileHostModule(ctx context.Context, r wazero.Runtime, cfg *RuntimeConfig) (wazero.CompiledModule, error) {
	return r.NewHostModuleBuilder(cfg.ModuleName).
		NewFunctionBuilder().
		WithFunc(hostAdd).
		WithParameterNames("a", "b").
		Export(arith.ExportAdd).
		NewFunctionBuilder().
		WithFunc(hostIsAnswerFortyTwo).
		WithParameterNames("x").
		Export(arith.ExportIsAnswerFortyTwo).
		Compile(ctx)
}

func hostAdd(_ context.Context, a, b int32) int32 {
	return arith.Add(a, b)
}

func hostIsAnswerFortyTwo(_ context.Context, x int32) int32 {
	if arith.IsAnswerFortyTwo(x) {
		return 1
	}
	return 0
}
