package engine

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wasm-interop/arith"
)

// WasmBindgenIsAnswerFortyTwo is the name wasm-bindgen exports a Rust "is_answer_forty_two" function as.
const WasmBindgenIsAnswerFortyTwo = "is_answer_forty_two"

// ArithSignatures are the signatures of the arithmetic exports. Booleans cross the boundary as i32.
var ArithSignatures = map[string]Signature{
	arith.ExportAdd: {
		Params:  []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	},
	arith.ExportIsAnswerFortyTwo: {
		Params:  []api.ValueType{api.ValueTypeI32},
		Results: []api.ValueType{api.ValueTypeI32},
	},
}

// NewArithConfig returns a RuntimeConfig requiring the arithmetic exports of wasm, instantiated as moduleName.
func NewArithConfig(moduleName string, wasm []byte) *RuntimeConfig {
	return &RuntimeConfig{
		ModuleName: moduleName,
		ModuleWasm: wasm,
		FuncNames:  []string{arith.ExportAdd, arith.ExportIsAnswerFortyTwo},
		Aliases: map[string][]string{
			arith.ExportIsAnswerFortyTwo: {WasmBindgenIsAnswerFortyTwo},
		},
		Signatures: ArithSignatures,
	}
}
