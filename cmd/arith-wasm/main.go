//go:build wasip1

// Command arith-wasm exports package arith to WebAssembly hosts.
//
// Build it as a WASI reactor, so the host can call exports after "_initialize":
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o arith.wasm ./cmd/arith-wasm
//
// Then call it with the CLI:
//
//	go run ./cmd/arith add -module arith.wasm 7 9
package main

import "github.com/wasm-interop/arith"

//go:wasmexport add
func add(a, b int32) int32 {
	return arith.Add(a, b)
}

// isAnswerFortyTwo returns the result as an i32: 1 for true, 0 for false.
//
//go:wasmexport isAnswerFortyTwo
func isAnswerFortyTwo(x int32) int32 {
	if arith.IsAnswerFortyTwo(x) {
		return 1
	}
	return 0
}

func main() {}
