// Package arith holds the two functions this module exposes across a foreign-function boundary.
//
// The same functions are exported to WebAssembly hosts by cmd/arith-wasm, to C hosts by cmd/arith-cshared, and
// called back from Go through package interop.
package arith

// Answer is the only value IsAnswerFortyTwo accepts.
const Answer int32 = 42

// Names of the functions as exported across the foreign-function boundary.
const (
	ExportAdd              = "add"
	ExportIsAnswerFortyTwo = "isAnswerFortyTwo"
)

// Add returns the sum of a and b.
//
// Overflow wraps using two's-complement arithmetic, like the WebAssembly "i32.add" instruction. For example,
// Add(math.MaxInt32, 1) returns math.MinInt32.
func Add(a, b int32) int32 {
	return a + b
}

// IsAnswerFortyTwo returns true if and only if x is Answer.
func IsAnswerFortyTwo(x int32) bool {
	return x == Answer
}
