//go:build cgo

// Command arith-cshared exports package arith to C hosts.
//
//	go build -buildmode=c-shared -o libarith.so ./cmd/arith-cshared
//
// The generated libarith.h declares:
//
//	extern int32_t add(int32_t a, int32_t b);
//	extern bool isAnswerFortyTwo(int32_t x);
package main

/*
#include <stdbool.h>
#include <stdint.h>
*/
import "C"

import "github.com/wasm-interop/arith"

//export add
func add(a, b C.int32_t) C.int32_t {
	return C.int32_t(arith.Add(int32(a), int32(b)))
}

//export isAnswerFortyTwo
func isAnswerFortyTwo(x C.int32_t) C.bool {
	return C.bool(arith.IsAnswerFortyTwo(int32(x)))
}

func main() {}
