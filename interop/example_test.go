package interop_test

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/wasm-interop/arith/interop"
)

// Example loads the built-in module and calls both exports.
func Example() {
	ctx := context.Background()

	loader := interop.NewLoader(interop.NewLoaderConfig())
	defer loader.Close(ctx)

	mod, err := loader.LoadModule(ctx, "")
	if err != nil {
		log.Panicln(err)
	}

	sum, err := mod.Add(ctx, math.MaxInt32, 1)
	if err != nil {
		log.Panicln(err)
	}
	answer, err := mod.IsAnswerFortyTwo(ctx, 42)
	if err != nil {
		log.Panicln(err)
	}
	fmt.Println(sum, answer)

	// Output:
	// -2147483648 true
}
