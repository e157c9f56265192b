// Package hammer runs a test function concurrently, to expose races in code that claims to be goroutine-safe.
package hammer

import (
	"runtime"
	"sync"
	"testing"
)

// Hammer invokes a test concurrently in P goroutines N times per goroutine.
//
// Here's an example:
//
//	P := 8               // max count of goroutines
//	N := 1000            // work per goroutine
//	if testing.Short() { // Adjust down if `-test.short`
//		P = 4
//		N = 100
//	}
//
//	hammer.NewHammer(t, P, N).Run(func(p, n int) {
//		// Do test using p and n if something needs to be unique.
//	}, nil)
//
//	if t.Failed() {
//		return // At least one test failed, so return now.
//	}
type Hammer interface {
	// Run invokes test concurrently in P goroutines, each looping N times. onRunning, when not nil, is called
	// after all goroutines are running, but before any of them invoke test.
	Run(test func(p, n int), onRunning func())
}

// NewHammer returns a Hammer initialized to indicated count of goroutines (P) and iterations per goroutine (N).
func NewHammer(t testing.TB, P, N int) Hammer {
	return &hammer{t: t, P: P, N: N}
}

type hammer struct {
	t    testing.TB
	P, N int
}

// Run implements Hammer.Run
func (h *hammer) Run(test func(p, n int), onRunning func()) {
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(h.P / 2)) // Ensure goroutines have to switch cores.

	var running, finished sync.WaitGroup
	// unblocked is closed to release all goroutines at the same time.
	unblocked := make(chan struct{})

	running.Add(h.P)
	finished.Add(h.P)
	for p := 0; p < h.P; p++ {
		go func(p int) {
			defer finished.Done()
			defer func() { // Ensure each require.XX failure is visible on hammer test fail.
				if recovered := recover(); recovered != nil {
					h.t.Error(recovered)
				}
			}()
			running.Done()

			<-unblocked
			for n := 0; n < h.N; n++ {
				test(p, n)
			}
		}(p)
	}

	running.Wait()
	if onRunning != nil {
		onRunning()
	}
	close(unblocked)
	finished.Wait()
}
