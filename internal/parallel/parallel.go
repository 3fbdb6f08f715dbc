// Package parallel splits row ranges across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// minRowsPerWorker keeps tiny images on the calling goroutine.
const minRowsPerWorker = 16

// Rows calls fn for disjoint stripes [y0, y1) covering [0, height). The
// stripes run concurrently; fn must only write data owned by its rows.
func Rows(height int, fn func(y0, y1 int)) {
	workers := min(runtime.NumCPU(), height/minRowsPerWorker)
	if workers <= 1 {
		if height > 0 {
			fn(0, height)
		}

		return
	}

	rowsPerWorker := (height + workers - 1) / workers

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		y0 := i * rowsPerWorker
		if y0 >= height {
			break
		}

		y1 := min(y0+rowsPerWorker, height)

		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(y0, y1)
		}()
	}

	wg.Wait()
}

// RowsErr is Rows for functions that can fail. The first error in stripe
// order is returned after all stripes finish.
func RowsErr(height int, fn func(y0, y1 int) error) error {
	var (
		mu     sync.Mutex
		first  error
		firstY = height
	)

	Rows(height, func(y0, y1 int) {
		if err := fn(y0, y1); err != nil {
			mu.Lock()
			if y0 < firstY {
				first, firstY = err, y0
			}
			mu.Unlock()
		}
	})

	return first
}
