package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Workers resolves a configured worker count: 0 means one per CPU and
// anything below 1 runs sequentially.
func Workers(n int) int {
	switch {
	case n == 0:
		return runtime.NumCPU()
	case n < 0:
		return 1
	}
	return n
}

// forEach calls fn for every index in [0, n) on up to workers goroutines.
// A panic inside fn is recovered and reported as that unit's error; it
// never stops the other units. Dispatch stops early when ctx is done.
// errs[i] holds the error of unit i.
func forEach(ctx context.Context, n, workers int, fn func(i int) error) (errs []error) {
	errs = make([]error, n)
	if n == 0 {
		return errs
	}
	workers = min(Workers(workers), n)

	run := func(i int) {
		defer func() {
			if e := recover(); e != nil {
				errs[i] = fmt.Errorf("panic: %v\n%s", e, debug.Stack())
			}
		}()
		errs[i] = fn(i)
	}

	if workers == 1 {
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}
			run(i)
		}
		return errs
	}

	ch := make(chan int, workers)
	go func() {
		defer close(ch)
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				continue
			}
			ch <- i
		}
	}()

	wg := sync.WaitGroup{}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range ch {
				run(i)
			}
		}()
	}
	wg.Wait()
	return errs
}
