// Package par runs sets of work items in parallel.
package par

import (
	"context"
	"sync"
)

// Work manages a set of work items to be executed in parallel, at most once
// each. The items in the set must all be valid map keys.
//
// Items are started in the order they were added. Once f returns an error or
// the context is canceled, no further items are started; items already
// running are allowed to finish.
type Work[T comparable] struct {
	f       func(context.Context, T) error // function to run for each item
	running int                            // total number of runners

	mu      sync.Mutex
	added   map[T]bool // items added to set
	todo    []T        // items yet to be run
	wait    sync.Cond  // wait when todo is empty
	waiting int        // number of runners waiting for todo
	err     error      // first error returned by f
}

func (w *Work[T]) init() {
	if w.added == nil {
		w.added = make(map[T]bool)
	}
}

// Add adds item to the work set, if it hasn't already been added.
// Items added after a failure are never run.
func (w *Work[T]) Add(item T) {
	w.mu.Lock()
	w.init()
	if !w.added[item] {
		w.added[item] = true
		if w.err != nil {
			w.mu.Unlock()
			return
		}
		w.todo = append(w.todo, item)
		if w.waiting > 0 {
			w.wait.Signal()
		}
	}
	w.mu.Unlock()
}

// Do runs f in parallel on items from the work set,
// with at most n invocations of f running at a time.
// It returns when everything added to the work set has been processed,
// or, after a failure, when every running invocation has returned.
// The result is the first error returned by f, or the context error.
// It is allowed for f(item) to add new items to the set.
// Do should only be used once on a given Work.
func (w *Work[T]) Do(ctx context.Context, n int, f func(ctx context.Context, item T) error) error {
	if n < 1 {
		panic("par.Work.Do: n < 1")
	}
	if w.running >= 1 {
		panic("par.Work.Do: already called Do")
	}

	w.running = n
	w.f = f
	w.wait.L = &w.mu

	stop := context.AfterFunc(ctx, func() {
		w.mu.Lock()
		w.fail(ctx.Err())
		w.mu.Unlock()
	})
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runner(ctx)
		}()
	}
	w.runner(ctx)
	wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// fail records err and drops the remaining items. w.mu must be held.
func (w *Work[T]) fail(err error) {
	if w.err == nil {
		w.err = err
	}
	w.todo = nil
	w.wait.Broadcast()
}

// runner executes work in w until both nothing is left to do
// and all the runners are waiting for work.
// (Then all the runners return.)
func (w *Work[T]) runner(ctx context.Context) {
	for {
		// Wait for something to do.
		w.mu.Lock()
		for len(w.todo) == 0 {
			w.waiting++
			if w.waiting == w.running {
				// All done.
				w.wait.Broadcast()
				w.mu.Unlock()
				return
			}
			w.wait.Wait()
			w.waiting--
		}

		item := w.todo[0]
		w.todo = w.todo[1:]
		w.mu.Unlock()

		if err := w.f(ctx, item); err != nil {
			w.mu.Lock()
			w.fail(err)
			w.mu.Unlock()
		}
	}
}
