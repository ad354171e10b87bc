// Package fn holds small generic helpers shared by the pipeline.
package fn

import "sync"

// ParMap applies f to each item with bounded concurrency, preserving order.
// A non-positive workers value runs every item at once.
func ParMap[T, U any](items []T, workers int, f func(T) U) []U {
	out := make([]U, len(items))
	var wg sync.WaitGroup

	if workers <= 0 {
		workers = len(items)
	}
	if workers == 0 {
		return out
	}

	sem := make(chan struct{}, workers)
	for i, v := range items {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, v T) {
			defer func() { <-sem; wg.Done() }()
			out[i] = f(v)
		}(i, v)
	}
	wg.Wait()
	return out
}

// ParMapResult applies f with bounded concurrency, returning Results in order.
func ParMapResult[T, U any](items []T, workers int, f func(T) (U, error)) []Result[U] {
	return ParMap(items, workers, func(v T) Result[U] {
		return Of(f(v))
	})
}
