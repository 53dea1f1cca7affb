package cgmm

import "golang.org/x/sync/errgroup"

// forEachBin runs fn for every bin index on at most workers goroutines and
// returns the first error. fn must only write state owned by its bin.
func forEachBin(bins, workers int, fn func(f int) error) error {
	if workers <= 1 {
		for f := range bins {
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for f := range bins {
		g.Go(func() error {
			return fn(f)
		})
	}
	return g.Wait()
}
