package quiver

import (
	"context"
	"errors"
	"sync"
)

// Check is one independent, read-only validation applied to a request
// value before its handler runs.
type Check[Req any] func(ctx context.Context, req Req) error

// RunChecks runs every check concurrently against the same request and
// waits for all of them to complete. Failures are aggregated with
// errors.Join in check order; the next pipeline layer must not run until
// RunChecks returns nil. The checks share one context, so cancelling it
// aborts all of them.
func RunChecks[Req any](ctx context.Context, req Req, checks []Check[Req]) error {
	switch len(checks) {
	case 0:
		return nil
	case 1:
		return checks[0](ctx, req)
	}

	errs := make([]error, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = check(ctx, req)
		}()
	}
	wg.Wait()

	return errors.Join(errs...)
}
