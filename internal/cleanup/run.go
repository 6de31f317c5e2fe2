package cleanup

import "errors"

// Fire executes steps in order (callers pass Steps already in LIFO
// order), running every step even after one fails, and aggregates every
// failure into a single error (spec.md §4.4 "cleanup faults do not
// stop remaining cleanups; they are aggregated and reported together").
// run is the back end's lowering of a Registration.Expr to an
// executable call.
func Fire(steps []Registration, run func(Registration) error) error {
	var errs []error

	for _, step := range steps {
		if err := run(step); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
