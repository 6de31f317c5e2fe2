// Package checker orchestrates C1–C6 over a resolved Module: for every
// function, it runs the ownership/move tracker, borrow scope checker,
// linear/affine resource checker, and closure capture analyzer, merges
// their diagnostics, and — only for a function with no diagnostics,
// per spec.md §7's propagation policy — builds its cleanup firing
// schedule.
//
// Grounded on the teacher's cmd/orizon/main.go and
// internal/packagemanager/manager.go, both of which fan independent
// per-unit work (compiling a package, resolving a dependency) out across
// an errgroup.Group rather than a hand-rolled WaitGroup/channel pair.
package checker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/rask-lang/rask-sub007/internal/borrowck"
	"github.com/rask-lang/rask-sub007/internal/capture"
	"github.com/rask-lang/rask-sub007/internal/cleanup"
	"github.com/rask-lang/rask-sub007/internal/diagnostic"
	"github.com/rask-lang/rask-sub007/internal/ir"
	"github.com/rask-lang/rask-sub007/internal/linear"
	"github.com/rask-lang/rask-sub007/internal/ownership"
)

// FunctionReport is the combined outcome of checking one function.
type FunctionReport struct {
	Function    string
	Diagnostics *diagnostic.Bag
	CleanupPlan cleanup.Plan
}

// Report is the outcome of checking an entire module.
type Report struct {
	Functions []FunctionReport
	// CopyEligibleTypes records, for every distinct parameter type name
	// encountered across the module, whether it is copy-eligible — a
	// by-product of warming Pipeline's SizeCache across the function
	// fan-out, useful to a back end deciding how to lower each
	// parameter without recomputing I-Copy itself.
	CopyEligibleTypes map[string]bool
}

// Pipeline runs the checker components over a Module.
type Pipeline struct {
	sizes *ir.SizeCache
}

// NewPipeline constructs a Pipeline with a fresh type-size cache.
func NewPipeline() *Pipeline {
	return &Pipeline{sizes: ir.NewSizeCache()}
}

// Check analyzes every function in mod concurrently, one goroutine per
// function (spec.md §4 "each component runs once over each function,
// independently of other functions"), stopping at the first component
// failure any goroutine reports through ctx's group.
func (p *Pipeline) Check(ctx context.Context, mod *ir.Module) (Report, error) {
	reports := make([]FunctionReport, len(mod.Functions))

	g, _ := errgroup.WithContext(ctx)

	for idx, fn := range mod.Functions {
		idx, fn := idx, fn

		g.Go(func() error {
			reports[idx] = p.checkFunction(fn)

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	return Report{Functions: reports, CopyEligibleTypes: p.copyEligibilitySummary(mod)}, nil
}

func (p *Pipeline) checkFunction(fn *ir.Function) FunctionReport {
	bag := &diagnostic.Bag{}

	bag.Merge(ownership.NewCheckerWithSizes(p.sizes).CheckFunction(fn).Diagnostics)
	bag.Merge(borrowck.NewCheckerWithSizes(p.sizes).CheckFunction(fn).Diagnostics)
	bag.Merge(linear.NewChecker().CheckFunction(fn).Diagnostics)
	bag.Merge(capture.NewChecker().CheckFunction(fn).Diagnostics)

	var plan cleanup.Plan
	if bag.Empty() {
		plan = cleanup.NewPlanner().Plan(fn)
	}

	return FunctionReport{Function: fn.Name, Diagnostics: bag, CleanupPlan: plan}
}

// copyEligibilitySummary looks up every distinct parameter type's
// copy-eligibility through the shared SizeCache, so repeated types
// across functions (already warmed by checkFunction's concurrent
// ownership/borrowck checkers, which resolve CopyEligible through this
// same cache instance) resolve to a single underlying computation.
func (p *Pipeline) copyEligibilitySummary(mod *ir.Module) map[string]bool {
	out := map[string]bool{}

	for _, fn := range mod.Functions {
		for _, param := range fn.Parameters {
			if param.Type == nil {
				continue
			}

			out[param.Type.Name] = p.sizes.CopyEligible(param.Type)
		}
	}

	return out
}
