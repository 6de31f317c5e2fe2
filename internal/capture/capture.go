// Package capture implements C6, the closure capture analyzer of
// spec.md §4.6: it rejects a closure capturing an expression-scoped
// borrow at all (such a borrow is already gone by the time any closure
// body could run), rejects a closure that escapes its defining block
// from capturing a block-scoped borrow (the borrow's scope ends with
// the block, but the closure may run after), and exempts closures that
// are invoked immediately within the same expression (ImmediateCall)
// from the escape rule even when their literal's Escapes flag would
// otherwise suggest they outlive the block.
//
// Grounded on the teacher's internal/mir/borrow.go region/lifetime
// containment checks (Lifetime.Contains, "does this borrow's region
// contain that point"), adapted from a points-in-region test to a
// scope-kind containment test over this core's two borrow-scope kinds,
// since the IR does not carry full program-point lifetimes for
// closures — only which block or statement produced each borrow.
package capture

import (
	"fmt"

	"github.com/rask-lang/rask-sub007/internal/diagnostic"
	"github.com/rask-lang/rask-sub007/internal/ir"
)

// Result is the outcome of checking one function.
type Result struct {
	Diagnostics *diagnostic.Bag
}

// Checker runs the C6 capture analysis one function at a time. It also
// accumulates diagnostics across repeated CheckFunction calls
// (GetErrors/ClearErrors), matching the other checker components.
type Checker struct {
	errs []diagnostic.Diagnostic
}

// NewChecker constructs a Checker.
func NewChecker() *Checker { return &Checker{} }

// GetErrors returns every diagnostic accumulated since the last ClearErrors.
func (c *Checker) GetErrors() []diagnostic.Diagnostic { return c.errs }

// ClearErrors discards the accumulated diagnostic history.
func (c *Checker) ClearErrors() { c.errs = nil }

// String renders a one-line summary of the accumulated diagnostics.
func (c *Checker) String() string {
	return fmt.Sprintf("capture: %d diagnostic(s) accumulated", len(c.errs))
}

// CheckFunction validates every ClosureLit in fn against the borrows
// available at its point of definition.
func (c *Checker) CheckFunction(fn *ir.Function) Result {
	bag := &diagnostic.Bag{}

	scopes := collectBorrowScopes(fn)

	for _, bb := range fn.Blocks {
		for _, instr := range bb.Instr {
			if lit, ok := instr.(ir.ClosureLit); ok {
				checkClosure(bag, scopes, lit)
			}
		}
	}

	c.errs = append(c.errs, bag.Items()...)

	return Result{Diagnostics: bag}
}

// collectBorrowScopes maps every binding produced by a borrow-producing
// instruction to the scope kind of that borrow: FieldAccess and
// SliceExpr are block-scoped, IndexExpr is expression-scoped (spec.md
// §4.2). A name produced more than once (shadowing within one function)
// keeps its most recent scope kind, matching how the binding would
// actually resolve at the closure's definition point in program order.
func collectBorrowScopes(fn *ir.Function) map[string]ir.BorrowScopeKind {
	scopes := map[string]ir.BorrowScopeKind{}

	for _, bb := range fn.Blocks {
		for _, instr := range bb.Instr {
			switch i := instr.(type) {
			case ir.FieldAccess:
				if i.Dst != "" {
					scopes[i.Dst] = ir.ScopeBlock
				}
			case ir.SliceExpr:
				if i.Dst != "" {
					scopes[i.Dst] = ir.ScopeBlock
				}
			case ir.IndexExpr:
				if i.Dst != "" {
					scopes[i.Dst] = ir.ScopeExpression
				}
			}
		}
	}

	return scopes
}

func checkClosure(bag *diagnostic.Bag, scopes map[string]ir.BorrowScopeKind, lit ir.ClosureLit) {
	for _, fv := range lit.FreeVars {
		if !fv.UsesBorrow {
			continue
		}

		scope, known := scopes[fv.Name]
		if !known {
			continue
		}

		switch scope {
		case ir.ScopeExpression, ir.ScopeCallDuration:
			bag.Addf(diagnostic.CaptureOfExpressionBorrow, lit.At,
				"closure cannot capture %q: its borrow ends at the enclosing statement", fv.Name)
		case ir.ScopeBlock:
			if lit.Escapes && !lit.ImmediateCall {
				bag.Addf(diagnostic.CaptureOutlivesBlockBorrow, lit.At,
					"closure capturing %q outlives the block its borrow is scoped to", fv.Name)
			}
		}
	}
}
