package cleanup

import (
	"errors"
	"testing"

	"github.com/rask-lang/rask-sub007/internal/ir"
)

func TestPlanFiresInLIFOOrderAtFallthrough(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "closeA"}, Consumes: "a"},
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "closeB"}, Consumes: "b"},
			},
		}},
	}

	plan := NewPlanner().Plan(fn)
	if len(plan.Fires) != 1 {
		t.Fatalf("expected exactly one fire point, got %d", len(plan.Fires))
	}

	got := plan.Fires[0]
	if got.Reason != ExitFallthrough {
		t.Fatalf("expected ExitFallthrough, got %v", got.Reason)
	}

	if len(got.Steps) != 2 || got.Steps[0].Consumes != "b" || got.Steps[1].Consumes != "a" {
		t.Fatalf("expected LIFO order [b, a], got %v", got.Steps)
	}
}

func TestPlanFiresAtEarlyReturn(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "closeA"}, Consumes: "a"},
				ir.Return{},
			},
		}},
	}

	plan := NewPlanner().Plan(fn)
	if len(plan.Fires) != 1 {
		t.Fatalf("expected exactly one fire point, got %d", len(plan.Fires))
	}

	if plan.Fires[0].Reason != ExitReturn {
		t.Fatalf("expected ExitReturn, got %v", plan.Fires[0].Reason)
	}

	if len(plan.Fires[0].Steps) != 1 || plan.Fires[0].Steps[0].Consumes != "a" {
		t.Fatalf("expected one step for %q, got %v", "a", plan.Fires[0].Steps)
	}
}

func TestPanicStepsAccumulateEveryRegistration(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "closeA"}, Consumes: "a"},
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "closeB"}, Consumes: "b"},
				ir.Return{},
			},
		}},
	}

	plan := NewPlanner().Plan(fn)
	if len(plan.PanicSteps) != 2 {
		t.Fatalf("expected both registrations tracked for panic unwind, got %v", plan.PanicSteps)
	}
}

func TestFireAggregatesFaultsAndRunsEveryStep(t *testing.T) {
	steps := []Registration{
		{Consumes: "b", Expr: ir.Call{Callee: "closeB"}},
		{Consumes: "a", Expr: ir.Call{Callee: "closeA"}},
	}

	var ran []string

	err := Fire(steps, func(r Registration) error {
		ran = append(ran, r.Consumes)

		return errors.New(r.Consumes + " failed")
	})

	if len(ran) != 2 {
		t.Fatalf("expected both steps to run despite failures, got %v", ran)
	}

	if err == nil {
		t.Fatal("expected an aggregated error")
	}
}
