package ownership

import (
	"testing"

	"github.com/rask-lang/rask-sub007/internal/diagnostic"
	"github.com/rask-lang/rask-sub007/internal/ir"
)

func hasKind(items []diagnostic.Diagnostic, kind diagnostic.Kind) bool {
	for _, d := range items {
		if d.Kind == kind {
			return true
		}
	}

	return false
}

var (
	smallInt = &ir.Type{Name: "i32", Size: 4, Primitive: true}
	bigOwned = &ir.Type{Name: "Buffer", Size: 64, HeapOwning: true}
)

func TestMoveThenUseIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "a", Src: ir.Value{Kind: ir.ValConstInt, Type: bigOwned}, Redeclare: true},
				ir.Assign{Dst: "b", Src: ir.Ref("a", bigOwned), Redeclare: true},
				ir.Assign{Dst: "c", Src: ir.Ref("a", bigOwned), Redeclare: true}, // second move of a
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.UseAfterMove) && !hasKind(res.Diagnostics.Items(), diagnostic.MoveAfterMove) {
		t.Fatalf("expected a move/use-after-move diagnostic, got %v", res.Diagnostics.Items())
	}
}

func TestCopyEligibleStaysLiveAfterAssign(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "a", Src: ir.Value{Kind: ir.ValConstInt, Type: smallInt}, Redeclare: true},
				ir.Assign{Dst: "b", Src: ir.Ref("a", smallInt), Redeclare: true},
				ir.Assign{Dst: "c", Src: ir.Ref("a", smallInt), Redeclare: true},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !res.Diagnostics.Empty() {
		t.Fatalf("expected no diagnostics for copy-eligible reuse, got %v", res.Diagnostics.Items())
	}
}

func TestAssignToNonMutableBindingRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "a", Src: ir.Value{Kind: ir.ValConstInt, Type: smallInt}, Redeclare: true, MutableDst: false},
				ir.Assign{Dst: "a", Src: ir.Value{Kind: ir.ValConstInt, Type: smallInt}, Redeclare: false, MutableDst: false},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.AssignToNonMutable) {
		t.Fatalf("expected AssignToNonMutable, got %v", res.Diagnostics.Items())
	}
}

func TestReturnOfMovedValueRejected(t *testing.T) {
	moved := ir.Ref("data", bigOwned)
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "data", Src: ir.Value{Kind: ir.ValConstInt, Type: bigOwned}, Redeclare: true},
				ir.Assign{Dst: "sink", Src: ir.Ref("data", bigOwned), Redeclare: true},
				ir.Return{Val: &moved},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.ReturnOfMoved) {
		t.Fatalf("expected ReturnOfMoved, got %v", res.Diagnostics.Items())
	}
}

func TestMatchInconsistentMoveRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.MatchBind{
					Scrutinee: ir.Ref("opt", bigOwned),
					Arms: []ir.MatchArm{
						{Name: "some", Bindings: []string{"x"}, MovedFlags: []bool{true}},
						{Name: "none", Bindings: []string{"x"}, MovedFlags: []bool{false}},
					},
				},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.MatchInconsistentMove) {
		t.Fatalf("expected MatchInconsistentMove, got %v", res.Diagnostics.Items())
	}
}

func TestTakeModeArgumentMovesCaller(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Parameters: []ir.Param{
			{Name: "h", Type: bigOwned, Mode: ir.ModeTake},
		},
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "v", Src: ir.Value{Kind: ir.ValConstInt, Type: bigOwned}, Redeclare: true},
				ir.Call{Callee: "consume", Args: []ir.Value{ir.Ref("v", bigOwned)}, ArgModes: []ir.ParamMode{ir.ModeTake}},
				ir.Call{Callee: "consume", Args: []ir.Value{ir.Ref("v", bigOwned)}, ArgModes: []ir.ParamMode{ir.ModeTake}},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.MoveAfterMove) {
		t.Fatalf("expected MoveAfterMove on second take-mode call, got %v", res.Diagnostics.Items())
	}
}

func TestBorrowReadModeDoesNotMove(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "v", Src: ir.Value{Kind: ir.ValConstInt, Type: bigOwned}, Redeclare: true},
				ir.Call{Callee: "validate", Args: []ir.Value{ir.Ref("v", bigOwned)}, ArgModes: []ir.ParamMode{ir.ModeBorrowRead}},
				ir.Call{Callee: "validate", Args: []ir.Value{ir.Ref("v", bigOwned)}, ArgModes: []ir.ParamMode{ir.ModeBorrowRead}},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !res.Diagnostics.Empty() {
		t.Fatalf("expected no diagnostics for repeated borrow-read calls, got %v", res.Diagnostics.Items())
	}
}
