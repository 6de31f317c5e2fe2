package borrowck

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

var bufType = &ir.Type{Name: "Buffer", Size: 64, HeapOwning: true}

func TestTwoSimultaneousReadsAreFine(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.FieldAccess{Dst: "r1", Base: ir.Ref("buf", bufType), Field: "len"},
				ir.FieldAccess{Dst: "r2", Base: ir.Ref("buf", bufType), Field: "cap"},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !res.Diagnostics.Empty() {
		t.Fatalf("expected no diagnostics for two read borrows, got %v", res.Diagnostics.Items())
	}
}

func TestMutableBorrowConflictsWithStandingRead(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.FieldAccess{Dst: "r1", Base: ir.Ref("buf", bufType), Field: "len"},
				ir.Call{Callee: "grow", Args: []ir.Value{ir.Ref("buf", bufType)}, ArgModes: []ir.ParamMode{ir.ModeBorrowMutate}},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.BorrowExclusion) {
		t.Fatalf("expected BorrowExclusion, got %v", res.Diagnostics.Items())
	}
}

func TestTwoMutableBorrowsInSameCallRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Call{
					Callee:   "swapHalves",
					Args:     []ir.Value{ir.Ref("buf", bufType), ir.Ref("buf", bufType)},
					ArgModes: []ir.ParamMode{ir.ModeBorrowMutate, ir.ModeBorrowMutate},
				},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.MultipleMutableBorrows) {
		t.Fatalf("expected MultipleMutableBorrows, got %v", res.Diagnostics.Items())
	}
}

func TestMoveWhileBorrowedIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.FieldAccess{Dst: "r1", Base: ir.Ref("buf", bufType), Field: "len"},
				ir.ChannelSend{Chan: ir.Ref("ch", nil), Val: ir.Ref("buf", bufType)},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.BorrowOutlivesSource) {
		t.Fatalf("expected BorrowOutlivesSource, got %v", res.Diagnostics.Items())
	}
}

func TestReturningABorrowIsRejected(t *testing.T) {
	ret := ir.Ref("r1", bufType)
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.FieldAccess{Dst: "r1", Base: ir.Ref("buf", bufType), Field: "len"},
				ir.Return{Val: &ret},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.BorrowEscape) {
		t.Fatalf("expected BorrowEscape, got %v", res.Diagnostics.Items())
	}
}

func TestSpawnCapturingBorrowIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.FieldAccess{Dst: "r1", Base: ir.Ref("buf", bufType), Field: "len"},
				ir.Spawn{Dst: "task", Call: ir.Call{Callee: "worker", Args: []ir.Value{ir.Ref("r1", nil)}}},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.BorrowCrossesTaskBoundary) {
		t.Fatalf("expected BorrowCrossesTaskBoundary, got %v", res.Diagnostics.Items())
	}
}

func TestExpressionScopedBorrowClosesAtNextStatement(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.IndexExpr{Dst: "e0", Collection: ir.Ref("buf", bufType), Index: ir.ConstInt(0), StmtID: 0},
				ir.IndexExpr{Dst: "e1", Collection: ir.Ref("buf", bufType), Index: ir.ConstInt(1), StmtID: 1},
				// By the second statement the first IndexExpr's borrow has
				// closed, so mutably borrowing buf here only conflicts
				// with the still-open second borrow.
				ir.Call{Callee: "grow", Args: []ir.Value{ir.Ref("buf", bufType)}, ArgModes: []ir.ParamMode{ir.ModeBorrowMutate}, At: ir.Span{}},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.BorrowExclusion) {
		t.Fatalf("expected BorrowExclusion against the still-open statement-1 borrow, got %v", res.Diagnostics.Items())
	}
}
