package linear

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

var fileHandle = &ir.Type{Name: "File", Size: 8, Discipline: ir.Linear}

func TestLinearConsumedViaEnsureIsAccepted(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "f", Src: ir.Value{Kind: ir.ValConstInt, Type: fileHandle}, Redeclare: true},
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "close"}, Consumes: "f"},
				ir.Return{},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !res.Diagnostics.Empty() {
		t.Fatalf("expected no diagnostics, got %v", res.Diagnostics.Items())
	}
}

func TestLinearNotConsumedIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "f", Src: ir.Value{Kind: ir.ValConstInt, Type: fileHandle}, Redeclare: true},
				ir.Return{},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.LinearNotConsumed) {
		t.Fatalf("expected LinearNotConsumed, got %v", res.Diagnostics.Items())
	}
}

func TestDoubleConsumptionIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "f", Src: ir.Value{Kind: ir.ValConstInt, Type: fileHandle}, Redeclare: true},
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "close"}, Consumes: "f"},
				ir.EnsureStmt{Scope: "entry", Expr: ir.Call{Callee: "close"}, Consumes: "f"},
				ir.Return{},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.DoubleConsumption) {
		t.Fatalf("expected DoubleConsumption, got %v", res.Diagnostics.Items())
	}
}

func TestLinearSentOnChannelIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "f", Src: ir.Value{Kind: ir.ValConstInt, Type: fileHandle}, Redeclare: true},
				ir.ChannelSend{Chan: ir.Ref("ch", nil), Val: ir.Ref("f", fileHandle)},
				ir.Return{},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.LinearSentOnChannel) {
		t.Fatalf("expected LinearSentOnChannel, got %v", res.Diagnostics.Items())
	}
}

func TestSpawnHandleNeverDisposedIsRejected(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Spawn{Dst: "task", Call: ir.Call{Callee: "worker"}},
				ir.Return{},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !hasKind(res.Diagnostics.Items(), diagnostic.AffineForgotten) {
		t.Fatalf("expected AffineForgotten, got %v", res.Diagnostics.Items())
	}
}

func TestTakeModeCallDischargesObligation(t *testing.T) {
	fn := &ir.Function{
		Name: "f",
		Blocks: []*ir.BasicBlock{{
			Name: "entry",
			Instr: []ir.Instr{
				ir.Assign{Dst: "f", Src: ir.Value{Kind: ir.ValConstInt, Type: fileHandle}, Redeclare: true},
				ir.Call{Callee: "takeOwnership", Args: []ir.Value{ir.Ref("f", fileHandle)}, ArgModes: []ir.ParamMode{ir.ModeTake}},
				ir.Return{},
			},
		}},
	}

	res := NewChecker().CheckFunction(fn)
	if !res.Diagnostics.Empty() {
		t.Fatalf("expected no diagnostics after take-mode transfer, got %v", res.Diagnostics.Items())
	}
}
