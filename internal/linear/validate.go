package linear

import (
	"github.com/rask-lang/rask-sub007/internal/diagnostic"
	"github.com/rask-lang/rask-sub007/internal/ir"
)

// validateBlock walks instrs in order starting from st (mutated in place
// to track each instruction's discharge effect), emitting diagnostics
// for every illegal consumption.
func validateBlock(bag *diagnostic.Bag, st States, disc map[string]ir.Discipline, instrs []ir.Instr) {
	for _, instr := range instrs {
		validateOne(bag, st, disc, instr)
		applyOne(st, disc, instr)
	}
}

func validateOne(bag *diagnostic.Bag, st States, disc map[string]ir.Discipline, instr ir.Instr) {
	switch i := instr.(type) {
	case ir.Assign:
		checkNotDoubleConsumed(bag, st, disc, i.Src, i.At, "assignment")
	case ir.Return:
		if i.Val != nil {
			checkNotDoubleConsumed(bag, st, disc, *i.Val, i.At, "return")
		}
	case ir.Call:
		for idx, arg := range i.Args {
			if modeOf(i, idx) == ir.ModeTake {
				checkNotDoubleConsumed(bag, st, disc, arg, i.At, "call argument (take)")
			}
		}
	case ir.EnsureStmt:
		if i.Consumes != "" {
			checkNotDoubleConsumed(bag, st, disc, ir.Ref(i.Consumes, nil), i.At, "ensure registration")
		}
	case ir.ChannelSend:
		checkLinearSentOnChannel(bag, disc, i.Val, i.At)
		checkNotDoubleConsumed(bag, st, disc, i.Val, i.At, "channel send")
	case ir.SliceExpr:
		checkForbiddenContainer(bag, disc, i.Base, i.At, "sliced")
	case ir.IndexExpr:
		checkForbiddenContainer(bag, disc, i.Collection, i.At, "indexed")
	case ir.PoolInsert:
		checkNotDoubleConsumed(bag, st, disc, i.Elem, i.At, "pool insert")
	}
}

// checkNotDoubleConsumed rejects consuming a disciplined binding that
// has already been discharged (DoubleConsumption): a linear value
// consumed twice, or an affine value disposed of more than once.
func checkNotDoubleConsumed(bag *diagnostic.Bag, st States, disc map[string]ir.Discipline, v ir.Value, span ir.Span, context string) {
	ref, ok := refName(v)
	if !ok {
		return
	}

	if _, tracked := disc[ref]; !tracked {
		return
	}

	if st[ref] == Discharged {
		bag.Addf(diagnostic.DoubleConsumption, span, "%q already consumed before this %s", ref, context)
	}
}

// checkLinearSentOnChannel rejects a Linear-disciplined value sent on a
// channel (spec.md §4.3 "a linear value may not be sent on a channel",
// since the receiver cannot be statically guaranteed to consume it on
// every path the way a direct caller can).
func checkLinearSentOnChannel(bag *diagnostic.Bag, disc map[string]ir.Discipline, v ir.Value, span ir.Span) {
	ref, ok := refName(v)
	if !ok {
		return
	}

	if d, tracked := disc[ref]; tracked && d == ir.Linear {
		bag.Addf(diagnostic.LinearSentOnChannel, span, "linear value %q cannot be sent on a channel", ref)
	}
}

// checkForbiddenContainer rejects slicing or indexing into a
// Linear-disciplined binding: both operations alias the collection
// without consuming it, which a must-consume-exactly-once value cannot
// permit (spec.md §4.3 "containers of linear elements"; the handle pool
// is the one container this core allows for linear elements, and it is
// validated separately by C5's runtime checks, not here).
func checkForbiddenContainer(bag *diagnostic.Bag, disc map[string]ir.Discipline, v ir.Value, span ir.Span, op string) {
	ref, ok := refName(v)
	if !ok {
		return
	}

	if d, tracked := disc[ref]; tracked && d == ir.Linear {
		bag.Addf(diagnostic.LinearInForbiddenContainer, span,
			"linear value %q cannot be %s without consuming it", ref, op)
	}
}
