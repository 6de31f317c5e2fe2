// Package linear implements C3, the linear/affine resource checker of
// spec.md §4.3: every Linear-disciplined binding must be consumed on
// every control-flow path out of the function that introduces it
// (LinearNotConsumed if not); every Affine-disciplined binding (task
// handles, channel ends, and any value of a declared Affine type) must
// be disposed of at most once and, like a linear value, on every exit
// path (AffineForgotten if not); consuming an already-consumed binding
// is DoubleConsumption regardless of discipline; sending a Linear value
// on a channel or aliasing it through an ordinary collection access is
// rejected outright (LinearSentOnChannel, LinearInForbiddenContainer).
//
// Grounded on the teacher's internal/types/linear.go (LinearTypeWrapper,
// LinearContext.MoveVariable/UseVariable, ValidateLinearity's "unused
// linear variable at end of scope" sweep), adapted from that package's
// per-variable usage-count model to a CFG dataflow over explicit
// discharge events (move, take-mode call, ensure registration, channel
// send, channel close, pool insert, return), following the same fixpoint-then-validate structure as
// internal/ownership since both are dataflow problems over the same
// control-flow graph.
package linear

import (
	"fmt"

	"github.com/rask-lang/rask-sub007/internal/diagnostic"
	"github.com/rask-lang/rask-sub007/internal/ir"
)

// Result is the outcome of checking one function.
type Result struct {
	Diagnostics *diagnostic.Bag
}

// Checker runs the C3 dataflow over one function at a time. It also
// accumulates diagnostics across repeated CheckFunction calls
// (GetErrors/ClearErrors), matching the teacher's LinearContext.
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
	return fmt.Sprintf("linear: %d diagnostic(s) accumulated", len(c.errs))
}

// obligationState is whether a disciplined binding's must-consume
// obligation has been discharged yet.
type obligationState int

const (
	// Pending: the binding's value has not yet been consumed, moved
	// away, or handed to a registered ensure.
	Pending obligationState = iota
	// Discharged: the obligation has moved elsewhere or been fulfilled.
	Discharged
)

// States is the per-binding obligation snapshot at one program point.
// Only names present in the function's discipline map are tracked. Every
// introducing instruction (parameter entry, let-binding, spawn) sets its
// name's key explicitly, so a missing key means no instruction on this
// path has introduced the binding yet; it reads as Pending
// (obligationState's zero value), and checkExitObligations skips it.
type States map[string]obligationState

func (s States) clone() States {
	out := make(States, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}

func worse(a, b obligationState) obligationState {
	if a == Pending || b == Pending {
		return Pending
	}

	return Discharged
}

func merge(a, b States) States {
	out := make(States, len(a)+len(b))

	for k, v := range a {
		out[k] = v
	}

	for k, v := range b {
		if existing, ok := out[k]; ok {
			out[k] = worse(existing, v)
		} else {
			out[k] = v
		}
	}

	return out
}

func equalStates(a, b States) bool {
	if len(a) != len(b) {
		return false
	}

	for k, v := range a {
		if b[k] != v {
			return false
		}
	}

	return true
}

// CheckFunction computes consumption obligations for every Linear- or
// Affine-disciplined binding in fn and validates them at every exit.
func (c *Checker) CheckFunction(fn *ir.Function) Result {
	bag := &diagnostic.Bag{}

	disc := collectDisciplines(fn)
	if len(disc) == 0 {
		c.errs = append(c.errs, bag.Items()...)

		return Result{Diagnostics: bag}
	}

	preds := ir.Predecessors(fn)
	entry := initialEntry(fn, disc)
	entryStates, _ := fixpoint(fn, preds, entry, disc)

	for _, bb := range fn.Blocks {
		st := entryStates[bb.Name].clone()
		validateBlock(bag, st, disc, bb.Instr)

		if isExitBlock(bb) {
			checkExitObligations(bag, st, disc, bb)
		}
	}

	c.errs = append(c.errs, bag.Items()...)

	return Result{Diagnostics: bag}
}

// collectDisciplines finds every binding in fn whose type carries a
// Linear or Affine effective discipline: function parameters, plain
// let-bindings (Assign.Redeclare, typed by their source expression), and
// every Spawn destination (a task handle is always affine regardless of
// its declared type, spec.md §5).
func collectDisciplines(fn *ir.Function) map[string]ir.Discipline {
	out := map[string]ir.Discipline{}

	for _, p := range fn.Parameters {
		if d := effectiveDiscipline(p.Type); d != ir.Plain {
			out[p.Name] = d
		}
	}

	for _, bb := range fn.Blocks {
		for _, instr := range bb.Instr {
			switch i := instr.(type) {
			case ir.Assign:
				if i.Redeclare {
					if d := effectiveDiscipline(i.Src.Type); d != ir.Plain {
						out[i.Dst] = d
					}
				}
			case ir.Spawn:
				if i.Dst != "" {
					out[i.Dst] = ir.Affine
				}
			}
		}
	}

	return out
}

func effectiveDiscipline(t *ir.Type) ir.Discipline {
	if t == nil {
		return ir.Plain
	}

	return t.EffectiveDiscipline()
}

func initialEntry(fn *ir.Function, disc map[string]ir.Discipline) States {
	st := States{}

	for _, p := range fn.Parameters {
		if _, tracked := disc[p.Name]; tracked {
			st[p.Name] = Pending
		}
	}

	return st
}

// fixpoint computes converged entry states for every block without
// emitting diagnostics, mirroring internal/ownership's two-pass split.
func fixpoint(fn *ir.Function, preds map[string][]string, entrySeed States, disc map[string]ir.Discipline) (map[string]States, map[string]States) {
	entryStates := make(map[string]States, len(fn.Blocks))
	exitStates := make(map[string]States, len(fn.Blocks))

	if len(fn.Blocks) == 0 {
		return entryStates, exitStates
	}

	for _, bb := range fn.Blocks {
		entryStates[bb.Name] = States{}
		exitStates[bb.Name] = States{}
	}

	entryStates[fn.Blocks[0].Name] = entrySeed

	changed := true
	for changed {
		changed = false

		for _, bb := range fn.Blocks {
			in := entryStates[bb.Name]

			if ps := preds[bb.Name]; len(ps) > 0 {
				merged := States{}
				for _, p := range ps {
					merged = merge(merged, exitStates[p])
				}

				if bb.Name != fn.Blocks[0].Name {
					in = merge(merged, in)
				}
			}

			out := in.clone()
			for _, instr := range bb.Instr {
				applyOne(out, disc, instr)
			}

			if !equalStates(in, entryStates[bb.Name]) {
				entryStates[bb.Name] = in
				changed = true
			}

			if !equalStates(out, exitStates[bb.Name]) {
				exitStates[bb.Name] = out
				changed = true
			}
		}
	}

	return entryStates, exitStates
}

// applyOne runs the pure, non-diagnosing obligation transition for one
// instruction.
func applyOne(st States, disc map[string]ir.Discipline, instr ir.Instr) {
	switch i := instr.(type) {
	case ir.Assign:
		if _, tracked := disc[i.Dst]; tracked && i.Redeclare {
			st[i.Dst] = Pending
		}

		discharge(st, disc, i.Src)
	case ir.Return:
		if i.Val != nil {
			discharge(st, disc, *i.Val)
		}
	case ir.Call:
		for idx, arg := range i.Args {
			if modeOf(i, idx) == ir.ModeTake {
				discharge(st, disc, arg)
			}
		}
	case ir.EnsureStmt:
		if i.Consumes != "" {
			if _, tracked := disc[i.Consumes]; tracked {
				st[i.Consumes] = Discharged
			}
		}
	case ir.ChannelSend:
		discharge(st, disc, i.Val)
	case ir.Spawn:
		if _, tracked := disc[i.Dst]; tracked {
			st[i.Dst] = Pending
		}
	case ir.PoolInsert:
		discharge(st, disc, i.Elem)
	case ir.ChannelClose:
		discharge(st, disc, i.Chan)
	}
}

func discharge(st States, disc map[string]ir.Discipline, v ir.Value) {
	ref, ok := refName(v)
	if !ok {
		return
	}

	if _, tracked := disc[ref]; !tracked {
		return
	}

	st[ref] = Discharged
}

func modeOf(call ir.Call, idx int) ir.ParamMode {
	if idx < len(call.ArgModes) {
		return call.ArgModes[idx]
	}

	return ir.ModeBorrowRead
}

func refName(v ir.Value) (string, bool) {
	if v.Kind == ir.ValRef && v.Ref != "" {
		return v.Ref, true
	}

	return "", false
}

func isExitBlock(bb *ir.BasicBlock) bool {
	if len(bb.Instr) == 0 {
		return true
	}

	last := bb.Instr[len(bb.Instr)-1]

	return len(ir.Successors(last)) == 0
}

func exitSpan(bb *ir.BasicBlock) ir.Span {
	if len(bb.Instr) == 0 {
		return ir.Span{}
	}

	return bb.Instr[len(bb.Instr)-1].Span()
}

// checkExitObligations emits LinearNotConsumed/AffineForgotten for every
// disciplined binding still Pending at an exit block. A binding that no
// instruction on the path to this exit introduced carries no obligation
// here.
func checkExitObligations(bag *diagnostic.Bag, st States, disc map[string]ir.Discipline, bb *ir.BasicBlock) {
	span := exitSpan(bb)

	for name, d := range disc {
		if state, introduced := st[name]; !introduced || state == Discharged {
			continue
		}

		switch d {
		case ir.Linear:
			bag.Addf(diagnostic.LinearNotConsumed, span, "linear binding %q is not consumed on this path", name)
		case ir.Affine:
			bag.Addf(diagnostic.AffineForgotten, span, "affine binding %q is never disposed on this path", name)
		}
	}
}
