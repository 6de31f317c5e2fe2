// Package diagnostic defines the compile-time diagnostic taxonomy of
// spec.md §7 (the runtime fault kinds live in internal/pool). Rendering, fix suggestions, and source-map
// integration are the front end's responsibility (spec.md §1 out of
// scope); this package only carries what the core must hand back to a
// back end: kind, span, and an optional related span.
package diagnostic

import (
	"fmt"

	"github.com/rask-lang/rask-sub007/internal/ir"
)

// Kind is one of the stable compile-time diagnostic kind codes of spec.md
// §7.
type Kind string

const (
	MoveAfterMove             Kind = "MoveAfterMove"
	UseAfterMove              Kind = "UseAfterMove"
	AssignToNonMutable        Kind = "AssignToNonMutable"
	ReturnOfMoved             Kind = "ReturnOfMoved"
	MatchInconsistentMove     Kind = "MatchInconsistentMove"
	BorrowOutlivesSource      Kind = "BorrowOutlivesSource"
	BorrowExclusion           Kind = "BorrowExclusion"
	MultipleMutableBorrows    Kind = "MultipleMutableBorrows"
	BorrowEscape              Kind = "BorrowEscape"
	BorrowCrossesTaskBoundary Kind = "BorrowCrossesTaskBoundary"
	LinearNotConsumed         Kind = "LinearNotConsumed"
	DoubleConsumption         Kind = "DoubleConsumption"
	AffineForgotten           Kind = "AffineForgotten"
	LinearInForbiddenContainer Kind = "LinearInForbiddenContainer"
	LinearSentOnChannel       Kind = "LinearSentOnChannel"
	CaptureOfExpressionBorrow Kind = "CaptureOfExpressionBorrow"
	CaptureOutlivesBlockBorrow Kind = "CaptureOutlivesBlockBorrow"
)

// Diagnostic carries a stable kind, a source span, and up to one related
// span (spec.md §6 Outputs).
type Diagnostic struct {
	Kind    Kind
	Span    ir.Span
	Related *ir.Span
	Message string
}

func (d Diagnostic) String() string {
	if d.Related != nil {
		return fmt.Sprintf("%s: %s at %s (related: %s)", d.Kind, d.Message, d.Span, *d.Related)
	}

	return fmt.Sprintf("%s: %s at %s", d.Kind, d.Message, d.Span)
}

// Bag accumulates diagnostics for one function or module, matching the
// teacher's OwnershipManager/BorrowChecker accumulate-don't-stop style
// (internal/mir/ownership.go, internal/mir/borrow.go): every checker keeps
// running after a failure and reports everything it found.
type Bag struct {
	items []Diagnostic
}

// Add records a diagnostic.
func (b *Bag) Add(d Diagnostic) { b.items = append(b.items, d) }

// Addf records a diagnostic built from a format string.
func (b *Bag) Addf(kind Kind, span ir.Span, format string, args ...any) {
	b.Add(Diagnostic{Kind: kind, Span: span, Message: fmt.Sprintf(format, args...)})
}

// AddRelated records a diagnostic with a related span.
func (b *Bag) AddRelated(kind Kind, span, related ir.Span, format string, args ...any) {
	r := related
	b.Add(Diagnostic{Kind: kind, Span: span, Related: &r, Message: fmt.Sprintf(format, args...)})
}

// Items returns all accumulated diagnostics.
func (b *Bag) Items() []Diagnostic { return b.items }

// Empty reports whether no diagnostics were accumulated. A function with
// any diagnostic does not produce ownership/cleanup annotations; the back
// end must skip it (spec.md §7 "Propagation policy").
func (b *Bag) Empty() bool { return len(b.items) == 0 }

// Merge appends another bag's items into b.
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}

	b.items = append(b.items, other.items...)
}
