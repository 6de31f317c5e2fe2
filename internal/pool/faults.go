package pool

import "fmt"

// FaultKind is one of the runtime fault kinds of spec.md §7 "Runtime fault
// taxonomy". Every fault terminates the faulting task (panics), except
// where the API is explicitly fallible (TryGet, TryWith).
type FaultKind string

const (
	HandleStale             FaultKind = "HandleStale"
	HandleWrongPool         FaultKind = "HandleWrongPool"
	HandleIndexOOB          FaultKind = "HandleIndexOOB"
	DropOfNonEmptyLinearPool FaultKind = "DropOfNonEmptyLinearPool"
	NestedLockReentry       FaultKind = "NestedLockReentry"
)

// Fault is a runtime fault raised by the pool runtime. It implements error
// so callers that recover a panic can type-assert to it, and carries Kind
// so a caller can discriminate programmatically.
type Fault struct {
	Kind    FaultKind
	Message string
}

func (f *Fault) Error() string { return fmt.Sprintf("%s: %s", f.Kind, f.Message) }

func newFault(kind FaultKind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// raise panics with a *Fault. Validation panics (HandleStale,
// HandleWrongPool, HandleIndexOOB, DropOfNonEmptyLinearPool,
// NestedLockReentry) all go through here so callers can recover a single
// type.
func raise(kind FaultKind, format string, args ...any) {
	panic(newFault(kind, format, args...))
}
