// Package ir defines the resolved program representation that the
// memory-safety core consumes. It is SSA-lite and deliberately small: name
// resolution, type inference, and trait/extension resolution have already
// run by the time a Module reaches this package (see spec.md §6 Inputs).
package ir

import (
	"fmt"
	"strings"
)

// Module is a compilation unit: one or more resolved functions.
type Module struct {
	Name      string
	Functions []*Function
}

// Function is a collection of basic blocks plus its resolved parameter list.
type Function struct {
	Name       string
	Parameters []Param
	Blocks     []*BasicBlock
	// ReturnType is nil for functions returning unit.
	ReturnType *Type
}

// Param is a resolved function parameter: a binding name, its type, and the
// mode under which the callee receives it (spec.md §4.1 pass_by_value).
type Param struct {
	Name string
	Type *Type
	Mode ParamMode
}

// ParamMode classifies how a call argument slot relates to the caller's
// binding.
type ParamMode int

const (
	// ModeBorrowRead is the default: the callee may read but not mutate,
	// ownership stays with the caller for the call's duration.
	ModeBorrowRead ParamMode = iota
	// ModeBorrowMutate: the callee may mutate through the borrow.
	ModeBorrowMutate
	// ModeTake transfers ownership to the callee.
	ModeTake
)

func (m ParamMode) String() string {
	switch m {
	case ModeBorrowRead:
		return "borrow"
	case ModeBorrowMutate:
		return "mutate"
	case ModeTake:
		return "take"
	default:
		return "mode?"
	}
}

// BasicBlock is a straight-line sequence of instructions. Control-flow join
// points are represented by Br/CondBr predecessors feeding a block whose
// Name other blocks target.
type BasicBlock struct {
	Name  string
	Instr []Instr
}

// ValueKind classifies a Value's storage.
type ValueKind int

const (
	ValInvalid ValueKind = iota
	ValConstInt
	ValConstFloat
	ValRef // reference to a binding, by name
)

// Value is an SSA-like operand: a constant or a reference to a binding.
type Value struct {
	Kind    ValueKind
	Int64   int64
	Float64 float64
	Ref     string
	Type    *Type
}

func (v Value) String() string {
	switch v.Kind {
	case ValConstInt:
		return fmt.Sprintf("%d", v.Int64)
	case ValConstFloat:
		return fmt.Sprintf("%g", v.Float64)
	case ValRef:
		if v.Ref == "" {
			return "%ref?"
		}
		return v.Ref
	default:
		return "<invalid>"
	}
}

// Ref builds a Value referencing a named binding.
func Ref(name string, t *Type) Value { return Value{Kind: ValRef, Ref: name, Type: t} }

// ConstInt builds an integer constant value.
func ConstInt(n int64) Value { return Value{Kind: ValConstInt, Int64: n} }

// Instr is implemented by every resolved-IR instruction.
type Instr interface {
	isInstr()
	// Span reports the source span this instruction was resolved from.
	Span() Span
}

// ====== Control flow terminators ======

// Br is an unconditional branch to a target block within the same
// function.
type Br struct {
	Target string
	At     Span
}

// CondBr branches to True or False depending on Cond.
type CondBr struct {
	Cond  Value
	True  string
	False string
	At    Span
}

func (Br) isInstr()     {}
func (CondBr) isInstr() {}

func (i Br) Span() Span     { return i.At }
func (i CondBr) Span() Span { return i.At }

// Successors returns the block names a terminator can transfer control to,
// or nil if the instruction is not a terminator.
func Successors(instr Instr) []string {
	switch i := instr.(type) {
	case Br:
		return []string{i.Target}
	case CondBr:
		return []string{i.True, i.False}
	case Return:
		return nil
	default:
		return nil
	}
}

// ====== Core value-flow instructions ======

// Assign implements spec.md §4.1 assign(dst, src_expr): if Src's type is
// copy-eligible the source binding remains Live; otherwise it becomes
// MovedOut and Dst becomes the sole owner.
type Assign struct {
	Dst string
	Src Value
	// Redeclare is true for the let-binding that introduces Dst; false
	// for a later re-assignment, which is only legal when the original
	// binding was declared mutable (MutableDst).
	Redeclare  bool
	MutableDst bool
	At         Span
}

// Return implements spec.md §4.1 return(expr): treated as a move into the
// implicit return slot (unless the type is copy-eligible).
type Return struct {
	Val *Value
	At  Span
}

// Call represents a function call; each argument carries the callee's
// declared ParamMode so C1/C2 can apply move/borrow semantics per-argument.
type Call struct {
	Dst      string
	Callee   string
	Args     []Value
	ArgModes []ParamMode
	At       Span
}

// ====== Borrow-producing expressions (spec.md §4.2) ======

// FieldAccess borrows a field of a named plain-value binding. Block-scoped:
// lifetime runs to the end of the enclosing block (when let-bound) — see
// ScopeBlock in BorrowScopeKind.
type FieldAccess struct {
	Dst   string
	Base  Value
	Field string
	At    Span
}

// SliceExpr borrows a sub-range of a named binding (`s[a..b]`). Block-scoped
// like FieldAccess; a slice of an rvalue temporary extends that temporary's
// lifetime to the borrow's scope (spec.md B2).
type SliceExpr struct {
	Dst      string
	Base     Value
	Lo, Hi   Value
	IsRvalue bool // Base is an unnamed temporary; lifetime is extended
	At       Span
}

// IndexExpr borrows a single slot of a collection (`vec[i]`, `pool[h]`,
// `map[k]`). Always expression-scoped: the borrow ends at the statement's
// semicolon regardless of how many IndexExpr instructions touch the same
// collection within one statement.
type IndexExpr struct {
	Dst        string
	Collection Value
	Index      Value
	// StmtID groups IndexExpr instructions belonging to one statement so
	// method-chain borrows (one expression, multiple instructions) share a
	// single expression scope instead of each ending independently.
	StmtID int
	At     Span
}

// ====== Pattern matching (spec.md §4.1 match_bind) ======

// MatchArm is one arm of a MatchBind: the bindings it introduces and
// whether each is a move (false = copy) of the corresponding scrutinee
// sub-value.
type MatchArm struct {
	Name       string
	Bindings   []string
	MovedFlags []bool
	Body       []Instr
}

// MatchBind implements spec.md §4.1 match_bind. The post-match state of a
// scrutinee sub-binding is MovedOut iff every arm that completes normally
// moves it (the merge rule's least-upper-bound over arms).
type MatchBind struct {
	Scrutinee Value
	Arms      []MatchArm
	At        Span
}

// ====== Scoped cleanup (spec.md §4.4) ======

// EnsureStmt schedules a cleanup expression to run once at scope exit, in
// LIFO order relative to other EnsureStmt registrations in the same scope.
// Consumes names the linear/affine binding the registered expression is
// syntactic evidence of consuming (spec.md §4.3 "ensure interaction").
type EnsureStmt struct {
	Scope    string
	Expr     Call
	Consumes string
	At       Span
}

// ====== Closures (spec.md §4.6) ======

// CaptureMode is how a closure captures one free variable.
type CaptureMode int

const (
	CaptureCopy CaptureMode = iota
	CaptureMove
)

// ClosureCapture is one free variable captured by a ClosureLit.
type ClosureCapture struct {
	Name string
	Mode CaptureMode
	// UsesBorrow is set when the closure body uses a borrow of this
	// variable visible in the defining scope (rather than the variable
	// itself), so C6 can check it against the borrow's scope/kind.
	UsesBorrow bool
	BorrowKind BorrowKind
}

// ClosureLit is a closure literal with its resolved free-variable list.
// Escapes is true when the closure is stored, returned, sent on a channel,
// or registered for later call — i.e. when it outlives its defining block.
type ClosureLit struct {
	Dst      string
	FreeVars []ClosureCapture
	Escapes  bool
	// ImmediateCall marks the "immediate-use exception" methods (spec.md
	// §4.6): the closure is invoked within the same expression and cannot
	// itself escape via the method's return value.
	ImmediateCall bool
	Body          *Function
	At            Span
}

// ====== Concurrency handles (spec.md §5) ======

// Spawn starts a task, producing an affine task handle in Dst. Forgetting
// to dispose of Dst (join/cancel/detach) is AffineForgotten.
type Spawn struct {
	Dst  string
	Call Call
	At   Span
}

// ChannelSend transfers ownership of Val to the receiver. Val's type must
// not be Linear (spec.md §4.3 LinearInForbiddenContainer /
// linear-sent-on-channel).
type ChannelSend struct {
	Chan Value
	Val  Value
	At   Span
}

// ChannelRecv receives a value, becoming its sole owner.
type ChannelRecv struct {
	Dst  string
	Chan Value
	At   Span
}

// ChannelClose is a terminal affine operation on a channel endpoint.
type ChannelClose struct {
	Chan Value
	At   Span
}

// ====== Pool operations (spec.md §4.5) ======

// PoolInsert inserts Elem into Pool, producing a handle in Dst. If Elem's
// type is Linear, ownership transfers to the pool (consumed from the
// caller's perspective, per spec.md §4.3 "Containers of linear elements").
type PoolInsert struct {
	Dst  string
	Pool Value
	Elem Value
	At   Span
}

// PoolGet is the fallible `pool.get(h)` form: never faults, yields an
// absent result on any validation failure.
type PoolGet struct {
	Dst    string
	Pool   Value
	Handle Value
	At     Span
}

// PoolRemove validates Handle and moves the element out of the slot,
// bumping the slot's generation.
type PoolRemove struct {
	Dst    string
	Pool   Value
	Handle Value
	At     Span
}

// PoolDrain consumes the whole pool, yielding ownership of every element
// and leaving the pool empty.
type PoolDrain struct {
	Dst  string
	Pool Value
	At   Span
}

// IterMode distinguishes the three pool iteration forms of spec.md §4.5.
type IterMode int

const (
	IterHandles   IterMode = iota // for h in pool
	IterReadGuard                 // for (h, r) in &pool
	IterDrain                     // for x in pool.drain()
)

// PoolIterate iterates Pool in Mode, invoking Body once per occupied slot.
// IterReadGuard puts the pool in a read-mode iteration context: mutation
// and removal are forbidden on Pool for the loop's duration.
type PoolIterate struct {
	Pool Value
	Mode IterMode
	Body *Function
	At   Span
}

func (Assign) isInstr()       {}
func (Return) isInstr()       {}
func (Call) isInstr()         {}
func (FieldAccess) isInstr()  {}
func (SliceExpr) isInstr()    {}
func (IndexExpr) isInstr()    {}
func (MatchBind) isInstr()    {}
func (EnsureStmt) isInstr()   {}
func (ClosureLit) isInstr()   {}
func (Spawn) isInstr()        {}
func (ChannelSend) isInstr()  {}
func (ChannelRecv) isInstr()  {}
func (ChannelClose) isInstr() {}
func (PoolInsert) isInstr()   {}
func (PoolGet) isInstr()      {}
func (PoolRemove) isInstr()   {}
func (PoolDrain) isInstr()    {}
func (PoolIterate) isInstr()  {}

func (i Assign) Span() Span       { return i.At }
func (i Return) Span() Span       { return i.At }
func (i Call) Span() Span         { return i.At }
func (i FieldAccess) Span() Span  { return i.At }
func (i SliceExpr) Span() Span    { return i.At }
func (i IndexExpr) Span() Span    { return i.At }
func (i MatchBind) Span() Span    { return i.At }
func (i EnsureStmt) Span() Span   { return i.At }
func (i ClosureLit) Span() Span   { return i.At }
func (i Spawn) Span() Span        { return i.At }
func (i ChannelSend) Span() Span  { return i.At }
func (i ChannelRecv) Span() Span  { return i.At }
func (i ChannelClose) Span() Span { return i.At }
func (i PoolInsert) Span() Span   { return i.At }
func (i PoolGet) Span() Span      { return i.At }
func (i PoolRemove) Span() Span   { return i.At }
func (i PoolDrain) Span() Span    { return i.At }
func (i PoolIterate) Span() Span  { return i.At }

func (m *Module) String() string {
	if m == nil {
		return "<nil-module>"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "module %s\n", m.Name)

	for _, f := range m.Functions {
		b.WriteString(f.String())
		b.WriteByte('\n')
	}

	return b.String()
}

func (f *Function) String() string {
	if f == nil {
		return "<nil-func>"
	}

	var b strings.Builder

	fmt.Fprintf(&b, "func %s(", f.Name)

	for i, p := range f.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}

		fmt.Fprintf(&b, "%s: %s %s", p.Name, p.Mode, p.Type)
	}

	b.WriteString(") {\n")

	for _, bb := range f.Blocks {
		fmt.Fprintf(&b, "%s:\n", bb.Name)
	}

	b.WriteString("}\n")

	return b.String()
}
