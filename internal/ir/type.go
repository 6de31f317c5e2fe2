package ir

// Discipline is a type's resource discipline (spec.md §4.3).
type Discipline int

const (
	// Plain types have no consumption obligation.
	Plain Discipline = iota
	// Linear types must be consumed on every control-flow path to scope
	// exit (files, sockets).
	Linear
	// Affine types must be consumed at most once, and disposed of exactly
	// once before their binding leaves scope (task handles, channel ends).
	Affine
)

func (d Discipline) String() string {
	switch d {
	case Plain:
		return "plain"
	case Linear:
		return "linear"
	case Affine:
		return "affine"
	default:
		return "discipline?"
	}
}

// CopyThresholdBytes is the I-Copy size threshold. spec.md's open question
// leaves unresolved whether 32-bit targets share this constant; this core
// treats it as a single target-independent constant.
const CopyThresholdBytes = 16

// Field is one leaf of a composite type, used to determine copy
// eligibility and total size (I-Copy).
type Field struct {
	Name string
	Type *Type
}

// Type is a resolved type: its size, discipline, and (for composites) its
// fields. Front-end type inference and trait resolution have already run;
// this core only needs what I-Copy and the discipline propagation rule
// require.
type Type struct {
	Name string
	// Size is the type's size in bytes with natural alignment padding
	// already folded in.
	Size int
	// Primitive types (ints, floats, bool, raw pointers, Handle) are
	// always copy-eligible regardless of declared Discipline.
	Primitive bool
	// Fields holds a composite type's leaves. Empty for primitives.
	Fields []Field
	// Discipline is the type's own declared discipline. A composite's
	// effective discipline is the strictest of Discipline and its fields'
	// effective disciplines (EffectiveDiscipline below).
	Discipline Discipline
	// HeapOwning marks a type that owns a heap-allocated collection
	// (growable slice, map, pool) — such a type is never copy-eligible
	// regardless of size (spec.md §4.1 "Copy threshold determination").
	HeapOwning bool
}

// EffectiveDiscipline is the strictest discipline reachable from t: any
// composite containing a linear field is itself linear (spec.md §4.3
// "A type's discipline propagates").
func (t *Type) EffectiveDiscipline() Discipline {
	if t == nil {
		return Plain
	}

	strictest := t.Discipline

	for _, f := range t.Fields {
		if fd := f.Type.EffectiveDiscipline(); fd > strictest {
			strictest = fd
		}
	}

	return strictest
}

// CopyEligible implements I-Copy: a primitive, or a composite whose
// transitive leaves are all copy-eligible primitives and whose total size
// is at most CopyThresholdBytes. Any linear/affine field, or any
// heap-owning field, disqualifies the type regardless of size.
func (t *Type) CopyEligible() bool {
	if t == nil {
		return true // unit/void
	}

	if t.EffectiveDiscipline() != Plain {
		return false
	}

	if t.HeapOwning {
		return false
	}

	if t.Primitive {
		return t.Size <= CopyThresholdBytes
	}

	if t.Size > CopyThresholdBytes {
		return false
	}

	for _, f := range t.Fields {
		if !f.Type.CopyEligible() {
			return false
		}
	}

	return true
}

// BorrowKind is the mode of a borrow: read or mutate.
type BorrowKind int

const (
	BorrowRead BorrowKind = iota
	BorrowMutate
)

func (k BorrowKind) String() string {
	if k == BorrowMutate {
		return "&mut"
	}

	return "&"
}

// BorrowScopeKind classifies a borrow's lifetime per spec.md §4.2.
type BorrowScopeKind int

const (
	// ScopeBlock: lifetime runs to the end of the enclosing block.
	ScopeBlock BorrowScopeKind = iota
	// ScopeExpression: lifetime ends at the enclosing statement's
	// semicolon.
	ScopeExpression
	// ScopeCallDuration: an unnamed temporary receiving `&` in a call;
	// a subset of expression scope.
	ScopeCallDuration
)

func (k BorrowScopeKind) String() string {
	switch k {
	case ScopeBlock:
		return "block"
	case ScopeExpression:
		return "expression"
	case ScopeCallDuration:
		return "call"
	default:
		return "scope?"
	}
}
