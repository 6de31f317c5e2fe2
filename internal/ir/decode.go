package ir

import (
	"encoding/json"
	"fmt"
)

// DecodeModule parses the JSON wire form of a resolved Module (spec.md §6
// "Inputs"). The core itself never serializes anything — front-end
// collaborators hand it an in-memory Module directly — but cmd/rask-check
// reads fixture files from disk, so this package owns the one concrete
// wire schema the CLI agrees on with its fixtures.
//
// Grounded on the teacher's internal/hir package's json-tagged AST node
// structs decoded by a discriminated "kind"/"op" field, adapted here to
// Instr's closed set of concrete types.
func DecodeModule(data []byte) (*Module, error) {
	var wire wireModule
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("ir: decode module: %w", err)
	}

	mod := &Module{Name: wire.Name}

	for _, wf := range wire.Functions {
		fn, err := wf.decode()
		if err != nil {
			return nil, fmt.Errorf("ir: decode function %q: %w", wf.Name, err)
		}

		mod.Functions = append(mod.Functions, fn)
	}

	return mod, nil
}

type wireModule struct {
	Name      string         `json:"name"`
	Functions []wireFunction `json:"functions"`
}

type wireFunction struct {
	Name       string        `json:"name"`
	Parameters []wireParam   `json:"parameters"`
	ReturnType *wireType     `json:"returnType"`
	Blocks     []wireBlock   `json:"blocks"`
}

type wireParam struct {
	Name string   `json:"name"`
	Type *wireType `json:"type"`
	Mode string   `json:"mode"`
}

type wireBlock struct {
	Name  string            `json:"name"`
	Instr []json.RawMessage `json:"instr"`
}

type wireType struct {
	Name       string      `json:"name"`
	Size       int         `json:"size"`
	Primitive  bool        `json:"primitive"`
	Fields     []wireField `json:"fields"`
	Discipline string      `json:"discipline"`
	HeapOwning bool        `json:"heapOwning"`
}

type wireField struct {
	Name string    `json:"name"`
	Type *wireType `json:"type"`
}

type wireValue struct {
	Kind    string    `json:"kind"`
	Int64   int64     `json:"int64"`
	Float64 float64   `json:"float64"`
	Ref     string    `json:"ref"`
	Type    *wireType `json:"type"`
}

type wirePosition struct {
	Filename string `json:"file"`
	Line     int    `json:"line"`
	Column   int    `json:"col"`
}

type wireSpan struct {
	Start wirePosition `json:"start"`
	End   wirePosition `json:"end"`
}

func (wt *wireType) decode() *Type {
	if wt == nil {
		return nil
	}

	t := &Type{
		Name:       wt.Name,
		Size:       wt.Size,
		Primitive:  wt.Primitive,
		Discipline: decodeDiscipline(wt.Discipline),
		HeapOwning: wt.HeapOwning,
	}

	for _, wf := range wt.Fields {
		t.Fields = append(t.Fields, Field{Name: wf.Name, Type: wf.Type.decode()})
	}

	return t
}

func decodeDiscipline(s string) Discipline {
	switch s {
	case "linear":
		return Linear
	case "affine":
		return Affine
	default:
		return Plain
	}
}

func decodeMode(s string) ParamMode {
	switch s {
	case "mutate":
		return ModeBorrowMutate
	case "take":
		return ModeTake
	default:
		return ModeBorrowRead
	}
}

func (wv *wireValue) decode() Value {
	if wv == nil {
		return Value{}
	}

	switch wv.Kind {
	case "int":
		return Value{Kind: ValConstInt, Int64: wv.Int64, Type: wv.Type.decode()}
	case "float":
		return Value{Kind: ValConstFloat, Float64: wv.Float64, Type: wv.Type.decode()}
	case "ref":
		return Value{Kind: ValRef, Ref: wv.Ref, Type: wv.Type.decode()}
	default:
		return Value{}
	}
}

func (ws wireSpan) decode() Span {
	return Span{
		Start: Position{Filename: ws.Start.Filename, Line: ws.Start.Line, Column: ws.Start.Column},
		End:   Position{Filename: ws.End.Filename, Line: ws.End.Line, Column: ws.End.Column},
	}
}

func (wf wireFunction) decode() (*Function, error) {
	fn := &Function{Name: wf.Name, ReturnType: wf.ReturnType.decode()}

	for _, wp := range wf.Parameters {
		fn.Parameters = append(fn.Parameters, Param{Name: wp.Name, Type: wp.Type.decode(), Mode: decodeMode(wp.Mode)})
	}

	for _, wb := range wf.Blocks {
		instrs, err := decodeInstrList(wb.Instr)
		if err != nil {
			return nil, fmt.Errorf("block %q: %w", wb.Name, err)
		}

		fn.Blocks = append(fn.Blocks, &BasicBlock{Name: wb.Name, Instr: instrs})
	}

	return fn, nil
}

// decodeInstrList decodes a raw JSON array of instructions in order,
// shared by a function's top-level blocks and a nested instruction list
// such as a MatchArm's body.
func decodeInstrList(raws []json.RawMessage) ([]Instr, error) {
	instrs := make([]Instr, 0, len(raws))

	for _, raw := range raws {
		instr, err := decodeInstr(raw)
		if err != nil {
			return nil, err
		}

		instrs = append(instrs, instr)
	}

	return instrs, nil
}

// wireInstr is the discriminated envelope every instruction's JSON form
// shares; fields not meaningful to a given op are left at their zero value.
type wireInstr struct {
	Op         string         `json:"op"`
	Dst        string         `json:"dst"`
	Src        *wireValue     `json:"src"`
	Val        *wireValue     `json:"val"`
	Base       *wireValue     `json:"base"`
	Collection *wireValue     `json:"collection"`
	Chan       *wireValue     `json:"chan"`
	Pool       *wireValue     `json:"pool"`
	Elem       *wireValue     `json:"elem"`
	Handle     *wireValue     `json:"handle"`
	Index      *wireValue     `json:"index"`
	Lo         *wireValue     `json:"lo"`
	Hi         *wireValue     `json:"hi"`
	Cond       *wireValue     `json:"cond"`
	Field      string         `json:"field"`
	Callee     string         `json:"callee"`
	Args       []wireValue    `json:"args"`
	ArgModes   []string       `json:"argModes"`
	Redeclare  bool           `json:"redeclare"`
	MutableDst bool           `json:"mutableDst"`
	IsRvalue   bool           `json:"isRvalue"`
	StmtID     int            `json:"stmtId"`
	Scope      string         `json:"scope"`
	Expr       *wireInstr     `json:"expr"`
	Consumes   string         `json:"consumes"`
	FreeVars   []wireCapture  `json:"freeVars"`
	Escapes    bool           `json:"escapes"`
	Immediate  bool           `json:"immediateCall"`
	Target     string         `json:"target"`
	True       string         `json:"true"`
	False      string         `json:"false"`
	Mode       string         `json:"mode"`
	Body       *wireFunction  `json:"body"`
	Arms       []wireMatchArm `json:"arms"`
	Span       wireSpan       `json:"span"`
}

// wireMatchArm is one arm of a "matchbind" instruction's wire form.
type wireMatchArm struct {
	Name       string            `json:"name"`
	Bindings   []string          `json:"bindings"`
	MovedFlags []bool            `json:"movedFlags"`
	Body       []json.RawMessage `json:"body"`
}

func (wa wireMatchArm) decode() (MatchArm, error) {
	body, err := decodeInstrList(wa.Body)
	if err != nil {
		return MatchArm{}, fmt.Errorf("match arm %q: %w", wa.Name, err)
	}

	return MatchArm{Name: wa.Name, Bindings: wa.Bindings, MovedFlags: wa.MovedFlags, Body: body}, nil
}

func decodeIterMode(s string) IterMode {
	switch s {
	case "readguard":
		return IterReadGuard
	case "drain":
		return IterDrain
	default:
		return IterHandles
	}
}

type wireCapture struct {
	Name       string `json:"name"`
	Mode       string `json:"mode"`
	UsesBorrow bool   `json:"usesBorrow"`
	BorrowKind string `json:"borrowKind"`
}

func (wc wireCapture) decode() ClosureCapture {
	mode := CaptureCopy
	if wc.Mode == "move" {
		mode = CaptureMove
	}

	kind := BorrowRead
	if wc.BorrowKind == "mutate" {
		kind = BorrowMutate
	}

	return ClosureCapture{Name: wc.Name, Mode: mode, UsesBorrow: wc.UsesBorrow, BorrowKind: kind}
}

func decodeInstr(raw json.RawMessage) (Instr, error) {
	var wi wireInstr
	if err := json.Unmarshal(raw, &wi); err != nil {
		return nil, fmt.Errorf("decode instruction: %w", err)
	}

	at := wi.Span.decode()

	switch wi.Op {
	case "assign":
		return Assign{Dst: wi.Dst, Src: wi.Src.decode(), Redeclare: wi.Redeclare, MutableDst: wi.MutableDst, At: at}, nil
	case "return":
		if wi.Val == nil {
			return Return{At: at}, nil
		}

		v := wi.Val.decode()

		return Return{Val: &v, At: at}, nil
	case "call":
		return decodeCall(wi, at), nil
	case "fieldaccess":
		return FieldAccess{Dst: wi.Dst, Base: wi.Base.decode(), Field: wi.Field, At: at}, nil
	case "sliceexpr":
		return SliceExpr{Dst: wi.Dst, Base: wi.Base.decode(), Lo: wi.Lo.decode(), Hi: wi.Hi.decode(), IsRvalue: wi.IsRvalue, At: at}, nil
	case "indexexpr":
		return IndexExpr{Dst: wi.Dst, Collection: wi.Collection.decode(), Index: wi.Index.decode(), StmtID: wi.StmtID, At: at}, nil
	case "ensure":
		call := decodeCall(*wi.Expr, wi.Expr.Span.decode())

		return EnsureStmt{Scope: wi.Scope, Expr: call, Consumes: wi.Consumes, At: at}, nil
	case "closure":
		caps := make([]ClosureCapture, 0, len(wi.FreeVars))
		for _, c := range wi.FreeVars {
			caps = append(caps, c.decode())
		}

		body, err := decodeNestedBody(wi.Body)
		if err != nil {
			return nil, fmt.Errorf("closure %q: %w", wi.Dst, err)
		}

		return ClosureLit{Dst: wi.Dst, FreeVars: caps, Escapes: wi.Escapes, ImmediateCall: wi.Immediate, Body: body, At: at}, nil
	case "matchbind":
		arms := make([]MatchArm, 0, len(wi.Arms))
		for _, wa := range wi.Arms {
			arm, err := wa.decode()
			if err != nil {
				return nil, err
			}

			arms = append(arms, arm)
		}

		return MatchBind{Scrutinee: wi.Val.decode(), Arms: arms, At: at}, nil
	case "pooliterate":
		body, err := decodeNestedBody(wi.Body)
		if err != nil {
			return nil, fmt.Errorf("pool iterate: %w", err)
		}

		return PoolIterate{Pool: wi.Pool.decode(), Mode: decodeIterMode(wi.Mode), Body: body, At: at}, nil
	case "spawn":
		return Spawn{Dst: wi.Dst, Call: decodeCall(wi, at), At: at}, nil
	case "send":
		return ChannelSend{Chan: wi.Chan.decode(), Val: wi.Val.decode(), At: at}, nil
	case "recv":
		return ChannelRecv{Dst: wi.Dst, Chan: wi.Chan.decode(), At: at}, nil
	case "close":
		return ChannelClose{Chan: wi.Chan.decode(), At: at}, nil
	case "poolinsert":
		return PoolInsert{Dst: wi.Dst, Pool: wi.Pool.decode(), Elem: wi.Elem.decode(), At: at}, nil
	case "poolget":
		return PoolGet{Dst: wi.Dst, Pool: wi.Pool.decode(), Handle: wi.Handle.decode(), At: at}, nil
	case "poolremove":
		return PoolRemove{Dst: wi.Dst, Pool: wi.Pool.decode(), Handle: wi.Handle.decode(), At: at}, nil
	case "pooldrain":
		return PoolDrain{Dst: wi.Dst, Pool: wi.Pool.decode(), At: at}, nil
	case "br":
		return Br{Target: wi.Target, At: at}, nil
	case "condbr":
		return CondBr{Cond: wi.Cond.decode(), True: wi.True, False: wi.False, At: at}, nil
	default:
		return nil, fmt.Errorf("unknown instruction op %q", wi.Op)
	}
}

// decodeNestedBody decodes a closure literal's or pool iteration's nested
// function body. A nil wire body decodes to nil (bodiless fixtures, e.g.
// a closure that never gets its body inlined into the wire form, stay
// valid rather than erroring).
func decodeNestedBody(wf *wireFunction) (*Function, error) {
	if wf == nil {
		return nil, nil
	}

	return wf.decode()
}

func decodeCall(wi wireInstr, at Span) Call {
	args := make([]Value, 0, len(wi.Args))
	for _, a := range wi.Args {
		a := a
		args = append(args, a.decode())
	}

	modes := make([]ParamMode, 0, len(wi.ArgModes))
	for _, m := range wi.ArgModes {
		modes = append(modes, decodeMode(m))
	}

	return Call{Dst: wi.Dst, Callee: wi.Callee, Args: args, ArgModes: modes, At: at}
}
