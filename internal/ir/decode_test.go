package ir

import "testing"

func TestDecodeModuleBuildsFunctionsAndBlocks(t *testing.T) {
	src := []byte(`{
		"name": "demo",
		"functions": [{
			"name": "identity",
			"parameters": [{"name": "x", "mode": "borrow", "type": {"name": "i32", "size": 4, "primitive": true}}],
			"blocks": [{
				"name": "entry",
				"instr": [
					{"op": "assign", "dst": "y", "redeclare": true, "src": {"kind": "ref", "ref": "x", "type": {"name": "i32", "size": 4, "primitive": true}}},
					{"op": "return", "val": {"kind": "ref", "ref": "y", "type": {"name": "i32", "size": 4, "primitive": true}}}
				]
			}]
		}]
	}`)

	mod, err := DecodeModule(src)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if mod.Name != "demo" || len(mod.Functions) != 1 {
		t.Fatalf("unexpected module shape: %+v", mod)
	}

	fn := mod.Functions[0]
	if fn.Name != "identity" || len(fn.Parameters) != 1 || fn.Parameters[0].Mode != ModeBorrowRead {
		t.Fatalf("unexpected function shape: %+v", fn)
	}

	if len(fn.Blocks) != 1 || len(fn.Blocks[0].Instr) != 2 {
		t.Fatalf("unexpected block shape: %+v", fn.Blocks)
	}

	assign, ok := fn.Blocks[0].Instr[0].(Assign)
	if !ok || assign.Dst != "y" || !assign.Redeclare || assign.Src.Ref != "x" {
		t.Fatalf("unexpected decoded assign: %+v", fn.Blocks[0].Instr[0])
	}

	ret, ok := fn.Blocks[0].Instr[1].(Return)
	if !ok || ret.Val == nil || ret.Val.Ref != "y" {
		t.Fatalf("unexpected decoded return: %+v", fn.Blocks[0].Instr[1])
	}
}

func TestDecodeModuleRejectsUnknownOp(t *testing.T) {
	src := []byte(`{"name": "demo", "functions": [{"name": "f", "blocks": [{"name": "entry", "instr": [{"op": "frobnicate"}]}]}]}`)

	if _, err := DecodeModule(src); err == nil {
		t.Fatal("expected an error for an unrecognized instruction op")
	}
}

func TestDecodeModuleBuildsMatchBindArms(t *testing.T) {
	src := []byte(`{
		"name": "demo",
		"functions": [{
			"name": "f",
			"blocks": [{
				"name": "entry",
				"instr": [{
					"op": "matchbind",
					"val": {"kind": "ref", "ref": "opt", "type": {"name": "Option", "size": 8}},
					"arms": [
						{"name": "Some", "bindings": ["v"], "movedFlags": [true], "body": [
							{"op": "return", "val": {"kind": "ref", "ref": "v", "type": {"name": "i32", "size": 4, "primitive": true}}}
						]},
						{"name": "None", "bindings": [], "movedFlags": [], "body": []}
					]
				}]
			}]
		}]
	}`)

	mod, err := DecodeModule(src)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	mb, ok := mod.Functions[0].Blocks[0].Instr[0].(MatchBind)
	if !ok {
		t.Fatalf("expected MatchBind, got %T", mod.Functions[0].Blocks[0].Instr[0])
	}

	if mb.Scrutinee.Ref != "opt" || len(mb.Arms) != 2 {
		t.Fatalf("unexpected MatchBind shape: %+v", mb)
	}

	some := mb.Arms[0]
	if some.Name != "Some" || len(some.Bindings) != 1 || !some.MovedFlags[0] || len(some.Body) != 1 {
		t.Fatalf("unexpected Some arm shape: %+v", some)
	}

	if _, ok := some.Body[0].(Return); !ok {
		t.Fatalf("expected arm body to decode its nested instructions, got %T", some.Body[0])
	}
}

func TestDecodeModuleBuildsPoolIterateWithBody(t *testing.T) {
	src := []byte(`{
		"name": "demo",
		"functions": [{
			"name": "f",
			"blocks": [{
				"name": "entry",
				"instr": [{
					"op": "pooliterate",
					"pool": {"kind": "ref", "ref": "p", "type": {"name": "Pool", "size": 8}},
					"mode": "readguard",
					"body": {
						"name": "",
						"blocks": [{"name": "entry", "instr": [{"op": "return"}]}]
					}
				}]
			}]
		}]
	}`)

	mod, err := DecodeModule(src)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	pi, ok := mod.Functions[0].Blocks[0].Instr[0].(PoolIterate)
	if !ok {
		t.Fatalf("expected PoolIterate, got %T", mod.Functions[0].Blocks[0].Instr[0])
	}

	if pi.Pool.Ref != "p" || pi.Mode != IterReadGuard {
		t.Fatalf("unexpected PoolIterate shape: %+v", pi)
	}

	if pi.Body == nil || len(pi.Body.Blocks) != 1 {
		t.Fatalf("expected PoolIterate.Body to decode its nested blocks, got %+v", pi.Body)
	}
}

func TestDecodeModuleBuildsClosureBody(t *testing.T) {
	src := []byte(`{
		"name": "demo",
		"functions": [{
			"name": "f",
			"blocks": [{
				"name": "entry",
				"instr": [{
					"op": "closure",
					"dst": "c",
					"escapes": true,
					"body": {
						"name": "",
						"blocks": [{"name": "entry", "instr": [{"op": "return"}]}]
					}
				}]
			}]
		}]
	}`)

	mod, err := DecodeModule(src)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	cl, ok := mod.Functions[0].Blocks[0].Instr[0].(ClosureLit)
	if !ok {
		t.Fatalf("expected ClosureLit, got %T", mod.Functions[0].Blocks[0].Instr[0])
	}

	if cl.Body == nil || len(cl.Body.Blocks) != 1 {
		t.Fatalf("expected ClosureLit.Body to decode its nested blocks, got %+v", cl.Body)
	}
}

func TestDecodeTypeCarriesDisciplineAndHeapOwning(t *testing.T) {
	src := []byte(`{
		"name": "demo",
		"functions": [{
			"name": "f",
			"parameters": [{"name": "h", "mode": "take", "type": {"name": "File", "size": 8, "discipline": "linear"}}],
			"blocks": [{"name": "entry", "instr": [{"op": "return"}]}]
		}]
	}`)

	mod, err := DecodeModule(src)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	pt := mod.Functions[0].Parameters[0].Type
	if pt.EffectiveDiscipline() != Linear {
		t.Fatalf("expected Linear discipline, got %v", pt.EffectiveDiscipline())
	}
}
