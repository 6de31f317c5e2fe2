package ir

// Predecessors computes, for each block in fn, the set of blocks whose
// terminator can transfer control into it. The entry block (fn.Blocks[0])
// always has an implicit predecessor set containing only itself
// conceptually; callers should seed it directly rather than relying on an
// incoming edge.
func Predecessors(fn *Function) map[string][]string {
	preds := make(map[string][]string)

	for _, bb := range fn.Blocks {
		if len(bb.Instr) == 0 {
			continue
		}

		term := bb.Instr[len(bb.Instr)-1]
		for _, target := range Successors(term) {
			preds[target] = append(preds[target], bb.Name)
		}
	}

	return preds
}

// BlockByName looks up a block by name.
func BlockByName(fn *Function, name string) *BasicBlock {
	for _, bb := range fn.Blocks {
		if bb.Name == name {
			return bb
		}
	}

	return nil
}
