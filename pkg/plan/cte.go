package plan

// InlineCTEs replaces every WithCTE in n by its body, with each CTERef
// substituted by the referenced definition. The reference keeps its own
// output identities through a Project that aliases the definition's output.
// References to unknown definitions are left in place.
func InlineCTEs(n Node) Node {
	return TransformUp(n, func(x Node) Node {
		w, ok := x.(*WithCTE)
		if !ok {
			return x
		}
		defs := make(map[int64]Node, len(w.Defs))
		for _, d := range w.Defs {
			// A definition may reference the ones declared before it.
			defs[d.ID] = substituteRefs(InlineCTEs(d.Plan), defs)
		}
		return substituteRefs(w.Plan, defs)
	})
}

func substituteRefs(n Node, defs map[int64]Node) Node {
	return TransformUp(n, func(x Node) Node {
		ref, ok := x.(*CTERef)
		if !ok {
			return x
		}
		def, ok := defs[ref.CTEID]
		if !ok {
			return x
		}
		return inlineRef(ref, def)
	})
}

func inlineRef(ref *CTERef, def Node) Node {
	defOut := def.Output()
	list := make([]NamedExpr, 0, len(ref.Out))
	for i, a := range ref.Out {
		if i >= len(defOut) {
			break
		}
		list = append(list, As(Ref(defOut[i]), a))
	}
	return &Project{List: list, Child: def}
}
