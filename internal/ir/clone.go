package ir

import "slices"

// Clone returns a deep copy of the model. Verifier report-only runs and L3
// rebuild probes work on clones so the caller's IR is never touched.
func (m *ModelIR) Clone() *ModelIR {
	if m == nil {
		return nil
	}
	out := &ModelIR{
		Meta:      m.Meta,
		Objective: m.Objective,
	}
	if m.Sets != nil {
		out.Sets = make([]SetDef, len(m.Sets))
		for i, s := range m.Sets {
			out.Sets[i] = SetDef{Name: s.Name, Description: s.Description}
			if s.Elements != nil {
				out.Sets[i].Elements = make([]Value, len(s.Elements))
				for j, e := range s.Elements {
					out.Sets[i].Elements[j] = CloneValue(e)
				}
			}
		}
	}
	if m.Params != nil {
		out.Params = make([]ParamDef, len(m.Params))
		for i, p := range m.Params {
			out.Params[i] = ParamDef{
				Name:        p.Name,
				Indices:     slices.Clone(p.Indices),
				Values:      CloneValue(p.Values),
				Description: p.Description,
			}
		}
	}
	if m.Vars != nil {
		out.Vars = make([]VarDef, len(m.Vars))
		for i, v := range m.Vars {
			nv := v
			nv.Indices = slices.Clone(v.Indices)
			if v.UB != nil {
				nv.UB = Float(*v.UB)
			}
			out.Vars[i] = nv
		}
	}
	out.Constraints = slices.Clone(m.Constraints)
	return out
}
