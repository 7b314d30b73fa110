package ir

// knapsackModel is the three-item knapsack used across the package tests.
func knapsackModel() *ModelIR {
	return &ModelIR{
		Meta: MetaInfo{ProblemID: "knapsack", Sense: SenseMax, Version: SchemaVersion},
		Sets: []SetDef{{Name: "I", Elements: []Value{String("a"), String("b"), String("c")}}},
		Params: []ParamDef{
			{Name: "weight", Indices: []string{"I"}, Values: DictOf("a", 2, "b", 3, "c", 4)},
			{Name: "value", Indices: []string{"I"}, Values: DictOf("a", 3, "b", 4, "c", 5)},
			{Name: "capacity", Indices: []string{}, Values: Number(6)},
		},
		Vars: []VarDef{{Name: "x", Indices: []string{"I"}, VarType: Binary, LB: 0, UB: Float(1)}},
		Objective: ObjectiveDef{
			Name: "total_value", Sense: SenseMax, Expr: "sum(value[i]*x[i] for i in I)",
		},
		Constraints: []ConstraintDef{{
			Name: "cap", ExprLHS: "sum(weight[i]*x[i] for i in I)", Sense: LE, ExprRHS: "capacity",
		}},
	}
}
