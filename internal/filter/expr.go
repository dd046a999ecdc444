package filter

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

func compileExpr(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("building expression environment: %w", err)
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("%w: expression must be boolean, got %s", ErrInvalidFilter, out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}
	return prg, nil
}

// evalExpr treats evaluation errors (for example a missing quality_score key) and
// non-boolean results as no match.
func evalExpr(prg cel.Program, it content.Item) bool {
	out, _, err := prg.Eval(map[string]any{"item": itemVars(it)})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// itemVars is the map exposed to expressions as "item". Optional scores are present only
// when set, so expressions can guard with has(item.quality_score).
func itemVars(it content.Item) map[string]any {
	m := map[string]any{
		"id":           it.ID,
		"type":         it.Type.String(),
		"name":         it.Name,
		"description":  it.Description,
		"status":       string(it.Status),
		"owner":        it.Owner,
		"industries":   orEmpty(it.Targeting.Industries),
		"regions":      orEmpty(it.Targeting.Regions),
		"job_roles":    orEmpty(it.Targeting.JobRoles),
		"accounts":     orEmpty(it.Targeting.Accounts),
		"parent_count": int64(len(it.ParentIDs)),
		"child_count":  int64(len(it.ChildIDs)),
	}
	if it.QualityScore != nil {
		m["quality_score"] = int64(*it.QualityScore)
	}
	if it.UsageCount != nil {
		m["usage_count"] = int64(*it.UsageCount)
	}
	return m
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
