package sqlite

import (
	"strings"

	"github.com/wondertwin-ai/demo-management/internal/demo"
)

// buildWhere translates a list query into a WHERE clause and its arguments.
// Comparisons against a NULL column evaluate to NULL in SQL, so such rows
// drop out whether or not the filter is negated, matching demo.Filter.Match.
func buildWhere(q demo.ListQuery) (string, []any) {
	clauses := []string{"status != ?"}
	args := []any{string(demo.StatusDeleted)}

	if q.Search != "" {
		term := strings.ToLower(q.Search)
		clauses = append(clauses, "(instr(lower(name), ?) > 0 OR instr(lower(coalesce(logo, '')), ?) > 0)")
		args = append(args, term, term)
	}

	for _, f := range q.Filters {
		expr, fargs := filterExpr(f)
		if expr == "" {
			continue
		}
		if f.Negated() {
			expr = "NOT (" + expr + ")"
		}
		clauses = append(clauses, expr)
		args = append(args, fargs...)
	}
	return strings.Join(clauses, " AND "), args
}

// filterExpr returns the SQL predicate for a single normalized filter. The
// column name comes from demo.FilterColumns, never from user input directly.
func filterExpr(f demo.Filter) (string, []any) {
	kind, ok := demo.FilterColumns[f.Column]
	if !ok {
		return "", nil
	}
	col := f.Column

	switch f.Operator {
	case demo.OpIsEmpty:
		return col + " IS NULL", nil
	case demo.OpNotEmpty:
		return col + " IS NOT NULL", nil
	}

	if kind == demo.KindBool {
		switch f.Operator {
		case demo.OpIs:
			return col + " = ?", []any{f.BoolValue()}
		case demo.OpIsNot:
			return col + " != ?", []any{f.BoolValue()}
		}
		return "", nil
	}

	expr := col
	if !f.CaseSensitive {
		expr = "lower(" + col + ")"
	}
	val := f.TextValue()

	switch f.Operator {
	case demo.OpIs:
		return expr + " = ?", []any{val}
	case demo.OpIsNot:
		return expr + " != ?", []any{val}
	case demo.OpContains:
		return "instr(" + expr + ", ?) > 0", []any{val}
	case demo.OpNotContains:
		return "instr(" + expr + ", ?) = 0", []any{val}
	case demo.OpStartsWith, demo.OpEndsWith:
		// Every non-null string starts and ends with the empty string.
		if val == "" {
			return col + " IS NOT NULL", nil
		}
		if f.Operator == demo.OpStartsWith {
			return "substr(" + expr + ", 1, length(?)) = ?", []any{val, val}
		}
		return "substr(" + expr + ", -length(?)) = ?", []any{val, val}
	}
	return "", nil
}
