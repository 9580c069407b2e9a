package demo

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	DefaultOffset  = 0
	DefaultLimit   = 100
	MaxLimit       = 100
	DefaultOrderBy = "-created_at"
)

// Demo columns usable in order_by.
var demoOrderFields = map[string]bool{
	"name":       true,
	"created_at": true,
	"updated_at": true,
	"status":     true,
}

// Member columns usable in order_by.
var memberOrderFields = map[string]bool{
	"created_at": true,
	"role":       true,
	"user_id":    true,
}

// ParseOrder splits an order_by value such as "-created_at" into its field
// and direction. Unknown fields fall back to the default ordering.
func ParseOrder(orderBy string) (field string, desc bool) {
	return parseOrder(orderBy, demoOrderFields)
}

// ParseMemberOrder is ParseOrder for member listings.
func ParseMemberOrder(orderBy string) (field string, desc bool) {
	return parseOrder(orderBy, memberOrderFields)
}

func parseOrder(orderBy string, allowed map[string]bool) (string, bool) {
	orderBy = strings.TrimSpace(orderBy)
	desc := strings.HasPrefix(orderBy, "-")
	field := strings.TrimPrefix(orderBy, "-")
	if !allowed[field] {
		return "created_at", true
	}
	return field, desc
}

// Validate checks pagination bounds.
func (q ListQuery) Validate() error {
	return validatePaging(q.Offset, q.Limit)
}

// Validate checks pagination bounds.
func (q MemberQuery) Validate() error {
	return validatePaging(q.Offset, q.Limit)
}

func validatePaging(offset, limit int) error {
	v := &ValidationError{}
	if offset < 0 {
		v.add("greater_than_equal", []string{"query", "offset"}, "Input should be greater than or equal to 0", offset)
	}
	if limit < 1 {
		v.add("greater_than_equal", []string{"query", "limit"}, "Input should be greater than or equal to 1", limit)
	} else if limit > MaxLimit {
		v.add("less_than_equal", []string{"query", "limit"}, fmt.Sprintf("Input should be less than or equal to %d", MaxLimit), limit)
	}
	return v.orNil()
}

// TotalPages returns the number of pages of size limit needed for total items.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

// Filter operators, after alias normalization.
const (
	OpIs          = "is"
	OpIsNot       = "is_not"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpIsEmpty     = "is_empty"
	OpNotEmpty    = "not_empty"
)

var operatorAliases = map[string]string{
	"is":               OpIs,
	"equal_to":         OpIs,
	"is_not":           OpIsNot,
	"not_equal_to":     OpIsNot,
	"contains":         OpContains,
	"does_not_contain": OpNotContains,
	"not_contains":     OpNotContains,
	"starts_with":      OpStartsWith,
	"startswith":       OpStartsWith,
	"ends_with":        OpEndsWith,
	"endswith":         OpEndsWith,
	"is_empty":         OpIsEmpty,
	"is_not_empty":     OpNotEmpty,
	"not_empty":        OpNotEmpty,
}

// ColumnKind is the value type of a filterable column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindBool
)

// FilterColumns lists the filterable demo columns and their kinds.
var FilterColumns = map[string]ColumnKind{
	"name":      KindText,
	"logo":      KindText,
	"status":    KindText,
	"is_active": KindBool,
}

var boolOperators = map[string]bool{OpIs: true, OpIsNot: true, OpIsEmpty: true, OpNotEmpty: true}

// Filter is one entry of the list endpoint's filter language.
type Filter struct {
	Column        string `json:"column_name"`
	Operator      string `json:"operator"`
	Value         any    `json:"value"`
	Logical       string `json:"logical"`
	CaseSensitive bool   `json:"case_sensitive"`
}

// Negated reports whether the filter result is inverted.
func (f Filter) Negated() bool {
	return f.Logical == "not"
}

// ParseFilters decodes JSON-encoded filter objects. Entries that do not
// decode, or that name an unknown column or operator, are dropped.
func ParseFilters(raw []string) []Filter {
	var out []Filter
	for _, s := range raw {
		var f Filter
		if err := json.Unmarshal([]byte(s), &f); err != nil {
			continue
		}
		kind, ok := FilterColumns[f.Column]
		if !ok {
			continue
		}
		op, ok := operatorAliases[f.Operator]
		if !ok {
			continue
		}
		if kind == KindBool && !boolOperators[op] {
			continue
		}
		f.Operator = op
		out = append(out, f)
	}
	return out
}

// TextValue returns the filter value as a string, lowered unless the filter
// is case sensitive.
func (f Filter) TextValue() string {
	var s string
	switch v := f.Value.(type) {
	case nil:
	case string:
		s = v
	default:
		s = fmt.Sprint(v)
	}
	if !f.CaseSensitive {
		s = strings.ToLower(s)
	}
	return s
}

// BoolValue interprets the filter value as a boolean.
func (f Filter) BoolValue() bool {
	switch v := f.Value.(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true") || v == "1"
	case float64:
		return v != 0
	}
	return false
}

// Match reports whether d satisfies the filter. Comparisons against a null
// column never match, negated or not.
func (f Filter) Match(d Demo) bool {
	if f.Operator == OpIsEmpty || f.Operator == OpNotEmpty {
		null := f.Column == "logo" && d.Logo == nil
		m := null
		if f.Operator == OpNotEmpty {
			m = !null
		}
		return m != f.Negated()
	}

	var m bool
	switch FilterColumns[f.Column] {
	case KindBool:
		m = d.IsActive == f.BoolValue()
		if f.Operator == OpIsNot {
			m = !m
		}
	default:
		col, null := textColumn(d, f.Column)
		if null {
			return false
		}
		if !f.CaseSensitive {
			col = strings.ToLower(col)
		}
		m = matchText(f.Operator, col, f.TextValue())
	}
	return m != f.Negated()
}

func textColumn(d Demo, column string) (string, bool) {
	switch column {
	case "name":
		return d.Name, false
	case "status":
		return string(d.Status), false
	case "logo":
		if d.Logo == nil {
			return "", true
		}
		return *d.Logo, false
	}
	return "", true
}

func matchText(op, col, val string) bool {
	switch op {
	case OpIs:
		return col == val
	case OpIsNot:
		return col != val
	case OpContains:
		return strings.Contains(col, val)
	case OpNotContains:
		return !strings.Contains(col, val)
	case OpStartsWith:
		return strings.HasPrefix(col, val)
	case OpEndsWith:
		return strings.HasSuffix(col, val)
	}
	return false
}

// MatchSearch reports whether d matches a free-text search term. The search
// is a case-insensitive substring match over the demo's text columns.
func MatchSearch(d Demo, search string) bool {
	if search == "" {
		return true
	}
	term := strings.ToLower(search)
	if strings.Contains(strings.ToLower(d.Name), term) {
		return true
	}
	return d.Logo != nil && strings.Contains(strings.ToLower(*d.Logo), term)
}

// SortDemos orders demos in place according to an order_by value. Ties keep
// their existing relative order.
func SortDemos(demos []Demo, orderBy string) {
	field, desc := ParseOrder(orderBy)
	sort.SliceStable(demos, func(i, j int) bool {
		c := compareDemos(demos[i], demos[j], field)
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareDemos(a, b Demo, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

// SortMembers orders members in place according to an order_by value.
func SortMembers(members []Member, orderBy string) {
	field, desc := ParseMemberOrder(orderBy)
	sort.SliceStable(members, func(i, j int) bool {
		var c int
		switch field {
		case "role":
			c = strings.Compare(string(members[i].Role), string(members[j].Role))
		case "user_id":
			c = strings.Compare(members[i].UserID, members[j].UserID)
		default:
			c = members[i].CreatedAt.Compare(members[j].CreatedAt)
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// Window returns the [offset, offset+limit) slice bounds clamped to n.
func Window(n, offset, limit int) (int, int) {
	start := min(max(offset, 0), n)
	end := n
	if limit > 0 {
		end = min(start+limit, n)
	}
	return start, end
}
