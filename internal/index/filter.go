package index

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter comparison operators.
const (
	OpEq  = "="
	OpGt  = ">"
	OpGte = ">="
	OpLt  = "<"
	OpLte = "<="
)

// Condition is one clause of a filter expression.
type Condition struct {
	Field  string
	Op     string
	Values []string
}

var plainValueRe = regexp.MustCompile(`^[\p{L}\p{N}_.-]+$`)

// Equals formats an exact-match filter clause, quoting value when needed.
func Equals(field, value string) string {
	if plainValueRe.MatchString(value) {
		return field + ":=" + value
	}
	return field + ":=`" + strings.ReplaceAll(value, "`", "") + "`"
}

// ParseFilter parses an expression such as "type:=page && boost:>2".
// Supported operators are :=, :, :>, :>=, :<, :<= and value lists in [a,b];
// values may be wrapped in backticks.
func ParseFilter(expr string) ([]Condition, error) {
	clauses, err := splitClauses(expr)
	if err != nil {
		return nil, err
	}
	conds := make([]Condition, 0, len(clauses))
	for _, c := range clauses {
		cond, err := parseClause(c)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func splitClauses(expr string) ([]string, error) {
	var out []string
	var cur strings.Builder
	quoted := false
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case ch == '`':
			quoted = !quoted
			cur.WriteByte(ch)
		case !quoted && ch == '&' && i+1 < len(expr) && expr[i+1] == '&':
			out = append(out, cur.String())
			cur.Reset()
			i++
		case !quoted && ch == '|' && i+1 < len(expr) && expr[i+1] == '|':
			return nil, fmt.Errorf("%w: filter %q: || is not supported", ErrMalformed, expr)
		default:
			cur.WriteByte(ch)
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: filter %q: unterminated backtick", ErrMalformed, expr)
	}
	out = append(out, cur.String())
	clauses := out[:0]
	for _, c := range out {
		if c = strings.TrimSpace(c); c != "" {
			clauses = append(clauses, c)
		}
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("%w: empty filter", ErrMalformed)
	}
	return clauses, nil
}

func parseClause(clause string) (Condition, error) {
	i := strings.IndexByte(clause, ':')
	if i <= 0 {
		return Condition{}, fmt.Errorf("%w: filter clause %q: missing field", ErrMalformed, clause)
	}
	cond := Condition{Field: strings.TrimSpace(clause[:i])}
	rest := strings.TrimSpace(clause[i+1:])
	for _, op := range []string{OpGte, OpLte, OpEq, OpGt, OpLt} {
		if strings.HasPrefix(rest, op) {
			cond.Op = op
			rest = strings.TrimSpace(rest[len(op):])
			break
		}
	}
	if cond.Op == "" {
		cond.Op = OpEq
	}
	if strings.HasPrefix(rest, "[") && strings.HasSuffix(rest, "]") {
		if cond.Op != OpEq {
			return Condition{}, fmt.Errorf("%w: filter clause %q: lists need :=", ErrMalformed, clause)
		}
		for _, v := range strings.Split(rest[1:len(rest)-1], ",") {
			if v = unquote(strings.TrimSpace(v)); v != "" {
				cond.Values = append(cond.Values, v)
			}
		}
	} else if v := unquote(rest); v != "" {
		cond.Values = []string{v}
	}
	if len(cond.Values) == 0 {
		return Condition{}, fmt.Errorf("%w: filter clause %q: missing value", ErrMalformed, clause)
	}
	return cond, nil
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '`' && v[len(v)-1] == '`' {
		return v[1 : len(v)-1]
	}
	return v
}
