package bibtex

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/FocuswithJustin/CedarBib/core/errors"
)

// queryKind tags the parsed form of a query.
type queryKind int

const (
	matchAll queryKind = iota
	byElement
	byPattern
	byTypeClauses
	byID
)

// TypeClause is one @type[condition,...] clause of a query. Conditions
// may be empty, in which case the clause is a pure type test.
type TypeClause struct {
	Type       string
	Conditions []string
}

// Query is a parsed element query. Parsing happens once, in ParseQuery;
// matching is then a tag dispatch with no further string inspection.
type Query struct {
	kind    queryKind
	element Element
	pattern *regexp.Regexp
	clauses []TypeClause
	id      string
}

// clausePattern recognizes one @type[condition,...] clause. The bracketed
// condition list is optional.
var clausePattern = regexp.MustCompile(`@([a-zA-Z_][a-zA-Z0-9_]*)(\[[^\]]*\])?`)

// ParseQuery parses a query into its tagged form. Accepted query values,
// in dispatch priority order:
//
//   - nil or an empty string: matches every element.
//   - an Element: matches elements comparing equal to it.
//   - a *regexp.Regexp: matches elements whose Text matches.
//   - a string "/pattern/": the pattern compiled as a regular expression;
//     an invalid pattern fails with a malformed-query error.
//   - a string of @type[condition,...] clauses: matches when any clause
//     matches. A string containing @ that does not fit the clause shape
//     falls through to identifier matching.
//   - any other string: matches elements whose ID equals it.
func ParseQuery(q any) (*Query, error) {
	switch v := q.(type) {
	case nil:
		return &Query{kind: matchAll}, nil
	case *Query:
		return v, nil
	case Element:
		return &Query{kind: byElement, element: v}, nil
	case *regexp.Regexp:
		return &Query{kind: byPattern, pattern: v}, nil
	case string:
		return parseStringQuery(v)
	default:
		return nil, errors.NewQuery(fmt.Sprintf("%T", q), "unsupported query type", nil)
	}
}

func parseStringQuery(s string) (*Query, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return &Query{kind: matchAll}, nil
	}

	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, "/") && strings.HasSuffix(trimmed, "/") {
		re, err := regexp.Compile(trimmed[1 : len(trimmed)-1])
		if err != nil {
			return nil, errors.NewQuery(trimmed, "invalid pattern", err)
		}
		return &Query{kind: byPattern, pattern: re}, nil
	}

	if strings.Contains(trimmed, "@") {
		if clauses, ok := parseTypeClauses(trimmed); ok {
			return &Query{kind: byTypeClauses, clauses: clauses}, nil
		}
	}

	return &Query{kind: byID, id: trimmed}, nil
}

// parseTypeClauses extracts the @type[condition,...] clauses from a query
// string. It succeeds only when the clauses, separated by whitespace,
// cover the whole string; anything else falls back to identifier
// matching.
func parseTypeClauses(s string) ([]TypeClause, bool) {
	locs := clausePattern.FindAllStringSubmatchIndex(s, -1)
	if len(locs) == 0 {
		return nil, false
	}

	// Every character outside the clause spans must be whitespace.
	covered := 0
	for _, loc := range locs {
		if strings.TrimSpace(s[covered:loc[0]]) != "" {
			return nil, false
		}
		covered = loc[1]
	}
	if strings.TrimSpace(s[covered:]) != "" {
		return nil, false
	}

	clauses := make([]TypeClause, 0, len(locs))
	for _, loc := range locs {
		clause := TypeClause{Type: s[loc[2]:loc[3]]}
		if loc[4] >= 0 {
			// Strip the surrounding brackets before splitting.
			clause.Conditions = splitConditions(s[loc[4]+1 : loc[5]-1])
		}
		clauses = append(clauses, clause)
	}
	return clauses, true
}

// splitConditions splits a bracketed condition list on commas, trimming
// each part. An empty list yields no conditions.
func splitConditions(list string) []string {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// Match reports whether the element satisfies the parsed query.
// Condition evaluation errors (unknown fields) propagate.
func (q *Query) Match(e Element) (bool, error) {
	switch q.kind {
	case matchAll:
		return true, nil
	case byElement:
		return Equal(e, q.element), nil
	case byPattern:
		return q.pattern.MatchString(e.Text()), nil
	case byTypeClauses:
		for _, c := range q.clauses {
			if !e.HasType(c.Type) {
				continue
			}
			if len(c.Conditions) == 0 {
				return true, nil
			}
			ok, err := Meets(e, c.Conditions...)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return e.ID() == q.id, nil
	}
}

// Matches reports whether the element satisfies the query. See ParseQuery
// for the accepted forms.
func Matches(e Element, q any) (bool, error) {
	pq, err := ParseQuery(q)
	if err != nil {
		return false, err
	}
	return pq.Match(e)
}

// Meets reports whether the element satisfies every condition. Each
// condition has the form "property = value" and holds when the named
// field renders textually equal to the value, with no coercion. Blank
// conditions and conditions with no property are vacuously true. A
// condition naming a field the element does not define fails with an
// unknown-field error that propagates to the caller.
func Meets(e Element, conditions ...string) (bool, error) {
	for _, cond := range conditions {
		cond = strings.TrimSpace(cond)
		if cond == "" {
			continue
		}
		prop, want, _ := strings.Cut(cond, "=")
		prop = strings.TrimSpace(prop)
		want = strings.TrimSpace(want)
		if prop == "" {
			continue
		}
		got, err := queryField(e, prop)
		if err != nil {
			return false, err
		}
		if got != want {
			return false, nil
		}
	}
	return true, nil
}

// queryField resolves a condition property against an element. The
// uniform properties id and type resolve for every variant; everything
// else goes through the variant's Field capability.
func queryField(e Element, name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "id":
		return e.ID(), nil
	case "type":
		return e.Type(), nil
	}
	if v, ok := e.Field(name); ok {
		return v, nil
	}
	return "", errors.NewUnknownField(e.Type(), name)
}
