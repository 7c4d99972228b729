package inference

import (
	"strings"

	"github.com/lineforge/lineforge/pkg/core"
)

// Match is a successful recognition: the upstream columns the expression
// depends on and the transformation kind the shape implies.
type Match struct {
	Columns   []string
	Transform core.TransformType
}

// Matcher recognizes one structural shape of a select-list expression.
// Matchers are independent: every matcher in the chain is attempted and all
// discovered columns are unioned, so a broader rule never drops the columns
// a narrower rule found.
type Matcher interface {
	Name() string
	Match(toks []token) (Match, bool)
}

// aggregateFuncs are the aggregation functions the analyzer recognizes.
var aggregateFuncs = map[string]bool{
	"sum": true, "count": true, "avg": true, "min": true, "max": true,
}

// arithmeticOps are the binary operators the arithmetic matcher recognizes.
var arithmeticOps = map[string]bool{
	"+": true, "-": true, "*": true, "/": true, "%": true, "||": true,
}

// Chain returns the fixed matcher chain in evaluation order.
func Chain() []Matcher {
	return []Matcher{
		directMatcher{},
		functionMatcher{},
		arithmeticMatcher{},
		conditionalMatcher{},
		aggregateMatcher{},
	}
}

// directMatcher recognizes a bare, possibly qualified, column reference.
type directMatcher struct{}

func (directMatcher) Name() string { return "direct" }

func (directMatcher) Match(toks []token) (Match, bool) {
	col, ok := singleColumn(toks)
	if !ok {
		return Match{}, false
	}
	return Match{Columns: []string{col}, Transform: core.TransformIdentity}, true
}

// functionMatcher recognizes `func(args...)` for non-aggregate functions.
// Every column inside the parentheses is a dependency.
type functionMatcher struct{}

func (functionMatcher) Name() string { return "function" }

func (functionMatcher) Match(toks []token) (Match, bool) {
	inner, name, ok := callShape(toks)
	if !ok || aggregateFuncs[strings.ToLower(name)] {
		return Match{}, false
	}
	return Match{Columns: columnRefs(inner), Transform: core.TransformFunction}, true
}

// arithmeticMatcher recognizes a depth-0 binary operator between operands, at
// least one of which is a column. Every column operand is a dependency.
type arithmeticMatcher struct{}

func (arithmeticMatcher) Name() string { return "arithmetic" }

func (arithmeticMatcher) Match(toks []token) (Match, bool) {
	depth := 0
	found := false
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokOp:
			if depth == 0 && i > 0 && arithmeticOps[t.text] {
				// Binary only: the left neighbor must end an operand.
				switch toks[i-1].kind {
				case tokIdent, tokNumber, tokString, tokRParen:
					found = true
				}
			}
		}
	}
	if !found {
		return Match{}, false
	}
	cols := columnRefs(toks)
	if len(cols) == 0 {
		return Match{}, false
	}
	return Match{Columns: cols, Transform: core.TransformArithmetic}, true
}

// conditionalMatcher recognizes a CASE WHEN expression at depth 0. Columns in
// the condition clauses count as dependencies alongside the result clauses:
// they gate which value is chosen even though they never appear in the output.
type conditionalMatcher struct{}

func (conditionalMatcher) Name() string { return "conditional" }

func (conditionalMatcher) Match(toks []token) (Match, bool) {
	depth := 0
	start := -1
	for i, t := range toks {
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokIdent:
			if depth == 0 && strings.EqualFold(t.text, "case") {
				start = i
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return Match{}, false
	}

	// Slice to the matching END so trailing tokens outside the CASE are not
	// attributed to it.
	end := len(toks)
	depth = 0
	for i := start + 1; i < len(toks); i++ {
		switch toks[i].kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokIdent:
			if depth == 0 && strings.EqualFold(toks[i].text, "end") {
				end = i
			}
		}
		if end < len(toks) {
			break
		}
	}

	return Match{
		Columns:   columnRefs(toks[start:end]),
		Transform: core.TransformConditional,
	}, true
}

// aggregateMatcher recognizes SUM/COUNT/AVG/MIN/MAX wrapping any other shape.
// Aggregation composes: the inner expression is analyzed with the full chain
// and its dependency set carried through.
type aggregateMatcher struct{}

func (aggregateMatcher) Name() string { return "aggregate" }

func (aggregateMatcher) Match(toks []token) (Match, bool) {
	inner, name, ok := callShape(toks)
	if !ok || !aggregateFuncs[strings.ToLower(name)] {
		return Match{}, false
	}

	// Strip a leading DISTINCT qualifier.
	if len(inner) > 0 && inner[0].kind == tokIdent && strings.EqualFold(inner[0].text, "distinct") {
		inner = inner[1:]
	}

	cols := unionMatcherColumns(inner)
	if len(cols) == 0 {
		// count(*), count(1): an aggregation with no column dependencies.
		cols = columnRefs(inner)
	}
	return Match{Columns: cols, Transform: core.TransformAggregation}, true
}

// callShape matches `ident ( ... )` spanning the whole token slice and
// returns the inner tokens and function name.
func callShape(toks []token) ([]token, string, bool) {
	n := len(toks)
	if n < 3 || toks[0].kind != tokIdent || toks[1].kind != tokLParen || toks[n-1].kind != tokRParen {
		return nil, "", false
	}
	// The final rparen must close the opening one.
	depth := 0
	for i := 1; i < n-1; i++ {
		switch toks[i].kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		}
		if depth == 0 {
			return nil, "", false
		}
	}
	return toks[2 : n-1], toks[0].text, true
}

// unionMatcherColumns runs the full chain over a token slice and unions every
// matcher's discovered columns. Used for nested analysis inside aggregates.
func unionMatcherColumns(toks []token) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, m := range Chain() {
		if res, ok := m.Match(toks); ok {
			for _, c := range res.Columns {
				key := strings.ToLower(c)
				if !seen[key] {
					seen[key] = true
					cols = append(cols, c)
				}
			}
		}
	}
	return cols
}
