package inference

import "strings"

// tokKind classifies lexical tokens of a select-list expression.
type tokKind int

const (
	tokIdent tokKind = iota
	tokNumber
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type token struct {
	kind tokKind
	text string
	// start/end are byte offsets into the original input, so expression
	// text can be recovered verbatim.
	start, end int
}

// keywords that are never column references. Function names are excluded by
// the ident-followed-by-paren rule instead.
var keywords = map[string]bool{
	"select": true, "from": true, "where": true, "group": true, "order": true,
	"by": true, "having": true, "limit": true, "offset": true,
	"join": true, "inner": true, "left": true, "right": true, "full": true,
	"outer": true, "cross": true, "on": true, "using": true,
	"as": true, "case": true, "when": true, "then": true, "else": true,
	"end": true, "and": true, "or": true, "not": true, "in": true,
	"is": true, "null": true, "like": true, "ilike": true, "between": true,
	"distinct": true, "all": true, "union": true, "except": true,
	"intersect": true, "over": true, "partition": true, "asc": true,
	"desc": true, "true": true, "false": true, "interval": true,
	"with": true, "exists": true,
}

func isKeyword(s string) bool { return keywords[strings.ToLower(s)] }

// lex tokenizes a SQL fragment. Comments and whitespace are dropped;
// unrecognized bytes are skipped rather than rejected, since the analyzer
// only needs structural recognition, not validation.
func lex(input string) []token {
	var toks []token
	i := 0
	n := len(input)

	for i < n {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && input[i+1] == '-':
			for i < n && input[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && input[i+1] == '*':
			i += 2
			for i+1 < n && !(input[i] == '*' && input[i+1] == '/') {
				i++
			}
			i += 2

		case c == '\'':
			start := i
			i++
			for i < n {
				if input[i] == '\'' {
					// '' escapes a quote inside the literal
					if i+1 < n && input[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			toks = append(toks, token{tokString, input[start:i], start, i})

		case c == '"':
			start := i
			i++
			for i < n && input[i] != '"' {
				i++
			}
			end := i
			if i < n {
				i++
			}
			toks = append(toks, token{tokIdent, input[start+1 : end], start, i})

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(input[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, input[start:i], start, i})

		case c >= '0' && c <= '9':
			start := i
			for i < n && (isDigit(input[i]) || input[i] == '.' || input[i] == 'e' || input[i] == 'E') {
				i++
			}
			toks = append(toks, token{tokNumber, input[start:i], start, i})

		case c == '(':
			toks = append(toks, token{tokLParen, "(", i, i + 1})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i, i + 1})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i, i + 1})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i, i + 1})
			i++

		case c == '|' && i+1 < n && input[i+1] == '|':
			toks = append(toks, token{tokOp, "||", i, i + 2})
			i += 2

		case strings.IndexByte("+-*/%=<>!", c) >= 0:
			start := i
			i++
			// two-char comparison operators
			if i < n && strings.IndexByte("=><", input[i]) >= 0 {
				i++
			}
			toks = append(toks, token{tokOp, input[start:i], start, i})

		default:
			i++
		}
	}

	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// selectItem is one element of a select list: its expression tokens and the
// output alias, when one is present.
type selectItem struct {
	toks  []token
	alias string
}

// selectItems splits the main select list of a compiled statement into items.
// CTE bodies sit behind parentheses, so the first depth-0 SELECT is the
// statement's own; items run until the matching depth-0 FROM.
func selectItems(sql string) []selectItem {
	toks := lex(sql)

	// Find the first depth-0 SELECT.
	depth := 0
	start := -1
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokIdent:
			if depth == 0 && strings.EqualFold(t.text, "select") {
				start = i + 1
			}
		}
		if start >= 0 {
			break
		}
	}
	if start < 0 {
		return nil
	}

	// Skip a leading DISTINCT/ALL qualifier.
	if start < len(toks) && toks[start].kind == tokIdent {
		if lower := strings.ToLower(toks[start].text); lower == "distinct" || lower == "all" {
			start++
		}
	}

	// Collect items until the depth-0 FROM (or end of input).
	var items []selectItem
	depth = 0
	itemStart := start
	flush := func(end int) {
		if end > itemStart {
			items = append(items, makeItem(toks[itemStart:end]))
		}
	}
	for i := start; i < len(toks); i++ {
		t := toks[i]
		switch t.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokComma:
			if depth == 0 {
				flush(i)
				itemStart = i + 1
			}
		case tokIdent:
			if depth == 0 && strings.EqualFold(t.text, "from") {
				flush(i)
				return items
			}
		}
	}
	flush(len(toks))
	return items
}

// makeItem separates a trailing alias from the expression tokens. Both the
// explicit `expr AS alias` form and the implicit `expr alias` form are
// recognized; a lone identifier is an unaliased column reference.
func makeItem(toks []token) selectItem {
	n := len(toks)
	if n >= 3 && toks[n-1].kind == tokIdent &&
		toks[n-2].kind == tokIdent && strings.EqualFold(toks[n-2].text, "as") {
		return selectItem{toks: toks[:n-2], alias: toks[n-1].text}
	}
	if n >= 2 && toks[n-1].kind == tokIdent && !isKeyword(toks[n-1].text) {
		// Implicit alias: previous token must end an expression.
		switch toks[n-2].kind {
		case tokIdent, tokNumber, tokString, tokRParen:
			if !isKeyword(toks[n-2].text) {
				return selectItem{toks: toks[:n-1], alias: toks[n-1].text}
			}
		}
	}
	return selectItem{toks: toks}
}

// exprFor locates the defining expression of a target output column within
// compiled SQL. It returns the expression text and its tokens.
func exprFor(sql, target string) (string, []token, bool) {
	for _, item := range selectItems(sql) {
		if item.alias != "" && strings.EqualFold(item.alias, target) {
			return exprText(sql, item.toks), item.toks, true
		}
		// Unaliased bare column whose name is the target.
		if item.alias == "" {
			if col, ok := singleColumn(item.toks); ok && strings.EqualFold(col, target) {
				return exprText(sql, item.toks), item.toks, true
			}
		}
	}
	return "", nil, false
}

func exprText(sql string, toks []token) string {
	if len(toks) == 0 {
		return ""
	}
	return strings.TrimSpace(sql[toks[0].start:toks[len(toks)-1].end])
}

// singleColumn reports whether the tokens form a lone, possibly qualified,
// column reference and returns the column name.
func singleColumn(toks []token) (string, bool) {
	switch len(toks) {
	case 1:
		if toks[0].kind == tokIdent && !isKeyword(toks[0].text) {
			return toks[0].text, true
		}
	case 3:
		if toks[0].kind == tokIdent && toks[1].kind == tokDot && toks[2].kind == tokIdent {
			return toks[2].text, true
		}
	}
	return "", false
}

// columnRefs collects every column referenced by the tokens, deduplicated
// case-insensitively in first-seen order. Function names (identifier followed
// by an open paren), keywords, and identifiers directly after AS (aliases and
// CAST target types) are excluded. Qualified references contribute their
// final segment.
func columnRefs(toks []token) []string {
	var cols []string
	seen := make(map[string]bool)

	add := func(name string) {
		key := strings.ToLower(name)
		if !seen[key] {
			seen[key] = true
			cols = append(cols, name)
		}
	}

	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.kind != tokIdent || isKeyword(t.text) {
			continue
		}
		// Function name, not a column.
		if i+1 < len(toks) && toks[i+1].kind == tokLParen {
			continue
		}
		// Alias or CAST type after AS.
		if i > 0 && toks[i-1].kind == tokIdent && strings.EqualFold(toks[i-1].text, "as") {
			continue
		}
		// Qualified reference: walk to the last segment.
		for i+2 < len(toks) && toks[i+1].kind == tokDot && toks[i+2].kind == tokIdent {
			i += 2
		}
		add(toks[i].text)
	}

	return cols
}
