// Package inference extracts per-column dependency sets from compiled SQL
// using an ordered chain of structural matchers. No full SQL grammar is
// involved: the chain recognizes a bounded set of expression shapes and
// unions every matching rule's discovered columns.
package inference

import (
	"log/slog"
	"strings"

	"github.com/lineforge/lineforge/pkg/core"
)

// Result is the analysis of one output column's defining expression.
type Result struct {
	// Columns are the upstream column names the expression depends on,
	// deduplicated in first-seen order.
	Columns []string
	// Transform is the classified transformation kind.
	Transform core.TransformType
	// Fired names the matchers that recognized the expression, for
	// diagnostics when more than one fired.
	Fired []string
}

// Analyzer runs the matcher chain over model SQL.
type Analyzer struct {
	chain  []Matcher
	logger *slog.Logger
}

// NewAnalyzer returns an analyzer with the standard matcher chain.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{chain: Chain(), logger: logger}
}

// AnalyzeExpr runs every matcher over one expression and unions the results.
func (a *Analyzer) AnalyzeExpr(expr string) Result {
	return a.analyzeTokens(lex(expr))
}

func (a *Analyzer) analyzeTokens(toks []token) Result {
	var res Result
	var fired []core.TransformType
	seen := make(map[string]bool)

	for _, m := range a.chain {
		match, ok := m.Match(toks)
		if !ok {
			continue
		}
		fired = append(fired, match.Transform)
		res.Fired = append(res.Fired, m.Name())
		for _, c := range match.Columns {
			key := strings.ToLower(c)
			if !seen[key] {
				seen[key] = true
				res.Columns = append(res.Columns, c)
			}
		}
	}

	res.Transform = Classify(fired)
	return res
}

// AnalyzeColumn locates the defining expression of the target column in the
// model's compiled SQL and analyzes it. ok is false when the column has no
// recognizable expression in the select list; provenance is then unknown,
// which is not an error.
func (a *Analyzer) AnalyzeColumn(model *core.Model, column string) (Result, bool) {
	expr, toks, found := exprFor(model.SQL, column)
	if !found {
		return Result{}, false
	}

	res := a.analyzeTokens(toks)
	if len(res.Fired) > 1 {
		a.logger.Debug("multiple matchers fired, outermost label chosen",
			slog.String("model", model.ID),
			slog.String("column", column),
			slog.String("expr", expr),
			slog.Any("matchers", res.Fired),
			slog.String("label", string(res.Transform)))
	}
	if len(res.Fired) == 0 {
		return Result{}, false
	}
	return res, true
}
