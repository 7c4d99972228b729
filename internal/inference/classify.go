package inference

import "github.com/lineforge/lineforge/pkg/core"

// Classify maps the set of transform kinds whose matchers fired to the single
// label for the expression. Outermost wins:
// AGGREGATION > CONDITIONAL > ARITHMETIC > FUNCTION > IDENTITY.
func Classify(fired []core.TransformType) core.TransformType {
	label := core.TransformIdentity
	for _, t := range fired {
		label = core.Stronger(label, t)
	}
	return label
}
