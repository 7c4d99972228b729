package core

// TransformType classifies how an output column was derived from its inputs.
type TransformType string

const (
	// TransformIdentity is a bare column reference or rename.
	TransformIdentity TransformType = "IDENTITY"
	// TransformFunction is a scalar function applied to one or more columns.
	TransformFunction TransformType = "FUNCTION"
	// TransformArithmetic is a binary arithmetic expression.
	TransformArithmetic TransformType = "ARITHMETIC"
	// TransformConditional is a CASE WHEN expression.
	TransformConditional TransformType = "CONDITIONAL"
	// TransformAggregation is an aggregate function, possibly wrapping any of
	// the other shapes.
	TransformAggregation TransformType = "AGGREGATION"
)

// priority orders transform kinds outermost-first: when several matchers fire
// on one expression the outermost construct names the transformation.
var priority = map[TransformType]int{
	TransformAggregation: 5,
	TransformConditional: 4,
	TransformArithmetic:  3,
	TransformFunction:    2,
	TransformIdentity:    1,
}

// Stronger returns the transform that wins when both a and b matched the same
// expression.
func Stronger(a, b TransformType) TransformType {
	if priority[b] > priority[a] {
		return b
	}
	return a
}
