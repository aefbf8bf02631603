package keypager

// Operator defines a comparison operator used in keyset conditions.
type Operator string

const (
	OperatorGT Operator = ">"
	OperatorLT Operator = "<"

	// operatorEq only appears inside tie conditions.
	operatorEq Operator = "="
)
