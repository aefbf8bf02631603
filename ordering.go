package keypager

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Direction defines the sort direction for the requested dataset.
type Direction string

const (
	DirectionASC  Direction = "asc"
	DirectionDESC Direction = "desc"
)

// ParseDirection parses the wire form of a direction. Only the exact
// lowercase values are accepted.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", fmt.Errorf("invalid direction '%s'", s)
	}

	return d, nil
}

func (o Direction) Valid() bool {
	return o == DirectionASC || o == DirectionDESC
}

// ForOperator returns the strict comparison selecting rows that come after
// a value under this direction.
func (o Direction) ForOperator() Operator {
	switch o {
	case DirectionASC:
		return OperatorGT
	case DirectionDESC:
		return OperatorLT
	default:
		panic(fmt.Errorf("cannot map direction '%s' to operator", o))
	}
}

// SQL returns the ORDER BY keyword for the direction.
func (o Direction) SQL() string {
	return strings.ToUpper(string(o))
}

type (
	Orderings []OrderBy
	OrderBy   struct {
		Column    string
		Direction Direction
	}

	ColumnAlias = string

	// ColumnMapping maps external column aliases to the column names of the
	// paginated result set. Key is an external alias, value is a column name.
	ColumnMapping = map[ColumnAlias]string
)

// Asc is shorthand for an ascending OrderBy.
func Asc(column string) OrderBy {
	return OrderBy{Column: column, Direction: DirectionASC}
}

// Desc is shorthand for a descending OrderBy.
func Desc(column string) OrderBy {
	return OrderBy{Column: column, Direction: DirectionDESC}
}

var _availableColumnNameSymbols = append([]rune("_"), lo.AlphanumericCharset...)

func validateColumnName(column string) error {
	if column == "" {
		return fmt.Errorf("empty column name")
	}

	// Column names may come from client-held cursor tokens, so restrict them
	// to identifier characters even though they are quoted when rendered.
	// Qualified names are rejected: the outer query only sees the subquery
	// alias.
	if !lo.Every(_availableColumnNameSymbols, []rune(column)) {
		return fmt.Errorf("column name contains forbidden symbols '%s'", column)
	}

	return nil
}

func (o OrderBy) validate() error {
	if !o.Direction.Valid() {
		return fmt.Errorf("invalid ordering direction '%s'", o.Direction)
	}

	return validateColumnName(o.Column)
}

// ToSQLSlice converts Orderings to a slice of strings in the form
// "<order_column> <order_direction>".
//
// Example: for Orderings: [{"a", "asc"}, {"b", "desc"}] returns ["a ASC", "b DESC"].
func (o Orderings) ToSQLSlice() []string {
	return lo.Map(o, func(ordering OrderBy, _ int) string {
		return fmt.Sprintf("%s %s", ordering.Column, ordering.Direction.SQL())
	})
}

// ToSQL joins ToSQLSlice with commas. Intended for logs and diagnostics;
// sources render ORDER BY with quoted identifiers instead.
func (o Orderings) ToSQL() string {
	return strings.Join(o.ToSQLSlice(), ", ")
}

// Columns returns the column names in order.
func (o Orderings) Columns() []string {
	return lo.Map(o, func(ordering OrderBy, _ int) string {
		return ordering.Column
	})
}

func (o Orderings) validate() error {
	if len(o) == 0 {
		return fmt.Errorf("empty ordering list")
	}

	var err error
	for _, ordering := range o {
		err = ordering.validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// dedup removes earlier occurrences of repeated columns, so that the last
// mention of a column wins but takes the position it was mentioned at.
func (o Orderings) dedup() Orderings {
	ret := make(Orderings, 0, len(o))
	for _, ordering := range o {
		idx := slices.IndexFunc(ret, func(processed OrderBy) bool {
			return processed.Column == ordering.Column
		})
		if idx != -1 {
			ret = slices.Delete(ret, idx, idx+1)
		}

		ret = append(ret, ordering)
	}

	return ret
}

// effectiveOrder returns the total order for a first page: the declared
// order ending with paginateBy. Keys declared after paginateBy are dropped
// since a unique key already decides every comparison.
func effectiveOrder(declared Orderings, paginateBy string) Orderings {
	ret := declared.dedup()

	idx := slices.IndexFunc(ret, func(o OrderBy) bool {
		return o.Column == paginateBy
	})
	if idx != -1 {
		return ret[:idx+1]
	}

	return append(ret, Desc(paginateBy))
}

// ParseSort builds Orderings from a list of strings in the format
// "column asc|desc". Column aliases are resolved via ColumnMapping.
// Returns an error if an alias is not found in the mapping.
func ParseSort(stringsOrderings []string, columnMapping ColumnMapping) (Orderings, error) {
	ret := make([]OrderBy, 0, len(stringsOrderings))
	aliases := lo.Keys(columnMapping)
	slices.Sort(aliases)

	for _, stringOrdering := range stringsOrderings {
		cutStringOrdering := strings.Fields(stringOrdering)
		if len(cutStringOrdering) != 2 {
			return nil, fmt.Errorf("invalid ordering string format '%s'", stringOrdering)
		}

		columnAlias := cutStringOrdering[0]
		direction, err := ParseDirection(strings.ToLower(cutStringOrdering[1]))
		if err != nil {
			return nil, err
		}

		columnName := columnMapping[columnAlias]
		if columnName == "" {
			return nil, fmt.Errorf("invalid column alias '%s'. closest: '%s'", columnAlias, closestAlias(columnAlias, aliases))
		}

		ret = append(ret, OrderBy{
			Column:    columnName,
			Direction: direction,
		})
	}

	return ret, nil
}

func closestAlias(input ColumnAlias, dataSet []ColumnAlias) ColumnAlias {
	minDist := math.MaxInt
	closest := ""

	for _, dataSetAlias := range dataSet {
		dist := levenshtein([]rune(dataSetAlias), []rune(input))
		if dist < minDist {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}
