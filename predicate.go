package keypager

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

// PredicateStyle selects how the "rows after cursor" condition is rendered.
type PredicateStyle int

const (
	// PredicateRowValues renders a row-value (tuple) comparison. Supported by
	// PostgreSQL, MySQL 8, SQLite 3.15+ and most other SQL engines.
	PredicateRowValues PredicateStyle = iota
	// PredicateExpanded renders the equivalent disjunctive normal form for
	// dialects without row-value comparisons.
	PredicateExpanded
)

func (s PredicateStyle) Valid() bool {
	return s == PredicateRowValues || s == PredicateExpanded
}

func (s PredicateStyle) build(c *Cursor) clause.Expression {
	switch s {
	case PredicateRowValues:
		return After(c)
	case PredicateExpanded:
		return AfterExpanded(c)
	default:
		panic(fmt.Errorf("unknown predicate style %d", s))
	}
}

// After returns a condition selecting rows strictly after the cursor
// position under the cursor's order, or nil for an empty cursor.
//
// For an order [(C1, D1)... (Cn, Dn)] every key but the last goes into a pair
// of tuples. An ascending key places its value on the left and its column on
// the right, a descending key the other way around, so that a single "<"
// reads "after" for every key regardless of direction:
//
//	(LHS) < (RHS) OR ((LHS) = (RHS) AND Cn On Vn)
//
// where On is ">" for an ascending Cn and "<" for a descending one. A
// single-key cursor renders only "Cn On Vn".
func After(c *Cursor) clause.Expression {
	if c.IsEmpty() {
		return nil
	}

	n := len(c.elements)
	tieBreaker := c.elements[n-1].toConjunct()
	if n == 1 {
		return tieBreaker.toGORMExpression()
	}

	lhs := make([]any, 0, n-1)
	rhs := make([]any, 0, n-1)
	for _, e := range c.elements[:n-1] {
		column, value := clause.Column{Name: e.Column}, e.Value

		switch e.Direction {
		case DirectionASC:
			lhs = append(lhs, value)
			rhs = append(rhs, column)
		case DirectionDESC:
			lhs = append(lhs, column)
			rhs = append(rhs, value)
		default:
			panic(fmt.Errorf("unknown direction '%s'", e.Direction))
		}
	}

	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", n-1), ", ") + ")"

	vars := make([]any, 0, 4*(n-1)+2)
	vars = append(vars, lhs...)
	vars = append(vars, rhs...)
	vars = append(vars, lhs...)
	vars = append(vars, rhs...)
	vars = append(vars, clause.Column{Name: tieBreaker.Column}, tieBreaker.Value)

	return clause.Expr{
		SQL:  fmt.Sprintf("%[1]s < %[1]s OR (%[1]s = %[1]s AND ? %[2]s ?)", tuple, tieBreaker.Operator),
		Vars: vars,
	}
}

// AfterExpanded returns the same condition as After written out as a
// disjunctive normal form, or nil for an empty cursor:
//
//	(C1 O1 V1) OR (C1 = V1 AND C2 O2 V2) OR ... OR (C1 = V1 AND ... AND Cn On Vn)
func AfterExpanded(c *Cursor) clause.Expression {
	return toDNF(c).toGORMExpression()
}

type (
	tConjunct struct {
		Column   string
		Value    any
		Operator Operator
	}

	tDisjunct []tConjunct

	// tDNF represents the disjunctive normal form (DNF) of a logical expression.
	// Each disjunct is joined by OR, and each disjunct consists of a list of
	// conjuncts which are joined by AND. A conjunct is the value of
	// Operator(Column, Value).
	//
	// Thus:
	//
	//	DNF = X1 OR X2 ... OR Xn, where Xi = Ai1 AND Ai2 ... AND Aim.
	tDNF []tDisjunct
)

func (e CursorElement) toConjunct() tConjunct {
	return tConjunct{
		Column:   e.Column,
		Value:    e.Value,
		Operator: e.Direction.ForOperator(),
	}
}

func (e CursorElement) toConjunctWithEqualityCondition() tConjunct {
	return tConjunct{
		Column:   e.Column,
		Value:    e.Value,
		Operator: operatorEq,
	}
}

// toDNF expands the cursor [(C1, V1, D1)... (Cn, Vn, Dn)] into one disjunct
// per key: equality on all previous keys and a strict comparison on the key
// itself.
func toDNF(c *Cursor) tDNF {
	if c.IsEmpty() {
		return nil
	}

	dnf := make(tDNF, 0, len(c.elements))
	for i := range c.elements {
		previousElementsWithEqualityCondition := lo.Map(c.elements[:i], func(item CursorElement, _ int) tConjunct {
			return item.toConjunctWithEqualityCondition()
		})

		disjunct := make(tDisjunct, 0, i+1)
		disjunct = append(disjunct, previousElementsWithEqualityCondition...)
		disjunct = append(disjunct, c.elements[i].toConjunct())

		dnf = append(dnf, disjunct)
	}

	return dnf
}

// toGORMExpression converts a conjunct of the form Operator(Column, Value)
// into "Column Operator ?" with the column quoted by the dialect.
func (c tConjunct) toGORMExpression() clause.Expression {
	return clause.Expr{
		SQL:  fmt.Sprintf("? %s ?", c.Operator),
		Vars: []any{clause.Column{Name: c.Column}, c.Value},
	}
}

// toGORMExpression converts a disjunct (K1, K2, K3) into "K1 AND K2 AND K3".
func (d tDisjunct) toGORMExpression() clause.Expression {
	andExpressions := lo.Map(d, func(conjunct tConjunct, _ int) clause.Expression {
		return conjunct.toGORMExpression()
	})

	if len(andExpressions) == 1 {
		return andExpressions[0]
	} else if len(andExpressions) > 1 {
		return clause.And(andExpressions...)
	}

	return nil
}

// toGORMExpression joins the disjuncts with OR.
func (d tDNF) toGORMExpression() clause.Expression {
	orExpressions := make([]clause.Expression, 0, len(d))

	for _, disjunct := range d {
		andExpressions := disjunct.toGORMExpression()
		if andExpressions == nil {
			continue
		}

		orExpressions = append(orExpressions, andExpressions)
	}

	if len(orExpressions) == 1 {
		return orExpressions[0]
	} else if len(orExpressions) > 1 {
		return clause.Or(orExpressions...)
	}

	return nil
}
