package keypager

import (
	"fmt"

	"gorm.io/gorm/clause"
)

// Query holds the per-request pagination input. Build it with NewQuery and
// the With* methods; all methods are nil-safe.
type Query struct {
	where     clause.Expression
	sort      Orderings
	token     string
	limit     int
	lookahead bool
}

// NewQuery returns a query for the first page with no limit.
func NewQuery() *Query {
	return &Query{limit: NoLimit}
}

// WithWhere sets an extra filter ANDed into the final query.
func (q *Query) WithWhere(where clause.Expression) *Query {
	if q == nil {
		q = NewQuery()
	}

	q.where = where

	return q
}

// WithSort appends sort orderings. Order is preserved as if calling:
//
//	OrderBy(o1).ThenBy(o2).ThenBy(o3)...
//
// The sort is ignored when a cursor is given: a cursor always resumes with
// the order it was issued under.
func (q *Query) WithSort(orderBy ...OrderBy) *Query {
	if q == nil {
		q = NewQuery()
	}

	q.sort = append(q.sort, orderBy...)

	return q
}

// WithSubstitutedSort resets previous orderings and applies the provided ones.
func (q *Query) WithSubstitutedSort(orderBy ...OrderBy) *Query {
	if q == nil {
		q = NewQuery()
	}

	q.sort = nil

	return q.WithSort(orderBy...)
}

// WithCursor sets the token returned as the previous page's next cursor.
// An empty token selects the first page.
func (q *Query) WithCursor(token string) *Query {
	if q == nil {
		q = NewQuery()
	}

	q.token = token

	return q
}

// WithLimit sets the maximum number of returned rows. NoLimit disables the
// limit; any other value must be positive.
func (q *Query) WithLimit(limit int) *Query {
	if q == nil {
		q = NewQuery()
	}

	q.limit = limit

	return q
}

// WithUnlimited allows returning all rows without a limit.
//
// IMPORTANT:
// Cannot be used together with WithLookahead.
func (q *Query) WithUnlimited() *Query {
	return q.WithLimit(NoLimit)
}

// WithLookahead fetches one extra row to decide whether the page is the
// last one. Without lookahead a full last page is followed by one empty
// page.
//
// IMPORTANT:
// Requires a limit.
func (q *Query) WithLookahead() *Query {
	if q == nil {
		q = NewQuery()
	}

	q.lookahead = true

	return q
}

// GetSort returns the declared orderings.
func (q *Query) GetSort() Orderings {
	if q == nil {
		return nil
	}

	return q.sort
}

// GetCursor returns the raw cursor token.
func (q *Query) GetCursor() string {
	if q == nil {
		return ""
	}

	return q.token
}

// GetLimit returns the limit as stored, NoLimit when unset.
func (q *Query) GetLimit() int {
	if q == nil {
		return NoLimit
	}

	return q.limit
}

// IsUnlimited returns true if the limit equals NoLimit.
func (q *Query) IsUnlimited() bool {
	return q.GetLimit() == NoLimit
}

// IsLookahead returns true if lookahead pagination is enabled.
func (q *Query) IsLookahead() bool {
	if q == nil {
		return false
	}

	return q.lookahead
}

// GetDatasetLimit returns the number of rows to fetch:
//   - NoLimit if the query is unlimited;
//   - GetLimit() + 1 with lookahead;
//   - GetLimit() otherwise.
func (q *Query) GetDatasetLimit() int {
	switch {
	case q.IsUnlimited():
		return NoLimit
	case q.IsLookahead():
		return q.GetLimit() + 1
	default:
		return q.GetLimit()
	}
}

func (q *Query) validate() error {
	limit := q.GetLimit()
	if limit != NoLimit && limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}

	if limit == NoLimit && q.IsLookahead() {
		return fmt.Errorf("cannot apply lookahead to unlimited paging")
	}

	return nil
}

// isLastPage reports whether rows, as returned by the source, end the
// dataset: fewer rows than the limit, or no extra row with lookahead.
func (q *Query) isLastPage(fetched int) bool {
	if q.IsUnlimited() {
		return true
	}

	limit := q.GetLimit()

	return fetched < limit || (q.IsLookahead() && fetched <= limit)
}
