package keypager

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Row is a result row keyed by column name.
type Row = map[string]any

// Window is what a Paginator asks a Source for: the rows matching Where that
// come strictly after the After position, sorted by Order, at most Limit of
// them.
type Window struct {
	// Where is the caller filter. Nil means no filter.
	Where clause.Expression
	// After is the position of the last row of the previous page. Nil on
	// the first page. Its keys are always equal to Order.
	After *Cursor
	// Order is the effective order, ending with the paginate-by column.
	Order Orderings
	// Limit is the number of rows to fetch, or NoLimit.
	Limit int
}

// Source is a named, orderable, filterable result set.
type Source[R any] interface {
	Fetch(ctx context.Context, w Window) ([]R, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc[R any] func(ctx context.Context, w Window) ([]R, error)

// Fetch - implements Source.
func (f SourceFunc[R]) Fetch(ctx context.Context, w Window) ([]R, error) {
	return f(ctx, w)
}

// GORMSource executes windows over an arbitrary GORM query by wrapping it
// as a subquery:
//
//	SELECT * FROM (<base>) AS s WHERE <where> AND <after> ORDER BY <order> LIMIT <limit>
//
// The base query is never modified, so a GORMSource may be shared between
// goroutines.
type GORMSource[R any] struct {
	base        *gorm.DB
	style       PredicateStyle
	alias       string
	timeColumns map[string]struct{}
}

// GORMSourceOption configures a GORMSource.
type GORMSourceOption func(*gormSourceOptions)

type gormSourceOptions struct {
	style       PredicateStyle
	alias       string
	timeColumns []string
}

// WithPredicateStyle selects how the keyset condition is rendered.
func WithPredicateStyle(style PredicateStyle) GORMSourceOption {
	return func(o *gormSourceOptions) {
		o.style = style
	}
}

// WithSubqueryAlias overrides the alias of the wrapped base query ("s").
func WithSubqueryAlias(alias string) GORMSourceOption {
	return func(o *gormSourceOptions) {
		o.alias = alias
	}
}

// WithTimeColumns marks columns whose cursor values are bound as time.Time.
// Time fields of a struct R are detected from its GORM schema; use this for
// Row results over timestamp columns.
func WithTimeColumns(columns ...string) GORMSourceOption {
	return func(o *gormSourceOptions) {
		o.timeColumns = append(o.timeColumns, columns...)
	}
}

// FromGORM wraps base, which may hold any joins, aggregations and filters.
// R is Row or any type GORM can scan rows into.
func FromGORM[R any](base *gorm.DB, opts ...GORMSourceOption) *GORMSource[R] {
	o := gormSourceOptions{
		style: PredicateRowValues,
		alias: "s",
	}
	for _, opt := range opts {
		opt(&o)
	}

	timeColumns := lo.SliceToMap(append(o.timeColumns, schemaTimeColumns[R](base)...), func(column string) (string, struct{}) {
		return column, struct{}{}
	})

	return &GORMSource[R]{
		base:        base,
		style:       o.style,
		alias:       o.alias,
		timeColumns: timeColumns,
	}
}

// schemaTimeColumns returns the columns of the time fields of R, or nothing
// when R is not a GORM model.
func schemaTimeColumns[R any](db *gorm.DB) []string {
	if db == nil {
		return nil
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(R)); err != nil {
		return nil
	}

	return lo.FilterMap(stmt.Schema.Fields, func(f *schema.Field, _ int) (string, bool) {
		return f.DBName, f.DBName != "" && f.DataType == schema.Time
	})
}

// Query builds the GORM query for a window without executing it.
func (s *GORMSource[R]) Query(ctx context.Context, w Window) (*gorm.DB, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("gorm source has no base query")
	}
	if !s.style.Valid() {
		return nil, fmt.Errorf("invalid predicate style %d", s.style)
	}
	if err := validateColumnName(s.alias); err != nil {
		return nil, fmt.Errorf("invalid subquery alias: %w", err)
	}

	tx := s.base.Session(&gorm.Session{NewDB: true, Context: ctx}).
		Table(fmt.Sprintf("(?) AS %s", s.alias), s.base)

	if w.Where != nil {
		tx = tx.Where(w.Where)
	}

	if !w.After.IsEmpty() {
		tx = tx.Where(s.style.build(s.bindCursor(w.After)))
	}

	if len(w.Order) > 0 {
		tx = tx.Clauses(clause.OrderBy{
			Columns: lo.Map(w.Order, func(o OrderBy, _ int) clause.OrderByColumn {
				return clause.OrderByColumn{
					Column: clause.Column{Name: o.Column},
					Desc:   o.Direction == DirectionDESC,
				}
			}),
		})
	}

	if w.Limit != NoLimit {
		tx = tx.Limit(w.Limit)
	}

	return tx, nil
}

// bindCursor returns c with the values of time columns parsed back into
// time.Time. Every other value is bound as the cursor carries it.
func (s *GORMSource[R]) bindCursor(c *Cursor) *Cursor {
	if len(s.timeColumns) == 0 {
		return c
	}

	return &Cursor{
		elements: lo.Map(c.elements, func(e CursorElement, _ int) CursorElement {
			if _, ok := s.timeColumns[e.Column]; !ok {
				return e
			}

			if text, ok := e.Value.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
					e.Value = t
				}
			}

			return e
		}),
	}
}

// Fetch - implements Source.
func (s *GORMSource[R]) Fetch(ctx context.Context, w Window) ([]R, error) {
	tx, err := s.Query(ctx, w)
	if err != nil {
		return nil, err
	}

	var rows []R
	if err = tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

var (
	_ Source[Row] = (*GORMSource[Row])(nil)
	_ Source[Row] = SourceFunc[Row](nil)
)
