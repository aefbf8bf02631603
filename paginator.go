package keypager

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Getters - a dictionary of per-column value getters of a row type. List the
// columns pagination may sort by.
// Example:
//
//	keypager.Getters[models.Debt]{
//		"id":       func(last models.Debt) any { return last.ID },
//		"due_date": func(last models.Debt) any { return last.DueDate },
//	}
type Getters[R any] map[string]func(R) any

// Page is one page of results. NextCursor is nil at the end of the dataset
// and renders as a token (or null) in JSON.
type Page[T any] struct {
	Result     []T     `json:"result"`
	NextCursor *Cursor `json:"nextCursor"`
}

// NextToken returns the next cursor token, empty at the end of the dataset.
func (p *Page[T]) NextToken() string {
	if p == nil {
		return ""
	}

	return p.NextCursor.String()
}

// HasNext reports whether a next cursor was issued.
func (p *Page[T]) HasNext() bool {
	return p != nil && !p.NextCursor.IsEmpty()
}

// Option configures a Paginator.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger. Cursor values are never logged.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Paginator pages through a Source by keyset. paginateBy names a column that
// is unique and stable for every row of the source; it is always the final
// sort key. A Paginator holds no per-request state.
type Paginator[R any] struct {
	source     Source[R]
	paginateBy string
	read       func(row R, column string) (any, bool)
	logger     *zap.Logger
}

// NewPaginator returns a paginator over rows of type R whose key column
// values are read with getters.
func NewPaginator[R any](source Source[R], paginateBy string, getters Getters[R], opts ...Option) *Paginator[R] {
	return newPaginator(source, paginateBy, func(row R, column string) (any, bool) {
		getter, ok := getters[column]
		if !ok {
			return nil, false
		}

		return getter(row), true
	}, opts)
}

// NewRowPaginator returns a paginator over Row results.
func NewRowPaginator(source Source[Row], paginateBy string, opts ...Option) *Paginator[Row] {
	return newPaginator(source, paginateBy, func(row Row, column string) (any, bool) {
		v, ok := row[column]
		return v, ok
	}, opts)
}

func newPaginator[R any](
	source Source[R],
	paginateBy string,
	read func(R, string) (any, bool),
	opts []Option,
) *Paginator[R] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Paginator[R]{
		source:     source,
		paginateBy: paginateBy,
		read:       read,
		logger:     o.logger.With(zap.String("paginate_by", paginateBy)),
	}
}

// Page returns a page of unmapped rows.
func (p *Paginator[R]) Page(ctx context.Context, q *Query) (*Page[R], error) {
	return Paginate[R, R](ctx, p, q, nil)
}

// Paginate fetches the page of p selected by q and maps every row with mapFn,
// preserving order. A nil mapFn passes rows through and requires T to be R.
//
// Errors wrap ErrConfiguration, ErrCursorDecode, ErrStoreExecution or
// ErrCursorEncode.
func Paginate[R, T any](ctx context.Context, p *Paginator[R], q *Query, mapFn func(R) T) (*Page[T], error) {
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("%w: cannot paginate: %w", ErrConfiguration, err)
	}

	if mapFn == nil {
		identity, ok := any(func(row R) R { return row }).(func(R) T)
		if !ok {
			return nil, fmt.Errorf("%w: no row mapping given for distinct result type", ErrConfiguration)
		}

		mapFn = identity
	}

	if q == nil {
		q = NewQuery()
	}

	if err := q.validate(); err != nil {
		return nil, fmt.Errorf("%w: cannot paginate: %w", ErrConfiguration, err)
	}

	cursor, err := p.decodeCursor(q.GetCursor())
	if err != nil {
		return nil, err
	}

	order, err := p.resolveOrder(q, cursor)
	if err != nil {
		return nil, err
	}

	rows, err := p.source.Fetch(ctx, Window{
		Where: q.where,
		After: cursor,
		Order: order,
		Limit: q.GetDatasetLimit(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreExecution, err)
	}

	rows, next, err := p.assemble(q, order, rows)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("page fetched",
		zap.Int("rows", len(rows)),
		zap.Int("limit", q.GetLimit()),
		zap.Bool("has_next", next != nil),
	)

	return &Page[T]{
		Result: lo.Map(rows, func(row R, _ int) T {
			return mapFn(row)
		}),
		NextCursor: next,
	}, nil
}

func (p *Paginator[R]) validate() error {
	if p == nil {
		return fmt.Errorf("paginator is nil")
	}

	if p.source == nil {
		return fmt.Errorf("paginator has no source")
	}

	if p.read == nil {
		return fmt.Errorf("paginator has no row reader")
	}

	return validateColumnName(p.paginateBy)
}

// decodeCursor decodes token and checks that it belongs to a pagination
// keyed by p.paginateBy. A rejected token is an error, never a first page.
func (p *Paginator[R]) decodeCursor(token string) (*Cursor, error) {
	cursor, err := DecodeCursor(token)
	if err == nil && cursor != nil {
		if vErr := cursor.validate(p.paginateBy); vErr != nil {
			err = fmt.Errorf("%w: %w", ErrCursorDecode, vErr)
		}
	}

	if err != nil {
		p.logger.Warn("rejected cursor token", zap.Error(err))
		return nil, err
	}

	if cursor != nil {
		p.logger.Debug("cursor decoded", zap.Strings("columns", cursor.Orderings().Columns()))
	}

	return cursor, nil
}

// resolveOrder returns the effective order: the cursor's own order when
// resuming, so that the keyset condition and ORDER BY always agree, or the
// declared order closed by the paginate-by column.
func (p *Paginator[R]) resolveOrder(q *Query, cursor *Cursor) (Orderings, error) {
	if cursor != nil {
		return cursor.Orderings(), nil
	}

	order := effectiveOrder(q.GetSort(), p.paginateBy)
	if err := order.validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid sort: %w", ErrConfiguration, err)
	}

	return order, nil
}

// assemble trims rows to the page and builds the next cursor from the last
// row of a full page.
func (p *Paginator[R]) assemble(q *Query, order Orderings, rows []R) ([]R, *Cursor, error) {
	if q.isLastPage(len(rows)) {
		return rows, nil, nil
	}

	rows = rows[:q.GetLimit()]
	last := rows[len(rows)-1]

	elements := make([]CursorElement, 0, len(order))
	for _, orderBy := range order {
		value, ok := p.read(last, orderBy.Column)
		if !ok {
			return nil, nil, fmt.Errorf("%w: cannot find value for column '%s' met in ordering", ErrCursorEncode, orderBy.Column)
		}

		elements = append(elements, CursorElement{
			Column:    orderBy.Column,
			Value:     value,
			Direction: orderBy.Direction,
		})
	}

	next, err := NewCursor(elements...)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot build next page cursor: %w", err)
	}

	return rows, next, nil
}
