// Package keypager provides keyset (cursor) pagination over arbitrary
// result-producing queries.
//
// # Overview
//
// A Paginator wraps a Source, typically a GORM query with any joins,
// aggregations and filters, and serves it page by page. Each page ends with
// an opaque Cursor holding the sort-key values of its last row; passing the
// cursor back resumes strictly after that row. No offsets are involved, so
// pages stay stable under inserts and deletes outside the seen range.
//
// # Key concepts
//   - Orderings: multi-column ordering with an independent direction per
//     column. The paginate-by column, unique per row, always closes it.
//   - Cursor: base64url JSON token {"column":[value,"asc"|"desc"],...}.
//     A cursor resumes with the order it was issued under.
//   - After: the row-value comparison selecting rows past a cursor. See
//     AfterExpanded for dialects without row values.
//   - Page: the rows of one page and the next cursor, nil at the end.
//
// # Usage
//
//	source := keypager.FromGORM[keypager.Row](db.Table("debts").Where("center_id = ?", id))
//	pager := keypager.NewRowPaginator(source, "id")
//
//	page, err := pager.Page(ctx, keypager.NewQuery().
//		WithSort(keypager.Desc("due_date")).
//		WithCursor(token).
//		WithLimit(20))
package keypager
