package keypager

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

var sqlMockFnList = []func() (string, *gorm.DB, sqlmock.Sqlmock, error){
	newGORMMySQLMock,
	newGORMPostgresMock,
}

var _placeholderPattern = regexp.MustCompile(`\\\?`)

// expectSQL turns a query written in MySQL style (backticks, "?") into an
// anchored sqlmock pattern for dialect. A space after a comma is optional.
func expectSQL(dialect, query string) string {
	if dialect == "postgres" {
		query = strings.ReplaceAll(query, "`", `"`)
	}

	pattern := regexp.QuoteMeta(query)
	if dialect == "postgres" {
		n := 0
		pattern = _placeholderPattern.ReplaceAllStringFunc(pattern, func(string) string {
			n++
			return fmt.Sprintf(`\$%d`, n)
		})
	}

	pattern = strings.ReplaceAll(pattern, ", ", ",")
	pattern = strings.ReplaceAll(pattern, ",", `,\s?`)

	return "^" + pattern + "$"
}

// memorySource serves rows from memory. It finds the rows after a window's
// cursor by comparing sort keys directly, independently of the SQL
// predicate builder.
type memorySource struct {
	rows    []Row
	windows []Window
	err     error
}

func (m *memorySource) Fetch(_ context.Context, w Window) ([]Row, error) {
	m.windows = append(m.windows, w)
	if m.err != nil {
		return nil, m.err
	}

	var position Row
	if w.After != nil {
		position = Row{}
		for _, e := range w.After.Elements() {
			position[e.Column] = e.Value
		}
	}

	ret := make([]Row, 0, len(m.rows))
	for _, row := range m.rows {
		if position == nil || compareRows(row, position, w.Order) > 0 {
			ret = append(ret, row)
		}
	}

	slices.SortStableFunc(ret, func(a, b Row) int {
		return compareRows(a, b, w.Order)
	})

	if w.Limit != NoLimit && len(ret) > w.Limit {
		ret = ret[:w.Limit]
	}

	return ret, nil
}

// compareRows compares rows lexicographically under order.
func compareRows(a, b Row, order Orderings) int {
	for _, o := range order {
		c := compareValues(a[o.Column], b[o.Column])
		if o.Direction == DirectionDESC {
			c = -c
		}

		if c != 0 {
			return c
		}
	}

	return 0
}

func compareValues(a, b any) int {
	switch av := a.(type) {
	case int64:
		return cmp.Compare(av, b.(int64))
	case float64:
		return cmp.Compare(av, b.(float64))
	case string:
		return cmp.Compare(av, b.(string))
	default:
		panic(fmt.Errorf("cannot compare %T", a))
	}
}

func idRows(ids ...int64) []Row {
	ret := make([]Row, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, Row{"id": id})
	}

	return ret
}

func rowIDs(rows []Row) []int64 {
	ret := make([]int64, 0, len(rows))
	for _, row := range rows {
		ret = append(ret, row["id"].(int64))
	}

	return ret
}

func mustCursor(elements ...CursorElement) *Cursor {
	c, err := NewCursor(elements...)
	if err != nil {
		panic(err)
	}

	return c
}
