package keypager

import "fmt"

// Request is intended for API payloads. For proper code generation, inline it:
//
//	type ListDebtsRequest struct {
//	    Paging keypager.Request `json:",inline"`
//	}
type Request struct {
	// Limit - maximum number of rows to return in the response.
	// Normalized with NormalizeLimit.
	Limit int `json:"limit"`
	// Cursor - the nextCursor of the previous response. If empty, the first
	// page is returned.
	Cursor string `json:"cursor"`
	// Sort - optional orderings in the form "alias asc|desc". Ignored when
	// Cursor is set.
	Sort []string `json:"sort,omitempty"`
}

// Query converts the request into a *Query. Sort aliases are resolved via
// mapping; defaultSort is used when the request has no sort.
func (r Request) Query(mapping ColumnMapping, defaultSort ...OrderBy) (*Query, error) {
	sort := Orderings(defaultSort)
	if len(r.Sort) > 0 {
		parsed, err := ParseSort(r.Sort, mapping)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid sort: %w", ErrConfiguration, err)
		}

		sort = parsed
	}

	return NewQuery().
		WithLimit(NormalizeLimit(r.Limit)).
		WithCursor(r.Cursor).
		WithSubstitutedSort(sort...), nil
}
