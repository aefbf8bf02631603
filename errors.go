package keypager

import "errors"

var (
	// ErrCursorDecode is returned for malformed or semantically invalid
	// cursor tokens. A bad token never degrades to a first page.
	ErrCursorDecode = errors.New("cursor decode error")

	// ErrCursorEncode is returned when the last row of a page cannot be
	// turned into a cursor.
	ErrCursorEncode = errors.New("cursor encode error")

	// ErrStoreExecution wraps errors returned by a Source. The original
	// error stays reachable through errors.Is and errors.As.
	ErrStoreExecution = errors.New("store execution error")

	// ErrConfiguration is returned for invalid queries or paginators.
	ErrConfiguration = errors.New("configuration error")
)
