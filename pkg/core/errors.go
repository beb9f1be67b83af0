package core

import (
	"errors"

	"skipdb/pkg/core/skiplist"
)

var (
	// ErrDuplicateKey reports a save (or a unique index build) that would
	// put a second record under a key of a unique index.
	ErrDuplicateKey = skiplist.ErrDuplicateKey

	// ErrRecordExists reports a save of a record that is already stored.
	ErrRecordExists = errors.New("record already stored")
)

// Query errors
var (
	ErrUnregisteredField   = errors.New("field is not registered")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrInvalidLiteral      = errors.New("literal does not match field type")
)

// Registry and join errors
var (
	ErrKeyTypeMismatch = errors.New("join key types do not match")
	ErrStoreType       = errors.New("store is bound to another record type")
)
