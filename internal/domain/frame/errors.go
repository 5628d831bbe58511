package frame

import (
	"errors"
	"fmt"
)

// Sentinel errors for frame operations.
var (
	ErrSchema = errors.New("schema error")
	ErrArity  = errors.New("row arity does not match columns")
	ErrKey    = errors.New("unparseable key")
)

// SchemaError reports a required column missing from a table.
type SchemaError struct {
	Table  string
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error: %s table is missing column %q", e.Table, e.Column)
}

// Is makes errors.Is(err, ErrSchema) match any SchemaError.
func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

// KeyError reports a row whose key cell is not a date.
type KeyError struct {
	Table  string
	Column string
	Row    int
	Value  any
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("schema error: %s table row %d has unparseable %s %v", e.Table, e.Row, e.Column, e.Value)
}

// Is matches ErrKey and, since a bad key breaks the table contract, ErrSchema.
func (e *KeyError) Is(target error) bool {
	return target == ErrKey || target == ErrSchema
}
