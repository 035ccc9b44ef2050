package schema

import (
	"errors"
	"fmt"
)

// DefinitionError reports an invalid table, column, condition, or
// migration definition. It is a caller mistake: the operation will fail
// the same way on every retry until the definition is fixed.
type DefinitionError struct {
	Table   string // table the definition belongs to, if known
	Column  string // offending column or key, if known
	Message string
}

// Error returns the error string.
func (e *DefinitionError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("schema: table %q, column %q: %s", e.Table, e.Column, e.Message)
	case e.Table != "":
		return fmt.Sprintf("schema: table %q: %s", e.Table, e.Message)
	case e.Column != "":
		return fmt.Sprintf("schema: column %q: %s", e.Column, e.Message)
	default:
		return fmt.Sprintf("schema: %s", e.Message)
	}
}

// NewDefinitionError returns a new DefinitionError. table and column may
// be empty when they do not apply; format/args build the message.
func NewDefinitionError(table, column, format string, args ...any) *DefinitionError {
	return &DefinitionError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)}
}

// IsDefinition reports whether err is a DefinitionError anywhere in its chain.
func IsDefinition(err error) bool {
	if err == nil {
		return false
	}
	var e *DefinitionError
	return errors.As(err, &e)
}
