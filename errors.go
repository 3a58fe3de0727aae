package main

import "fmt"

// MissingInputError reports a required input file that does not exist.
type MissingInputError struct {
	What string
	Path string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// SchemaError reports a mapping table that is not laid out as
// key, secondary field, sample. Line is 1-based; 0 means the whole file.
type SchemaError struct {
	Path   string
	Line   int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed mapping file %s, line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("malformed mapping file %s: %s", e.Path, e.Reason)
}
