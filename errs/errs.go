// Package errs defines the compiler's error taxonomy (spec.md §7) as a
// small leaf package so every stage (parser, resolver, allocator, program
// builder, backend) can raise its own concrete error type while still
// satisfying one common interface the diagnostics formatter understands.
package errs

import (
	"fmt"

	"github.com/ome-lang/ome/source"
)

// Category is one of the fixed textual categories from spec.md §7.
type Category string

const (
	CategoryParse           Category = "Parse-Error"
	CategoryUnboundName     Category = "Unbound-Name"
	CategoryNameConflict    Category = "Name-Conflict"
	CategoryReservedName    Category = "Reserved-Name"
	CategoryTooManyParams   Category = "Too-Many-Parameters"
	CategoryArraySizeTooBig Category = "Array-Size-Too-Big"
	CategoryTagSpace        Category = "Tag-Space-Exhausted"
	CategoryConstantSpace   Category = "Constant-Space-Exhausted"
	CategoryNoMainMethod    Category = "No-Main-Method"
	CategoryIoError         Category = "Io-Error"
	CategoryEncodingError   Category = "Encoding-Error"
	CategoryBackendError    Category = "Backend-Error"
)

// CompileError is implemented by every concrete error type raised across
// the pipeline; diag.FormatError type-switches to it for bold/caret
// rendering.
type CompileError interface {
	error
	Category() Category
}

// Positioned is implemented by errors anchored to a source location.
type Positioned interface {
	CompileError
	Position() (stream string, span source.Span, line string)
}

// Basic is a CompileError with no source position (e.g. BackendError).
type Basic struct {
	Cat     Category
	Message string
}

func (e Basic) Error() string      { return fmt.Sprintf("%s: %s", e.Cat, e.Message) }
func (e Basic) Category() Category { return e.Cat }

// Located is a CompileError anchored to a source position.
type Located struct {
	Cat     Category
	Message string
	Stream  string
	Span    source.Span
	Line    string
}

func (e Located) Error() string {
	return fmt.Sprintf("%s: %s @ %s:%s", e.Cat, e.Message, e.Stream, e.Span)
}
func (e Located) Category() Category { return e.Cat }
func (e Located) Position() (string, source.Span, string) {
	return e.Stream, e.Span, e.Line
}

// BackendError carries the failed subprocess's exit code (spec.md §6, §7).
type BackendError struct {
	Basic
	ExitCode int
}

func NewBackendError(name string, exitCode int) BackendError {
	return BackendError{
		Basic:    Basic{Cat: CategoryBackendError, Message: fmt.Sprintf("%s exited with status %d", name, exitCode)},
		ExitCode: exitCode,
	}
}
