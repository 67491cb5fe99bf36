// Package debuginfo provides source-location to address resolution for
// breakpoints, backed by the DWARF line tables of the target binary.
package debuginfo

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ErrNoValidLocation is returned when no instruction maps to the requested
// source location or any location after it in the same file.
var ErrNoValidLocation = errors.New("no valid breakpoint location")

// ColumnType is a source column. A statement that starts at the beginning of
// the line is reported as LeftEdge rather than column 0.
type ColumnType struct {
	leftEdge bool
	value    uint64
}

// LeftEdge returns the column of a statement starting at the line's left edge.
func LeftEdge() ColumnType {
	return ColumnType{leftEdge: true}
}

// Column returns the column n.
func Column(n uint64) ColumnType {
	return ColumnType{value: n}
}

// IsLeftEdge reports whether the column is the left edge.
func (c ColumnType) IsLeftEdge() bool {
	return c.leftEdge
}

// Normalized returns the numeric column, mapping LeftEdge to 0.
func (c ColumnType) Normalized() uint64 {
	if c.leftEdge {
		return 0
	}
	return c.value
}

// String returns a string representation of the column.
func (c ColumnType) String() string {
	if c.leftEdge {
		return "left-edge"
	}
	return fmt.Sprintf("%d", c.value)
}

// SourceLocation is a resolved position in the program source.
type SourceLocation struct {
	Directory string
	File      string
	// Line is 1-based; 0 means the line is unknown.
	Line     uint64
	Column   *ColumnType
	Function string
}

// CombinedPath returns the full path of the source file. The second result is
// false if the location carries no file name.
func (l SourceLocation) CombinedPath() (string, bool) {
	if l.File == "" {
		return "", false
	}
	if filepath.IsAbs(l.File) || l.Directory == "" {
		return l.File, true
	}
	return filepath.Join(l.Directory, l.File), true
}

// Equal reports whether two locations describe the same position.
func (l SourceLocation) Equal(other SourceLocation) bool {
	if l.Directory != other.Directory || l.File != other.File || l.Line != other.Line || l.Function != other.Function {
		return false
	}
	if (l.Column == nil) != (other.Column == nil) {
		return false
	}
	return l.Column == nil || *l.Column == *other.Column
}

// String returns a string representation of the location.
func (l SourceLocation) String() string {
	path, ok := l.CombinedPath()
	if !ok {
		path = "<unknown file>"
	}
	if l.Column != nil {
		return fmt.Sprintf("%s:%d:%s", path, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", path, l.Line)
}

// VerifiedBreakpoint is a breakpoint location confirmed by the debug
// information: the address to program and the source position it maps to.
type VerifiedBreakpoint struct {
	Address        uint64
	SourceLocation SourceLocation
}

// Resolver finds valid breakpoint locations in a target binary.
type Resolver interface {
	// BreakpointLocation returns the nearest valid breakpoint location for the
	// requested source position. Column is optional.
	BreakpointLocation(path string, line uint64, column *uint64) (VerifiedBreakpoint, error)
}

// StackFrame is a frame of a captured call stack.
type StackFrame struct {
	ID           int64
	FunctionName string
	PC           uint64
	Location     *SourceLocation
	IsInlined    bool
}
