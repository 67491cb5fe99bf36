package debuginfo

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	coralerrors "github.com/coral-mesh/coral-probe/internal/errors"
)

// lineRow is a statement row of a DWARF line table.
type lineRow struct {
	file    string
	line    uint64
	column  uint64
	address uint64
}

// DebugInfo resolves breakpoint locations from DWARF line tables.
type DebugInfo struct {
	logger zerolog.Logger
	path   string
	// rows grouped by cleaned file path, sorted by (line, column, address).
	files map[string][]lineRow
}

// Open loads the line tables of the ELF binary at path.
func Open(path string, logger zerolog.Logger) (*DebugInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary: %w", err)
	}
	defer coralerrors.DeferClose(logger, f, "failed to close ELF file")

	data, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("binary has no DWARF debug info: %w", err)
	}

	rows, err := readLineRows(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read line tables: %w", err)
	}

	info := newDebugInfo(path, rows, logger)
	info.logger.Debug().
		Str("binary", path).
		Int("files", len(info.files)).
		Int("rows", len(rows)).
		Msg("Loaded DWARF line tables")

	return info, nil
}

func newDebugInfo(path string, rows []lineRow, logger zerolog.Logger) *DebugInfo {
	files := make(map[string][]lineRow)
	for _, row := range rows {
		key := filepath.Clean(row.file)
		files[key] = append(files[key], row)
	}
	for _, fileRows := range files {
		sort.Slice(fileRows, func(i, j int) bool {
			a, b := fileRows[i], fileRows[j]
			if a.line != b.line {
				return a.line < b.line
			}
			if a.column != b.column {
				return a.column < b.column
			}
			return a.address < b.address
		})
	}

	return &DebugInfo{
		logger: logger.With().Str("component", "debuginfo").Logger(),
		path:   path,
		files:  files,
	}
}

// readLineRows collects the statement rows of every compilation unit.
func readLineRows(data *dwarf.Data) ([]lineRow, error) {
	var rows []lineRow

	reader := data.Reader()
	for {
		entry, err := reader.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			reader.SkipChildren()
			continue
		}

		lineReader, err := data.LineReader(entry)
		if err != nil {
			return nil, err
		}
		reader.SkipChildren()
		if lineReader == nil {
			continue
		}

		var lineEntry dwarf.LineEntry
		for {
			if err := lineReader.Next(&lineEntry); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
			if lineEntry.EndSequence || !lineEntry.IsStmt || lineEntry.File == nil || lineEntry.Line <= 0 {
				continue
			}
			column := uint64(0)
			if lineEntry.Column > 0 {
				column = uint64(lineEntry.Column)
			}
			rows = append(rows, lineRow{
				file:    lineEntry.File.Name,
				line:    uint64(lineEntry.Line),
				column:  column,
				address: lineEntry.Address,
			})
		}
	}

	return rows, nil
}

// BinaryPath returns the path of the binary the tables were loaded from.
func (d *DebugInfo) BinaryPath() string {
	return d.path
}

// BreakpointLocation implements Resolver.
//
// Among the statement rows of the matching file it takes the smallest line at
// or after the requested one. Within that line, a requested column selects the
// smallest column at or after it; otherwise the smallest column is used. The
// lowest address of the chosen position wins.
func (d *DebugInfo) BreakpointLocation(path string, line uint64, column *uint64) (VerifiedBreakpoint, error) {
	file, rows, ok := d.matchFile(path)
	if !ok {
		return VerifiedBreakpoint{}, fmt.Errorf("%w: no line information for %s", ErrNoValidLocation, path)
	}

	// rows are sorted, so the first qualifying row is the answer.
	best := -1
	for i, row := range rows {
		if row.line < line {
			continue
		}
		if column != nil && row.line == line && row.column < *column {
			continue
		}
		best = i
		break
	}
	if best < 0 {
		return VerifiedBreakpoint{}, fmt.Errorf("%w: %s:%d", ErrNoValidLocation, path, line)
	}

	row := rows[best]
	col := LeftEdge()
	if row.column > 0 {
		col = Column(row.column)
	}

	verified := VerifiedBreakpoint{
		Address: row.address,
		SourceLocation: SourceLocation{
			Directory: filepath.Dir(file),
			File:      filepath.Base(file),
			Line:      row.line,
			Column:    &col,
		},
	}

	d.logger.Debug().
		Str("requested", fmt.Sprintf("%s:%d", path, line)).
		Str("address", fmt.Sprintf("%#x", row.address)).
		Str("location", verified.SourceLocation.String()).
		Msg("Resolved breakpoint location")

	return verified, nil
}

// matchFile finds the line rows for path: an exact match of the cleaned
// path first, then a suffix match on a path separator boundary.
func (d *DebugInfo) matchFile(path string) (string, []lineRow, bool) {
	clean := filepath.Clean(path)
	if rows, ok := d.files[clean]; ok {
		return clean, rows, true
	}

	var candidates []string
	for file := range d.files {
		if hasPathSuffix(file, clean) || hasPathSuffix(clean, file) {
			candidates = append(candidates, file)
		}
	}
	if len(candidates) == 0 {
		return "", nil, false
	}

	// Prefer the longest match for stable results across map iteration.
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i]) != len(candidates[j]) {
			return len(candidates[i]) > len(candidates[j])
		}
		return candidates[i] < candidates[j]
	})
	return candidates[0], d.files[candidates[0]], true
}

func hasPathSuffix(path, suffix string) bool {
	if !strings.HasSuffix(path, suffix) {
		return false
	}
	if len(path) == len(suffix) {
		return true
	}
	return path[len(path)-len(suffix)-1] == filepath.Separator
}
