package page

import (
	"fmt"
	"strconv"
	"strings"
)

// Cell is one image-box slot's position in the film page grid.
type Cell struct {
	Row, Col int
}

// Layout is the parsed form of an Image Display Format string (§6
// grammar: "STANDARD\<c>,<r>" | "ROW\<n1>,<n2>,..." | "COL\<n1>,<n2>,...").
type Layout struct {
	Rows, Cols int
	Cells      []Cell // in traversal order; len(Cells) is the synthesized Image Box count
}

// Count returns the number of Image Boxes this layout synthesizes
// (4.D invariant: "the number of synthesized Image Boxes equals the
// count implied by image_display_format").
func (l Layout) Count() int { return len(l.Cells) }

// ParseLayout parses an Image Display Format string. swapRowsColumns
// tolerates the "r,c" reading of STANDARD some clients send instead of
// the canonical DICOM PS3.3 C.13.5 "c,r" (spec.md §9 Open Question:
// follow the standard by default, but accept the swapped form under a
// flag rather than guessing).
func ParseLayout(format string, swapRowsColumns bool) (Layout, error) {
	parts := strings.SplitN(format, "\\", 2)
	if len(parts) != 2 {
		return Layout{}, fmt.Errorf("page: malformed image display format %q", format)
	}
	kind := strings.ToUpper(strings.TrimSpace(parts[0]))
	spec := parts[1]

	switch kind {
	case "STANDARD":
		return parseStandard(spec, swapRowsColumns)
	case "ROW":
		return parseRowOrCol(spec, true)
	case "COL":
		return parseRowOrCol(spec, false)
	default:
		return Layout{}, fmt.Errorf("page: unknown image display format kind %q", kind)
	}
}

func parseStandard(spec string, swapRowsColumns bool) (Layout, error) {
	nums := strings.Split(spec, ",")
	if len(nums) != 2 {
		return Layout{}, fmt.Errorf("page: STANDARD format requires two values, got %q", spec)
	}
	a, err := strconv.Atoi(strings.TrimSpace(nums[0]))
	if err != nil {
		return Layout{}, fmt.Errorf("page: STANDARD format: %w", err)
	}
	b, err := strconv.Atoi(strings.TrimSpace(nums[1]))
	if err != nil {
		return Layout{}, fmt.Errorf("page: STANDARD format: %w", err)
	}
	// Canonical DICOM PS3.3 C.13.5 order is columns,rows.
	cols, rows := a, b
	if swapRowsColumns {
		rows, cols = a, b
	}
	if rows <= 0 || cols <= 0 {
		return Layout{}, fmt.Errorf("page: STANDARD format has non-positive dimension (%d,%d)", rows, cols)
	}

	layout := Layout{Rows: rows, Cols: cols}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			layout.Cells = append(layout.Cells, Cell{Row: r, Col: c})
		}
	}
	return layout, nil
}

func parseRowOrCol(spec string, byRow bool) (Layout, error) {
	parts := strings.Split(spec, ",")
	counts := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Layout{}, fmt.Errorf("page: malformed cell count %q", p)
		}
		if n <= 0 {
			return Layout{}, fmt.Errorf("page: non-positive cell count %d", n)
		}
		counts = append(counts, n)
	}
	if len(counts) == 0 {
		return Layout{}, fmt.Errorf("page: no cell counts given")
	}

	max := 0
	for _, n := range counts {
		if n > max {
			max = n
		}
	}

	layout := Layout{}
	if byRow {
		layout.Rows, layout.Cols = len(counts), max
		for r, n := range counts {
			for c := 0; c < n; c++ {
				layout.Cells = append(layout.Cells, Cell{Row: r, Col: c})
			}
		}
	} else {
		layout.Rows, layout.Cols = max, len(counts)
		for c, n := range counts {
			for r := 0; r < n; r++ {
				layout.Cells = append(layout.Cells, Cell{Row: r, Col: c})
			}
		}
	}
	return layout, nil
}
