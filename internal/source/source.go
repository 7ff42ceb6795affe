// Package source defines the single read contract shared by LogData and
// FilteredData, replacing the original AbstractLogData base-class
// inheritance with a plain interface (spec.md §9).
package source

// LineOrientedSource is implemented by anything that exposes a file-like
// sequence of decoded lines: the raw log (LogData) and the derived,
// marks-and-matches view over it (FilteredData).
type LineOrientedSource interface {
	// LineCount returns the number of lines currently visible through this
	// source.
	LineCount() uint32

	// MaxLength returns the longest visible (tab-expanded) line length seen
	// so far.
	MaxLength() uint32

	// Line returns the line at i with tabs preserved, or an error if i is
	// out of bounds.
	Line(i uint32) (string, error)

	// ExpandedLine returns the line at i with tabs replaced by spaces.
	ExpandedLine(i uint32) (string, error)

	// LineLength returns the visible, tab-expanded character width of line i.
	LineLength(i uint32) (uint32, error)
}

// SequentialLineReader reads lines from a single goroutine's perspective,
// reusing a private decode cursor across calls so lines presented in
// increasing order cost O(1) amortized instead of a full offset-block walk
// each time.
type SequentialLineReader interface {
	ExpandedLine(i uint32) (string, error)
}

// CursoredSource is implemented by a LineOrientedSource that can hand out a
// dedicated SequentialLineReader per caller. A parallel reader (one search
// worker goroutine per partition, one GetLines call per concurrent
// caller) should get its own reader instead of sharing one decode cursor.
type CursoredSource interface {
	LineOrientedSource
	NewLineReader() SequentialLineReader
}
