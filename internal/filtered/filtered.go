// Package filtered implements the FilteredData engine: it runs regex
// searches against a LogData-like source, merges the results with a marks
// store into a unified filtered view, and exposes the same line-oriented
// read contract the underlying source does. See spec.md §4.5.
package filtered

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/alienxp03/logscope/internal/marks"
	"github.com/alienxp03/logscope/internal/search"
	"github.com/alienxp03/logscope/internal/source"
)

// Visibility selects which of matches/marks are included in the filtered
// view.
type Visibility int

const (
	MatchesOnly Visibility = iota
	MarksOnly
	MarksAndMatches
)

// ItemType tags a FilteredItem as coming from a search match, a mark, or
// both (coalesced when a line is both).
type ItemType int

const (
	TypeMatch ItemType = 1 << iota
	TypeMark
)

// FilteredItem is one entry of the unified matches+marks view.
type FilteredItem struct {
	Line uint32
	Type ItemType
}

// NoIndex is returned by GetLineIndexNumber when the source line is not
// present in the filtered view.
const NoIndex = -1

// FilteredData composes a search worker and a marks store over a single
// underlying LineOrientedSource (a LogData), presenting their union as a
// second LineOrientedSource.
type FilteredData struct {
	mu sync.Mutex

	underlying source.LineOrientedSource
	logger     *zap.Logger

	marks      *marks.Marks
	searchData *search.SearchData
	worker     *search.Worker

	visibility Visibility
	re         *regexp.Regexp

	lastProcessedLine uint32

	maxLenMatches uint32
	maxLenMarks   uint32

	cache      []FilteredItem
	cacheValid bool
}

// New returns a FilteredData wrapping underlying, which must implement
// ExpandedLine for the search worker to read lines from.
func New(underlying source.LineOrientedSource, logger *zap.Logger) *FilteredData {
	if logger == nil {
		logger = zap.NewNop()
	}
	data := search.NewData()
	return &FilteredData{
		underlying: underlying,
		logger:     logger,
		marks:      marks.New(),
		searchData: data,
		worker:     search.New(underlying, data, logger),
		visibility: MarksAndMatches,
	}
}

func compile(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	return regexp.Compile(pattern)
}

// RunSearch cancels any in-flight search, and — only if pattern compiles —
// clears prior matches and starts a fresh search over [start, end). An
// invalid regex leaves any existing matches untouched (spec.md §7).
func (f *FilteredData) RunSearch(pattern string, caseInsensitive bool, start, end uint32, progress chan<- search.Progress) error {
	f.worker.Interrupt()

	re, err := compile(pattern, caseInsensitive)
	if err != nil {
		return fmt.Errorf("filtered: invalid pattern: %w", err)
	}

	f.worker.ResetInterrupt()
	f.searchData.Reset()

	f.mu.Lock()
	f.re = re
	f.maxLenMatches = 0
	f.invalidateCacheLocked()
	f.mu.Unlock()

	f.worker.RunSearch(re, start, end, progress)

	f.mu.Lock()
	f.lastProcessedLine = end
	f.mu.Unlock()
	f.foldNewMatches()
	return nil
}

// UpdateSearch continues the active pattern, resuming one line before the
// last processed line so a previously-trailing line that may have grown is
// re-checked.
func (f *FilteredData) UpdateSearch(end uint32, progress chan<- search.Progress) error {
	f.mu.Lock()
	re := f.re
	start := f.lastProcessedLine
	f.mu.Unlock()
	if re == nil {
		return nil
	}
	if start > 0 {
		start--
	}

	f.worker.ResetInterrupt()
	f.worker.UpdateSearch(re, start, end, progress)

	f.mu.Lock()
	f.lastProcessedLine = end
	f.mu.Unlock()
	f.foldNewMatches()
	return nil
}

// InterruptSearch cooperatively cancels the in-flight search.
func (f *FilteredData) InterruptSearch() { f.worker.Interrupt() }

// ClearSearch discards the active pattern and all matches.
func (f *FilteredData) ClearSearch() {
	f.searchData.Reset()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.re = nil
	f.lastProcessedLine = 0
	f.maxLenMatches = 0
	f.invalidateCacheLocked()
}

// foldNewMatches drains matches accumulated since the last drain and
// invalidates the unified cache if anything new arrived.
func (f *FilteredData) foldNewMatches() {
	newLines := f.searchData.DrainNewMatches()
	if len(newLines) == 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ml := f.searchData.MaxLength(); ml > f.maxLenMatches {
		f.maxLenMatches = ml
	}
	f.invalidateCacheLocked()
}

// AddMark adds a mark at line.
func (f *FilteredData) AddMark(line uint32) {
	length, _ := f.underlying.LineLength(line)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.marks.Add(line) {
		return
	}
	f.invalidateCacheLocked()
	if length > f.maxLenMarks {
		f.maxLenMarks = length
	}
}

// DeleteMark removes the mark at line.
func (f *FilteredData) DeleteMark(line uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.marks.Delete(line) {
		return
	}
	f.invalidateCacheLocked()
	f.rescanMarksMaxLengthLocked()
}

// ClearMarks removes every mark.
func (f *FilteredData) ClearMarks() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks.Clear()
	f.maxLenMarks = 0
	f.invalidateCacheLocked()
}

func (f *FilteredData) rescanMarksMaxLengthLocked() {
	var maxLen uint32
	for _, line := range f.marks.Lines() {
		l, err := f.underlying.LineLength(line)
		if err == nil && l > maxLen {
			maxLen = l
		}
	}
	f.maxLenMarks = maxLen
}

// SetVisibility switches which of matches/marks are visible, invalidating
// the unified cache.
func (f *FilteredData) SetVisibility(v Visibility) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v == f.visibility {
		return
	}
	f.visibility = v
	f.invalidateCacheLocked()
}

func (f *FilteredData) Visibility() Visibility {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visibility
}

func (f *FilteredData) invalidateCacheLocked() {
	f.cacheValid = false
	f.cache = nil
}

// ensureCacheLocked regenerates the unified FilteredItem cache by a
// two-pointer merge of the sorted match and mark line sets, coalescing a
// line that is both.
func (f *FilteredData) ensureCacheLocked() {
	if f.cacheValid {
		return
	}
	matchLines := f.searchData.Lines()
	markLines := f.marks.Lines()
	merged := make([]FilteredItem, 0, len(matchLines)+len(markLines))

	i, j := 0, 0
	for i < len(matchLines) && j < len(markLines) {
		switch {
		case matchLines[i] < markLines[j]:
			merged = append(merged, FilteredItem{Line: matchLines[i], Type: TypeMatch})
			i++
		case matchLines[i] > markLines[j]:
			merged = append(merged, FilteredItem{Line: markLines[j], Type: TypeMark})
			j++
		default:
			merged = append(merged, FilteredItem{Line: matchLines[i], Type: TypeMatch | TypeMark})
			i++
			j++
		}
	}
	for ; i < len(matchLines); i++ {
		merged = append(merged, FilteredItem{Line: matchLines[i], Type: TypeMatch})
	}
	for ; j < len(markLines); j++ {
		merged = append(merged, FilteredItem{Line: markLines[j], Type: TypeMark})
	}

	f.cache = merged
	f.cacheValid = true
}

// GetNbLine returns the number of lines visible under the current
// visibility.
func (f *FilteredData) GetNbLine() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.visibility {
	case MatchesOnly:
		return uint32(f.searchData.MatchCount())
	case MarksOnly:
		return uint32(f.marks.Len())
	default:
		f.ensureCacheLocked()
		return uint32(len(f.cache))
	}
}

// GetMatchingLineNumber maps a filtered index back to the underlying
// source's line number.
func (f *FilteredData) GetMatchingLineNumber(index uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.visibility {
	case MatchesOnly:
		line, ok := f.searchData.Nth(int(index))
		if !ok {
			return 0, fmt.Errorf("filtered: index %d out of range", index)
		}
		return line, nil
	case MarksOnly:
		if int(index) >= f.marks.Len() {
			return 0, fmt.Errorf("filtered: index %d out of range", index)
		}
		return f.marks.At(int(index)), nil
	default:
		f.ensureCacheLocked()
		if int(index) >= len(f.cache) {
			return 0, fmt.Errorf("filtered: index %d out of range", index)
		}
		return f.cache[index].Line, nil
	}
}

// GetLineIndexNumber reverse-maps a source line number to its filtered
// index, or NoIndex if the line is not visible under the current
// visibility.
func (f *FilteredData) GetLineIndexNumber(sourceLine uint32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.visibility {
	case MatchesOnly:
		return f.searchData.IndexOf(sourceLine)
	case MarksOnly:
		return f.marks.IndexOf(sourceLine)
	default:
		f.ensureCacheLocked()
		idx := sort.Search(len(f.cache), func(i int) bool { return f.cache[i].Line >= sourceLine })
		if idx < len(f.cache) && f.cache[idx].Line == sourceLine {
			return idx
		}
		return NoIndex
	}
}

// FilteredLineType reports whether the filtered entry at index is a match, a
// mark, or both. Only meaningful under MarksAndMatches visibility; under a
// single-source visibility it always reports that source's type.
func (f *FilteredData) FilteredLineType(index uint32) (ItemType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.visibility {
	case MatchesOnly:
		return TypeMatch, nil
	case MarksOnly:
		return TypeMark, nil
	default:
		f.ensureCacheLocked()
		if int(index) >= len(f.cache) {
			return 0, fmt.Errorf("filtered: index %d out of range", index)
		}
		return f.cache[index].Type, nil
	}
}

// LineCount implements source.LineOrientedSource.
func (f *FilteredData) LineCount() uint32 { return f.GetNbLine() }

// MaxLength implements source.LineOrientedSource: the max of the two
// independently tracked lengths when both visibilities contribute.
func (f *FilteredData) MaxLength() uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch f.visibility {
	case MatchesOnly:
		return f.maxLenMatches
	case MarksOnly:
		return f.maxLenMarks
	default:
		if f.maxLenMatches > f.maxLenMarks {
			return f.maxLenMatches
		}
		return f.maxLenMarks
	}
}

// Line implements source.LineOrientedSource by translating a filtered index
// to a source line and delegating to the underlying source.
func (f *FilteredData) Line(index uint32) (string, error) {
	line, err := f.GetMatchingLineNumber(index)
	if err != nil {
		return "", err
	}
	return f.underlying.Line(line)
}

// ExpandedLine is Line with tabs expanded to spaces.
func (f *FilteredData) ExpandedLine(index uint32) (string, error) {
	line, err := f.GetMatchingLineNumber(index)
	if err != nil {
		return "", err
	}
	return f.underlying.ExpandedLine(line)
}

// LineLength returns the visible, tab-expanded width of the filtered entry.
func (f *FilteredData) LineLength(index uint32) (uint32, error) {
	line, err := f.GetMatchingLineNumber(index)
	if err != nil {
		return 0, err
	}
	return f.underlying.LineLength(line)
}

var _ source.LineOrientedSource = (*FilteredData)(nil)
