package indexer

import (
	"sync"

	"github.com/alienxp03/logscope/internal/detect"
	"github.com/alienxp03/logscope/internal/offsets"
)

// LineNumber is a 0-based line ordinal.
type LineNumber = uint32

// LinesCount is a non-negative line count.
type LinesCount = uint32

// LineLength is the visible, tab-expanded width of a line.
type LineLength = uint32

// Status reports how an indexing operation ended.
type Status int

const (
	Successful Status = iota
	Interrupted
	NoMemory
	FileVanished
)

func (s Status) String() string {
	switch s {
	case Successful:
		return "Successful"
	case Interrupted:
		return "Interrupted"
	case NoMemory:
		return "NoMemory"
	case FileVanished:
		return "FileVanished"
	default:
		return "Unknown"
	}
}

// ChangeStatus classifies the result of comparing a file's current size
// against the indexed size.
type ChangeStatus int

const (
	Unchanged ChangeStatus = iota
	DataAdded
	Truncated
)

// IndexingData is the process-wide-per-open-file index: the ordered line-end
// offsets plus the bookkeeping the indexer maintains alongside them. All
// mutation happens under mu, performed only by the indexer worker; readers
// take mu briefly for a lookup and release before doing any file I/O.
type IndexingData struct {
	mu sync.Mutex

	lineEnds *offsets.Storage

	indexedSize uint64
	maxLength   LineLength

	encodingGuess  detect.Encoding
	encodingForced detect.Encoding // detect.AutoDetect means "unset"

	// fakeFinalLF is set when the file's last line lacked a trailing
	// terminator and the indexer synthesized one at indexedSize+1 so the
	// line-range API stays uniform (spec.md "fake final LF").
	fakeFinalLF    bool
	fakeFinalLFLen uint64 // byte length of the unterminated tail it covers
}

// NewIndexingData returns an empty index.
func NewIndexingData() *IndexingData {
	return &IndexingData{
		lineEnds:       offsets.New(),
		encodingGuess:  detect.UTF8,
		encodingForced: detect.AutoDetect,
	}
}

// reset clears the index for a full reindex. Caller must not hold mu.
func (d *IndexingData) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lineEnds = offsets.New()
	d.indexedSize = 0
	d.maxLength = 0
	d.fakeFinalLF = false
	d.fakeFinalLFLen = 0
}

// LineCount returns the number of indexed lines.
func (d *IndexingData) LineCount() LinesCount {
	d.mu.Lock()
	defer d.mu.Unlock()
	return LinesCount(d.lineEnds.Len())
}

// IndexedSize returns the number of bytes successfully indexed.
func (d *IndexingData) IndexedSize() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexedSize
}

// MaxLength returns the longest visible line length indexed so far.
func (d *IndexingData) MaxLength() LineLength {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLength
}

// EncodingGuess returns the detector's inferred encoding.
func (d *IndexingData) EncodingGuess() detect.Encoding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encodingGuess
}

// EncodingForced returns the user-forced encoding, or detect.AutoDetect.
func (d *IndexingData) EncodingForced() detect.Encoding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.encodingForced
}

// SetForcedEncoding overrides the detector's guess.
func (d *IndexingData) SetForcedEncoding(e detect.Encoding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encodingForced = e
}

// EffectiveEncoding returns the forced encoding if set, else the guess.
func (d *IndexingData) EffectiveEncoding() detect.Encoding {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.encodingForced != detect.AutoDetect {
		return d.encodingForced
	}
	return d.encodingGuess
}

// LineRange returns the byte range [begin, end) spanning lines
// [first, last] inclusive. Callers must ensure last < LineCount().
func (d *IndexingData) LineRange(first, last LineNumber) (begin, end uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if first > 0 {
		begin = d.lineEnds.At(int(first) - 1)
	}
	end = d.lineEnds.At(int(last))
	return begin, end
}

// LineEnd returns the absolute end-of-line offset for line i, via the
// shared fallback cursor. Concurrent readers on a hot path should use
// LineEndCursor with a cursor of their own instead (see NewCursor).
func (d *IndexingData) LineEnd(i LineNumber) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lineEnds.At(int(i))
}

// LineEnds returns the absolute end-of-line offsets for lines
// [first, last] inclusive, fetched under a single critical section per
// spec.md's line-reading protocol.
func (d *IndexingData) LineEnds(first, last LineNumber) []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ends := make([]uint64, 0, int(last)-int(first)+1)
	for i := first; i <= last; i++ {
		ends = append(ends, d.lineEnds.At(int(i)))
	}
	return ends
}

// NewCursor returns a fresh per-caller decode cursor. Each reading goroutine
// (a GetLines caller, a search worker's span) should own one and reuse it
// across its own sequential LineEndCursor/LineEndsCursor calls rather than
// going through the shared fallback in LineEnd/LineEnds, so concurrent
// readers each get the O(1)-amortized benefit instead of thrashing one
// shared cache slot (spec.md §5 per-thread decode cache).
func (d *IndexingData) NewCursor() *offsets.Cursor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lineEnds.NewCursor()
}

// LineEndCursor is LineEnd reusing a caller-owned cursor.
func (d *IndexingData) LineEndCursor(c *offsets.Cursor, i LineNumber) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lineEnds.AtCursor(c, int(i))
}

// LineEndsCursor is LineEnds reusing a caller-owned cursor across the whole
// batch, so the run of lines [first, last] decodes in one amortized O(1)
// pass instead of independent block walks.
func (d *IndexingData) LineEndsCursor(c *offsets.Cursor, first, last LineNumber) []uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	ends := make([]uint64, 0, int(last)-int(first)+1)
	for i := first; i <= last; i++ {
		ends = append(ends, d.lineEnds.AtCursor(c, int(i)))
	}
	return ends
}

// appendChunk commits one chunk's worth of new line-end offsets plus the
// running byte size and max length under a single critical section.
func (d *IndexingData) appendChunk(newEnds []uint64, indexedSize uint64, maxLen LineLength) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lineEnds.AppendList(newEnds)
	d.indexedSize = indexedSize
	if maxLen > d.maxLength {
		d.maxLength = maxLen
	}
}

// setEncodingGuess records the detector's result for the current scan.
func (d *IndexingData) setEncodingGuess(e detect.Encoding) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encodingGuess = e
}

// retractFakeFinalLF undoes a previously synthesized terminal line-end so a
// partial reindex can recompute it against newly appended bytes.
func (d *IndexingData) retractFakeFinalLF() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.fakeFinalLF {
		return d.indexedSize
	}
	d.lineEnds.PopBack()
	d.fakeFinalLF = false
	retractedTo := d.indexedSize - d.fakeFinalLFLen
	d.indexedSize = retractedTo
	d.fakeFinalLFLen = 0
	return retractedTo
}

// markFakeFinalLF records that the last appended line end was a synthetic
// terminator over tailLen unterminated bytes.
func (d *IndexingData) markFakeFinalLF(tailLen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fakeFinalLF = true
	d.fakeFinalLFLen = tailLen
}
