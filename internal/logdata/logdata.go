// Package logdata implements the LogData façade: the single point of access
// to an attached file's content, fronting the indexer, the file watcher, and
// a per-file operation queue behind a line-random-access API. See
// spec.md §4.3.
package logdata

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"github.com/alienxp03/logscope/internal/detect"
	"github.com/alienxp03/logscope/internal/filtered"
	"github.com/alienxp03/logscope/internal/indexer"
	"github.com/alienxp03/logscope/internal/offsets"
	"github.com/alienxp03/logscope/internal/source"
	"github.com/alienxp03/logscope/internal/watcher"
)

// LineNumber is a 0-based line ordinal.
type LineNumber = uint32

// LogData is the façade in front of a single attached file: its index, its
// file handle, its watcher registration, and the operation queue that
// serializes indexing work against it.
type LogData struct {
	mu sync.Mutex

	path     string
	attached bool

	data    *indexer.IndexingData
	idx     *indexer.Indexer
	file    *fileReader
	logger  *zap.Logger
	watcher *watcher.Watcher

	displayEncoding   detect.Encoding
	multibyteBeforeCR int
	multibyteAfterCR  int

	pollIntervalMS int

	q opQueue

	loadingProgressed chan int
	loadingFinished   chan indexer.Status
	fileChangedCh     chan indexer.ChangeStatus
}

// New returns an unattached LogData. Call Attach to begin indexing path.
func New(logger *zap.Logger) *LogData {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogData{
		logger:            logger,
		displayEncoding:   detect.AutoDetect,
		pollIntervalMS:    1000,
		loadingProgressed: make(chan int, 16),
		loadingFinished:   make(chan indexer.Status, 4),
		fileChangedCh:     make(chan indexer.ChangeStatus, 4),
	}
}

// SetPollInterval overrides the watcher's polling fallback period. Must be
// called before Attach.
func (l *LogData) SetPollInterval(ms int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pollIntervalMS = ms
}

// LoadingProgressed streams percentage updates for the in-flight indexing
// operation. Sends are non-blocking best-effort: an update is dropped when
// the channel's buffer is full (spec.md §9 "cyclic graphs" redesign: signals
// are channels, not Qt slots).
func (l *LogData) LoadingProgressed() <-chan int { return l.loadingProgressed }

// LoadingFinished fires once per completed operation with its outcome.
func (l *LogData) LoadingFinished() <-chan indexer.Status { return l.loadingFinished }

// FileChanged fires right before the façade reacts to a watcher event.
func (l *LogData) FileChanged() <-chan indexer.ChangeStatus { return l.fileChangedCh }

// Attach binds this LogData to path and starts a full index. Re-attaching an
// already-attached LogData is a contract violation (spec.md §7): it panics,
// matching the policy for programming errors rather than recoverable ones.
func (l *LogData) Attach(path string) {
	l.mu.Lock()
	if l.attached {
		l.mu.Unlock()
		panic("logdata: Attach called twice on the same LogData")
	}
	l.attached = true
	l.path = path
	l.data = indexer.NewIndexingData()
	l.idx = indexer.New(path, l.data, l.logger)
	l.file = newFileReader(path)
	l.mu.Unlock()

	l.watcher = watcher.Get(l.logger)
	l.watcher.SetPollingInterval(l.pollIntervalMS)
	_ = l.watcher.Add(path, l.onFileChanged)

	l.dispatch(opAttach{path: path})
}

// InterruptLoading cooperatively cancels the in-flight indexing operation.
func (l *LogData) InterruptLoading() {
	l.mu.Lock()
	idx := l.idx
	l.mu.Unlock()
	if idx != nil {
		idx.Interrupt()
	}
}

// Reload forces a full reindex, optionally overriding the detected encoding.
func (l *LogData) Reload(forced detect.Encoding) {
	l.dispatch(opFullReindex{forced: forced})
}

func (l *LogData) onFileChanged() {
	status, err := l.idx.CheckFileChanges()
	if err != nil {
		l.logger.Warn("logdata: stat failed on watcher callback", zap.Error(err))
		return
	}
	if status == indexer.Unchanged {
		return
	}
	select {
	case l.fileChangedCh <- status:
	default:
	}

	switch status {
	case indexer.Truncated:
		l.dispatch(opFullReindex{forced: detect.AutoDetect})
	case indexer.DataAdded:
		l.dispatch(opPartialIndex{})
	}
}

// dispatch enqueues op, running it immediately if the worker is idle or
// queuing/coalescing it per the operation queue's rules otherwise.
func (l *LogData) dispatch(op Op) {
	l.mu.Lock()
	toRun := l.q.enqueue(op)
	l.mu.Unlock()
	if toRun != nil {
		go l.run(toRun)
	}
}

func (l *LogData) run(op Op) {
	l.idx.ResetInterrupt()
	progress := make(chan indexer.Progress, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			select {
			case l.loadingProgressed <- p.Percent:
			default:
			}
		}
	}()

	var status indexer.Status
	switch o := op.(type) {
	case opAttach:
		res := l.idx.IndexAll(detect.AutoDetect, progress)
		status = res.Status
	case opFullReindex:
		res := l.idx.IndexAll(o.forced, progress)
		status = res.Status
	case opPartialIndex:
		res := l.idx.IndexAdditional(progress)
		status = res.Status
	case opCheckChanges:
		if _, err := l.idx.CheckFileChanges(); err != nil {
			status = indexer.FileVanished
		} else {
			status = indexer.Successful
		}
	default:
		status = indexer.Successful
	}

	close(progress)
	<-done

	select {
	case l.loadingFinished <- status:
	default:
	}

	l.mu.Lock()
	next := l.q.finished()
	l.mu.Unlock()
	if next != nil {
		l.run(next)
	}
}

// GetFileSize returns the number of bytes successfully indexed.
func (l *LogData) GetFileSize() uint64 { return l.data.IndexedSize() }

// GetLastModified returns the watched file's current mtime.
func (l *LogData) GetLastModified() (time.Time, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// GetLineCount implements source.LineOrientedSource.
func (l *LogData) GetLineCount() LineNumber { return l.data.LineCount() }
func (l *LogData) LineCount() uint32        { return l.GetLineCount() }

// GetMaxLength implements source.LineOrientedSource.
func (l *LogData) GetMaxLength() uint32 { return l.data.MaxLength() }
func (l *LogData) MaxLength() uint32    { return l.GetMaxLength() }

// GetDetectedEncoding returns the indexer's inferred (or forced) encoding.
func (l *LogData) GetDetectedEncoding() detect.Encoding { return l.data.EffectiveEncoding() }

// SetDisplayEncoding overrides the encoding used to decode lines for
// presentation, independent of the indexer's own terminator-detection
// encoding.
func (l *LogData) SetDisplayEncoding(name detect.Encoding) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.displayEncoding = name
}

// SetMultibyteEncodingOffsets records extra byte counts to trim before/after
// each line's terminator when the declared encoding's carriage-return
// representation isn't covered by the indexer's own terminator stride.
func (l *LogData) SetMultibyteEncodingOffsets(beforeCR, afterCR int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.multibyteBeforeCR = beforeCR
	l.multibyteAfterCR = afterCR
}

func (l *LogData) effectiveDisplayEncoding() detect.Encoding {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.displayEncoding != detect.AutoDetect {
		return l.displayEncoding
	}
	return l.data.EffectiveEncoding()
}

func (l *LogData) multibyteOffsets() (before, after int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.multibyteBeforeCR, l.multibyteAfterCR
}

// GetLineLength returns the tab-expanded visible width of line.
func (l *LogData) GetLineLength(line LineNumber) (uint32, error) {
	s, err := l.GetExpandedLineString(line)
	if err != nil {
		return 0, err
	}
	return uint32(len([]rune(s))), nil
}
func (l *LogData) LineLength(line uint32) (uint32, error) { return l.GetLineLength(line) }

// GetLineString returns line decoded, tabs preserved.
func (l *LogData) GetLineString(line LineNumber) (string, error) {
	lines, err := l.GetLines(line, 1)
	if err != nil {
		return "", err
	}
	return lines[0], nil
}
func (l *LogData) Line(i uint32) (string, error) { return l.GetLineString(i) }

// GetExpandedLineString returns line decoded with tabs expanded to spaces.
func (l *LogData) GetExpandedLineString(line LineNumber) (string, error) {
	s, err := l.GetLineString(line)
	if err != nil {
		return "", err
	}
	return expandTabs(s), nil
}
func (l *LogData) ExpandedLine(i uint32) (string, error) { return l.GetExpandedLineString(i) }

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			spaces := 8 - (col % 8)
			for i := 0; i < spaces; i++ {
				b.WriteByte(' ')
			}
			col += spaces
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

// GetLines returns count decoded lines starting at first, tabs preserved.
func (l *LogData) GetLines(first LineNumber, count uint32) ([]string, error) {
	return l.getLines(first, count, false)
}

// GetExpandedLines is GetLines with tabs expanded to spaces.
func (l *LogData) GetExpandedLines(first LineNumber, count uint32) ([]string, error) {
	return l.getLines(first, count, true)
}

// lineDecodeParams bundles the per-read decode settings that only change
// when the display encoding or multibyte CR offsets change, so a sequential
// reader computes them once instead of once per line.
type lineDecodeParams struct {
	dec               *encoding.Decoder
	term              detect.LineTerminator
	beforeCR, afterCR int
}

func (l *LogData) lineDecodeParams() (lineDecodeParams, error) {
	enc := l.effectiveDisplayEncoding()
	dec, err := detect.Decoder(enc)
	if err != nil {
		return lineDecodeParams{}, err
	}
	before, after := l.multibyteOffsets()
	return lineDecodeParams{dec: dec, term: detect.Terminator(enc), beforeCR: before, afterCR: after}, nil
}

// decodeLineSlice trims, decodes, and (optionally) tab-expands one line's
// raw bytes. pastEOF marks a fake final LF (spec.md §4.2): the offset points
// one byte past EOF and there is no real terminator on disk to strip.
func decodeLineSlice(slice []byte, pastEOF bool, p lineDecodeParams, expand bool) string {
	if !pastEOF {
		slice = trimTerminator(slice, p.term)
	}
	if p.afterCR > 0 && len(slice) >= p.afterCR {
		slice = slice[:len(slice)-p.afterCR]
	}
	if p.beforeCR > 0 && len(slice) >= p.beforeCR {
		slice = slice[p.beforeCR:]
	}
	text, err := p.dec.Bytes(slice)
	if err != nil {
		text = slice
	}
	s := string(text)
	if expand {
		s = expandTabs(s)
	}
	return s
}

func (l *LogData) getLines(first LineNumber, count uint32, expand bool) ([]string, error) {
	if count == 0 {
		return nil, nil
	}
	lineCount := l.data.LineCount()
	last := first + count - 1
	if first >= lineCount || last >= lineCount {
		return nil, fmt.Errorf("logdata: line range [%d,%d] out of bounds (have %d lines)", first, last, lineCount)
	}

	// Step 1: IndexingData lock for the offset lookup only, via a cursor
	// this call owns exclusively so a concurrent GetLines on another range
	// gets its own O(1)-amortized decode cache instead of contending on a
	// shared one (spec.md §5 per-thread decode cache).
	cursor := l.data.NewCursor()
	var b0 uint64
	if first > 0 {
		b0 = l.data.LineEndCursor(cursor, first-1)
	}
	ends := l.data.LineEndsCursor(cursor, first, last)
	b1 := ends[len(ends)-1]

	// Step 2: file lock, independent of IndexingData's.
	raw, err := l.file.readRange(b0, b1)
	if err != nil {
		return nil, fmt.Errorf("logdata: read [%d,%d): %w", b0, b1, err)
	}

	params, err := l.lineDecodeParams()
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, count)
	cur := uint64(0)
	for _, end := range ends {
		relEnd := end - b0
		pastEOF := relEnd > uint64(len(raw))
		if pastEOF {
			relEnd = uint64(len(raw))
		}
		out = append(out, decodeLineSlice(raw[cur:relEnd], pastEOF, params, expand))
		cur = relEnd
	}
	return out, nil
}

// trimTerminator strips the encoding's line terminator from the tail of a
// raw (still-encoded) line slice; the indexer's line-end offsets point just
// past it. A single-byte CRLF gets an extra byte trimmed, since the indexer
// only tracks the '\n' half of the stride.
func trimTerminator(b []byte, term detect.LineTerminator) []byte {
	if len(b) >= term.Width {
		b = b[:len(b)-term.Width]
	}
	if term.Width == 1 && len(b) > 0 && b[len(b)-1] == '\r' {
		b = b[:len(b)-1]
	}
	return b
}

// sequentialReader is a per-goroutine line reader over a LogData: it keeps
// its own offsets.Cursor so a caller scanning lines in increasing order
// (the search worker's per-span loop) gets O(1)-amortized offset lookups
// without contending with any other reader's cursor.
type sequentialReader struct {
	l      *LogData
	cursor *offsets.Cursor
	params lineDecodeParams

	haveLast bool
	lastLine LineNumber
	lastEnd  uint64
}

// NewLineReader returns a sequentialReader bound to this LogData, for
// callers that will read many lines in increasing order from one goroutine.
func (l *LogData) NewLineReader() source.SequentialLineReader {
	params, err := l.lineDecodeParams()
	if err != nil {
		params = lineDecodeParams{dec: encoding.Nop.NewDecoder()}
	}
	return &sequentialReader{l: l, cursor: l.data.NewCursor(), params: params}
}

// ExpandedLine reads line i, tabs expanded. Callers should present
// increasing i to get the cursor's O(1)-amortized benefit; an out-of-order
// call still works, just falls back to a block-local walk for that lookup.
func (r *sequentialReader) ExpandedLine(i uint32) (string, error) {
	var b0 uint64
	if r.haveLast && i == r.lastLine+1 {
		b0 = r.lastEnd
	} else if i > 0 {
		b0 = r.l.data.LineEndCursor(r.cursor, i-1)
	}
	b1 := r.l.data.LineEndCursor(r.cursor, i)
	r.haveLast = true
	r.lastLine = i
	r.lastEnd = b1

	raw, err := r.l.file.readRange(b0, b1)
	if err != nil {
		return "", fmt.Errorf("logdata: read [%d,%d): %w", b0, b1, err)
	}
	pastEOF := uint64(len(raw)) < b1-b0
	return decodeLineSlice(raw, pastEOF, r.params, true), nil
}

var _ source.SequentialLineReader = (*sequentialReader)(nil)

// CreateFilteredData returns a new FilteredData view over this LogData.
func (l *LogData) CreateFilteredData() *filtered.FilteredData {
	return filtered.New(l, l.logger)
}

var _ source.LineOrientedSource = (*LogData)(nil)
var _ source.CursoredSource = (*LogData)(nil)
