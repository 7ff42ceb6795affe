// Package indexer streams a log file (or its newly appended tail) to find
// line boundaries, tracking visible line width and character encoding along
// the way, and appends the results into a shared IndexingData under its
// mutex. See spec.md §4.2.
package indexer

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/alienxp03/logscope/internal/detect"
)

// ChunkSize is the number of bytes read per indexing pass, matching spec.md's
// CHUNK=5MiB.
const ChunkSize = 5 * 1024 * 1024

// tabStop is the column width tab characters expand to.
const tabStop = 8

// Progress reports indexing advancement as a percentage in [0, 100].
type Progress struct {
	Percent int
}

// Result is the outcome of one indexing operation.
type Result struct {
	Status       Status
	LinesIndexed LinesCount
}

// Indexer scans a single file into an IndexingData.
type Indexer struct {
	path   string
	data   *IndexingData
	logger *zap.Logger

	interrupted atomic.Bool
}

// New returns an indexer for path, writing into data.
func New(path string, data *IndexingData, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{path: path, data: data, logger: logger}
}

// Interrupt cooperatively cancels the in-flight operation at the next chunk
// boundary.
func (ix *Indexer) Interrupt() { ix.interrupted.Store(true) }

// ResetInterrupt clears a previously raised interrupt flag. The operation
// queue calls this when dispatching a fresh operation so a prior
// Interrupted result doesn't poison the next run.
func (ix *Indexer) ResetInterrupt() { ix.interrupted.Store(false) }

// IndexAll clears the index and scans the whole file from offset 0.
func (ix *Indexer) IndexAll(forced detect.Encoding, progress chan<- Progress) Result {
	ix.data.reset()
	if forced != detect.AutoDetect {
		ix.data.SetForcedEncoding(forced)
	}
	return ix.scan(0, true, progress)
}

// IndexAdditional appends newly written bytes starting at the current
// indexed size, retracting any fake final LF first so the real terminator
// can be recomputed.
func (ix *Indexer) IndexAdditional(progress chan<- Progress) Result {
	from := ix.data.retractFakeFinalLF()
	return ix.scan(from, false, progress)
}

// CheckFileChanges classifies the file's current size against indexedSize.
func (ix *Indexer) CheckFileChanges() (ChangeStatus, error) {
	info, err := os.Stat(ix.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Truncated, nil
		}
		return Unchanged, err
	}
	size := uint64(info.Size())
	indexed := ix.data.IndexedSize()
	switch {
	case size < indexed:
		return Truncated, nil
	case size > indexed:
		return DataAdded, nil
	default:
		return Unchanged, nil
	}
}

type scanState struct {
	col        uint32 // current visible column within the line being scanned
	carry      []byte // leftover bytes from a stride-misaligned chunk split
	lineStart  uint64 // absolute offset of the current line's first byte
}

func (ix *Indexer) scan(from uint64, detectEncoding bool, progress chan<- Progress) Result {
	file, err := os.Open(ix.path)
	if err != nil {
		ix.logger.Warn("indexer: open failed, reporting empty file", zap.String("path", ix.path), zap.Error(err))
		return Result{Status: Successful, LinesIndexed: 0}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{Status: Successful, LinesIndexed: 0}
	}
	total := uint64(info.Size())

	if _, err := file.Seek(int64(from), io.SeekStart); err != nil {
		return Result{Status: Successful, LinesIndexed: ix.data.LineCount()}
	}

	st := &scanState{lineStart: from}
	buf := make([]byte, ChunkSize)
	nextAbs := from // absolute offset of the first byte not yet processed
	term := detect.Terminator(ix.data.EffectiveEncoding())
	detectedYet := !detectEncoding

	for {
		if ix.interrupted.Load() {
			return Result{Status: Interrupted, LinesIndexed: ix.data.LineCount()}
		}

		n, readErr := file.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			chunkAbsStart := nextAbs
			if len(st.carry) > 0 {
				chunk = append(append([]byte{}, st.carry...), chunk...)
				chunkAbsStart -= uint64(len(st.carry))
				st.carry = nil
			}

			if !detectedYet {
				sample := chunk
				if len(sample) > 4096 {
					sample = sample[:4096]
				}
				ix.data.setEncodingGuess(detect.Detect(sample))
				term = detect.Terminator(ix.data.EffectiveEncoding())
				detectedYet = true
			}

			usable := len(chunk)
			if term.Width > 1 {
				usable -= usable % term.Width
				if usable < len(chunk) {
					st.carry = append(st.carry, chunk[usable:]...)
				}
			}

			newEnds, chunkMax := ix.scanChunk(chunk[:usable], chunkAbsStart, st, term)
			nextAbs = chunkAbsStart + uint64(usable)

			maxLen := maxLenOf(ix.data, st)
			if chunkMax > maxLen {
				maxLen = chunkMax
			}
			ix.data.appendChunk(newEnds, nextAbs, maxLen)

			if progress != nil && total > 0 {
				pct := int(float64(nextAbs) * 100 / float64(total))
				if pct > 100 {
					pct = 100
				}
				select {
				case progress <- Progress{Percent: pct}:
				default:
				}
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			ix.logger.Warn("indexer: short read, treating as EOF", zap.Error(readErr))
			break
		}
	}

	indexedSize := nextAbs
	if st.lineStart < indexedSize {
		// trailing bytes without a terminator: synthesize the fake final LF
		tailLen := indexedSize - st.lineStart
		ix.data.appendChunk([]uint64{indexedSize + 1}, indexedSize, st.col)
		ix.data.markFakeFinalLF(tailLen)
	}

	if progress != nil {
		select {
		case progress <- Progress{Percent: 100}:
		default:
		}
	}

	return Result{Status: Successful, LinesIndexed: ix.data.LineCount()}
}

// scanChunk locates line terminators within chunk (whose first byte is at
// absolute offset chunkStart) and returns the new end-of-line offsets found,
// updating st's running column/line-start state across calls.
func (ix *Indexer) scanChunk(chunk []byte, chunkStart uint64, st *scanState, term detect.LineTerminator) (ends []uint64, maxLen uint32) {
	for i := 0; i < len(chunk); i++ {
		b := chunk[i]
		absPos := chunkStart + uint64(i)

		if term.Width == 1 {
			if b == '\n' {
				ends = append(ends, absPos+1)
				if st.col > maxLen {
					maxLen = st.col
				}
				st.col = 0
				st.lineStart = absPos + 1
				continue
			}
			if b == '\t' {
				st.col += tabStop - (st.col % tabStop)
				continue
			}
			if b&0xC0 != 0x80 { // not a UTF-8 continuation byte
				st.col++
			}
			continue
		}

		// multi-byte fixed-width terminator (UTF-16/UTF-32)
		if int(absPos%uint64(term.Width)) != term.IndexWithinUnit {
			continue
		}
		if b == '\n' {
			ends = append(ends, absPos-uint64(term.IndexWithinUnit)+uint64(term.Width))
			if st.col > maxLen {
				maxLen = st.col
			}
			st.col = 0
			st.lineStart = absPos - uint64(term.IndexWithinUnit) + uint64(term.Width)
		} else {
			st.col++
		}
	}
	return ends, maxLen
}

func maxLenOf(d *IndexingData, st *scanState) LineLength {
	cur := d.MaxLength()
	if st.col > cur {
		return st.col
	}
	return cur
}
