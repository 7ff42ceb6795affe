package search

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
)

// LineNumber is a 0-based line ordinal.
type LineNumber = uint32

// SearchData holds a search's confirmed and newly-found matches behind a
// compressed bitmap (spec.md §3's "implementable as a compressed bitmap or
// sorted vector" option), plus the running stats the engine surfaces to the
// UI. The search worker is the sole writer; consumers are readers.
type SearchData struct {
	mu sync.Mutex

	matches    *roaring.Bitmap
	newMatches *roaring.Bitmap

	maxLength        uint32
	nbLinesProcessed uint32
}

// NewData returns an empty SearchData.
func NewData() *SearchData {
	return &SearchData{matches: roaring.New(), newMatches: roaring.New()}
}

// mergeChunk folds one search-worker chunk's findings into the confirmed and
// new-match sets.
func (d *SearchData) mergeChunk(lines []LineNumber, maxLen uint32, linesProcessed uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, l := range lines {
		d.matches.Add(l)
		d.newMatches.Add(l)
	}
	if maxLen > d.maxLength {
		d.maxLength = maxLen
	}
	d.nbLinesProcessed += linesProcessed
}

// DeleteMatch removes line from the confirmed set, used by UpdateSearch's
// pre-step to re-check a formerly trailing line.
func (d *SearchData) DeleteMatch(line LineNumber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matches.Remove(line)
	d.newMatches.Remove(line)
}

// Reset clears all matches and stats, used by RunSearch on a fresh pattern.
func (d *SearchData) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.matches = roaring.New()
	d.newMatches = roaring.New()
	d.maxLength = 0
	d.nbLinesProcessed = 0
}

// MatchCount returns the number of confirmed matches.
func (d *SearchData) MatchCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matches.GetCardinality()
}

// Contains reports whether line is a confirmed match.
func (d *SearchData) Contains(line LineNumber) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matches.Contains(line)
}

// Nth returns the line number of the n-th match (0-based) in ascending
// order.
func (d *SearchData) Nth(n int) (LineNumber, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if uint64(n) >= d.matches.GetCardinality() {
		return 0, false
	}
	it := d.matches.Iterator()
	for i := 0; i < n; i++ {
		it.Next()
	}
	return it.Next(), true
}

// IndexOf returns the rank of line within the sorted match set, or -1.
func (d *SearchData) IndexOf(line LineNumber) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.matches.Contains(line) {
		return -1
	}
	return int(d.matches.Rank(line)) - 1
}

// Lines returns all confirmed matches in ascending order.
func (d *SearchData) Lines() []LineNumber {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.matches.ToArray()
}

// DrainNewMatches atomically returns and clears the matches accumulated
// since the last drain.
func (d *SearchData) DrainNewMatches() []LineNumber {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.newMatches.ToArray()
	d.newMatches = roaring.New()
	return out
}

// MaxLength returns the longest expanded length among confirmed matches.
func (d *SearchData) MaxLength() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLength
}

// LinesProcessed returns the number of lines scanned so far.
func (d *SearchData) LinesProcessed() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nbLinesProcessed
}
