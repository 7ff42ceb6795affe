package search

import (
	"fmt"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alienxp03/logscope/internal/source"
)

type fakeSource struct {
	lines []string
}

func (f *fakeSource) LineCount() uint32 { return uint32(len(f.lines)) }
func (f *fakeSource) MaxLength() uint32 { return 0 }
func (f *fakeSource) Line(i uint32) (string, error) {
	return f.lines[i], nil
}
func (f *fakeSource) ExpandedLine(i uint32) (string, error) {
	return f.lines[i], nil
}
func (f *fakeSource) LineLength(i uint32) (uint32, error) {
	return uint32(len(f.lines[i])), nil
}

// cursoredSource wraps fakeSource to additionally implement
// source.CursoredSource, counting how many per-goroutine readers get handed
// out so a test can assert scanSpan actually asks for one per partition.
type cursoredSource struct {
	*fakeSource
	readersHandedOut atomic.Int32
}

func (c *cursoredSource) NewLineReader() source.SequentialLineReader {
	c.readersHandedOut.Add(1)
	return c.fakeSource
}

func buildCursoredSource(n int) *cursoredSource {
	return &cursoredSource{fakeSource: buildSource(n)}
}

func buildSource(n int) *fakeSource {
	lines := make([]string, n)
	for i := 0; i < n; i++ {
		lines[i] = fmt.Sprintf("LOGDATA is a part of glogg, line %06d", i)
	}
	return &fakeSource{lines: lines}
}

func TestRunSearchFindsAllMatches(t *testing.T) {
	src := buildSource(200)
	data := NewData()
	w := New(src, data, nil)

	re := regexp.MustCompile(`line [0-9]{5}9`)
	res := w.RunSearch(re, 0, src.LineCount(), nil)

	require.Equal(t, Finished, res.Status)
	assert.EqualValues(t, 20, data.MatchCount())
	for i := 9; i < 200; i += 10 {
		assert.True(t, data.Contains(uint32(i)), "expected line %d to match", i)
	}
}

func TestUpdateSearchRechecksTrailingLine(t *testing.T) {
	src := buildSource(10)
	src.lines[9] = "short"
	data := NewData()
	w := New(src, data, nil)

	re := regexp.MustCompile(`short`)
	w.RunSearch(re, 0, 10, nil)
	require.True(t, data.Contains(9))

	src.lines[9] = "short and now longer with more text"
	res := w.UpdateSearch(re, 9, 10, nil)
	require.Equal(t, Finished, res.Status)
	assert.True(t, data.Contains(9))
	assert.EqualValues(t, 1, data.MatchCount())
}

func TestPreInterruptedRunSearchReportsInterrupted(t *testing.T) {
	src := buildSource(50000)
	data := NewData()
	w := New(src, data, nil)
	w.Interrupt()

	re := regexp.MustCompile(`line`)
	res := w.RunSearch(re, 0, src.LineCount(), nil)
	assert.Equal(t, Interrupted, res.Status)
}

func TestClearThenRerunMatchesOriginal(t *testing.T) {
	src := buildSource(100)
	data := NewData()
	w := New(src, data, nil)
	re := regexp.MustCompile(`line 0000[0-9]`)

	w.RunSearch(re, 0, 100, nil)
	first := data.Lines()

	data.Reset()
	w.RunSearch(re, 0, 100, nil)
	second := data.Lines()

	assert.Equal(t, first, second)
}

func TestRunSearchUsesOnePerGoroutineLineReaderWhenAvailable(t *testing.T) {
	src := buildCursoredSource(50000) // large enough for several partitions when GOMAXPROCS > 1
	data := NewData()
	w := New(src, data, nil)

	re := regexp.MustCompile(`line 0{5}9`)
	res := w.RunSearch(re, 0, src.LineCount(), nil)

	require.Equal(t, Finished, res.Status)
	partitions := len(splitRange(0, src.LineCount(), partitionCount(src.LineCount())))
	assert.EqualValues(t, partitions, src.readersHandedOut.Load(), "expected scanSpan to request a dedicated reader per partition")
}

func TestDrainNewMatchesIsAtomic(t *testing.T) {
	data := NewData()
	data.mergeChunk([]LineNumber{1, 2, 3}, 10, 3)
	drained := data.DrainNewMatches()
	assert.ElementsMatch(t, []LineNumber{1, 2, 3}, drained)
	assert.Empty(t, data.DrainNewMatches())
	assert.EqualValues(t, 3, data.MatchCount())
}
