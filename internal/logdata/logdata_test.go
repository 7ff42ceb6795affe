package logdata

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alienxp03/logscope/internal/detect"
	"github.com/alienxp03/logscope/internal/indexer"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "attached.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func waitFinished(t *testing.T, l *LogData) indexer.Status {
	t.Helper()
	select {
	case s := <-l.LoadingFinished():
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for loading_finished")
		return indexer.FileVanished
	}
}

func linesOf(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += fmt.Sprintf("line %04d\n", i)
	}
	return s
}

func TestAttachIndexesFileAndReadsLines(t *testing.T) {
	path := writeTempFile(t, linesOf(20))
	l := New(nil)
	l.Attach(path)

	require.Equal(t, indexer.Successful, waitFinished(t, l))
	require.EqualValues(t, 20, l.GetLineCount())

	s, err := l.GetLineString(0)
	require.NoError(t, err)
	require.Equal(t, "line 0000", s)

	s, err = l.GetLineString(19)
	require.NoError(t, err)
	require.Equal(t, "line 0019", s)
}

func TestExpandedLineExpandsTabs(t *testing.T) {
	path := writeTempFile(t, "a\tb\n")
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	raw, err := l.GetLineString(0)
	require.NoError(t, err)
	require.Equal(t, "a\tb", raw)

	expanded, err := l.GetExpandedLineString(0)
	require.NoError(t, err)
	require.Equal(t, "a       b", expanded)
}

func TestGetLinesMatchesSequentialReads(t *testing.T) {
	path := writeTempFile(t, linesOf(10))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	batch, err := l.GetLines(2, 3)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, want := range batch {
		got, err := l.GetLineString(uint32(2 + i))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestGetLineOutOfBoundsReturnsError(t *testing.T) {
	path := writeTempFile(t, linesOf(3))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	_, err := l.GetLineString(10)
	require.Error(t, err)
}

func TestFileGrowthTriggersPartialIndex(t *testing.T) {
	path := writeTempFile(t, linesOf(5))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))
	require.EqualValues(t, 5, l.GetLineCount())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("line 0005\nline 0006\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	l.onFileChanged()
	require.Equal(t, indexer.Successful, waitFinished(t, l))
	require.EqualValues(t, 7, l.GetLineCount())
}

func TestReloadForcesFullReindex(t *testing.T) {
	path := writeTempFile(t, linesOf(8))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	l.Reload(detect.AutoDetect)
	require.Equal(t, indexer.Successful, waitFinished(t, l))
	require.EqualValues(t, 8, l.GetLineCount())
}

func TestAttachTwicePanics(t *testing.T) {
	path := writeTempFile(t, linesOf(1))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected re-attach to panic")
	}()
	l.Attach(path)
}

func TestLineReaderMatchesSequentialGetLineString(t *testing.T) {
	path := writeTempFile(t, linesOf(30))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	r := l.NewLineReader()
	for i := uint32(0); i < l.GetLineCount(); i++ {
		want, err := l.GetExpandedLineString(i)
		require.NoError(t, err)
		got, err := r.ExpandedLine(i)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestConcurrentGetLinesDoNotCorruptEachOther(t *testing.T) {
	path := writeTempFile(t, linesOf(200))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	ranges := [][2]uint32{{0, 50}, {50, 50}, {100, 50}, {150, 50}}
	for _, rng := range ranges {
		rng := rng
		wg.Add(1)
		go func() {
			defer wg.Done()
			lines, err := l.GetLines(rng[0], rng[1])
			if err != nil {
				errs <- err
				return
			}
			for i, got := range lines {
				want := fmt.Sprintf("line %04d", int(rng[0])+i)
				if got != want {
					errs <- fmt.Errorf("line %d: got %q want %q", int(rng[0])+i, got, want)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestCreateFilteredDataSearchesAttachedContent(t *testing.T) {
	path := writeTempFile(t, linesOf(30))
	l := New(nil)
	l.Attach(path)
	require.Equal(t, indexer.Successful, waitFinished(t, l))

	fd := l.CreateFilteredData()
	require.NoError(t, fd.RunSearch(`line 001[0-9]`, false, 0, l.GetLineCount(), nil))
	require.EqualValues(t, 10, fd.GetNbLine())
}
