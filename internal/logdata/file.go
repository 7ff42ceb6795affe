package logdata

import (
	"io"
	"os"
	"sync"
)

// fileReader serializes disk reads against a single path, reopening the
// handle on demand rather than holding one across the file's lifetime
// (spec.md §4.3: "owns the file handle, reopened on demand"). It is a
// distinct lock from IndexingData's, acquired only after the offset lookup
// completes, per the façade's stated lock order.
type fileReader struct {
	mu   sync.Mutex
	path string
}

func newFileReader(path string) *fileReader {
	return &fileReader{path: path}
}

// readRange reads the [b0, b1) byte span from the file.
func (r *fileReader) readRange(b0, b1 uint64) ([]byte, error) {
	if b1 <= b0 {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(int64(b0), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, b1-b0)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}
