package watcher

import "os"

// refreshStatToken stats path, updates wv's change-token (size+mtime) and
// existence state, and reports whether anything actually changed. Called
// with w.mu held.
func refreshStatToken(path string, wv *watch) (changed bool) {
	info, err := os.Stat(path)
	if err != nil {
		if wv.state != FileRemoved {
			wv.state = FileRemoved
			wv.size = 0
			return true
		}
		return false
	}

	wasRemoved := wv.state != FileExists
	sizeChanged := info.Size() != wv.size
	mtimeChanged := !info.ModTime().Equal(wv.mtime)

	wv.state = FileExists
	wv.size = info.Size()
	wv.mtime = info.ModTime()

	return wasRemoved || sizeChanged || mtimeChanged
}

func (w *Watcher) refreshStat(path string, wv *watch) bool {
	return refreshStatToken(path, wv)
}
