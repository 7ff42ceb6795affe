// Package marks implements the sorted set of user-placed line marks.
package marks

import "sort"

// LineNumber is a 0-based line ordinal.
type LineNumber = uint32

// Marks is a sorted, duplicate-free set of marked lines with O(log n)
// membership; insertion and deletion find their position in O(log n) and
// then shift the slice (O(n)). Not safe for concurrent use; callers serialize
// access (the owning FilteredData's mutex).
type Marks struct {
	lines []LineNumber
}

// New returns an empty mark set.
func New() *Marks { return &Marks{} }

func (m *Marks) search(line LineNumber) (idx int, found bool) {
	idx = sort.Search(len(m.lines), func(i int) bool { return m.lines[i] >= line })
	found = idx < len(m.lines) && m.lines[idx] == line
	return idx, found
}

// Add inserts line into the set. Returns false if it was already present.
func (m *Marks) Add(line LineNumber) bool {
	idx, found := m.search(line)
	if found {
		return false
	}
	m.lines = append(m.lines, 0)
	copy(m.lines[idx+1:], m.lines[idx:])
	m.lines[idx] = line
	return true
}

// Delete removes line from the set. Returns false if it wasn't present.
func (m *Marks) Delete(line LineNumber) bool {
	idx, found := m.search(line)
	if !found {
		return false
	}
	m.lines = append(m.lines[:idx], m.lines[idx+1:]...)
	return true
}

// Has reports whether line is marked.
func (m *Marks) Has(line LineNumber) bool {
	_, found := m.search(line)
	return found
}

// Clear removes all marks.
func (m *Marks) Clear() { m.lines = nil }

// Len returns the number of marks.
func (m *Marks) Len() int { return len(m.lines) }

// At returns the i-th mark in ascending line order.
func (m *Marks) At(i int) LineNumber { return m.lines[i] }

// IndexOf returns the position of line within the sorted set, or -1.
func (m *Marks) IndexOf(line LineNumber) int {
	idx, found := m.search(line)
	if !found {
		return -1
	}
	return idx
}

// Lines returns the marks in ascending order. The returned slice must not be
// mutated by the caller.
func (m *Marks) Lines() []LineNumber { return m.lines }
