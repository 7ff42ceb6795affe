package marks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddDeleteRoundTrip(t *testing.T) {
	m := New()
	assert.True(t, m.Add(5))
	assert.True(t, m.Add(9))
	assert.False(t, m.Add(5), "duplicate add must be rejected")
	assert.Equal(t, []LineNumber{5, 9}, m.Lines())

	assert.True(t, m.Delete(5))
	assert.False(t, m.Delete(5), "deleting a non-member must report false")
	assert.Equal(t, []LineNumber{9}, m.Lines())
}

func TestAddDeleteIsIdempotentOnTheSetAsAWhole(t *testing.T) {
	m := New()
	before := append([]LineNumber{}, m.Lines()...)
	m.Add(42)
	m.Delete(42)
	assert.Equal(t, before, m.Lines())
}

func TestHasAndIndexOf(t *testing.T) {
	m := New()
	m.Add(3)
	m.Add(1)
	m.Add(7)
	assert.True(t, m.Has(3))
	assert.False(t, m.Has(4))
	assert.Equal(t, 0, m.IndexOf(1))
	assert.Equal(t, 1, m.IndexOf(3))
	assert.Equal(t, -1, m.IndexOf(99))
}

func TestClear(t *testing.T) {
	m := New()
	m.Add(1)
	m.Add(2)
	m.Clear()
	assert.Equal(t, 0, m.Len())
}
