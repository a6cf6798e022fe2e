package locator

import (
	"sync"

	"github.com/deep-rent/locus/token"
)

// result is a memoized resolution; found is false for a cached miss.
type result struct {
	implementation token.Token
	found          bool
}

// memo caches resolutions for exactly one snapshot. Entries are written
// last-write-wins: resolution is pure, so racing writers store equal values.
type memo struct {
	m sync.Map // map[key]result
}

func newMemo() *memo {
	return &memo{}
}

func (m *memo) load(k key) (result, bool) {
	v, ok := m.m.Load(k)
	if !ok {
		return result{}, false
	}
	return v.(result), true
}

func (m *memo) store(k key, r result) {
	m.m.Store(k, r)
}

// len counts the entries. It is meant for tests and diagnostics.
func (m *memo) len() int {
	n := 0
	m.m.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
