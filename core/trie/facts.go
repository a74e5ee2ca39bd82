package trie

import (
	"sync"

	"github.com/NethermindEth/stark-state/core/felt"
)

// Facts caches decoded inner node preimages by hash. Passing the same Facts to GetLeaves and
// a following Update avoids reading the same nodes twice. It is safe for concurrent use.
type Facts struct {
	mu    sync.RWMutex
	nodes map[felt.Felt]node
}

func NewFacts() *Facts {
	return &Facts{nodes: make(map[felt.Felt]node)}
}

func (f *Facts) get(hash *felt.Felt) (node, bool) {
	if f == nil {
		return nil, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	n, ok := f.nodes[*hash]
	return n, ok
}

func (f *Facts) add(hash *felt.Felt, n node) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[*hash] = n
}

// Len returns the number of cached preimages.
func (f *Facts) Len() int {
	if f == nil {
		return 0
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.nodes)
}
