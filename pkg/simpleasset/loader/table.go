package loader

import (
	"encoding/binary"
	"math/bits"
	"sync"
	"weak"

	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// shardsPerCPU multiplies GOMAXPROCS to size the state table.
const shardsPerCPU = 8

type state int

const (
	statePending state = iota
	stateReady
	stateFailed
)

type key struct {
	id     simpleasset.ID
	format string
}

// asset is the shared decoded value. Handles point at it; the table keeps a
// strong pointer only while handles or waiters are outstanding.
type asset struct {
	value  any
	record simpleasset.ArtifactRecord
}

type entry struct {
	key   key
	state state
	// done is closed once the resolution settles
	done chan struct{}
	err  error

	strong *asset
	weak   weak.Pointer[asset]
	refs   int
	// waiters counts callers blocked on done
	waiters int
}

// acquire pins the asset for a new handle. It returns nil when the weak
// pointer was already collected. The shard lock must be held.
func (e *entry) acquire() *asset {
	a := e.strong
	if a == nil {
		a = e.weak.Value()
		if a == nil {
			return nil
		}
		e.strong = a
	}
	e.refs++
	return a
}

// detach drops a waiter. Once nothing waits or holds a handle only the weak
// pointer remains. The shard lock must be held.
func (e *entry) detach() {
	if e.waiters > 0 {
		e.waiters--
	}
	if e.waiters == 0 && e.refs == 0 {
		e.strong = nil
	}
}

type shard struct {
	mu      sync.Mutex
	entries map[key]*entry
}

type table struct {
	shards []shard
	mask   uint64
}

func newTable(n int) *table {
	if n < 1 {
		n = 1
	}
	// Round up to a power of two so shard selection is a mask.
	size := 1 << bits.Len(uint(n-1))
	t := &table{shards: make([]shard, size), mask: uint64(size - 1)}
	for i := range t.shards {
		t.shards[i].entries = make(map[key]*entry)
	}
	return t
}

// shardFor picks the shard from the random tail of the ID, so every format
// of one ID shares a shard.
func (t *table) shardFor(id simpleasset.ID) *shard {
	b := id.Bytes()
	return &t.shards[binary.BigEndian.Uint64(b[8:])&t.mask]
}

func weakOf(a *asset) weak.Pointer[asset] {
	return weak.Make(a)
}
