package cache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"go.uber.org/zap"

	"floe/batch"
	"floe/ctid"
)

var ErrNoVictim = errors.New("every cached batch is pinned")

// BlockLoader materializes the batch stored at a compressed block row. Row
// count zero is invalid output, the cache never binds an empty batch.
// Loading is assumed idempotent.
type BlockLoader interface {
	LoadBlock(tid ctid.TID, proj *roaring.Bitmap) (*batch.Batch, error)
}

type frame struct {
	b    *batch.Batch
	pins int
}

// ArrowCache keeps up to size materialized batches keyed by the TID of
// their compressed block row. A batch is loaded at most once while it is
// cached, readers pin it and must unpin it when the slot moves past it.
// Eviction is LRU over the unpinned frames.
type ArrowCache struct {
	size   int
	loader BlockLoader
	frames map[ctid.TID]*frame
	lru    []ctid.TID // unpinned frames only, head is the next victim
	log    *zap.Logger
	lock   sync.Mutex
}

type Option func(*ArrowCache)

func WithLogger(log *zap.Logger) Option {
	return func(c *ArrowCache) {
		c.log = log
	}
}

func NewArrowCache(loader BlockLoader, size int, opts ...Option) *ArrowCache {
	if size <= 0 {
		panic("arrow cache must have at least one frame")
	}

	c := &ArrowCache{
		size:   size,
		loader: loader,
		frames: make(map[ctid.TID]*frame, size),
		lru:    make([]ctid.TID, 0, size),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the pinned batch of the compressed block row at tid, loading
// and decompressing it on a miss. tid is the block row's own address; a
// compressed TID must be decoded before lookup.
//
// proj narrows which columns the loader materializes on a miss. A batch that
// is already cached is returned as is, the first projection wins while the
// batch stays cached.
func (c *ArrowCache) Get(tid ctid.TID, proj *roaring.Bitmap) (*batch.Batch, error) {
	if ctid.IsCompressed(tid) {
		panic("looking up a batch with a compressed tid")
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	if f, ok := c.frames[tid]; ok {
		if f.pins == 0 {
			c.removeFromLru(tid)
		}
		f.pins++
		return f.b, nil
	}

	if len(c.frames) >= c.size {
		if err := c.evict(); err != nil {
			return nil, err
		}
	}

	// the lock is held across the load so a batch is never materialized
	// twice for the same key
	c.log.Debug("arrow cache miss", zap.Stringer("tid", tid))
	b, err := c.loader.LoadBlock(tid, proj)
	if err != nil {
		return nil, fmt.Errorf("loading block %v: %w", tid, err)
	}
	if b.NumRows() == 0 {
		return nil, batch.ErrEmptyBatch
	}

	c.frames[tid] = &frame{b: b, pins: 1}
	return b, nil
}

// Unpin releases one pin. Unpinning a batch that is not cached or not
// pinned is a protocol violation.
func (c *ArrowCache) Unpin(tid ctid.TID) {
	c.lock.Lock()
	defer c.lock.Unlock()

	f, ok := c.frames[tid]
	if !ok {
		panic("unpinning a batch which is not cached")
	}
	if f.pins == 0 {
		panic("unpinning a batch which is not pinned")
	}

	f.pins--
	if f.pins == 0 {
		c.lru = append(c.lru, tid)
	}
}

func (c *ArrowCache) Len() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.frames)
}

func (c *ArrowCache) NumPinned() int {
	c.lock.Lock()
	defer c.lock.Unlock()

	n := 0
	for _, f := range c.frames {
		if f.pins > 0 {
			n++
		}
	}
	return n
}

func (c *ArrowCache) evict() error {
	if len(c.lru) == 0 {
		return ErrNoVictim
	}

	victim := c.lru[0]
	c.lru = c.lru[1:]

	c.log.Debug("evicting batch", zap.Stringer("tid", victim))
	c.frames[victim].b.Release()
	delete(c.frames, victim)
	return nil
}

func (c *ArrowCache) removeFromLru(tid ctid.TID) {
	for i, t := range c.lru {
		if t == tid {
			copy(c.lru[i:], c.lru[i+1:])
			c.lru = c.lru[:len(c.lru)-1]
			return
		}
	}
}
