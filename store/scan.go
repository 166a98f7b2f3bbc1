package store

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"floe/cache"
	"floe/ctid"
	"floe/slot"
)

/*
	Scan walks a hybrid relation row by row through one ArrowSlot: first the
	plain region, one binding per row, then the compressed region, one
	binding per block row. While the slot is inside a batch, Next only
	increments it, so a block is decompressed once and its cost is amortized
	over every row it holds.

	A scan owns its slot exclusively and pins at most one batch at a time.
*/

type Scan struct {
	id    string
	store *MemStore
	cache *cache.ArrowCache
	slot  *slot.ArrowSlot
	log   *zap.Logger

	plainIdx int
	blockIdx int
	pinned   *ctid.TID
}

func NewScan(st *MemStore, c *cache.ArrowCache, s *slot.ArrowSlot) *Scan {
	sc := &Scan{
		id:    uuid.NewString(),
		store: st,
		cache: c,
		slot:  s,
		log:   st.log,
	}
	sc.log.Debug("starting scan",
		zap.String("scan_id", sc.id),
		zap.Int("plain_rows", st.NumPlainRows()),
		zap.Int("blocks", st.NumBlocks()))
	return sc
}

// Next binds the slot to the next row of the relation. It returns false
// when the relation is exhausted, the slot is then left consumed.
func (sc *Scan) Next() (bool, error) {
	// keep consuming the bound batch before touching the next source
	if sc.slot.IsCompressedTuple() && !sc.slot.IsConsumed() && !sc.slot.IsLast() {
		sc.slot.Incr(1)
		return true, nil
	}

	sc.unpin()

	if sc.plainIdx < len(sc.store.rows) {
		sc.slot.StorePlain(sc.store.rows[sc.plainIdx])
		sc.plainIdx++
		return true, nil
	}

	if sc.blockIdx < len(sc.store.blocks) {
		tid := sc.store.blocks[sc.blockIdx].tid
		sc.blockIdx++

		b, err := sc.cache.Get(tid, sc.slot.Projection())
		if err != nil {
			return false, err
		}
		if err := sc.slot.StoreBatch(tid, b, 1); err != nil {
			sc.cache.Unpin(tid)
			return false, err
		}
		sc.pinned = &tid
		return true, nil
	}

	if !sc.slot.IsConsumed() {
		sc.slot.MarkConsumed()
	}
	return false, nil
}

// Close releases the scan's pin. The slot stays usable for rebinding.
func (sc *Scan) Close() {
	sc.unpin()
	sc.log.Debug("scan done", zap.String("scan_id", sc.id))
}

func (sc *Scan) unpin() {
	if sc.pinned != nil {
		sc.cache.Unpin(*sc.pinned)
		sc.pinned = nil
	}
}
