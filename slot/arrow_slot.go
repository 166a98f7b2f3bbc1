package slot

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"floe/batch"
	"floe/catalog"
	"floe/ctid"
	"floe/tuple"
)

/*
	ArrowSlot presents the two relations of a hybrid table as one row
	oriented cursor. It is bound either to one plain row or to one
	compressed block row's batch, and in the batch case a 1 based tuple
	index picks the current logical row.

	tupleIndex == 0                  -> bound to a plain row
	tupleIndex in [1, totalRowCount] -> bound to batch row tupleIndex-1
	tupleIndex == totalRowCount+1    -> the batch is consumed

	Binding a batch happens once per compressed block row, every Incr after
	that only moves the index and the compressed TID. The batch is never
	decompressed again while the slot walks it.

	A slot is owned by a single scan and is not safe for concurrent use. The
	batches it reads are shared and never written through the slot.
*/

type state uint8

const (
	stateEmpty state = iota
	statePlain
	stateBatch
)

type ArrowSlot struct {
	plainSchema catalog.Schema
	compSchema  catalog.Schema
	offsetMap   []int16

	cur   state
	row   tuple.Row
	batch *batch.Batch

	tupleIndex    uint16
	totalRowCount uint16
	tid           ctid.TID

	refAttrs *roaring.Bitmap // plain positions a consumer will read, empty means all
	segAttrs *roaring.Bitmap // plain positions of segmentby columns

	// validity cache: which plain positions of the current row are already
	// materialized in values. Cleared on every row transition, values
	// cached for one row must never leak into the next.
	valid  *roaring.Bitmap
	values []any
}

// NewArrowSlot builds a slot over a plain schema and the compressed schema
// of its paired relation. The schemas are validated here once, every later
// access goes through the resulting offset map.
func NewArrowSlot(plainSchema, compSchema catalog.Schema) (*ArrowSlot, error) {
	offsetMap, err := catalog.BuildOffsetMap(plainSchema, compSchema)
	if err != nil {
		return nil, err
	}

	segAttrs := roaring.New()
	for plainIdx, compIdx := range offsetMap {
		if compSchema.GetColumn(int(compIdx)).SegmentBy {
			segAttrs.Add(uint32(plainIdx))
		}
	}

	return &ArrowSlot{
		plainSchema: plainSchema,
		compSchema:  compSchema,
		offsetMap:   offsetMap,
		cur:         stateEmpty,
		refAttrs:    roaring.New(),
		segAttrs:    segAttrs,
		valid:       roaring.New(),
		values:      make([]any, len(offsetMap)),
	}, nil
}

// StorePlain binds the slot to one plain row. Valid from any state.
func (s *ArrowSlot) StorePlain(row tuple.Row) {
	s.cur = statePlain
	s.row = row
	s.batch = nil
	s.tupleIndex = ctid.InvalidTupleIndex
	s.totalRowCount = 0
	s.tid = row.GetTID()
	s.clearValid()
}

// StoreBatch binds the slot to the batch of the compressed block row at
// blockTID, starting at the 1 based row startIdx. Valid from any state.
func (s *ArrowSlot) StoreBatch(blockTID ctid.TID, b *batch.Batch, startIdx uint16) error {
	if b.NumRows() == 0 {
		return batch.ErrEmptyBatch
	}
	if startIdx == ctid.InvalidTupleIndex || startIdx > b.NumRows() {
		panic(fmt.Sprintf("storing a batch at row index %v with %v rows", startIdx, b.NumRows()))
	}

	tid, err := ctid.ToCompressed(blockTID, startIdx)
	if err != nil {
		return err
	}

	s.cur = stateBatch
	s.batch = b
	s.tupleIndex = startIdx
	s.totalRowCount = b.NumRows()
	s.tid = tid
	s.clearValid()
	return nil
}

// Incr advances the slot n rows.
//
// A plain row has no successor, so the slot just empties. A batch bound
// slot moves its index and compressed TID together until the index passes
// the last row, which consumes the batch. Incrementing an empty slot is a
// protocol violation.
func (s *ArrowSlot) Incr(n uint16) {
	if s.cur == stateEmpty {
		panic("incrementing an empty arrow slot")
	}

	if s.cur == statePlain {
		s.clear()
		return
	}

	next := uint32(s.tupleIndex) + uint32(n)
	if next > uint32(s.totalRowCount) {
		// past the last row: drop the batch reference, keep the TID where
		// it was and record the canonical consumed index
		s.tupleIndex = s.totalRowCount + 1
		s.batch = nil
		s.cur = stateEmpty
		s.clearValid()
		return
	}

	s.tupleIndex = uint16(next)
	s.tid = ctid.Incr(s.tid, n)
	s.clearValid()
}

// MarkConsumed forces the consumed index without walking the remaining
// rows. It is the explicit invalidation entry point for vectorized readers
// that take the whole batch in one go.
func (s *ArrowSlot) MarkConsumed() {
	if s.cur == statePlain {
		// a plain row has nothing left to consume
		s.clear()
		return
	}

	s.tupleIndex = s.totalRowCount + 1
	s.batch = nil
	s.cur = stateEmpty
	s.clearValid()
}

func (s *ArrowSlot) IsConsumed() bool {
	return s.cur == stateEmpty || s.tupleIndex > s.totalRowCount
}

// IsLast reports whether the slot sits on the last row of its batch. It
// never transitions.
func (s *ArrowSlot) IsLast() bool {
	return s.cur == stateBatch && s.tupleIndex == s.totalRowCount
}

// IsCompressedTuple reports whether the slot is bound to a batch row.
func (s *ArrowSlot) IsCompressedTuple() bool {
	return s.tupleIndex != ctid.InvalidTupleIndex
}

// RowIndex is the 1 based index into the current batch, or
// ctid.InvalidTupleIndex for a plain row.
func (s *ArrowSlot) RowIndex() uint16 {
	return s.tupleIndex
}

// ArrowOffset is the 0 based offset into the batch's arrow arrays. It is 0
// for a plain row as well.
func (s *ArrowSlot) ArrowOffset() uint16 {
	if s.tupleIndex == ctid.InvalidTupleIndex {
		return 0
	}
	return s.tupleIndex - 1
}

func (s *ArrowSlot) TotalRowCount() uint16 {
	return s.totalRowCount
}

// GetTID returns the address of the current row: the plain row's own TID or
// the compressed TID of the current batch row.
func (s *ArrowSlot) GetTID() ctid.TID {
	return s.tid
}

func (s *ArrowSlot) GetOffsetMap() []int16 {
	return s.offsetMap
}

// SetReferencedAttrs narrows which plain columns the consumer will read. An
// empty set means all of them. The set is pushed down to the loader as a
// projection hint through Projection.
func (s *ArrowSlot) SetReferencedAttrs(attrs *roaring.Bitmap) {
	if attrs == nil {
		attrs = roaring.New()
	}
	s.refAttrs = attrs
}

// Projection maps the referenced plain columns to compressed schema
// positions for the block loader. Segmentby columns are excluded, they come
// from the segment header, not from column arrays. Returns nil when every
// column is referenced.
func (s *ArrowSlot) Projection() *roaring.Bitmap {
	if s.refAttrs.IsEmpty() {
		return nil
	}

	proj := roaring.New()
	it := s.refAttrs.Iterator()
	for it.HasNext() {
		plainIdx := it.Next()
		if s.segAttrs.Contains(plainIdx) {
			continue
		}
		proj.Add(uint32(s.offsetMap[plainIdx]))
	}
	return proj
}

// GetValue materializes the scalar of the plain column at plainIdx for the
// current row. Batch reads go through the offset map; segmentby columns are
// served from the batch header, everything else from the arrow array at
// ArrowOffset. The result is memoized until the next row transition.
func (s *ArrowSlot) GetValue(plainIdx int) (any, error) {
	switch s.cur {
	case stateEmpty:
		panic("reading a value from an empty arrow slot")
	case statePlain:
		return s.row.GetValue(plainIdx), nil
	}

	if s.valid.Contains(uint32(plainIdx)) {
		return s.values[plainIdx], nil
	}

	compIdx := int(s.offsetMap[plainIdx])

	var v any
	if s.segAttrs.Contains(uint32(plainIdx)) {
		v, _ = s.batch.GetSegmentValue(compIdx)
	} else {
		var err error
		v, err = s.batch.GetValue(compIdx, int(s.ArrowOffset()))
		if err != nil {
			return nil, err
		}
	}

	s.values[plainIdx] = v
	s.valid.Add(uint32(plainIdx))
	return v, nil
}

func (s *ArrowSlot) clear() {
	s.cur = stateEmpty
	s.row = tuple.Row{}
	s.batch = nil
	s.tupleIndex = ctid.InvalidTupleIndex
	s.totalRowCount = 0
	s.clearValid()
}

// clearValid releases the cached scalars of the previous row. Stale reuse
// across rows is a correctness bug, not an optimization opportunity.
func (s *ArrowSlot) clearValid() {
	s.valid.Clear()
	for i := range s.values {
		s.values[i] = nil
	}
}
