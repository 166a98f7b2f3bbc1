package ctid

import (
	"errors"
	"fmt"
)

type BlockNumber uint32

type OffsetNumber uint16

/**
 * A TID addresses a physical row as a (block, offset) pair. Offsets are
 * 1 based, offset 0 is never a valid address.
 *
 * A compressed TID reuses the same shape to address one logical row inside
 * a compressed block row. The block row's own TID is linearized, widened by
 * TupleIndexBits to make room for the row index, and the result is split
 * again by MaxTuplesPerBlock so that the offset part stays inside the range
 * the block format allows:
 *
 *  | 1 bit flag | linear / MaxTuplesPerBlock |   linear % MaxTuplesPerBlock + 1 |
 *  |            <- block (32 bits) ->        |        <- offset (16 bits) ->    |
 *
 *  linear = (block*MaxTuplesPerBlock + offset - 1) << 10 | row index
 */

const (
	// MaxTuplesPerBlock is how many row slots fit in one 4096 byte block:
	// 8 byte slot array entry plus a 4 byte minimum row.
	MaxTuplesPerBlock = 4096 / 12

	// TupleIndexBits is the width of the row index field of a compressed TID.
	TupleIndexBits = 10

	tupleIndexMask = (1 << TupleIndexBits) - 1

	// MaxTupleIndex is the largest row index one compressed block row can hold.
	MaxTupleIndex = tupleIndexMask

	// InvalidTupleIndex marks a slot that is not bound to a compressed row.
	InvalidTupleIndex uint16 = 0

	// CompressedFlag is set in the block component of every compressed TID.
	CompressedFlag BlockNumber = 1 << 31

	// MaxCompressedBlock is the largest block number of a compressed block
	// row whose TID can still be widened by TupleIndexBits without the
	// quotient spilling into the flag bit.
	MaxCompressedBlock BlockNumber = 1<<21 - 1
)

var (
	ErrTupleIndexTooLarge = errors.New("tuple index does not fit the row index field")
	ErrBlockRangeExceeded = errors.New("block number is too large to be encoded in a compressed tid")
)

// TID is a plain value, it is always copied and never compared by identity.
type TID struct {
	Block  BlockNumber
	Offset OffsetNumber
}

func NewTID(block BlockNumber, offset OffsetNumber) TID {
	return TID{Block: block, Offset: offset}
}

func (t TID) String() string {
	return fmt.Sprintf("(%v,%v)", t.Block, t.Offset)
}

// Linearize maps a TID onto a single dense unsigned address. It is the
// ordering key for TIDs and the input of the compressed widening.
func Linearize(t TID) uint64 {
	return uint64(t.Block)*MaxTuplesPerBlock + uint64(t.Offset) - 1
}

func Delinearize(linear uint64) TID {
	return TID{
		Block:  BlockNumber(linear / MaxTuplesPerBlock),
		Offset: OffsetNumber(linear%MaxTuplesPerBlock) + 1,
	}
}

// Compare orders TIDs by their linear address. Compressed TIDs sort after
// every plain TID because the flag is the top bit of the block.
func Compare(a, b TID) int {
	if a.Block != b.Block {
		if a.Block < b.Block {
			return -1
		}
		return 1
	}
	if a.Offset != b.Offset {
		if a.Offset < b.Offset {
			return -1
		}
		return 1
	}
	return 0
}

func Less(a, b TID) bool {
	return Compare(a, b) < 0
}

// ToCompressed encodes the TID of a compressed block row together with a
// 1 based row index into a single compressed TID.
//
// Index 0 is the not-bound sentinel and passing it here is a protocol
// violation. Indexes and block numbers beyond the format's ceilings are
// capacity errors, the format is never degraded to fit them.
func ToCompressed(block TID, idx uint16) (TID, error) {
	if idx == InvalidTupleIndex {
		panic("encoding a compressed tid with the invalid tuple index")
	}
	if idx > MaxTupleIndex {
		return TID{}, fmt.Errorf("%w: %v > %v", ErrTupleIndexTooLarge, idx, MaxTupleIndex)
	}
	if block.Block > MaxCompressedBlock {
		return TID{}, fmt.Errorf("%w: %v > %v", ErrBlockRangeExceeded, block.Block, MaxCompressedBlock)
	}

	linear := Linearize(block)<<TupleIndexBits | uint64(idx)

	// The offset component may not be zero and may not exceed
	// MaxTuplesPerBlock, so the remainder goes to the offset shifted up by
	// one and the quotient to the block.
	return TID{
		Block:  CompressedFlag | BlockNumber(linear/MaxTuplesPerBlock),
		Offset: OffsetNumber(linear%MaxTuplesPerBlock) + 1,
	}, nil
}

// FromCompressed is the inverse of ToCompressed. It returns the TID of the
// compressed block row and the 1 based row index inside it.
func FromCompressed(t TID) (TID, uint16) {
	if !IsCompressed(t) {
		panic("decoding a tid without the compressed flag")
	}

	linear := uint64(t.Block&^CompressedFlag)*MaxTuplesPerBlock + uint64(t.Offset) - 1

	return Delinearize(linear >> TupleIndexBits), uint16(linear & tupleIndexMask)
}

// Incr advances a compressed TID by n row positions, carrying from the
// offset into the block when the offset would leave its valid range. The
// flag bit is untouched. Incr composes: Incr(Incr(t, a), b) == Incr(t, a+b).
func Incr(t TID, n uint16) TID {
	if uint32(t.Offset)+uint32(n) <= MaxTuplesPerBlock {
		t.Offset += OffsetNumber(n)
		return t
	}

	linear := uint32(t.Offset) - 1 + uint32(n)
	t.Block += BlockNumber(linear / MaxTuplesPerBlock)
	t.Offset = OffsetNumber(linear%MaxTuplesPerBlock) + 1
	return t
}

// IsCompressed tests the flag bit only, it never decodes.
func IsCompressed(t TID) bool {
	return t.Block&CompressedFlag != 0
}
