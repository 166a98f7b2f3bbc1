package ctid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearize_Should_Round_Trip(t *testing.T) {
	tids := []TID{
		NewTID(0, 1),
		NewTID(0, MaxTuplesPerBlock),
		NewTID(1, 1),
		NewTID(10, 77),
		NewTID(MaxCompressedBlock, MaxTuplesPerBlock),
	}

	for _, tid := range tids {
		assert.Equal(t, tid, Delinearize(Linearize(tid)))
	}
}

func TestLinearize_Should_Preserve_Order(t *testing.T) {
	a, b := NewTID(3, MaxTuplesPerBlock), NewTID(4, 1)
	assert.Less(t, Linearize(a), Linearize(b))
	assert.True(t, Less(a, b))
	assert.Equal(t, 0, Compare(a, a))
	assert.Equal(t, 1, Compare(b, a))
}

func TestToCompressed_Should_Round_Trip(t *testing.T) {
	blocks := []TID{
		NewTID(0, 1),
		NewTID(0, MaxTuplesPerBlock),
		NewTID(10, 1),
		NewTID(512, 200),
		NewTID(MaxCompressedBlock, MaxTuplesPerBlock),
	}

	for _, block := range blocks {
		for _, idx := range []uint16{1, 2, 500, MaxTupleIndex} {
			ctid, err := ToCompressed(block, idx)
			require.NoError(t, err)

			gotBlock, gotIdx := FromCompressed(ctid)
			assert.Equal(t, block, gotBlock)
			assert.Equal(t, idx, gotIdx)
		}
	}
}

func TestToCompressed_Should_Round_Trip_Every_Index(t *testing.T) {
	block := NewTID(10, 1)
	for idx := uint16(1); idx <= MaxTupleIndex; idx++ {
		ctid, err := ToCompressed(block, idx)
		require.NoError(t, err)

		gotBlock, gotIdx := FromCompressed(ctid)
		require.Equal(t, block, gotBlock)
		require.Equal(t, idx, gotIdx)
	}
}

func TestToCompressed_Offset_Should_Stay_In_Valid_Range(t *testing.T) {
	for _, block := range []TID{NewTID(0, 1), NewTID(7, 100), NewTID(4000, MaxTuplesPerBlock)} {
		for idx := uint16(1); idx <= MaxTupleIndex; idx += 41 {
			ctid, err := ToCompressed(block, idx)
			require.NoError(t, err)
			require.GreaterOrEqual(t, ctid.Offset, OffsetNumber(1))
			require.LessOrEqual(t, ctid.Offset, OffsetNumber(MaxTuplesPerBlock))
		}
	}
}

func TestToCompressed_Should_Set_Flag(t *testing.T) {
	ctid, err := ToCompressed(NewTID(10, 1), 1)
	require.NoError(t, err)
	assert.True(t, IsCompressed(ctid))

	// a plain tid never carries the flag
	assert.False(t, IsCompressed(NewTID(10, 1)))
	assert.False(t, IsCompressed(NewTID(MaxCompressedBlock, MaxTuplesPerBlock)))
}

func TestToCompressed_Should_Panic_On_Invalid_Index(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = ToCompressed(NewTID(10, 1), InvalidTupleIndex)
	})
}

func TestToCompressed_Should_Return_Error_When_Index_Exceeds_Field(t *testing.T) {
	_, err := ToCompressed(NewTID(10, 1), MaxTupleIndex+1)
	assert.ErrorIs(t, err, ErrTupleIndexTooLarge)
}

func TestToCompressed_Should_Return_Error_When_Block_Exceeds_Range(t *testing.T) {
	_, err := ToCompressed(NewTID(MaxCompressedBlock+1, 1), 1)
	assert.ErrorIs(t, err, ErrBlockRangeExceeded)
}

func TestFromCompressed_Should_Panic_On_Plain_Tid(t *testing.T) {
	assert.Panics(t, func() {
		FromCompressed(NewTID(10, 1))
	})
}

func TestIncr_Should_Advance_Offset(t *testing.T) {
	ctid, err := ToCompressed(NewTID(10, 1), 1)
	require.NoError(t, err)

	next := Incr(ctid, 1)
	block, idx := FromCompressed(next)
	assert.Equal(t, NewTID(10, 1), block)
	assert.Equal(t, uint16(2), idx)
}

func TestIncr_Should_Carry_Into_Block(t *testing.T) {
	ctid := NewTID(CompressedFlag|5, MaxTuplesPerBlock)

	next := Incr(ctid, 1)
	assert.Equal(t, CompressedFlag|6, next.Block)
	assert.Equal(t, OffsetNumber(1), next.Offset)

	next = Incr(ctid, MaxTuplesPerBlock*2+3)
	assert.Equal(t, CompressedFlag|8, next.Block)
	assert.Equal(t, OffsetNumber(3), next.Offset)
}

func TestIncr_Should_Compose(t *testing.T) {
	ctid, err := ToCompressed(NewTID(10, 1), 1)
	require.NoError(t, err)

	for _, pair := range [][2]uint16{{1, 1}, {3, 700}, {MaxTuplesPerBlock, 5}, {0, 9}} {
		a, b := pair[0], pair[1]
		assert.Equal(t, Incr(ctid, a+b), Incr(Incr(ctid, a), b))
	}
}

func TestIncr_Should_Track_Tuple_Index(t *testing.T) {
	block := NewTID(10, 1)
	ctid, err := ToCompressed(block, 1)
	require.NoError(t, err)

	for want := uint16(2); want <= MaxTupleIndex; want++ {
		ctid = Incr(ctid, 1)
		gotBlock, gotIdx := FromCompressed(ctid)
		require.Equal(t, block, gotBlock)
		require.Equal(t, want, gotIdx)
	}
}
