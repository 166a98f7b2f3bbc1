package cache

import (
	"errors"
	"sync"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floe/batch"
	"floe/catalog"
	"floe/ctid"
)

type countingLoader struct {
	lock  sync.Mutex
	loads map[ctid.TID]int
	rows  int
	err   error
}

func newCountingLoader(rows int) *countingLoader {
	return &countingLoader{loads: map[ctid.TID]int{}, rows: rows}
}

func (l *countingLoader) LoadBlock(tid ctid.TID, _ *roaring.Bitmap) (*batch.Batch, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.err != nil {
		return nil, l.err
	}

	l.loads[tid]++

	schema := catalog.NewSchema([]catalog.Column{
		{Name: "time", Type: arrow.PrimitiveTypes.Int64},
		{Name: catalog.MetaCountColumn, Type: arrow.PrimitiveTypes.Int64, Meta: true},
	})
	rows := make([][]any, 0, l.rows)
	for i := 0; i < l.rows; i++ {
		rows = append(rows, []any{int64(i)})
	}
	return batch.FromRows(schema, rows, nil)
}

func (l *countingLoader) loadCount(tid ctid.TID) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.loads[tid]
}

func TestGet_Should_Load_Once_Per_Key(t *testing.T) {
	loader := newCountingLoader(4)
	c := NewArrowCache(loader, 2)
	tid := ctid.NewTID(10, 1)

	b1, err := c.Get(tid, nil)
	require.NoError(t, err)
	b2, err := c.Get(tid, nil)
	require.NoError(t, err)

	assert.Same(t, b1, b2)
	assert.Equal(t, 1, loader.loadCount(tid))
}

func TestGet_Should_Panic_On_Compressed_Tid(t *testing.T) {
	c := NewArrowCache(newCountingLoader(4), 2)

	compressed, err := ctid.ToCompressed(ctid.NewTID(10, 1), 1)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = c.Get(compressed, nil)
	})
}

func TestGet_Should_Evict_Least_Recently_Unpinned(t *testing.T) {
	loader := newCountingLoader(4)
	c := NewArrowCache(loader, 2)

	a, b, d := ctid.NewTID(1, 1), ctid.NewTID(2, 1), ctid.NewTID(3, 1)

	_, err := c.Get(a, nil)
	require.NoError(t, err)
	_, err = c.Get(b, nil)
	require.NoError(t, err)
	c.Unpin(a)
	c.Unpin(b)

	// a was unpinned first, it is the victim
	_, err = c.Get(d, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	_, err = c.Get(a, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.loadCount(a))
	assert.Equal(t, 1, loader.loadCount(b))
}

func TestGet_Should_Fail_When_All_Batches_Are_Pinned(t *testing.T) {
	c := NewArrowCache(newCountingLoader(4), 1)

	_, err := c.Get(ctid.NewTID(1, 1), nil)
	require.NoError(t, err)

	_, err = c.Get(ctid.NewTID(2, 1), nil)
	assert.ErrorIs(t, err, ErrNoVictim)
}

func TestGet_Should_Propagate_Loader_Errors(t *testing.T) {
	loader := newCountingLoader(4)
	loader.err = errors.New("block is gone")
	c := NewArrowCache(loader, 2)

	_, err := c.Get(ctid.NewTID(1, 1), nil)
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestUnpin_Should_Panic_When_Not_Pinned(t *testing.T) {
	c := NewArrowCache(newCountingLoader(4), 2)
	tid := ctid.NewTID(1, 1)

	_, err := c.Get(tid, nil)
	require.NoError(t, err)
	c.Unpin(tid)

	assert.Panics(t, func() {
		c.Unpin(tid)
	})
	assert.Panics(t, func() {
		c.Unpin(ctid.NewTID(99, 1))
	})
}

func TestPinned_Batches_Should_Survive_Eviction_Pressure(t *testing.T) {
	loader := newCountingLoader(4)
	c := NewArrowCache(loader, 2)

	pinned := ctid.NewTID(1, 1)
	b1, err := c.Get(pinned, nil)
	require.NoError(t, err)

	for i := uint32(2); i < 6; i++ {
		tid := ctid.NewTID(ctid.BlockNumber(i), 1)
		_, err := c.Get(tid, nil)
		require.NoError(t, err)
		c.Unpin(tid)
	}

	b2, err := c.Get(pinned, nil)
	require.NoError(t, err)
	assert.Same(t, b1, b2)
	assert.Equal(t, 1, loader.loadCount(pinned))
}

func TestGet_Should_Share_One_Batch_Across_Concurrent_Readers(t *testing.T) {
	loader := newCountingLoader(64)
	c := NewArrowCache(loader, 2)
	tid := ctid.NewTID(7, 1)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := c.Get(tid, nil)
			require.NoError(t, err)
			for row := 0; row < int(b.NumRows()); row++ {
				v, err := b.GetValue(0, row)
				require.NoError(t, err)
				require.Equal(t, int64(row), v)
			}
			c.Unpin(tid)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, loader.loadCount(tid))
}
