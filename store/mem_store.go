package store

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"floe/batch"
	"floe/cache"
	"floe/catalog"
	"floe/codec"
	"floe/ctid"
	"floe/tuple"
)

var ErrBlockNotFound = errors.New("no compressed block row at the given tid")

/*
	MemStore is a hybrid relation held in memory: a plain region of ordinary
	rows and a compressed region of block rows, each block row carrying the
	columnar payload of up to ctid.MaxTupleIndex logical rows. The two
	regions are separate relations with separate TID address spaces.

	Column payloads are framed as one arrow ipc stream per block and
	compressed with a codec. MemStore implements cache.BlockLoader, the
	decompression cache pulls blocks out of it on demand.
*/

type compressedBlock struct {
	tid     ctid.TID
	payload []byte // codec compressed arrow ipc stream of the array columns
	segVals []any  // by compressed schema position
	numRows uint16
}

type MemStore struct {
	plainSchema catalog.Schema
	compSchema  catalog.Schema
	cdc         codec.Codec
	mem         memory.Allocator
	log         *zap.Logger

	rows     []tuple.Row
	blocks   []compressedBlock
	blockIdx map[ctid.TID]int

	nextPlain ctid.TID
	nextBlock ctid.TID
}

var _ cache.BlockLoader = &MemStore{}

type Option func(*MemStore)

func WithLogger(log *zap.Logger) Option {
	return func(m *MemStore) {
		m.log = log
	}
}

func WithCodec(cdc codec.Codec) Option {
	return func(m *MemStore) {
		m.cdc = cdc
	}
}

func NewMemStore(plainSchema, compSchema catalog.Schema, opts ...Option) (*MemStore, error) {
	// fail on incompatible schemas here, not on first access
	if _, err := catalog.BuildOffsetMap(plainSchema, compSchema); err != nil {
		return nil, err
	}

	m := &MemStore{
		plainSchema: plainSchema,
		compSchema:  compSchema,
		cdc:         codec.SnappyCodec{},
		mem:         memory.NewGoAllocator(),
		log:         zap.NewNop(),
		blockIdx:    make(map[ctid.TID]int),
		nextPlain:   ctid.NewTID(0, 1),
		nextBlock:   ctid.NewTID(0, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

func (m *MemStore) GetPlainSchema() catalog.Schema {
	return m.plainSchema
}

func (m *MemStore) GetCompressedSchema() catalog.Schema {
	return m.compSchema
}

// AppendRows adds rows to the plain region. Value positions follow the
// plain schema.
func (m *MemStore) AppendRows(rows [][]any) []ctid.TID {
	tids := make([]ctid.TID, 0, len(rows))
	for _, values := range rows {
		tid := m.nextPlain
		m.rows = append(m.rows, tuple.NewRow(values, tid))
		tids = append(tids, tid)
		m.nextPlain = ctid.Incr(m.nextPlain, 1)
	}
	return tids
}

// AppendBatch compresses rows into one block row of the compressed region
// and returns the block row's TID. Value positions follow the plain schema,
// which lists the shared columns in the same order as the compressed one.
func (m *MemStore) AppendBatch(rows [][]any) (ctid.TID, error) {
	b, err := batch.FromRows(m.compSchema, rows, m.mem)
	if err != nil {
		return ctid.TID{}, err
	}
	defer b.Release()

	payload, err := m.encodeBlock(b)
	if err != nil {
		return ctid.TID{}, err
	}

	segVals := make([]any, len(m.compSchema.GetColumns()))
	for i, col := range m.compSchema.GetColumns() {
		if col.SegmentBy {
			segVals[i], _ = b.GetSegmentValue(i)
		}
	}

	tid := m.nextBlock
	m.blocks = append(m.blocks, compressedBlock{
		tid:     tid,
		payload: payload,
		segVals: segVals,
		numRows: b.NumRows(),
	})
	m.blockIdx[tid] = len(m.blocks) - 1
	m.nextBlock = ctid.Incr(m.nextBlock, 1)

	m.log.Debug("appended compressed block",
		zap.Stringer("tid", tid),
		zap.Uint16("rows", b.NumRows()),
		zap.Int("payload_bytes", len(payload)))
	return tid, nil
}

// LoadBlock decompresses the block row at tid into a batch. proj, when not
// nil, is the set of compressed column positions to materialize; segmentby
// and metadata columns never have arrays.
func (m *MemStore) LoadBlock(tid ctid.TID, proj *roaring.Bitmap) (*batch.Batch, error) {
	idx, ok := m.blockIdx[tid]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrBlockNotFound, tid)
	}
	block := m.blocks[idx]

	raw, err := m.cdc.Decompress(block.payload)
	if err != nil {
		return nil, fmt.Errorf("block %v: %w", tid, err)
	}

	rr, err := ipc.NewReader(bytes.NewReader(raw), ipc.WithAllocator(m.mem))
	if err != nil {
		return nil, fmt.Errorf("block %v: %w", tid, err)
	}
	defer rr.Release()

	if !rr.Next() {
		return nil, fmt.Errorf("block %v: empty ipc stream", tid)
	}
	rec := rr.Record()

	arrs := make([]arrow.Array, len(m.compSchema.GetColumns()))
	for j, field := range rec.Schema().Fields() {
		pos, err := m.compSchema.GetColIdx(field.Name)
		if err != nil {
			return nil, fmt.Errorf("block %v has unknown column %q", tid, field.Name)
		}
		if proj != nil && !proj.Contains(uint32(pos)) {
			continue
		}
		col := rec.Column(j)
		col.Retain()
		arrs[pos] = col
	}

	segVals := make([]any, len(block.segVals))
	copy(segVals, block.segVals)

	return batch.NewBatch(m.compSchema, arrs, segVals, int(block.numRows))
}

// GetBlockTIDs returns the block row TIDs of the compressed region in
// append order.
func (m *MemStore) GetBlockTIDs() []ctid.TID {
	tids := make([]ctid.TID, 0, len(m.blocks))
	for _, b := range m.blocks {
		tids = append(tids, b.tid)
	}
	return tids
}

func (m *MemStore) NumPlainRows() int {
	return len(m.rows)
}

func (m *MemStore) NumBlocks() int {
	return len(m.blocks)
}

func (m *MemStore) encodeBlock(b *batch.Batch) ([]byte, error) {
	fields := make([]arrow.Field, 0, len(m.compSchema.GetColumns()))
	cols := make([]arrow.Array, 0, len(m.compSchema.GetColumns()))
	for i, col := range m.compSchema.GetColumns() {
		arr := b.GetColumn(i)
		if arr == nil {
			continue
		}
		fields = append(fields, arrow.Field{Name: col.Name, Type: col.Type, Nullable: true})
		cols = append(cols, arr)
	}

	aschema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(aschema, cols, int64(b.NumRows()))
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(aschema), ipc.WithAllocator(m.mem))
	if err := w.Write(rec); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return m.cdc.Compress(buf.Bytes()), nil
}
