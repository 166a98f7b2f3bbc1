package batch

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"floe/catalog"
	"floe/ctid"
)

var (
	ErrEmptyBatch      = errors.New("compressed block row holds no rows")
	ErrBatchTooLarge   = errors.New("compressed block row holds more rows than the row index field can address")
	ErrNotMaterialized = errors.New("column was not materialized")
)

// Batch is the decompression result of one compressed block row: one arrow
// array per materialized column plus the segment header values. A batch is
// immutable once built and may be read from many slots concurrently.
type Batch struct {
	schema  catalog.Schema
	cols    []arrow.Array // by compressed schema position, nil when not materialized
	segVals []any         // by compressed schema position, set for SegmentBy columns
	numRows uint16
}

func NewBatch(schema catalog.Schema, cols []arrow.Array, segVals []any, numRows int) (*Batch, error) {
	if numRows == 0 {
		return nil, ErrEmptyBatch
	}
	if numRows > ctid.MaxTupleIndex {
		return nil, fmt.Errorf("%w: %v > %v", ErrBatchTooLarge, numRows, ctid.MaxTupleIndex)
	}

	n := len(schema.GetColumns())
	if len(cols) != n {
		return nil, fmt.Errorf("have %v column arrays but the compressed schema has %v columns", len(cols), n)
	}
	if segVals == nil {
		segVals = make([]any, n)
	}
	for i, col := range cols {
		if col != nil && col.Len() != numRows {
			return nil, fmt.Errorf("column %q has %v rows, batch has %v", schema.GetColumn(i).Name, col.Len(), numRows)
		}
	}

	return &Batch{schema: schema, cols: cols, segVals: segVals, numRows: uint16(numRows)}, nil
}

func (b *Batch) NumRows() uint16 {
	return b.numRows
}

func (b *Batch) GetSchema() catalog.Schema {
	return b.schema
}

// GetColumn returns the arrow array at the given compressed schema position,
// nil when the column was excluded by projection or is served from the
// segment header.
func (b *Batch) GetColumn(idx int) arrow.Array {
	return b.cols[idx]
}

// GetSegmentValue returns the per block value of a segmentby column.
func (b *Batch) GetSegmentValue(idx int) (any, bool) {
	if !b.schema.GetColumn(idx).SegmentBy {
		return nil, false
	}
	return b.segVals[idx], true
}

// GetValue reads one scalar out of a materialized column array. arrowOffset
// is 0 based.
func (b *Batch) GetValue(idx int, arrowOffset int) (any, error) {
	col := b.cols[idx]
	if col == nil {
		return nil, fmt.Errorf("%w: column %q", ErrNotMaterialized, b.schema.GetColumn(idx).Name)
	}
	return columnValue(col, arrowOffset), nil
}

// Release drops the batch's references to its column arrays. The cache calls
// it on eviction, nobody reads a batch past that point.
func (b *Batch) Release() {
	for i, col := range b.cols {
		if col != nil {
			col.Release()
			b.cols[i] = nil
		}
	}
}
