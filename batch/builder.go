package batch

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"floe/catalog"
)

// FromRows materializes a batch from row oriented values, one inner slice
// per logical row, positions following the compressed schema's non metadata
// columns (metadata columns are derived, not passed in).
//
// Segmentby columns are checked to be constant across the rows and land in
// the segment header, every other non metadata column becomes an arrow
// array.
func FromRows(schema catalog.Schema, rows [][]any, mem memory.Allocator) (*Batch, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyBatch
	}
	if mem == nil {
		mem = memory.NewGoAllocator()
	}

	cols := schema.GetColumns()
	arrs := make([]arrow.Array, len(cols))
	segVals := make([]any, len(cols))

	valueIdx := 0
	for i, col := range cols {
		if col.Meta {
			continue
		}

		if col.SegmentBy {
			segVals[i] = rows[0][valueIdx]
			for r, row := range rows {
				if row[valueIdx] != segVals[i] {
					return nil, fmt.Errorf("segmentby column %q is not constant: row %v has %v, segment has %v",
						col.Name, r, row[valueIdx], segVals[i])
				}
			}
			valueIdx++
			continue
		}

		bldr := array.NewBuilder(mem, col.Type)
		for _, row := range rows {
			if err := AppendValue(bldr, row[valueIdx]); err != nil {
				bldr.Release()
				return nil, fmt.Errorf("column %q: %w", col.Name, err)
			}
		}
		arrs[i] = bldr.NewArray()
		bldr.Release()
		valueIdx++
	}

	b, err := NewBatch(schema, arrs, segVals, len(rows))
	if err != nil {
		for _, arr := range arrs {
			if arr != nil {
				arr.Release()
			}
		}
		return nil, err
	}
	return b, nil
}

// AppendValue appends one scalar to an arrow builder, converting the narrow
// Go types that reach the store.
func AppendValue(bldr array.Builder, value any) error {
	if value == nil {
		bldr.AppendNull()
		return nil
	}

	switch b := bldr.(type) {
	case *array.BooleanBuilder:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("cannot append %T to a boolean column", value)
		}
		b.Append(v)

	case *array.Int64Builder:
		switch v := value.(type) {
		case int:
			b.Append(int64(v))
		case int32:
			b.Append(int64(v))
		case int64:
			b.Append(v)
		default:
			return fmt.Errorf("cannot append %T to an int64 column", value)
		}

	case *array.Float64Builder:
		switch v := value.(type) {
		case float32:
			b.Append(float64(v))
		case float64:
			b.Append(v)
		default:
			return fmt.Errorf("cannot append %T to a float64 column", value)
		}

	case *array.StringBuilder:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("cannot append %T to a string column", value)
		}
		b.Append(v)

	case *array.BinaryBuilder:
		switch v := value.(type) {
		case []byte:
			b.Append(v)
		case string:
			b.Append([]byte(v))
		default:
			return fmt.Errorf("cannot append %T to a binary column", value)
		}

	default:
		return fmt.Errorf("unsupported builder type: %T", bldr)
	}

	return nil
}

func columnValue(col arrow.Array, idx int) any {
	if col.IsNull(idx) {
		return nil
	}

	switch c := col.(type) {
	case *array.Boolean:
		return c.Value(idx)
	case *array.Int64:
		return c.Value(idx)
	case *array.Float64:
		return c.Value(idx)
	case *array.String:
		return c.Value(idx)
	case *array.Binary:
		return c.Value(idx)
	default:
		return nil
	}
}
