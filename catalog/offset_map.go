package catalog

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

var ErrSchemaMismatch = errors.New("plain and compressed schemas are not structurally compatible")

// NoMapping is the offset map entry for a column that has no counterpart in
// the other schema. Only metadata columns of the compressed relation map to
// it, a plain column without a compressed counterpart is a mismatch.
const NoMapping int16 = -1

// BuildOffsetMap maps every plain column position to its position in the
// compressed relation's schema. The two schemas must list their shared
// columns in identical order and the compressed schema may only add trailing
// metadata columns, so the map is validated here once and then trusted by
// every access.
func BuildOffsetMap(plain, compressed Schema) ([]int16, error) {
	plainCols := plain.GetColumns()
	compCols := compressed.GetColumns()

	if len(compCols) < len(plainCols) {
		return nil, fmt.Errorf("%w: compressed schema has %v columns, plain has %v",
			ErrSchemaMismatch, len(compCols), len(plainCols))
	}

	m := make([]int16, len(plainCols))
	for i, col := range plainCols {
		if col.Meta {
			return nil, fmt.Errorf("%w: plain column %q is marked as metadata", ErrSchemaMismatch, col.Name)
		}

		comp := compCols[i]
		if comp.Meta {
			return nil, fmt.Errorf("%w: metadata column %q before shared column %q",
				ErrSchemaMismatch, comp.Name, col.Name)
		}
		if comp.Name != col.Name {
			return nil, fmt.Errorf("%w: column %v is %q in the plain schema but %q in the compressed schema",
				ErrSchemaMismatch, i, col.Name, comp.Name)
		}
		if !arrow.TypeEqual(comp.Type, col.Type) {
			return nil, fmt.Errorf("%w: column %q is %v in the plain schema but %v in the compressed schema",
				ErrSchemaMismatch, col.Name, col.Type, comp.Type)
		}

		m[i] = int16(i)
	}

	// anything the compressed schema adds must be trailing metadata
	for _, comp := range compCols[len(plainCols):] {
		if !comp.Meta {
			return nil, fmt.Errorf("%w: compressed column %q has no plain counterpart and is not metadata",
				ErrSchemaMismatch, comp.Name)
		}
	}

	return m, nil
}

// BuildReverseOffsetMap maps compressed column positions back to plain ones,
// with NoMapping for the metadata columns.
func BuildReverseOffsetMap(plain, compressed Schema) ([]int16, error) {
	m, err := BuildOffsetMap(plain, compressed)
	if err != nil {
		return nil, err
	}

	rev := make([]int16, len(compressed.GetColumns()))
	for i := range rev {
		rev[i] = NoMapping
	}
	for plainIdx, compIdx := range m {
		rev[compIdx] = int16(plainIdx)
	}

	return rev, nil
}
