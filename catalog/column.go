package catalog

import "github.com/apache/arrow-go/v18/arrow"

// MetaCountColumn is the metadata column of the compressed relation that
// holds how many logical rows a compressed block row contains.
const MetaCountColumn = "_floe_meta_count"

type Column struct {
	Name string
	Type arrow.DataType

	// Meta marks a metadata column of the compressed relation. Metadata
	// columns have no counterpart in the plain relation and may only appear
	// after all shared columns.
	Meta bool

	// SegmentBy marks a column whose value is constant for a whole
	// compressed block row. It is stored once per block, not per row.
	SegmentBy bool
}
