package tuple

/*
	Row corresponds to a record of the plain (non compressed) relation. It
	keeps one materialized value per plain schema column and the TID that
	addresses it. A Row does not know its schema, positions are interpreted
	by whoever holds the schema.
*/

import "floe/ctid"

type Row struct {
	values []any
	tid    ctid.TID
}

func NewRow(values []any, tid ctid.TID) Row {
	return Row{values: values, tid: tid}
}

func (r *Row) GetValue(idx int) any {
	return r.values[idx]
}

func (r *Row) GetValues() []any {
	return r.values
}

func (r *Row) GetTID() ctid.TID {
	return r.tid
}

func (r *Row) Length() int {
	return len(r.values)
}
