package main

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"floe/cache"
	"floe/catalog"
	"floe/codec"
	"floe/ctid"
	"floe/slot"
	"floe/store"
)

func main() {
	plain := catalog.NewSchema([]catalog.Column{
		{Name: "time", Type: arrow.PrimitiveTypes.Int64},
		{Name: "device", Type: arrow.BinaryTypes.String},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
	})
	compressed := catalog.NewSchema([]catalog.Column{
		{Name: "time", Type: arrow.PrimitiveTypes.Int64},
		{Name: "device", Type: arrow.BinaryTypes.String, SegmentBy: true},
		{Name: "value", Type: arrow.PrimitiveTypes.Float64},
		{Name: catalog.MetaCountColumn, Type: arrow.PrimitiveTypes.Int64, Meta: true},
	})

	st, err := store.NewMemStore(plain, compressed, store.WithCodec(codec.NewZstd()))
	if err != nil {
		panic(err)
	}

	// a couple of fresh rows that were not compressed yet
	st.AppendRows([][]any{
		{int64(207), "dev-2", 20.7},
		{int64(208), "dev-2", 20.8},
	})

	// and one compressed block row per device
	for dev := 0; dev < 2; dev++ {
		rows := make([][]any, 0, 100)
		for i := 0; i < 100; i++ {
			rows = append(rows, []any{int64(i), fmt.Sprintf("dev-%v", dev), float64(i) / 10})
		}
		if _, err := st.AppendBatch(rows); err != nil {
			panic(err)
		}
	}

	c := cache.NewArrowCache(st, 8)
	s, err := slot.NewArrowSlot(plain, compressed)
	if err != nil {
		panic(err)
	}

	sc := store.NewScan(st, c, s)
	defer sc.Close()

	total := 0
	compressedRows := 0
	for {
		ok, err := sc.Next()
		if err != nil {
			panic(err)
		}
		if !ok {
			break
		}

		total++
		if s.IsCompressedTuple() {
			compressedRows++
		}
		if ctid.IsCompressed(s.GetTID()) && s.RowIndex() == 1 {
			block, _ := ctid.FromCompressed(s.GetTID())
			device, _ := s.GetValue(1)
			fmt.Printf("entering block %v, device %v, %v rows\n", block, device, s.TotalRowCount())
		}
	}

	fmt.Printf("scanned %v rows, %v of them from compressed blocks\n", total, compressedRows)
}
