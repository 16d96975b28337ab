package source

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"orderdash/internal/engine"
)

// LoadArrow reads an Arrow IPC file. All record batches are concatenated
// into one snapshot.
func LoadArrow(path string) (*engine.ColumnStore, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read arrow: %w", err)
	}
	defer f.Close()

	mem := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("read arrow: %w", err)
	}
	defer r.Close()

	schema := r.Schema()
	chunks := make([][]arrow.Array, schema.NumFields())
	var rows int64
	defer func() {
		for _, col := range chunks {
			for _, a := range col {
				a.Release()
			}
		}
	}()
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, fmt.Errorf("read arrow batch %d: %w", i, err)
		}
		for c := range chunks {
			col := rec.Column(c)
			col.Retain()
			chunks[c] = append(chunks[c], col)
		}
		rows += rec.NumRows()
	}

	cols := make([]arrow.Array, len(chunks))
	for c, parts := range chunks {
		if len(parts) == 0 {
			cols[c] = array.MakeArrayOfNull(mem, schema.Field(c).Type, 0)
			continue
		}
		if cols[c], err = array.Concatenate(parts, mem); err != nil {
			return nil, fmt.Errorf("arrow column %q: %w", schema.Field(c).Name, err)
		}
	}
	rec := array.NewRecord(schema, cols, rows)
	defer rec.Release()
	for _, a := range cols {
		a.Release()
	}
	return engine.FromArrow(rec)
}
