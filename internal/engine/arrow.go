package engine

import (
	"fmt"
	"time"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
)

// FromArrow copies an Arrow record into a ColumnStore. Timestamps keep the
// zone declared on their column type; every other type is taken in its
// canonical string form.
func FromArrow(rec arrow.Record) (*ColumnStore, error) {
	rows := int(rec.NumRows())
	cols := make([]*Column, rec.NumCols())
	for c := range cols {
		arr := rec.Column(c)
		value, err := arrowFormatter(arr)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", rec.ColumnName(c), err)
		}
		enc := newDictEncoder()
		ids := make([]int32, rows)
		for i := 0; i < rows; i++ {
			if arr.IsNull(i) {
				ids[i] = -1
				continue
			}
			ids[i] = enc.encode(value(i))
		}
		cols[c] = &Column{Name: rec.ColumnName(c), IDs: ids, Dict: enc.dict}
	}
	return newColumnStore(rows, cols), nil
}

func arrowFormatter(arr arrow.Array) (func(int) string, error) {
	switch a := arr.(type) {
	case *array.String:
		return a.Value, nil
	case *array.LargeString:
		return a.Value, nil
	case *array.Timestamp:
		typ := a.DataType().(*arrow.TimestampType)
		loc, err := typ.GetZone()
		if err != nil {
			return nil, err
		}
		if loc == nil {
			loc = time.UTC
		}
		return func(i int) string {
			return a.Value(i).ToTime(typ.Unit).In(loc).Format(time.RFC3339Nano)
		}, nil
	case *array.Date32:
		return func(i int) string { return a.Value(i).ToTime().Format(dayLayout) }, nil
	case *array.Date64:
		return func(i int) string { return a.Value(i).ToTime().Format(dayLayout) }, nil
	}
	return arr.ValueStr, nil
}
