package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOrders = `order_id,customer_id,order_status,order_purchase_timestamp,order_approved_at,order_delivered_carrier_date,order_delivered_customer_date,order_estimated_delivery_date,delivery_time,purchase_month
e481f51c,9ef432eb,delivered,2017-10-02 10:56:33,2017-10-02 11:07:15,2017-10-04 19:55:00,2017-10-10 21:25:13,2017-10-18 00:00:00,8.44,2017-10
53cdb2fc,b0830fb4,delivered,2018-07-24 20:41:37,2018-07-26 03:24:27,2018-07-26 14:31:00,2018-08-07 15:27:45,2018-08-13 00:00:00,13.78,2018-07
47770eb9,41ce2a54,shipped,2018-08-08 08:38:49,2018-08-08 08:55:23,2018-08-08 13:50:00,,2018-09-04 00:00:00,,2018-08
949d5b44,f8819714,canceled,2017-11-18 19:28:06,2017-11-18 19:45:59,,,2017-12-15 00:00:00,,2017-11
`

func TestLoadColumnar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orders_dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleOrders), 0o644))

	store, err := LoadColumnar(path)
	require.NoError(t, err)

	assert.Equal(t, 4, store.Len())
	assert.Len(t, store.Columns(), 10)
	assert.Equal(t, ColOrderID, store.Columns()[0])

	status := mustColumn(t, store, ColOrderStatus)
	assert.Equal(t, []string{"delivered", "shipped", "canceled"}, status.Dict)
	assert.Equal(t, []int32{0, 0, 1, 2}, status.IDs)

	delivered := mustColumn(t, store, ColDeliveredCustomer)
	_, ok := delivered.Value(2)
	assert.False(t, ok, "empty cell must load as null")

	delta, err := store.DeliveryDelta(SkipMalformed)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 5}, delta.Days)
	assert.Equal(t, 2, delta.ExcludedRows)
}

func TestLoadColumnarMissingFile(t *testing.T) {
	_, err := LoadColumnar(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseColumnarWorkerCountDoesNotMatter(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("order_id,order_purchase_timestamp,order_status\r\n")
	statuses := []string{"delivered", "shipped", "canceled", "invoiced"}
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "o%d,2018-%02d-%02d 10:00:00,%s\r\n", i/2, i%12+1, i%28+1, statuses[(i/7)%len(statuses)])
	}
	content := []byte(sb.String())

	single, err := ParseColumnar(content, 1)
	require.NoError(t, err)
	for _, workers := range []int{2, 3, 8, 64, 1000} {
		many, err := ParseColumnar(content, workers)
		require.NoError(t, err)
		assert.Equal(t, single, many, "workers=%d", workers)
	}
	assert.Equal(t, 500, single.Len())

	counts, err := single.OrderStatusCounts()
	require.NoError(t, err)
	total := 0
	for _, c := range counts {
		total += c.TotalOrders
	}
	assert.Equal(t, 500, total)
}

func TestParseColumnarEdgeCases(t *testing.T) {
	content := "\xEF\xBB\xBForder_id,order_status,note,note\n" +
		"1,delivered,\"late, but fine\",x\n" +
		"\n" +
		"2,shipped\n" +
		"3,canceled,a,b,surplus\n" +
		"4,delivered,,"

	store, err := ParseColumnar([]byte(content), 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"order_id", "order_status", "note", "note.1"}, store.Columns())
	assert.Equal(t, 4, store.Len())

	note := mustColumn(t, store, "note")
	v, ok := note.Value(0)
	require.True(t, ok)
	assert.Equal(t, "late, but fine", v)
	_, ok = note.Value(1)
	assert.False(t, ok, "short row is padded with nulls")

	id, _ := mustColumn(t, store, ColOrderID).Value(3)
	assert.Equal(t, "4", id)

	_, err = ParseColumnar(nil, 2)
	assert.Error(t, err)

	headerOnly, err := ParseColumnar([]byte("order_id,order_status\n"), 4)
	require.NoError(t, err)
	assert.Zero(t, headerOnly.Len())
}

func TestParseColumnarQuotedNewline(t *testing.T) {
	content := "order_id,order_status,note\r\n" +
		"1,delivered,\"line one\nline two\"\r\n" +
		"2,shipped,\"say \"\"hi\"\"\"\r\n" +
		"2,shipped,x\r\n"

	for _, workers := range []int{1, 4} {
		store, err := ParseColumnar([]byte(content), workers)
		require.NoError(t, err)
		assert.Equal(t, 3, store.Len(), "workers=%d", workers)

		note := mustColumn(t, store, "note")
		v, ok := note.Value(0)
		require.True(t, ok)
		assert.Equal(t, "line one\nline two", v)
		v, _ = note.Value(1)
		assert.Equal(t, `say "hi"`, v)

		ids := mustColumn(t, store, ColOrderID)
		assert.Equal(t, []string{"1", "2"}, ids.Dict)
	}

	assert.True(t, spansLines([]byte("1,\"a\nb\"\n")))
	assert.False(t, spansLines([]byte("1,\"a, b\"\n2,\"\"\"q\"\"\"\n")))
	assert.False(t, spansLines([]byte("1,plain\n")))
}

func TestChunkBounds(t *testing.T) {
	body := []byte("a\nbb\nccc\ndddd\n")
	bounds := chunkBounds(body, 3)
	assert.Equal(t, 0, bounds[0])
	assert.Equal(t, len(body), bounds[len(bounds)-1])
	for i := 1; i < len(bounds)-1; i++ {
		assert.Equal(t, byte('\n'), body[bounds[i]-1])
	}
	assert.Equal(t, []int{0, 0}, chunkBounds(nil, 4))
}

func TestFastHelpers(t *testing.T) {
	f, ok := fastFloat([]byte("123.45"))
	if !ok || f != 123.45 {
		t.Errorf("fastFloat failed: %v", f)
	}
	if f, ok := fastFloat([]byte("-2.5")); !ok || f != -2.5 {
		t.Errorf("fastFloat negative failed: %v", f)
	}
	if _, ok := fastFloat([]byte("1e3")); ok {
		t.Error("fastFloat should reject exponents")
	}
	if f, ok := parseNumber("1e3"); !ok || f != 1000 {
		t.Errorf("parseNumber exponent failed: %v", f)
	}
	if _, ok := parseNumber("NaN"); ok {
		t.Error("parseNumber should reject NaN")
	}
	if _, ok := parseNumber("."); ok {
		t.Error("parseNumber should reject a lone dot")
	}

	ts, err := parseTimestamp("2023-12-01 08:30:00")
	if err != nil || ts.Format(dayLayout) != "2023-12-01" {
		t.Errorf("parseTimestamp failed: %v %v", ts, err)
	}
	if _, err := parseTimestamp("01/12/2023"); err == nil {
		t.Error("parseTimestamp should reject day-first dates")
	}
}
