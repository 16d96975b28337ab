package engine

// Column is a dictionary encoded string column.
// IDs index into Dict; an ID of -1 marks a null cell.
type Column struct {
	Name string
	IDs  []int32
	Dict []string
}

// Value returns the cell at row and whether it is non-null.
func (c *Column) Value(row int) (string, bool) {
	id := c.IDs[row]
	if id < 0 {
		return "", false
	}
	return c.Dict[id], true
}

// ColumnStore holds an orders table in Struct-of-Arrays format.
// A store is never mutated after it is built, so it can be shared
// between goroutines and passed around as a snapshot.
type ColumnStore struct {
	columns []*Column
	index   map[string]int
	rows    int
}

func newColumnStore(rows int, columns []*Column) *ColumnStore {
	cs := &ColumnStore{
		columns: columns,
		index:   make(map[string]int, len(columns)),
		rows:    rows,
	}
	for i, c := range columns {
		cs.index[c.Name] = i
	}
	return cs
}

// Len returns the number of rows.
func (cs *ColumnStore) Len() int {
	return cs.rows
}

// Columns returns the column names in table order.
func (cs *ColumnStore) Columns() []string {
	names := make([]string, len(cs.columns))
	for i, c := range cs.columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether a column with this exact name exists.
func (cs *ColumnStore) HasColumn(name string) bool {
	_, ok := cs.index[name]
	return ok
}

// Column looks a column up by exact, case-sensitive name.
func (cs *ColumnStore) Column(name string) (*Column, error) {
	i, ok := cs.index[name]
	if !ok {
		return nil, &MissingColumnError{Column: name}
	}
	return cs.columns[i], nil
}

// withColumn returns a store sharing every column of cs plus c.
// An existing column with the same name is replaced.
func (cs *ColumnStore) withColumn(c *Column) *ColumnStore {
	cols := make([]*Column, 0, len(cs.columns)+1)
	for _, existing := range cs.columns {
		if existing.Name != c.Name {
			cols = append(cols, existing)
		}
	}
	cols = append(cols, c)
	return newColumnStore(cs.rows, cols)
}

// selectRows returns a store with only the given rows, in the given order.
// Dictionaries are shared with cs.
func (cs *ColumnStore) selectRows(rows []int) *ColumnStore {
	cols := make([]*Column, len(cs.columns))
	for i, c := range cs.columns {
		ids := make([]int32, len(rows))
		for j, r := range rows {
			ids[j] = c.IDs[r]
		}
		cols[i] = &Column{Name: c.Name, IDs: ids, Dict: c.Dict}
	}
	return newColumnStore(len(rows), cols)
}

// dictEncoder assigns IDs to strings in first-appearance order.
type dictEncoder struct {
	ids  map[string]int32
	dict []string
}

func newDictEncoder() *dictEncoder {
	return &dictEncoder{ids: make(map[string]int32)}
}

// encode returns the ID for s. Empty strings are nulls.
func (d *dictEncoder) encode(s string) int32 {
	if s == "" {
		return -1
	}
	if id, ok := d.ids[s]; ok {
		return id
	}
	id := int32(len(d.dict))
	d.dict = append(d.dict, s)
	d.ids[s] = id
	return id
}

// Builder assembles a ColumnStore row by row. Empty values are nulls.
type Builder struct {
	names []string
	encs  []*dictEncoder
	ids   [][]int32
	rows  int
}

// NewBuilder starts a table with the given column names.
func NewBuilder(columns ...string) *Builder {
	b := &Builder{
		names: columns,
		encs:  make([]*dictEncoder, len(columns)),
		ids:   make([][]int32, len(columns)),
	}
	for i := range columns {
		b.encs[i] = newDictEncoder()
	}
	return b
}

// Append adds one row. Missing trailing values are nulls, extra values are dropped.
func (b *Builder) Append(values ...string) *Builder {
	for i := range b.names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		b.ids[i] = append(b.ids[i], b.encs[i].encode(v))
	}
	b.rows++
	return b
}

// Build freezes the rows appended so far into a store.
func (b *Builder) Build() *ColumnStore {
	cols := make([]*Column, len(b.names))
	for i, name := range b.names {
		ids := make([]int32, len(b.ids[i]))
		copy(ids, b.ids[i])
		dict := make([]string, len(b.encs[i].dict))
		copy(dict, b.encs[i].dict)
		cols[i] = &Column{Name: name, IDs: ids, Dict: dict}
	}
	return newColumnStore(b.rows, cols)
}
