package engine

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
	sep      = []byte{','}
	errEmpty = errors.New("csv has no header row")
)

// encodeBytes looks b up without allocating and copies it only when it
// becomes a new dictionary entry.
func (d *dictEncoder) encodeBytes(b []byte) int32 {
	if len(b) == 0 {
		return -1
	}
	if id, ok := d.ids[unsafeToString(b)]; ok {
		return id
	}
	return d.encode(string(b))
}

// LoadColumnar reads a comma separated file with a header row.
func LoadColumnar(path string) (*ColumnStore, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return ParseColumnar(content, runtime.NumCPU())
}

// ParseColumnar splits content into one chunk per worker, parses the chunks
// in parallel into worker-local dictionaries and merges them in chunk order,
// so dictionary IDs follow first appearance in the file.
//
// Quoted records fall back to encoding/csv. When a quoted field spans
// lines the body is read sequentially by encoding/csv instead.
func ParseColumnar(content []byte, numWorkers int) (*ColumnStore, error) {
	start := time.Now()
	content = bytes.TrimPrefix(content, utf8BOM)

	headerLine, body, _ := bytes.Cut(content, []byte{'\n'})
	headerLine = bytes.TrimSuffix(headerLine, []byte{'\r'})
	if len(bytes.TrimSpace(headerLine)) == 0 {
		return nil, errEmpty
	}
	header, err := splitRecord(headerLine)
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	header = dedupeHeader(header)
	numCols := len(header)

	if spansLines(body) {
		return parseSequential(header, body, start)
	}

	if numWorkers < 1 {
		numWorkers = 1
	}
	bounds := chunkBounds(body, numWorkers)
	numChunks := len(bounds) - 1

	type chunkResult struct {
		encs   []*dictEncoder
		ids    [][]int32
		rows   int
		ragged int
	}
	results := make([]*chunkResult, numChunks)

	var g errgroup.Group
	for w := 0; w < numChunks; w++ {
		g.Go(func() error {
			res := &chunkResult{
				encs: make([]*dictEncoder, numCols),
				ids:  make([][]int32, numCols),
			}
			for c := range res.encs {
				res.encs[c] = newDictEncoder()
			}
			results[w] = res

			chunk := body[bounds[w]:bounds[w+1]]
			fields := make([][]byte, numCols)
			for len(chunk) > 0 {
				var line []byte
				line, chunk, _ = bytes.Cut(chunk, []byte{'\n'})
				line = bytes.TrimSuffix(line, []byte{'\r'})
				if len(line) == 0 {
					continue
				}

				n, err := splitFields(line, fields)
				if err != nil {
					return err
				}
				if n != numCols {
					res.ragged++
				}
				for c := 0; c < numCols; c++ {
					var id int32 = -1
					if c < n {
						id = res.encs[c].encodeBytes(fields[c])
					}
					res.ids[c] = append(res.ids[c], id)
				}
				res.rows++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	totalRows, ragged := 0, 0
	for _, r := range results {
		totalRows += r.rows
		ragged += r.ragged
	}

	// Merge dictionaries, one goroutine per column.
	cols := make([]*Column, numCols)
	var mg errgroup.Group
	for c := 0; c < numCols; c++ {
		mg.Go(func() error {
			global := newDictEncoder()
			ids := make([]int32, 0, totalRows)
			for _, r := range results {
				remap := make([]int32, len(r.encs[c].dict))
				for lid, s := range r.encs[c].dict {
					remap[lid] = global.encode(s)
				}
				for _, id := range r.ids[c] {
					if id >= 0 {
						id = remap[id]
					}
					ids = append(ids, id)
				}
			}
			cols[c] = &Column{Name: header[c], IDs: ids, Dict: global.dict}
			return nil
		})
	}
	if err := mg.Wait(); err != nil {
		return nil, err
	}

	logParsed(totalRows, numCols, ragged, start)
	return newColumnStore(totalRows, cols), nil
}

// spansLines reports whether some line holds an odd number of quotes, which
// means a quoted field continues on the next line.
func spansLines(body []byte) bool {
	if bytes.IndexByte(body, '"') == -1 {
		return false
	}
	for len(body) > 0 {
		var line []byte
		line, body, _ = bytes.Cut(body, []byte{'\n'})
		if bytes.Count(line, []byte{'"'})%2 == 1 {
			return true
		}
	}
	return false
}

// parseSequential reads body record by record with encoding/csv.
func parseSequential(header []string, body []byte, start time.Time) (*ColumnStore, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	b := NewBuilder(header...)
	ragged := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse dataset: %w", err)
		}
		if len(rec) != len(header) {
			ragged++
		}
		b.Append(rec...)
	}
	store := b.Build()
	logParsed(store.Len(), len(header), ragged, start)
	return store, nil
}

func logParsed(rows, columns, ragged int, start time.Time) {
	level := zerolog.InfoLevel
	if ragged > 0 {
		level = zerolog.WarnLevel
	}
	log.WithLevel(level).
		Int("rows", rows).
		Int("columns", columns).
		Int("ragged_rows", ragged).
		Dur("took", time.Since(start)).
		Msg("dataset parsed")
}

// chunkBounds cuts body into at most n pieces that all end on a newline.
func chunkBounds(body []byte, n int) []int {
	bounds := []int{0}
	for i := 1; i < n; i++ {
		pos := i * len(body) / n
		if pos <= bounds[len(bounds)-1] {
			continue
		}
		idx := bytes.IndexByte(body[pos:], '\n')
		if idx == -1 {
			break
		}
		pos += idx + 1
		if pos >= len(body) {
			break
		}
		if pos > bounds[len(bounds)-1] {
			bounds = append(bounds, pos)
		}
	}
	return append(bounds, len(body))
}

// splitFields fills dst with the fields of line and returns how many the
// line holds. Fields beyond len(dst) are counted but dropped.
func splitFields(line []byte, dst [][]byte) (int, error) {
	if bytes.IndexByte(line, '"') != -1 {
		rec, err := splitRecord(line)
		if err != nil {
			return 0, err
		}
		for i := 0; i < len(rec) && i < len(dst); i++ {
			dst[i] = []byte(rec[i])
		}
		return len(rec), nil
	}
	n := 0
	rest := line
	for {
		field, tail, found := bytes.Cut(rest, sep)
		if n < len(dst) {
			dst[n] = field
		}
		n++
		if !found {
			return n, nil
		}
		rest = tail
	}
}

func splitRecord(line []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rec, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("csv record %q: %w", line, err)
	}
	return rec, nil
}

// dedupeHeader renames repeated column names to name.1, name.2, ...
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if k, dup := seen[name]; dup {
			seen[name] = k + 1
			name = name + "." + strconv.Itoa(k+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
