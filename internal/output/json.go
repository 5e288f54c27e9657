package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chriskillpack/imgcap"
)

// JSON prints results as a JSON array, one element per line. Results that
// complete ahead of an earlier path are held back until they can be written
// in submission order, so the brackets always land on the first and last
// elements regardless of how many workers ran.
type JSON struct {
	w io.Writer

	total   int
	next    int // index of the next result to write
	pending map[int]imgcap.Result
}

var _ imgcap.Sink = &JSON{}

func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

func (j *JSON) Begin(total int) error {
	j.total = total
	j.next = 0
	j.pending = make(map[int]imgcap.Result)
	return nil
}

func (j *JSON) Emit(res imgcap.Result) error {
	if res.Index < j.next || res.Index >= j.total {
		return fmt.Errorf("result index %d out of range [%d,%d)", res.Index, j.next, j.total)
	}
	if _, dup := j.pending[res.Index]; dup {
		return fmt.Errorf("duplicate result for index %d", res.Index)
	}
	j.pending[res.Index] = res

	for {
		r, ok := j.pending[j.next]
		if !ok {
			return nil
		}
		delete(j.pending, j.next)

		if err := j.writeElement(r); err != nil {
			return err
		}
		j.next++
	}
}

func (j *JSON) End() error {
	if j.total == 0 {
		_, err := io.WriteString(j.w, "[]\n")
		return err
	}
	if j.next < j.total {
		return fmt.Errorf("json output incomplete, %d of %d results written", j.next, j.total)
	}
	return nil
}

func (j *JSON) writeElement(res imgcap.Result) error {
	prefix, suffix := " ", ","
	if res.Index == 0 {
		prefix = "["
	}
	if res.Index == j.total-1 {
		suffix = "]"
	}

	_, err := io.WriteString(j.w, prefix+Record(res.Path, res.Caption)+suffix+"\n")
	return err
}

// Record formats a single result object as {"path": ..., "caption": ...}.
func Record(path, caption string) string {
	return `{"path": ` + quote(path) + `, "caption": ` + quote(caption) + `}`
}

func quote(s string) string {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.Encode(s) // encoding a string can't fail

	return strings.TrimSuffix(buf.String(), "\n")
}
