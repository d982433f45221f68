package encoder

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/jittakal/evexport/pkg/encoder"
	"github.com/jittakal/evexport/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Table = (*Columns)(nil)

// Columns is the column set of a table.
//
// In dynamic mode the set is the union of top-level keys in first-seen order.
// In explicit mode each column is a gjson path evaluated against the event text.
// A locked set never grows. A locked dynamic set may carry a trailing
// overflow column holding the keys that have no column of their own.
type Columns struct {
	names    []string
	paths    []string
	index    map[string]int
	explicit bool
	locked   bool
	overflow int
}

// DynamicColumns returns an empty column set that grows as events are observed.
func DynamicColumns() *Columns {
	return &Columns{index: make(map[string]int), overflow: -1}
}

// FixedColumns returns a locked set of top-level key columns, e.g. read from
// the header of an existing file.
func FixedColumns(names []string) *Columns {
	c := DynamicColumns()
	for _, n := range names {
		c.add(n, n)
	}
	c.locked = true
	return c
}

// ExplicitColumns parses column definitions of the form "name=path" or "path".
// Paths use gjson syntax, e.g. "flow.bytes_toserver" or "alert.signature".
func ExplicitColumns(defs []string) (*Columns, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("no columns defined")
	}
	c := DynamicColumns()
	for _, def := range defs {
		name, path, found := strings.Cut(def, "=")
		if !found {
			path = name
		}
		name, path = strings.TrimSpace(name), strings.TrimSpace(path)
		if name == "" || path == "" {
			return nil, fmt.Errorf("invalid column definition: %q", def)
		}
		if _, dup := c.index[name]; dup {
			return nil, fmt.Errorf("duplicate column: %s", name)
		}
		c.add(name, path)
	}
	c.explicit = true
	c.locked = true
	return c, nil
}

func (c *Columns) add(name, path string) {
	c.index[name] = len(c.names)
	c.names = append(c.names, name)
	c.paths = append(c.paths, path)
}

// Observe extends a dynamic set with keys not seen before and returns them.
// Locked sets are left unchanged.
func (c *Columns) Observe(events []event.Event) []string {
	if c.locked {
		return nil
	}
	var added []string
	for _, ev := range events {
		for _, key := range KeyOrder(ev) {
			if _, ok := c.index[key]; !ok {
				c.add(key, key)
				added = append(added, key)
			}
		}
	}
	return added
}

// WithOverflow locks the set and appends an overflow column called name.
// Its cell is a compact JSON object of the event's unknown keys. Explicit
// sets and sets that already have an overflow column are left unchanged.
func (c *Columns) WithOverflow(name string) *Columns {
	if c.explicit || c.overflow >= 0 || name == "" {
		return c
	}
	c.locked = true
	c.overflow = len(c.names)
	c.names = append(c.names, name)
	c.paths = append(c.paths, "")
	return c
}

// Overflow returns the overflow column name, or "" when there is none.
func (c *Columns) Overflow() string {
	if c.overflow < 0 {
		return ""
	}
	return c.names[c.overflow]
}

// Unknown returns the top-level keys of ev that have no column.
// It is always empty for explicit sets.
func (c *Columns) Unknown(ev event.Event) []string {
	if c.explicit {
		return nil
	}
	var out []string
	for key := range ev.Fields {
		if _, ok := c.index[key]; !ok {
			out = append(out, key)
		}
	}
	slices.Sort(out)
	return out
}

// Lock stops the set from growing.
func (c *Columns) Lock() { c.locked = true }

// Locked reports whether the set can still grow.
func (c *Columns) Locked() bool { return c.locked }

// Explicit reports whether columns are path expressions.
func (c *Columns) Explicit() bool { return c.explicit }

// Len returns the number of columns.
func (c *Columns) Len() int { return len(c.names) }

// Columns returns the column names in output order.
func (c *Columns) Columns() []string { return c.names }

// Cell returns the text of column i for ev.
func (c *Columns) Cell(ev event.Event, i int) (string, bool) {
	if i == c.overflow {
		return c.overflowCell(ev)
	}
	path := c.paths[i]
	if v, ok := ev.Fields[path]; ok {
		return FormatValue(v)
	}
	if !c.explicit || ev.Raw == "" {
		return "", false
	}
	return formatResult(gjson.Get(ev.Raw, path))
}

func (c *Columns) overflowCell(ev event.Event) (string, bool) {
	unknown := c.Unknown(ev)
	if len(unknown) == 0 {
		return "", false
	}
	extra := make(map[string]any, len(unknown))
	for _, key := range unknown {
		extra[key] = ev.Fields[key]
	}
	return FormatValue(extra)
}

// Row returns all cells of ev. Missing values are empty strings.
func (c *Columns) Row(ev event.Event) []string {
	row := make([]string, len(c.names))
	for i := range c.names {
		row[i], _ = c.Cell(ev, i)
	}
	return row
}

// KeyOrder returns the top-level keys of ev in document order when its text is
// a JSON object, followed by any remaining keys in sorted order.
func KeyOrder(ev event.Event) []string {
	keys := make([]string, 0, len(ev.Fields))
	seen := make(map[string]struct{}, len(ev.Fields))

	if strings.HasPrefix(ev.Raw, "{") {
		gjson.Parse(ev.Raw).ForEach(func(key, _ gjson.Result) bool {
			k := key.String()
			if _, ok := ev.Fields[k]; !ok {
				return true
			}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
			return true
		})
	}

	if len(keys) == len(ev.Fields) {
		return keys
	}
	var rest []string
	for k := range ev.Fields {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}

// FormatValue renders a decoded JSON value as cell text.
// Objects and arrays are rendered as compact JSON.
func FormatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case map[string]any, []any:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x), true
		}
		return string(b), true
	default:
		return fmt.Sprint(x), true
	}
}

func formatResult(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.Null:
		return "", false
	case gjson.String:
		return r.Str, true
	case gjson.True:
		return "true", true
	case gjson.False:
		return "false", true
	default:
		return r.Raw, true
	}
}
