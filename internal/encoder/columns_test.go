package encoder

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/evexport/pkg/event"
)

func TestDynamicColumns_FirstSeenOrder(t *testing.T) {
	cols := DynamicColumns()

	added := cols.Observe(sampleEvents())

	want := []string{"ts", "event_type", "src_port", "alert", "dns", "note"}
	assert.Equal(t, want, added)
	assert.Equal(t, want, cols.Columns())
	assert.Equal(t, 6, cols.Len())

	assert.Empty(t, cols.Observe(sampleEvents()), "known keys are not added twice")
}

func TestDynamicColumns_Lock(t *testing.T) {
	cols := DynamicColumns()
	cols.Observe([]event.Event{mustEvent(`{"a":1}`, 1)})
	cols.Lock()

	assert.True(t, cols.Locked())
	assert.Empty(t, cols.Observe([]event.Event{mustEvent(`{"b":2}`, 2)}))
	assert.Equal(t, []string{"a"}, cols.Columns())
	assert.Equal(t, []string{"b"}, cols.Unknown(mustEvent(`{"a":1,"b":2}`, 3)))
}

func TestColumns_WithOverflow(t *testing.T) {
	cols := DynamicColumns()
	cols.Observe([]event.Event{mustEvent(`{"a":1}`, 1)})
	cols.WithOverflow("_extra")

	assert.True(t, cols.Locked())
	assert.Equal(t, "_extra", cols.Overflow())
	assert.Equal(t, []string{"a", "_extra"}, cols.Columns())

	assert.Equal(t, []string{"2", `{"b":"x","c":{"d":true}}`},
		cols.Row(mustEvent(`{"c":{"d":true},"a":2,"b":"x"}`, 2)))
	assert.Equal(t, []string{"3", ""}, cols.Row(mustEvent(`{"a":3}`, 3)))

	cols.WithOverflow("other")
	assert.Equal(t, []string{"a", "_extra"}, cols.Columns(), "overflow is set once")

	explicit, err := ExplicitColumns([]string{"a"})
	require.NoError(t, err)
	assert.Empty(t, explicit.WithOverflow("_extra").Overflow())
	assert.Empty(t, DynamicColumns().Overflow())
}

func TestFixedColumns(t *testing.T) {
	cols := FixedColumns([]string{"event_type", "ts"})

	assert.True(t, cols.Locked())
	assert.False(t, cols.Explicit())

	ev := sampleEvents()[0]
	assert.Equal(t, []string{"flow", "2025-01-01T00:00:00Z"}, cols.Row(ev))
	assert.Equal(t, []string{"src_port"}, cols.Unknown(ev))
}

func TestExplicitColumns(t *testing.T) {
	cols, err := ExplicitColumns([]string{"type=event_type", "alert.signature", "sev = alert.severity", "missing"})
	require.NoError(t, err)

	assert.True(t, cols.Explicit())
	assert.Equal(t, []string{"type", "alert.signature", "sev", "missing"}, cols.Columns())

	events := sampleEvents()
	assert.Equal(t, []string{"flow", "", "", ""}, cols.Row(events[0]))
	assert.Equal(t, []string{"alert", "ET SCAN", "2", ""}, cols.Row(events[1]))
	assert.Empty(t, cols.Unknown(events[0]))
	assert.Empty(t, cols.Observe(events))
}

func TestExplicitColumns_Invalid(t *testing.T) {
	tests := []struct {
		name string
		defs []string
	}{
		{name: "none", defs: nil},
		{name: "empty name", defs: []string{"=a.b"}},
		{name: "empty path", defs: []string{"x="}},
		{name: "duplicate", defs: []string{"a", "a=b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExplicitColumns(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestColumns_Cell(t *testing.T) {
	cols := DynamicColumns()
	events := sampleEvents()
	cols.Observe(events)

	text, ok := cols.Cell(events[1], 3)
	require.True(t, ok)
	assert.JSONEq(t, `{"severity":2,"signature":"ET SCAN"}`, text)

	_, ok = cols.Cell(events[0], 3)
	assert.False(t, ok, "missing key")

	_, ok = cols.Cell(events[2], 4)
	assert.False(t, ok, "null value")

	text, ok = cols.Cell(events[0], 2)
	require.True(t, ok)
	assert.Equal(t, "443", text)
}

func TestKeyOrder(t *testing.T) {
	tests := []struct {
		name string
		ev   event.Event
		want []string
	}{
		{
			name: "document order",
			ev:   mustEvent(`{"z":1,"a":2,"m":3}`, 1),
			want: []string{"z", "a", "m"},
		},
		{
			name: "non json text falls back to sorted keys",
			ev:   event.Event{Raw: "level=info code=7", Fields: map[string]any{"level": "info", "code": "7"}},
			want: []string{"code", "level"},
		},
		{
			name: "wrapped scalar",
			ev:   event.Event{Raw: "42", Fields: map[string]any{"value": json.Number("42")}},
			want: []string{"value"},
		},
		{
			name: "extra fields appended sorted",
			ev:   event.Event{Raw: `{"b":1}`, Fields: map[string]any{"b": 1, "y": 2, "x": 3}},
			want: []string{"b", "x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KeyOrder(tt.ev))
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   string
		wantOK bool
	}{
		{name: "nil", value: nil, want: "", wantOK: false},
		{name: "string", value: "x", want: "x", wantOK: true},
		{name: "number", value: json.Number("1.50"), want: "1.50", wantOK: true},
		{name: "bool", value: true, want: "true", wantOK: true},
		{name: "float", value: 2.5, want: "2.5", wantOK: true},
		{name: "array", value: []any{"a", json.Number("1")}, want: `["a",1]`, wantOK: true},
		{name: "object", value: map[string]any{"k": "v"}, want: `{"k":"v"}`, wantOK: true},
		{name: "int", value: 7, want: "7", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FormatValue(tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
