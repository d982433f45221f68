package parser

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
)

func record(data string) event.RawRecord {
	return event.RawRecord{Data: []byte(data), Line: 4, Offset: 100, End: 100 + int64(len(data)) + 1}
}

func TestParser_Parse(t *testing.T) {
	p := New(nil)

	tests := []struct {
		name       string
		input      string
		wantFields map[string]any
		wantFail   bool
	}{
		{
			name:       "object",
			input:      `{"a":1}`,
			wantFields: map[string]any{"a": json.Number("1")},
		},
		{
			name:  "nested object",
			input: `{"flow":{"bytes":1024,"proto":"tcp"},"tags":["x","y"]}`,
			wantFields: map[string]any{
				"flow": map[string]any{"bytes": json.Number("1024"), "proto": "tcp"},
				"tags": []any{"x", "y"},
			},
		},
		{
			name:       "large integer keeps precision",
			input:      `{"id":9007199254740993}`,
			wantFields: map[string]any{"id": json.Number("9007199254740993")},
		},
		{
			name:       "scalar wrapped",
			input:      `42`,
			wantFields: map[string]any{ValueKey: json.Number("42")},
		},
		{
			name:       "array wrapped",
			input:      `[1,2]`,
			wantFields: map[string]any{ValueKey: []any{json.Number("1"), json.Number("2")}},
		},
		{
			name:       "empty object",
			input:      `{}`,
			wantFields: map[string]any{},
		},
		{name: "invalid json", input: `{"a":`, wantFail: true},
		{name: "plain text", input: `not json`, wantFail: true},
		{name: "trailing data", input: `{"a":1} {"b":2}`, wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, failure := p.Parse(record(tt.input))
			if tt.wantFail {
				require.NotNil(t, failure)
				assert.Equal(t, int64(4), failure.Line)
				assert.Equal(t, int64(100), failure.Offset)
				assert.Equal(t, tt.input, failure.Raw)
				assert.NotEmpty(t, failure.Reason)
				return
			}
			require.Nil(t, failure)
			assert.Equal(t, tt.wantFields, ev.Fields)
			assert.Equal(t, tt.input, ev.Raw)
			assert.Equal(t, int64(4), ev.Line)
			assert.Equal(t, int64(100), ev.Offset)
			assert.Equal(t, int64(100+len(tt.input)+1), ev.End)
		})
	}
}

func TestParser_LossyDecode(t *testing.T) {
	p := New(nil)

	input := append([]byte(`{"msg":"ab`), 0xff, 0xfe)
	input = append(input, []byte(`c"}`)...)

	ev, failure := p.Parse(event.RawRecord{Data: input, Line: 1})
	require.Nil(t, failure)
	assert.Equal(t, "abc", ev.Fields["msg"])
}

func TestDecode(t *testing.T) {
	assert.Equal(t, "héllo", Decode([]byte("héllo")))
	assert.Equal(t, "hllo", Decode([]byte{'h', 0xc3, 'l', 'l', 'o'}))
	assert.Equal(t, "", Decode(nil))
}

func TestParser_AlternateFallback(t *testing.T) {
	var seen []string
	alt := source.AlternateParserFunc(func(record []byte) source.AlternateResult {
		seen = append(seen, string(record))
		if string(record) == "BIN:7" {
			return source.Parsed(map[string]any{"kind": "bin", "n": 7})
		}
		return source.Unrecognized()
	})
	p := New(alt)

	ev, failure := p.Parse(record("BIN:7"))
	require.Nil(t, failure)
	assert.Equal(t, map[string]any{"kind": "bin", "n": 7}, ev.Fields)

	_, failure = p.Parse(record("garbage"))
	require.NotNil(t, failure)

	_, failure = p.Parse(record(`{"ok":true}`))
	require.Nil(t, failure)

	assert.Equal(t, []string{"BIN:7", "garbage"}, seen, "alternate parser only sees non-JSON records")
}

func TestParser_AlternateNilFields(t *testing.T) {
	p := New(source.AlternateParserFunc(func([]byte) source.AlternateResult {
		return source.Parsed(nil)
	}))

	ev, failure := p.Parse(record("anything"))
	require.Nil(t, failure)
	assert.NotNil(t, ev.Fields)
	assert.Empty(t, ev.Fields)
}

func TestNopAlternate(t *testing.T) {
	assert.False(t, NopAlternate.Parse([]byte("x=1")).Recognized)
}

func TestKeyValueAlternate(t *testing.T) {
	alt := KeyValueAlternate()

	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{
			name:  "plain pairs",
			input: "level=info status=200",
			want:  map[string]any{"level": "info", "status": "200"},
		},
		{
			name:  "quoted value",
			input: `msg="request served" path=/api`,
			want:  map[string]any{"msg": "request served", "path": "/api"},
		},
		{
			name:  "escaped quote",
			input: `msg="say \"hi\""`,
			want:  map[string]any{"msg": `say "hi"`},
		},
		{
			name:  "empty value",
			input: "a= b=2",
			want:  map[string]any{"a": "", "b": "2"},
		},
		{name: "no pairs", input: "hello world"},
		{name: "unterminated quote", input: `msg="oops`},
		{name: "empty", input: "   "},
		{name: "leading equals", input: "=x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := alt.Parse([]byte(tt.input))
			if tt.want == nil {
				assert.False(t, res.Recognized)
				return
			}
			require.True(t, res.Recognized)
			assert.Equal(t, tt.want, res.Fields)
		})
	}
}

func BenchmarkParser_Parse(b *testing.B) {
	p := New(nil)
	rec := record(`{"timestamp":"2025-01-01T00:00:00.000000+0000","event_type":"flow","src_ip":"10.0.0.1","dest_port":443,"proto":"TCP"}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = p.Parse(rec)
	}
}
