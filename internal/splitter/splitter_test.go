package splitter

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/jaswdr/faker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jittakal/evexport/pkg/event"
)

// splitAll feeds data in chunks of the given sizes (cycled) and finishes.
func splitAll(data []byte, sizes ...int) []event.RawRecord {
	s := New(0)
	var out []event.RawRecord
	for pos, i := 0, 0; pos < len(data); i++ {
		n := sizes[i%len(sizes)]
		end := min(pos+n, len(data))
		// Feed must not depend on the caller keeping the chunk intact.
		chunk := append([]byte(nil), data[pos:end]...)
		out = append(out, s.Feed(chunk)...)
		for j := range chunk {
			chunk[j] = 'X'
		}
		pos = end
	}
	return append(out, s.Finish()...)
}

func dataOf(records []event.RawRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.Data)
	}
	return out
}

func TestSplitter_Scenarios(t *testing.T) {
	tests := []struct {
		name  string
		input string
		sizes []int
		want  []string
	}{
		{
			name:  "two records chunk size 5",
			input: "{\"a\":1}\n{\"b\":2}\n",
			sizes: []int{5},
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "no trailing newline",
			input: `{"a":1}`,
			sizes: []int{3},
			want:  []string{`{"a":1}`},
		},
		{
			name:  "delimiter exactly on chunk boundary",
			input: "{\"a\":1}\n{\"b\":2}\n",
			sizes: []int{8},
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "record spanning many chunks",
			input: "{\"long\":\"" + strings.Repeat("x", 100) + "\"}\n{\"b\":2}",
			sizes: []int{7},
			want:  []string{`{"long":"` + strings.Repeat("x", 100) + `"}`, `{"b":2}`},
		},
		{
			name:  "whitespace records dropped",
			input: "\n   \n{\"a\":1}\n\t\r\n{\"b\":2}\n  ",
			sizes: []int{4},
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "crlf line endings trimmed",
			input: "{\"a\":1}\r\n{\"b\":2}\r\n",
			sizes: []int{2},
			want:  []string{`{"a":1}`, `{"b":2}`},
		},
		{
			name:  "empty input",
			input: "",
			sizes: []int{4},
			want:  nil,
		},
		{
			name:  "invalid json is still a record",
			input: "not json\n{\"a\":1}\n",
			sizes: []int{1},
			want:  []string{"not json", `{"a":1}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := dataOf(splitAll([]byte(tt.input), tt.sizes...))
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitter_Positions(t *testing.T) {
	input := []byte("{\"a\":1}\n\n  {\"b\":2}  \n{\"c\":3}")

	records := splitAll(input, 3)
	require.Len(t, records, 3)

	wantLines := []int64{1, 3, 4}
	for i, r := range records {
		assert.Equal(t, wantLines[i], r.Line, "record %d line", i)
		line := input[r.Offset:r.End]
		assert.Equal(t, r.Data, bytes.TrimSpace(line), "record %d bytes", i)
	}
	assert.Equal(t, int64(len(input)), records[2].End)
	assert.Equal(t, int64(0), records[0].Offset)
}

func TestSplitter_StartOffset(t *testing.T) {
	s := New(16)
	records := append(s.Feed([]byte("{\"a\":1}\n{\"b\"")), s.Feed([]byte(":2}\n"))...)

	require.Len(t, records, 2)
	assert.Equal(t, int64(16), records[0].Offset)
	assert.Equal(t, int64(24), records[1].Offset)
	assert.Equal(t, int64(32), records[1].End)
}

func TestSplitter_PendingAndFinish(t *testing.T) {
	s := New(0)

	assert.Empty(t, s.Feed([]byte(`{"a":`)))
	assert.Equal(t, 5, s.Pending())
	assert.Empty(t, s.Feed([]byte(`1}`)))
	assert.Equal(t, 7, s.Pending())

	final := s.Finish()
	require.Len(t, final, 1)
	assert.Equal(t, `{"a":1}`, string(final[0].Data))
	assert.Equal(t, 0, s.Pending())

	assert.Empty(t, s.Finish())
	assert.Empty(t, s.Feed([]byte("{\"b\":2}\n")))
}

// Any chunking must produce exactly the records of a single-chunk read.
func TestSplitter_ChunkingInvariance(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	f := faker.NewWithSeed(rand.NewSource(42))

	var input bytes.Buffer
	for i := 0; i < 300; i++ {
		switch i % 7 {
		case 3:
			input.WriteString("   ")
		case 5:
			input.WriteString(strings.Repeat("z", f.IntBetween(50, 400)))
		default:
			fmt.Fprintf(&input, `{"id":%d,"name":%q,"email":%q,"note":%q}`,
				i, f.Person().Name(), f.Internet().Email(), f.Lorem().Sentence(8))
		}
		input.WriteByte('\n')
	}
	input.WriteString(`{"last":true}`)
	data := input.Bytes()

	want := splitAll(data, len(data))
	require.NotEmpty(t, want)

	for _, size := range []int{1, 2, 3, 7, 64, 511, 4096} {
		t.Run(fmt.Sprintf("fixed_%d", size), func(t *testing.T) {
			assert.Equal(t, want, splitAll(data, size))
		})
	}

	for trial := 0; trial < 20; trial++ {
		sizes := make([]int, 1+rng.Intn(10))
		for i := range sizes {
			sizes[i] = 1 + rng.Intn(200)
		}
		t.Run(fmt.Sprintf("random_%d", trial), func(t *testing.T) {
			assert.Equal(t, want, splitAll(data, sizes...))
		})
	}
}

func BenchmarkSplitter_Feed(b *testing.B) {
	line := []byte(`{"ts":"2025-01-01T00:00:00Z","level":"info","msg":"request served","status":200}` + "\n")
	chunk := bytes.Repeat(line, (1<<20)/len(line))

	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s := New(0)
		_ = s.Feed(chunk)
		_ = s.Finish()
	}
}
