package encoder

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/jittakal/evexport/pkg/event"
)

// sampleEvents returns events with heterogeneous keys, as produced by the parser.
func sampleEvents() []event.Event {
	raws := []string{
		`{"ts":"2025-01-01T00:00:00Z","event_type":"flow","src_port":443}`,
		`{"ts":"2025-01-01T00:00:01Z","event_type":"alert","alert":{"severity":2,"signature":"ET SCAN"}}`,
		`{"event_type":"dns","ts":"2025-01-01T00:00:02Z","dns":null,"note":"a,b \"quoted\""}`,
	}
	out := make([]event.Event, len(raws))
	for i, raw := range raws {
		out[i] = mustEvent(raw, int64(i+1))
	}
	return out
}

func mustEvent(raw string, line int64) event.Event {
	fields, err := decodeFields(raw)
	if err != nil {
		panic(fmt.Sprintf("bad test event %q: %v", raw, err))
	}
	return event.Event{Fields: fields, Raw: raw, Line: line}
}

func decodeFields(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}
