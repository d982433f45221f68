// Package parser turns raw records into structured events.
package parser

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/jittakal/evexport/pkg/event"
	"github.com/jittakal/evexport/pkg/source"
)

// ValueKey is the field name used when a record holds a JSON value that is not an object.
const ValueKey = "value"

var errInvalidJSON = errors.New("invalid JSON")

// NopAlternate is the default alternate parser. It recognizes nothing.
var NopAlternate source.AlternateParser = source.AlternateParserFunc(func([]byte) source.AlternateResult {
	return source.Unrecognized()
})

// Parser decodes records as JSON and falls back to an alternate parser.
type Parser struct {
	alternate source.AlternateParser
}

// New creates a parser. A nil alternate parser means NopAlternate.
func New(alternate source.AlternateParser) *Parser {
	if alternate == nil {
		alternate = NopAlternate
	}
	return &Parser{alternate: alternate}
}

// Parse interprets one record. Exactly one of the results is meaningful:
// the event when the failure is nil, the failure otherwise.
func (p *Parser) Parse(rec event.RawRecord) (event.Event, *event.ParseFailure) {
	text := Decode(rec.Data)

	fields, err := decodeJSON(text)
	if err == nil {
		return newEvent(rec, text, fields), nil
	}

	if res := p.alternate.Parse(rec.Data); res.Recognized {
		return newEvent(rec, text, res.Fields), nil
	}

	return event.Event{}, &event.ParseFailure{
		Line:   rec.Line,
		Offset: rec.Offset,
		Reason: err.Error(),
		Raw:    text,
	}
}

// Decode converts bytes to text, dropping invalid UTF-8 sequences.
func Decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "")
}

func decodeJSON(text string) (map[string]any, error) {
	data := []byte(text)
	if !json.Valid(data) {
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return nil, errInvalidJSON
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	if obj, ok := v.(map[string]any); ok {
		return obj, nil
	}
	return map[string]any{ValueKey: v}, nil
}

func newEvent(rec event.RawRecord, text string, fields map[string]any) event.Event {
	if fields == nil {
		fields = map[string]any{}
	}
	return event.Event{
		Fields: fields,
		Raw:    text,
		Line:   rec.Line,
		Offset: rec.Offset,
		End:    rec.End,
	}
}

// KeyValueAlternate recognizes records of space separated key=value pairs,
// such as logfmt lines. Values may be double quoted.
func KeyValueAlternate() source.AlternateParser {
	return source.AlternateParserFunc(parseKeyValue)
}

func parseKeyValue(record []byte) source.AlternateResult {
	text := bytes.TrimSpace(record)
	if len(text) == 0 {
		return source.Unrecognized()
	}

	fields := make(map[string]any)
	for len(text) > 0 {
		eq := bytes.IndexByte(text, '=')
		if eq <= 0 {
			return source.Unrecognized()
		}
		key := string(text[:eq])
		if strings.ContainsAny(key, " \t\"") {
			return source.Unrecognized()
		}
		text = text[eq+1:]

		var value string
		if len(text) > 0 && text[0] == '"' {
			end := closingQuote(text)
			if end < 0 {
				return source.Unrecognized()
			}
			value = strings.ReplaceAll(string(text[1:end]), `\"`, `"`)
			text = text[end+1:]
		} else {
			end := bytes.IndexAny(text, " \t")
			if end < 0 {
				end = len(text)
			}
			value = string(text[:end])
			text = text[end:]
		}
		fields[key] = Decode([]byte(value))
		text = bytes.TrimLeft(text, " \t")
	}
	return source.Parsed(fields)
}

func closingQuote(text []byte) int {
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
