package converter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrEmptyInput  = errors.New("please enter JSON")
	ErrInvalidJSON = errors.New("invalid JSON")
	ErrNotArray    = errors.New("JSON must be an array of objects")
)

// FormatJSON re-indents text with two spaces, keeping key order.
func FormatJSON(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(text), "", "  "); err != nil {
		return "", ErrInvalidJSON
	}
	return buf.String(), nil
}

// CompactJSON strips insignificant whitespace.
func CompactJSON(raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", ErrInvalidJSON
	}
	return buf.String(), nil
}

// ValidateJSONArray checks text is a JSON array and returns it compacted.
func ValidateJSONArray(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}
	if !json.Valid([]byte(text)) {
		return nil, ErrInvalidJSON
	}
	if text[0] != '[' {
		return nil, ErrNotArray
	}
	compact, err := CompactJSON([]byte(text))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(compact), nil
}

// orderedRecord is one JSON object with its keys in document order.
type orderedRecord struct {
	keys   []string
	values map[string]any
}

func decodeOrdered(raw json.RawMessage) (orderedRecord, error) {
	rec := orderedRecord{values: map[string]any{}}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return rec, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return rec, errors.New("record is not a JSON object")
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return rec, err
		}
		key := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return rec, err
		}
		if _, seen := rec.values[key]; !seen {
			rec.keys = append(rec.keys, key)
		}
		rec.values[key] = v
	}
	return rec, nil
}
