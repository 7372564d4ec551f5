package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

var jsonNull = []byte("null")

// FlexString is a response field that the analytics API sends either as a single
// string or as an array of strings (one entry per response part).
type FlexString struct {
	Values []string
	// IsArray is true when the wire value was a JSON array.
	IsArray bool
	// Present is false when the field was absent or null.
	Present bool
}

// Scalar builds a FlexString holding a single string value.
func Scalar(s string) FlexString {
	return FlexString{Values: []string{s}, Present: true}
}

// Strings builds a FlexString holding an array value.
func Strings(values ...string) FlexString {
	return FlexString{Values: values, IsArray: true, Present: true}
}

// Len is the number of response slots this field describes. Scalars and absent
// fields describe exactly one slot.
func (f FlexString) Len() int {
	if !f.IsArray {
		return 1
	}
	return len(f.Values)
}

// At returns the value at index i, or "" when the slot does not exist.
func (f FlexString) At(i int) string {
	if i < 0 || i >= len(f.Values) {
		return ""
	}
	return f.Values[i]
}

// First returns the value of the first slot.
func (f FlexString) First() string {
	return f.At(0)
}

// UnmarshalJSON accepts a string, an array of strings, a number, or null.
// Non-string array members are kept in their JSON text form.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexString{}
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	f.Present = true

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		f.IsArray = true
		f.Values = make([]string, len(raw))
		for i, item := range raw {
			f.Values[i] = rawToString(item)
		}
		return nil
	}

	f.Values = []string{rawToString(data)}
	return nil
}

// MarshalJSON writes the field back in its original shape.
func (f FlexString) MarshalJSON() ([]byte, error) {
	if !f.Present {
		return jsonNull, nil
	}
	if f.IsArray {
		if f.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(f.Values)
	}
	return json.Marshal(f.First())
}

func rawToString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, jsonNull) {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// FlexRaw is the tool-inputs field: any JSON value, or an array of them when the
// record carries several response parts.
type FlexRaw struct {
	Values  []json.RawMessage
	IsArray bool
	Present bool
}

// Raws builds an array-shaped FlexRaw.
func Raws(values ...json.RawMessage) FlexRaw {
	return FlexRaw{Values: values, IsArray: true, Present: true}
}

// ScalarRaw builds a single-valued FlexRaw.
func ScalarRaw(v json.RawMessage) FlexRaw {
	return FlexRaw{Values: []json.RawMessage{v}, Present: true}
}

// Len mirrors FlexString.Len.
func (f FlexRaw) Len() int {
	if !f.IsArray {
		return 1
	}
	return len(f.Values)
}

// At returns the JSON value at index i. Missing slots and JSON null yield nil.
func (f FlexRaw) At(i int) json.RawMessage {
	if i < 0 || i >= len(f.Values) {
		return nil
	}
	v := bytes.TrimSpace(f.Values[i])
	if len(v) == 0 || bytes.Equal(v, jsonNull) {
		return nil
	}
	return v
}

// UnmarshalJSON keeps every value verbatim.
func (f *FlexRaw) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*f = FlexRaw{}
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return nil
	}
	f.Present = true

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		f.IsArray = true
		f.Values = raw
		return nil
	}

	f.Values = []json.RawMessage{append(json.RawMessage(nil), data...)}
	return nil
}

// MarshalJSON writes the field back in its original shape.
func (f FlexRaw) MarshalJSON() ([]byte, error) {
	if !f.Present {
		return jsonNull, nil
	}
	if f.IsArray {
		if f.Values == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(f.Values)
	}
	if v := f.At(0); v != nil {
		return v, nil
	}
	return jsonNull, nil
}

// Millis is an epoch-millisecond timestamp. The API usually sends a number;
// numeric strings and RFC3339 strings are accepted as well.
type Millis int64

// UnmarshalJSON implements json.Unmarshaler.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		*m = 0
		return nil
	}

	if data[0] != '"' {
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		*m = Millis(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = Millis(n)
		return nil
	}
	t, err := ParseAPITime(s)
	if err != nil {
		return err
	}
	*m = Millis(t.UnixMilli())
	return nil
}

// Time converts the timestamp to a time.Time in UTC.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

var apiTimeLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseAPITime parses the date formats the analytics API has been observed to
// send (HTTP dates such as "Tue, 26 Aug 2025 10:00:00 GMT", RFC3339, plain
// dates) as well as epoch milliseconds.
func ParseAPITime(s string) (time.Time, error) {
	for _, layout := range apiTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(n).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %q", s)
}
