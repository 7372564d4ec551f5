package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// DetailShape identifies which payload shape the session detail endpoint used.
type DetailShape string

const (
	// DetailArray is a flat JSON array of interaction records.
	DetailArray DetailShape = "array"
	// DetailByRequest is a JSON object keyed by request id whose values are
	// arrays of interaction records.
	DetailByRequest DetailShape = "by_request"
)

// SessionDetailPayload is the decoded session detail response.
type SessionDetailPayload struct {
	Shape DetailShape
	// Records holds every record for the array shape.
	Records []RawInteraction
	// ByRequest holds the records for the keyed shape.
	ByRequest map[string][]RawInteraction
}

// DecodeSessionDetail decodes either payload shape.
func DecodeSessionDetail(data []byte) (SessionDetailPayload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, jsonNull) {
		return SessionDetailPayload{Shape: DetailArray}, nil
	}

	switch data[0] {
	case '[':
		var records []RawInteraction
		if err := json.Unmarshal(data, &records); err != nil {
			return SessionDetailPayload{}, fmt.Errorf("decode interaction array: %w", err)
		}
		return SessionDetailPayload{Shape: DetailArray, Records: records}, nil

	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(data, &keyed); err != nil {
			return SessionDetailPayload{}, fmt.Errorf("decode keyed interactions: %w", err)
		}
		payload := SessionDetailPayload{
			Shape:     DetailByRequest,
			ByRequest: make(map[string][]RawInteraction, len(keyed)),
		}
		for requestID, raw := range keyed {
			raw = bytes.TrimSpace(raw)
			// Values that are not arrays carry no records.
			if len(raw) == 0 || raw[0] != '[' {
				continue
			}
			var records []RawInteraction
			if err := json.Unmarshal(raw, &records); err != nil {
				return SessionDetailPayload{}, fmt.Errorf("decode interactions for request %s: %w", requestID, err)
			}
			payload.ByRequest[requestID] = records
		}
		return payload, nil
	}

	return SessionDetailPayload{}, fmt.Errorf("unexpected session detail payload starting with %q", data[0])
}

// Flatten returns all records. For the keyed shape, request ids are visited in
// sorted order so the result is deterministic; callers order by timestamp.
func (p SessionDetailPayload) Flatten() []RawInteraction {
	if p.Shape != DetailByRequest {
		return p.Records
	}

	keys := make([]string, 0, len(p.ByRequest))
	for k := range p.ByRequest {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []RawInteraction
	for _, k := range keys {
		out = append(out, p.ByRequest[k]...)
	}
	return out
}

// Len is the number of raw records in the payload.
func (p SessionDetailPayload) Len() int {
	if p.Shape != DetailByRequest {
		return len(p.Records)
	}
	n := 0
	for _, records := range p.ByRequest {
		n += len(records)
	}
	return n
}
