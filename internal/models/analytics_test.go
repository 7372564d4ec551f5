package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FlexString
		wantLen int
	}{
		{"scalar", `"text"`, FlexString{Values: []string{"text"}, Present: true}, 1},
		{"array", `["text","tool_use"]`, FlexString{Values: []string{"text", "tool_use"}, IsArray: true, Present: true}, 2},
		{"empty array", `[]`, FlexString{Values: []string{}, IsArray: true, Present: true}, 0},
		{"null", `null`, FlexString{}, 1},
		{"number", `42`, FlexString{Values: []string{"42"}, Present: true}, 1},
		{"array with null", `["a",null]`, FlexString{Values: []string{"a", ""}, IsArray: true, Present: true}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexString
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLen, got.Len())
		})
	}
}

func TestFlexString_MissingField(t *testing.T) {
	var rec RawInteraction
	require.NoError(t, json.Unmarshal([]byte(`{"request_id":"r1"}`), &rec))

	assert.False(t, rec.ResponseType.Present)
	assert.Equal(t, 1, rec.ResponseType.Len())
	assert.Equal(t, "", rec.ResponseType.At(0))
	assert.Nil(t, rec.ResponseToolInputs.At(0))
}

func TestFlexRaw_Unmarshal(t *testing.T) {
	var rec RawInteraction
	input := `{
		"response_tool_inputs": [{"projectId":"p1"}, null, "plain"]
	}`
	require.NoError(t, json.Unmarshal([]byte(input), &rec))

	inputs := rec.ResponseToolInputs
	assert.True(t, inputs.IsArray)
	assert.Equal(t, 3, inputs.Len())
	assert.JSONEq(t, `{"projectId":"p1"}`, string(inputs.At(0)))
	assert.Nil(t, inputs.At(1))
	assert.Equal(t, `"plain"`, string(inputs.At(2)))
	assert.Nil(t, inputs.At(3))
}

func TestFlex_MarshalRoundTripShape(t *testing.T) {
	out, err := json.Marshal(struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexRaw    `json:"c"`
	}{Scalar("x"), Strings("y", "z"), ScalarRaw(json.RawMessage(`{"k":1}`))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":["y","z"],"c":{"k":1}}`, string(out))
}

func TestMillis_Unmarshal(t *testing.T) {
	tests := []struct {
		input string
		want  Millis
	}{
		{`1756186859568`, 1756186859568},
		{`"1756186859568"`, 1756186859568},
		{`"2025-08-26T05:40:59.568Z"`, 1756186859568},
		{`null`, 0},
		{`1.756186859568e12`, 1756186859568},
	}
	for _, tt := range tests {
		var got Millis
		require.NoError(t, json.Unmarshal([]byte(tt.input), &got), tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	var bad Millis
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestParseAPITime(t *testing.T) {
	got, err := ParseAPITime("Tue, 26 Aug 2025 10:00:00 GMT")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 26, 10, 0, 0, 0, time.UTC), got)

	got, err = ParseAPITime("2025-08-26T10:05:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 26, 10, 5, 0, 0, time.UTC), got)

	_, err = ParseAPITime("not a date")
	assert.Error(t, err)
}

func TestUser_Unmarshal(t *testing.T) {
	var users []User
	input := `[
		"john doe",
		{"id": 1, "name": "Jane Smith", "email": "jane@example.com", "totalSessions": 18},
		{"user_name": "mike chen"},
		{"email": "only@example.com"}
	]`
	require.NoError(t, json.Unmarshal([]byte(input), &users))
	require.Len(t, users, 4)

	assert.Equal(t, "john doe", users[0].Name)
	assert.Equal(t, "Jane Smith", users[1].Name)
	assert.Equal(t, "1", users[1].ID)
	assert.Equal(t, 18, users[1].TotalSessions)
	assert.Equal(t, "mike chen", users[2].Name)
	assert.Equal(t, "only@example.com", users[3].Name)
}

func TestDecodeSessionDetail_Array(t *testing.T) {
	payload, err := DecodeSessionDetail([]byte(`[
		{"request_id":"r1","timestamp":2,"response_type":"text","response_content":"hi"},
		{"request_id":"r2","timestamp":1,"response_type":["text"],"response_content":["yo"]}
	]`))
	require.NoError(t, err)

	assert.Equal(t, DetailArray, payload.Shape)
	assert.Equal(t, 2, payload.Len())
	flat := payload.Flatten()
	require.Len(t, flat, 2)
	assert.Equal(t, "r1", flat[0].RequestID)
}

func TestDecodeSessionDetail_ByRequest(t *testing.T) {
	payload, err := DecodeSessionDetail([]byte(`{
		"r2": [{"request_id":"r2","timestamp":5}],
		"r1": [{"request_id":"r1","timestamp":1},{"request_id":"r1","timestamp":3}],
		"meta": {"ignored": true}
	}`))
	require.NoError(t, err)

	assert.Equal(t, DetailByRequest, payload.Shape)
	assert.Equal(t, 3, payload.Len())

	flat := payload.Flatten()
	require.Len(t, flat, 3)
	assert.Equal(t, "r1", flat[0].RequestID)
	assert.Equal(t, "r1", flat[1].RequestID)
	assert.Equal(t, "r2", flat[2].RequestID)
}

func TestDecodeSessionDetail_Errors(t *testing.T) {
	_, err := DecodeSessionDetail([]byte(`"oops"`))
	assert.Error(t, err)

	_, err = DecodeSessionDetail([]byte(`[{"timestamp":"never"}]`))
	assert.Error(t, err)

	payload, err := DecodeSessionDetail(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, payload.Len())
}

func TestSessionSummary_MarshalJSON(t *testing.T) {
	s := SessionSummary{SessionID: "s1", Duration: 90 * time.Second}
	out, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, float64(90000), decoded["duration_ms"])
	assert.Equal(t, "s1", decoded["session_id"])
}
