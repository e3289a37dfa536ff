package payload

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submitDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

func TestNormalizeSubmitDate(t *testing.T) {
	t.Run("verbatim passthrough", func(t *testing.T) {
		for _, raw := range []string{
			"2024-12-04 15:30:00",
			"1999-12-31 23:59:59",
			"not even a date",
		} {
			assert.Equal(t, raw, NormalizeSubmitDate(raw))
		}
	})

	t.Run("empty replaced with current time", func(t *testing.T) {
		got := NormalizeSubmitDate("")
		assert.Regexp(t, submitDatePattern, got)
		assert.NotEqual(t, "1980-01-01 00:00:00", got)
	})

	t.Run("legacy epoch sentinel replaced", func(t *testing.T) {
		got := NormalizeSubmitDate("1980-01-01 00:00:00")
		assert.Regexp(t, submitDatePattern, got)
		assert.NotEqual(t, "1980-01-01 00:00:00", got)
	})
}

func TestBuildFieldMapping(t *testing.T) {
	token := "PARTXYZ"
	auth := "tok"
	part := &Participant{Firstname: "Jane", Lastname: "Roe", Email: "jane@x.io"}
	response := map[string]any{"Q1": "yes"}
	pretty := map[string]any{"Question 1": "Yes"}

	p := Build(EventAfterSurveyComplete, 123456, 42, response, pretty, "2024-12-04 15:30:00", &token, part, &auth)

	assert.Equal(t, &auth, p.APIToken)
	assert.Equal(t, 123456, p.Survey)
	assert.Equal(t, "afterSurveyComplete", p.Event)
	assert.Equal(t, 42, p.RespondID)
	assert.Equal(t, response, p.Response)
	assert.Equal(t, pretty, p.ResponsePretty)
	assert.Equal(t, "2024-12-04 15:30:00", p.SubmitDate)
	assert.Equal(t, &token, p.Token)
	assert.Equal(t, part, p.Participant)
}

func TestPayloadWireFormat(t *testing.T) {
	token := "abc123"
	p := Build(
		EventAfterSurveyComplete,
		123456,
		42,
		map[string]any{"Q1": "yes"},
		map[string]any{"Question 1": "Yes"},
		"2024-12-04 15:30:00",
		&token,
		&Participant{Firstname: "John", Lastname: "Doe", Email: "john@example.com"},
		nil,
	)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))

	wantKeys := []string{
		"api_token", "survey", "event", "respondId", "response",
		"response_pretty", "submitDate", "token", "participant",
	}
	assert.Len(t, decoded, len(wantKeys))
	for _, key := range wantKeys {
		assert.Contains(t, decoded, key)
	}

	// nil auth token marshals as an explicit null, not a missing key
	assert.Equal(t, "null", string(decoded["api_token"]))
	// ids go out as JSON numbers
	assert.Equal(t, "123456", string(decoded["survey"]))
	assert.Equal(t, "42", string(decoded["respondId"]))
	assert.JSONEq(t, `{"firstname":"John","lastname":"Doe","email":"john@example.com"}`, string(decoded["participant"]))
}

func TestPayloadKeyOrder(t *testing.T) {
	raw, err := json.Marshal(Build(EventAfterSurveyComplete, 1, 2, nil, nil, "", nil, nil, nil))
	require.NoError(t, err)

	want := `{"api_token":null,"survey":1,"event":"afterSurveyComplete","respondId":2,` +
		`"response":null,"response_pretty":null,"submitDate":"","token":null,"participant":null}`
	assert.Equal(t, want, string(raw))
}

func TestPayloadRoundTrip(t *testing.T) {
	token := "t"
	auth := "a"
	p := Build(EventAfterSurveyComplete, 9, 10,
		map[string]any{"Q1": "x"}, nil, "2020-02-02 02:02:02", &token,
		&Participant{Firstname: "A", Lastname: "B", Email: "c@d.e"}, &auth)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var back Payload
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, *p, back)
}
