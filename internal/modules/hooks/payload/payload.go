package payload

import "time"

// EventAfterSurveyComplete is the only event this service emits today.
const EventAfterSurveyComplete = "afterSurveyComplete"

// legacyEpochSentinel is the placeholder the survey platform writes for
// malformed submit dates.
const legacyEpochSentinel = "1980-01-01 00:00:00"

const submitDateLayout = "2006-01-02 15:04:05"

// Participant is the invitee record attached to a tokenized response.
type Participant struct {
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Email     string `json:"email"`
}

// Payload is the outbound notification document. Field order here is wire
// order, and consumers rely on every key being present: optional values
// marshal as explicit nulls, never as omitted keys.
type Payload struct {
	APIToken       *string        `json:"api_token"`
	Survey         int            `json:"survey"`
	Event          string         `json:"event"`
	RespondID      int            `json:"respondId"`
	Response       map[string]any `json:"response"`
	ResponsePretty map[string]any `json:"response_pretty"`
	SubmitDate     string         `json:"submitDate"`
	Token          *string        `json:"token"`
	Participant    *Participant   `json:"participant"`
}

// Build assembles the notification document. Pure assembly: no validation,
// no I/O, inputs are not mutated.
func Build(
	event string,
	surveyID int,
	responseID int,
	response map[string]any,
	responsePretty map[string]any,
	submitDate string,
	token *string,
	participant *Participant,
	authToken *string,
) *Payload {
	return &Payload{
		APIToken:       authToken,
		Survey:         surveyID,
		Event:          event,
		RespondID:      responseID,
		Response:       response,
		ResponsePretty: responsePretty,
		SubmitDate:     submitDate,
		Token:          token,
		Participant:    participant,
	}
}

// NormalizeSubmitDate replaces an empty submit date, or the platform's legacy
// epoch placeholder, with the current wall clock time. Any other value passes
// through verbatim, including its timezone.
func NormalizeSubmitDate(raw string) string {
	if raw == "" || raw == legacyEpochSentinel {
		return time.Now().Format(submitDateLayout)
	}
	return raw
}
