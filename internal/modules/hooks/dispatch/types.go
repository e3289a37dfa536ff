package dispatch

import "github.com/surveykit/hooks/internal/modules/hooks/delivery"

// NotifyDTO is the completion notification the survey platform posts to the
// intake endpoint. Pointers keep zero IDs distinguishable from missing ones.
// Event is optional; when present it must name an event this service reacts
// to, anything else is acknowledged without a dispatch.
type NotifyDTO struct {
	SurveyID   *int   `json:"surveyId" binding:"required"`
	ResponseID *int   `json:"responseId" binding:"required"`
	Event      string `json:"event"`
}

// Result describes what a single dispatch did. It is returned to the caller
// and broadcast to connected admin clients; it never carries an error that
// could bubble into the platform's completion flow.
type Result struct {
	Dispatched     bool               `json:"dispatched"`
	Reason         string             `json:"reason,omitempty"`
	Outcomes       []delivery.Outcome `json:"outcomes,omitempty"`
	DebugHTML      string             `json:"debug_html,omitempty"`
	ElapsedSeconds float64            `json:"elapsed_seconds"`
}

// Skip reasons reported when a dispatch ends before any delivery.
const (
	ReasonIgnoredEvent     = "event not handled"
	ReasonDisabled         = "notifications disabled for this survey"
	ReasonNoURLs           = "no notification urls configured"
	ReasonResponseFetch    = "response lookup failed"
	ReasonPayloadTooBroken = "payload serialization failed"
)
