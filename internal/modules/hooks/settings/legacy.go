package settings

import (
	"strconv"
	"strings"
)

// An earlier deployment generation configured one global URL plus a
// comma-separated allow list of survey IDs instead of per-survey rows. The
// parsing lives on for operators migrating old option values; nothing in the
// dispatch path calls it.

// ParseSurveyIDs splits a comma-separated allow list into trimmed id strings.
func ParseSurveyIDs(raw string) []string {
	ids := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}

// SurveyAllowed reports whether surveyID appears in the allow list.
func SurveyAllowed(allowed []string, surveyID int) bool {
	id := strconv.Itoa(surveyID)
	for _, a := range allowed {
		if a == id {
			return true
		}
	}
	return false
}
