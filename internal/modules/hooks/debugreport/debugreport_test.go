package debugreport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/surveykit/hooks/internal/modules/hooks/delivery"
)

func strPtr(s string) *string { return &s }

func TestRenderContainsAllSections(t *testing.T) {
	outcomes := []delivery.Outcome{
		{URL: "https://hook.test/a", Succeeded: true, ResponseBody: strPtr(`{"received":true}`)},
		{URL: "https://hook.test/b", Succeeded: false},
	}

	out := Render("afterSurveyComplete", []byte(`{"survey":100,"respondId":42}`), outcomes, 1.23456789)

	assert.Contains(t, out, "<h4>afterSurveyComplete</h4>")
	assert.Contains(t, out, "https://hook.test/a")
	assert.Contains(t, out, "https://hook.test/b")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "Elapsed: 1.2346 seconds")
	// payload is pretty printed
	assert.Contains(t, out, "&#34;survey&#34;: 100")
}

func TestRenderEscapesRespondentText(t *testing.T) {
	payload := []byte(`{"response":{"Q1":"<script>alert(1)</script>"}}`)
	outcomes := []delivery.Outcome{
		{URL: "https://hook.test/<img>", Succeeded: true, ResponseBody: strPtr("<b>bold</b>")},
	}

	out := Render("<evil>", payload, outcomes, 0.5)

	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<img>")
	assert.NotContains(t, out, "<b>bold</b>")
	assert.NotContains(t, out, "<evil>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&lt;evil&gt;")
}

func TestRenderFailureMarkerPerURL(t *testing.T) {
	outcomes := []delivery.Outcome{
		{URL: "https://a", Succeeded: false},
		{URL: "https://b", Succeeded: false},
	}
	out := Render("afterSurveyComplete", []byte(`{}`), outcomes, 0)
	assert.Equal(t, 2, strings.Count(out, "FAILED"))
}

func TestRenderElapsedRounding(t *testing.T) {
	out := Render("afterSurveyComplete", []byte(`{}`), nil, 2.0)
	assert.Contains(t, out, "Elapsed: 2.0000 seconds")

	out = Render("afterSurveyComplete", []byte(`{}`), nil, 0.000049)
	assert.Contains(t, out, "Elapsed: 0.0000 seconds")
}

func TestRenderMalformedPayloadPassedThrough(t *testing.T) {
	out := Render("afterSurveyComplete", []byte("not json"), nil, 0)
	assert.Contains(t, out, "not json")
}
