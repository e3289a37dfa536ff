package debugreport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/surveykit/hooks/internal/modules/hooks/delivery"
)

// Render produces the diagnostic HTML block shown on the admin surface when
// the debug flag is on: event name, pretty-printed payload, every target with
// its response body or a FAILED marker, and the total elapsed time. All
// interpolated values are escaped; the payload carries respondent-entered
// text.
func Render(eventName string, payloadJSON []byte, outcomes []delivery.Outcome, elapsedSeconds float64) string {
	var b strings.Builder

	b.WriteString(`<div class="hook-debug">`)
	b.WriteString("<h4>")
	b.WriteString(html.EscapeString(eventName))
	b.WriteString("</h4>")

	b.WriteString("<pre>")
	b.WriteString(html.EscapeString(prettyJSON(payloadJSON)))
	b.WriteString("</pre>")

	b.WriteString("<ul>")
	for _, o := range outcomes {
		b.WriteString("<li><strong>")
		b.WriteString(html.EscapeString(o.URL))
		b.WriteString("</strong>")
		if o.Succeeded && o.ResponseBody != nil {
			b.WriteString("<pre>")
			b.WriteString(html.EscapeString(*o.ResponseBody))
			b.WriteString("</pre>")
		} else {
			b.WriteString(`<span class="failed">FAILED</span>`)
		}
		b.WriteString("</li>")
	}
	b.WriteString("</ul>")

	fmt.Fprintf(&b, "<p>Elapsed: %.4f seconds</p>", elapsedSeconds)
	b.WriteString("</div>")

	return b.String()
}

func prettyJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
