package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSurveyIDs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: []string{}},
		{name: "single id", in: "123", want: []string{"123"}},
		{name: "comma separated", in: "1,2,3", want: []string{"1", "2", "3"}},
		{name: "spaces around ids", in: " 1 , 2 ,3 ", want: []string{"1", "2", "3"}},
		{name: "empty segments dropped", in: "1,,2,", want: []string{"1", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSurveyIDs(tt.in))
		})
	}
}

func TestSurveyAllowed(t *testing.T) {
	allowed := ParseSurveyIDs("100, 200,300")

	assert.True(t, SurveyAllowed(allowed, 100))
	assert.True(t, SurveyAllowed(allowed, 300))
	assert.False(t, SurveyAllowed(allowed, 400))
	assert.False(t, SurveyAllowed(nil, 100))
}
