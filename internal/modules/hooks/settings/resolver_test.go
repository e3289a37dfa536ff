package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	global map[string]string
	survey map[int]map[string]string
	err    error
}

func (f *fakeStore) GlobalSetting(_ context.Context, name string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.global[name], nil
}

func (f *fakeStore) SurveySetting(_ context.Context, name string, surveyID int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.survey[surveyID][name], nil
}

func TestParseURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty input", in: "", want: []string{}},
		{name: "single url", in: "https://a", want: []string{"https://a"}},
		{
			name: "blank lines dropped",
			in:   "https://a\n\n\nhttps://b\n",
			want: []string{"https://a", "https://b"},
		},
		{
			name: "whitespace trimmed with crlf",
			in:   "  https://a  \r\n  https://b  ",
			want: []string{"https://a", "https://b"},
		},
		{
			name: "bare carriage returns",
			in:   "https://a\rhttps://b\rhttps://c",
			want: []string{"https://a", "https://b", "https://c"},
		},
		{
			name: "mixed newline styles preserve order",
			in:   "https://1\r\nhttps://2\nhttps://3\rhttps://4",
			want: []string{"https://1", "https://2", "https://3", "https://4"},
		},
		{name: "whitespace only", in: "   \n \r\n\t\n", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseURLs(tt.in))
		})
	}
}

func TestResolveURLs(t *testing.T) {
	tests := []struct {
		name       string
		surveyURLs string
		globalURL  string
		want       []string
	}{
		{
			name:       "survey list wins entirely",
			surveyURLs: "https://u1\nhttps://u2",
			globalURL:  "https://gd",
			want:       []string{"https://u1", "https://u2"},
		},
		{
			name:      "global fallback when survey empty",
			globalURL: "https://gd",
			want:      []string{"https://gd"},
		},
		{
			name:       "blank survey lines fall through to global",
			surveyURLs: "\n  \r\n",
			globalURL:  "https://gd",
			want:       []string{"https://gd"},
		},
		{name: "both empty", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				global: map[string]string{SettingDefaultURL: tt.globalURL},
				survey: map[int]map[string]string{100: {SettingURLs: tt.surveyURLs}},
			}
			urls, err := NewResolver(store).ResolveURLs(context.Background(), 100)
			require.NoError(t, err)
			assert.Equal(t, tt.want, urls)
		})
	}
}

func TestResolveAuthToken(t *testing.T) {
	tests := []struct {
		name        string
		surveyToken string
		globalToken string
		want        *string
	}{
		{name: "survey token wins", surveyToken: "st", globalToken: "gt", want: strPtr("st")},
		{name: "global fallback", globalToken: "gt", want: strPtr("gt")},
		{name: "whitespace survey token falls back", surveyToken: "   ", globalToken: "gt", want: strPtr("gt")},
		{name: "absent", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				global: map[string]string{SettingDefaultAuthToken: tt.globalToken},
				survey: map[int]map[string]string{7: {SettingAuthToken: tt.surveyToken}},
			}
			token, err := NewResolver(store).ResolveAuthToken(context.Background(), 7)
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestIsEnabled(t *testing.T) {
	store := &fakeStore{
		survey: map[int]map[string]string{
			1: {SettingEnabled: "1"},
			2: {SettingEnabled: "0"},
			3: {SettingEnabled: "true"},
		},
	}
	r := NewResolver(store)

	enabled, err := r.IsEnabled(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, enabled)

	enabled, err = r.IsEnabled(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, enabled)

	enabled, err = r.IsEnabled(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, enabled)

	// unconfigured surveys stay opted out
	enabled, err = r.IsEnabled(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestDebugEnabled(t *testing.T) {
	store := &fakeStore{global: map[string]string{SettingDebug: "on"}}
	debug, err := NewResolver(store).DebugEnabled(context.Background())
	require.NoError(t, err)
	assert.True(t, debug)

	debug, err = NewResolver(&fakeStore{}).DebugEnabled(context.Background())
	require.NoError(t, err)
	assert.False(t, debug)
}

func TestResolverPropagatesStoreErrors(t *testing.T) {
	store := &fakeStore{err: errors.New("store unavailable")}
	r := NewResolver(store)

	_, err := r.IsEnabled(context.Background(), 1)
	assert.Error(t, err)
	_, err = r.ResolveURLs(context.Background(), 1)
	assert.Error(t, err)
	_, err = r.ResolveAuthToken(context.Background(), 1)
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", " yes ", "on"} {
		assert.True(t, Truthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "no", "niet"} {
		assert.False(t, Truthy(v), v)
	}
}

func strPtr(s string) *string { return &s }
