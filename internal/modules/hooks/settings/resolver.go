package settings

import (
	"context"
	"strings"
)

// Resolver derives the effective notification targets and auth token for a
// survey. Every method reads through the Store on each call; settings saved
// between two completions always take effect on the second one.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver { return &Resolver{store: store} }

// IsEnabled reports whether notifications are switched on for the survey.
// A survey nobody has configured is disabled.
func (r *Resolver) IsEnabled(ctx context.Context, surveyID int) (bool, error) {
	raw, err := r.store.SurveySetting(ctx, SettingEnabled, surveyID)
	if err != nil {
		return false, err
	}
	return Truthy(raw), nil
}

// ResolveURLs returns the target URLs for the survey. The survey's own list
// wins entirely when it has any entries; otherwise the global default URL
// becomes a single-element list; otherwise the result is empty. Survey and
// global values are never merged.
func (r *Resolver) ResolveURLs(ctx context.Context, surveyID int) ([]string, error) {
	raw, err := r.store.SurveySetting(ctx, SettingURLs, surveyID)
	if err != nil {
		return nil, err
	}
	if urls := ParseURLs(raw); len(urls) > 0 {
		return urls, nil
	}

	global, err := r.store.GlobalSetting(ctx, SettingDefaultURL)
	if err != nil {
		return nil, err
	}
	if global = strings.TrimSpace(global); global != "" {
		return []string{global}, nil
	}
	return []string{}, nil
}

// ResolveAuthToken returns the survey token if set, else the global default,
// else nil.
func (r *Resolver) ResolveAuthToken(ctx context.Context, surveyID int) (*string, error) {
	raw, err := r.store.SurveySetting(ctx, SettingAuthToken, surveyID)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(raw); token != "" {
		return &token, nil
	}

	global, err := r.store.GlobalSetting(ctx, SettingDefaultAuthToken)
	if err != nil {
		return nil, err
	}
	if token := strings.TrimSpace(global); token != "" {
		return &token, nil
	}
	return nil, nil
}

// DebugEnabled reports whether the global debug flag is on.
func (r *Resolver) DebugEnabled(ctx context.Context) (bool, error) {
	raw, err := r.store.GlobalSetting(ctx, SettingDebug)
	if err != nil {
		return false, err
	}
	return Truthy(raw), nil
}

// ParseURLs splits a multiline URL setting into individual targets. All three
// line ending styles split, each line is trimmed, blank lines drop out, and
// the remaining order is preserved.
func ParseURLs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	urls := make([]string, 0)
	for _, line := range strings.Split(normalized, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			urls = append(urls, line)
		}
	}
	return urls
}
