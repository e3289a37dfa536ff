package settings

// Setting names as stored in the options table (global scope) and mapped onto
// survey_hooks columns (survey scope).
const (
	SettingDefaultURL       = "hook_default_url"
	SettingDefaultAuthToken = "hook_default_auth_token"
	SettingDebug            = "hook_debug"

	SettingEnabled   = "hook_enabled"
	SettingURLs      = "hook_urls"
	SettingAuthToken = "hook_auth_token"
)

// GlobalSettings is the service-wide fallback configuration.
type GlobalSettings struct {
	DefaultURL       string `json:"default_url"`
	DefaultAuthToken string `json:"default_auth_token"`
	Debug            bool   `json:"debug"`
}

// UpdateGlobalDTO is the request body for saving global settings. Pointer
// fields distinguish "leave unchanged" from "set to empty".
type UpdateGlobalDTO struct {
	DefaultURL       *string `json:"default_url"`
	DefaultAuthToken *string `json:"default_auth_token"`
	Debug            *bool   `json:"debug"`
}

// UpsertSurveyDTO is the request body for saving per-survey settings.
type UpsertSurveyDTO struct {
	Enabled   *bool   `json:"enabled"`
	URLs      *string `json:"urls"`
	AuthToken *string `json:"auth_token"`
}
