package models

import "time"

// SurveyHookModel holds per-survey notification settings. URLs is the raw
// multiline value exactly as the operator saved it; splitting happens when a
// dispatch resolves its targets, never at write time.
type SurveyHookModel struct {
	Base
	SurveyID  int    `json:"survey_id"  gorm:"uniqueIndex;not null"`
	Enabled   bool   `json:"enabled"    gorm:"default:false"`
	URLs      string `json:"urls"       gorm:"type:text"`
	AuthToken string `json:"auth_token"`
}

func (SurveyHookModel) TableName() string { return "survey_hooks" }

// HookEventModel is the audit trail of notification deliveries. Payload keeps
// the exact bytes that went over the wire so a redispatch resends what was
// originally built.
type HookEventModel struct {
	Base
	SurveyID   int       `json:"survey_id"   gorm:"index;not null"`
	ResponseID int       `json:"response_id" gorm:"index"`
	Event      string    `json:"event"       gorm:"not null"`
	URL        string    `json:"url"         gorm:"not null"`
	Payload    string    `json:"payload"     gorm:"type:longtext"`
	Response   string    `json:"response"    gorm:"type:longtext"`
	Success    bool      `json:"success"`
	Status     int       `json:"status"`
	Elapsed    float64   `json:"elapsed"`
	Timestamp  time.Time `json:"timestamp"   gorm:"index"`
}

func (HookEventModel) TableName() string { return "hook_events" }
