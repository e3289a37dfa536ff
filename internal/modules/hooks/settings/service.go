package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/surveykit/hooks/internal/models"
	"github.com/surveykit/hooks/internal/pkg/pagination"
	"github.com/surveykit/hooks/internal/pkg/response"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads raw setting values. Global settings live in the options table,
// survey-scoped ones in survey_hooks. A missing setting is an empty string,
// not an error, mirroring how lookups behave on the survey platform itself.
type Store interface {
	GlobalSetting(ctx context.Context, name string) (string, error)
	SurveySetting(ctx context.Context, name string, surveyID int) (string, error)
}

// Service owns hook settings persistence and implements Store for the
// resolver. Reads always hit the database so a dispatch sees settings saved a
// moment earlier; nothing here is cached.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// GlobalSetting implements Store.
func (s *Service) GlobalSetting(ctx context.Context, name string) (string, error) {
	var opt models.OptionModel
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&opt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return opt.Value, nil
}

// SurveySetting implements Store.
func (s *Service) SurveySetting(ctx context.Context, name string, surveyID int) (string, error) {
	row, err := s.surveyRow(ctx, surveyID)
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", nil
	}
	switch name {
	case SettingEnabled:
		if row.Enabled {
			return "1", nil
		}
		return "0", nil
	case SettingURLs:
		return row.URLs, nil
	case SettingAuthToken:
		return row.AuthToken, nil
	default:
		return "", fmt.Errorf("settings: unknown survey setting %q", name)
	}
}

// Global returns the service-wide fallback settings.
func (s *Service) Global(ctx context.Context) (*GlobalSettings, error) {
	url, err := s.GlobalSetting(ctx, SettingDefaultURL)
	if err != nil {
		return nil, err
	}
	token, err := s.GlobalSetting(ctx, SettingDefaultAuthToken)
	if err != nil {
		return nil, err
	}
	debug, err := s.GlobalSetting(ctx, SettingDebug)
	if err != nil {
		return nil, err
	}
	return &GlobalSettings{
		DefaultURL:       url,
		DefaultAuthToken: token,
		Debug:            Truthy(debug),
	}, nil
}

// UpdateGlobal persists the provided global settings fields.
func (s *Service) UpdateGlobal(ctx context.Context, dto *UpdateGlobalDTO) (*GlobalSettings, error) {
	updates := map[string]string{}
	if dto.DefaultURL != nil {
		updates[SettingDefaultURL] = strings.TrimSpace(*dto.DefaultURL)
	}
	if dto.DefaultAuthToken != nil {
		updates[SettingDefaultAuthToken] = strings.TrimSpace(*dto.DefaultAuthToken)
	}
	if dto.Debug != nil {
		updates[SettingDebug] = boolValue(*dto.Debug)
	}
	for name, value := range updates {
		if err := s.setOption(ctx, name, value); err != nil {
			return nil, err
		}
	}
	return s.Global(ctx)
}

// Survey returns the stored configuration for one survey, or nil when none
// has been saved yet.
func (s *Service) Survey(ctx context.Context, surveyID int) (*models.SurveyHookModel, error) {
	return s.surveyRow(ctx, surveyID)
}

// UpsertSurvey creates or updates the per-survey configuration.
func (s *Service) UpsertSurvey(ctx context.Context, surveyID int, dto *UpsertSurveyDTO) (*models.SurveyHookModel, error) {
	row, err := s.surveyRow(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		row = &models.SurveyHookModel{SurveyID: surveyID}
	}
	if dto.Enabled != nil {
		row.Enabled = *dto.Enabled
	}
	if dto.URLs != nil {
		row.URLs = *dto.URLs
	}
	if dto.AuthToken != nil {
		row.AuthToken = strings.TrimSpace(*dto.AuthToken)
	}
	if err := s.db.WithContext(ctx).Save(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

// DeleteSurvey removes the per-survey configuration, returning the survey to
// its default disabled state.
func (s *Service) DeleteSurvey(ctx context.Context, surveyID int) error {
	return s.db.WithContext(ctx).
		Where("survey_id = ?", surveyID).
		Delete(&models.SurveyHookModel{}).Error
}

// ListSurveys returns configured surveys, newest first.
func (s *Service) ListSurveys(ctx context.Context, q pagination.Query) ([]models.SurveyHookModel, response.Pagination, error) {
	base := s.db.WithContext(ctx).Model(&models.SurveyHookModel{}).Order("created_at DESC")
	var items []models.SurveyHookModel
	pag, err := pagination.Paginate(base, q, &items)
	if err != nil {
		return nil, response.Pagination{}, err
	}
	return items, pag, nil
}

func (s *Service) surveyRow(ctx context.Context, surveyID int) (*models.SurveyHookModel, error) {
	var row models.SurveyHookModel
	err := s.db.WithContext(ctx).Where("survey_id = ?", surveyID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Service) setOption(ctx context.Context, name, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&models.OptionModel{Name: name, Value: value}).Error
}

// Truthy interprets a stored setting value as a boolean flag.
func Truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func boolValue(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
