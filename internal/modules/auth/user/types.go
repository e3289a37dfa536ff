package user

import (
	"errors"
	"time"

	"github.com/surveykit/hooks/internal/models"
)

type UpdateUserDTO struct {
	Name *string `json:"name"`
	Mail *string `json:"mail"`
}

type ChangePasswordDTO struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

type userResponse struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          string     `json:"name"`
	Mail          string     `json:"mail"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
	Created       time.Time  `json:"created"`
}

type publicUserResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

var (
	errWrongPassword     = errors.New("wrong password")
	errPasswordSameAsOld = errors.New("password same as old")
)

func toResponse(u *models.UserModel) *userResponse {
	return &userResponse{
		ID: u.ID, Username: u.Username, Name: u.Name, Mail: u.Mail,
		LastLoginTime: u.LastLoginTime, LastLoginIP: u.LastLoginIP,
		Created: u.CreatedAt,
	}
}

func toPublicResponse(u *models.UserModel) *publicUserResponse {
	return &publicUserResponse{ID: u.ID, Username: u.Username, Name: u.Name}
}
