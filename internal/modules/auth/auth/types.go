package auth

import (
	"errors"
	"time"
)

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RegisterDTO struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"`
}

type CreateTokenDTO struct {
	Name      string     `json:"name"       binding:"required"`
	Expired   *time.Time `json:"expired"`
	ExpiredAt *time.Time `json:"expired_at"`
}

type loginResponse struct {
	Token string    `json:"token"`
	User  *authUser `json:"user,omitempty"`
}

type authUser struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Name          string     `json:"name"`
	Mail          string     `json:"mail"`
	LastLoginTime *time.Time `json:"last_login_time"`
	LastLoginIP   string     `json:"last_login_ip"`
}

type tokenResponse struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Token   string     `json:"token"`
	Expired *time.Time `json:"expired"`
	Created time.Time  `json:"created"`
}

var (
	errUserNotFound   = errors.New("user not found")
	errWrongPassword  = errors.New("wrong password")
	errOwnerExists    = errors.New("owner already registered")
	errTokenNotFound  = errors.New("token not found")
	errTokenNameTaken = errors.New("token name already in use")
)

func firstNonNilTime(values ...*time.Time) *time.Time {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
