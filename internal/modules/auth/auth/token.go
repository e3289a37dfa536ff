package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/middleware"
	jwtpkg "github.com/surveykit/hooks/internal/pkg/jwt"
)

const (
	authCookieName   = "svk-token"
	authCookieMaxAge = 14 * 24 * 60 * 60
)

func extractAuthTokenFromRequest(c *gin.Context) string {
	if token := middleware.NormalizeToken(c.GetHeader("Authorization")); token != "" {
		return token
	}
	if token := middleware.NormalizeToken(c.Query("token")); token != "" {
		return token
	}
	for _, cookieKey := range []string{"svk-token", "svk_token", "token"} {
		if raw, err := c.Cookie(cookieKey); err == nil {
			if token := middleware.NormalizeToken(raw); token != "" {
				return token
			}
		}
	}
	return ""
}

func resolveSessionIDFromToken(rawToken string) string {
	token := middleware.NormalizeToken(rawToken)
	if token == "" {
		return ""
	}
	if claims, err := jwtpkg.Parse(token); err == nil {
		return strings.TrimSpace(claims.SessionID)
	}
	return strings.TrimSpace(token)
}

func setAuthCookie(c *gin.Context, token string) {
	secure := c.Request.TLS != nil
	c.SetCookie(authCookieName, token, authCookieMaxAge, "/", "", secure, true)
}

func clearAuthCookie(c *gin.Context) {
	secure := c.Request.TLS != nil
	c.SetCookie(authCookieName, "", -1, "/", "", secure, true)
}
