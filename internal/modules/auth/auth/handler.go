package auth

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/middleware"
	"github.com/surveykit/hooks/internal/models"
	"github.com/surveykit/hooks/internal/pkg/response"
	sessionpkg "github.com/surveykit/hooks/internal/pkg/session"
	"gorm.io/gorm"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/auth")

	g.POST("/login", h.login)
	g.POST("/register", h.register)
	g.GET("/session", middleware.OptionalAuth(h.svc.db), h.session)

	a := g.Group("", authMW)
	a.POST("/logout", h.logout)
	a.POST("/refresh", h.refresh)
	a.GET("/sessions", h.listSessions)
	a.DELETE("/sessions", h.deleteOtherSessions)
	a.DELETE("/sessions/:sessionId", h.deleteSession)
	a.GET("/tokens", h.listTokens)
	a.GET("/tokens/:tokenId", h.getToken)
	a.POST("/tokens", h.createToken)
	a.DELETE("/tokens/:tokenId", h.deleteToken)
}

func (h *Handler) login(c *gin.Context) {
	var dto LoginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, u, err := h.svc.Login(dto.Username, dto.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, errUserNotFound) || errors.Is(err, errWrongPassword) {
			response.ForbiddenMsg(c, "invalid username or password")
			return
		}
		response.InternalError(c, err)
		return
	}
	setAuthCookie(c, token)
	response.OK(c, loginResponse{Token: token, User: toAuthUser(u)})
}

func (h *Handler) register(c *gin.Context) {
	var dto RegisterDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.Register(&dto)
	if err != nil {
		if errors.Is(err, errOwnerExists) {
			response.BadRequest(c, "an operator account already exists")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toAuthUser(u))
}

func (h *Handler) session(c *gin.Context) {
	if !middleware.IsAuthenticated(c) {
		response.OK(c, gin.H{"isGuest": true})
		return
	}
	var u models.UserModel
	if err := h.svc.db.First(&u, "id = ?", middleware.CurrentUserID(c)).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{
		"isGuest":   false,
		"sessionId": middleware.CurrentSessionID(c),
		"user":      toAuthUser(&u),
	})
}

func (h *Handler) logout(c *gin.Context) {
	sessionID := middleware.CurrentSessionID(c)
	if sessionID == "" {
		// API-token auth carries no session claim; fall back to the raw token.
		sessionID = resolveSessionIDFromToken(extractAuthTokenFromRequest(c))
	}
	if sessionID != "" {
		_ = sessionpkg.Revoke(h.svc.db, middleware.CurrentUserID(c), sessionID)
	}
	clearAuthCookie(c)
	response.NoContent(c)
}

// refresh rotates the caller's session token. The old session stays valid
// for a short grace window so in-flight requests do not fail mid-rotation.
func (h *Handler) refresh(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if userID == "" {
		response.Unauthorized(c)
		return
	}
	currentSessionID := middleware.CurrentSessionID(c)
	token, _, err := sessionpkg.Issue(h.svc.db, userID, c.ClientIP(), c.Request.UserAgent(), sessionpkg.DefaultTTL)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if currentSessionID != "" {
		sessionpkg.RevokeAfter(h.svc.db, userID, currentSessionID, 6*time.Second)
	}
	setAuthCookie(c, token)
	response.OK(c, gin.H{"token": token})
}

func (h *Handler) listSessions(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	currentSessionID := middleware.CurrentSessionID(c)

	sessions, err := sessionpkg.ListActive(h.svc.db, userID)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	data := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		data = append(data, gin.H{
			"id":      s.ID,
			"ua":      s.UA,
			"ip":      s.IP,
			"date":    s.UpdatedAt,
			"current": s.ID == currentSessionID,
		})
	}
	response.OK(c, gin.H{"data": data})
}

func (h *Handler) deleteSession(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	sessionID := c.Param("sessionId")
	if err := sessionpkg.Revoke(h.svc.db, userID, sessionID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) deleteOtherSessions(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	if err := sessionpkg.RevokeAllExcept(h.svc.db, userID, middleware.CurrentSessionID(c)); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) listTokens(c *gin.Context) {
	tokens, err := h.svc.ListTokens(middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	data := make([]tokenResponse, 0, len(tokens))
	for _, t := range tokens {
		data = append(data, toTokenResponse(&t))
	}
	response.OK(c, gin.H{"data": data})
}

func (h *Handler) getToken(c *gin.Context) {
	t, err := h.svc.GetToken(middleware.CurrentUserID(c), c.Param("tokenId"))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if t == nil {
		response.NotFoundMsg(c, "token not found")
		return
	}
	response.OK(c, toTokenResponse(t))
}

func (h *Handler) createToken(c *gin.Context) {
	var dto CreateTokenDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	t, err := h.svc.CreateToken(middleware.CurrentUserID(c), &dto)
	if err != nil {
		if errors.Is(err, errTokenNameTaken) {
			response.Conflict(c, "a token with this name already exists")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.Created(c, toTokenResponse(t))
}

func (h *Handler) deleteToken(c *gin.Context) {
	if err := h.svc.DeleteToken(middleware.CurrentUserID(c), c.Param("tokenId")); err != nil {
		if errors.Is(err, errTokenNotFound) {
			response.NotFoundMsg(c, "token not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func toAuthUser(u *models.UserModel) *authUser {
	if u == nil {
		return nil
	}
	return &authUser{
		ID:            u.ID,
		Username:      u.Username,
		Name:          u.Name,
		Mail:          u.Mail,
		LastLoginTime: u.LastLoginTime,
		LastLoginIP:   u.LastLoginIP,
	}
}

func toTokenResponse(t *models.APIToken) tokenResponse {
	return tokenResponse{
		ID:      t.ID,
		Name:    t.Name,
		Token:   t.Token,
		Expired: t.ExpiredAt,
		Created: t.CreatedAt,
	}
}
