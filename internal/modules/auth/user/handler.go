package user

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/middleware"
	"github.com/surveykit/hooks/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/user")

	g.GET("", middleware.OptionalAuth(h.svc.db), h.getProfile)

	a := g.Group("", authMW)
	a.PATCH("", h.updateProfile)
	a.PATCH("/password", h.changePassword)
}

// getProfile returns the operator profile. Unauthenticated callers only
// see the public subset.
func (h *Handler) getProfile(c *gin.Context) {
	u, err := h.svc.Owner()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.NotFound(c)
		return
	}
	if !middleware.IsAuthenticated(c) {
		response.OK(c, toPublicResponse(u))
		return
	}
	response.OK(c, toResponse(u))
}

func (h *Handler) updateProfile(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	var dto UpdateUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	u, err := h.svc.UpdateProfile(userID, &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if u == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, toResponse(u))
}

func (h *Handler) changePassword(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	var dto ChangePasswordDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.svc.ChangePassword(userID, dto.OldPassword, dto.NewPassword); err != nil {
		if errors.Is(err, errWrongPassword) {
			response.BadRequest(c, "current password is incorrect")
			return
		}
		if errors.Is(err, errPasswordSameAsOld) {
			response.UnprocessableEntity(c, "new password must differ from the current one")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
