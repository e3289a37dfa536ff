package dispatch

import (
	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/modules/hooks/payload"
	"github.com/surveykit/hooks/internal/pkg/response"
)

// Handler exposes the completion intake endpoint the survey platform calls.
type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/hooks", authMW)
	g.POST("/notify", h.notify)
}

// notify runs the dispatch synchronously and always answers 200 with the
// Result. The platform treats any 2xx as acknowledged; dispatch problems are
// data in the body, not transport errors.
func (h *Handler) notify(c *gin.Context) {
	var dto NotifyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if dto.Event != "" && dto.Event != payload.EventAfterSurveyComplete {
		response.OK(c, &Result{Reason: ReasonIgnoredEvent})
		return
	}

	result := h.svc.HandleSurveyComplete(c.Request.Context(), *dto.SurveyID, *dto.ResponseID)
	response.OK(c, result)
}
