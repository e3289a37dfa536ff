package settings

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/pkg/pagination"
	"github.com/surveykit/hooks/internal/pkg/response"
)

// Handler wires the hook settings admin endpoints.
type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/hooks", authMW)
	g.GET("/settings", h.global)
	g.PUT("/settings", h.updateGlobal)
	g.PATCH("/settings", h.updateGlobal)

	g.GET("/surveys", h.listSurveys)
	g.GET("/surveys/:surveyId", h.survey)
	g.PUT("/surveys/:surveyId", h.upsertSurvey)
	g.PATCH("/surveys/:surveyId", h.upsertSurvey)
	g.DELETE("/surveys/:surveyId", h.deleteSurvey)
}

func (h *Handler) global(c *gin.Context) {
	settings, err := h.svc.Global(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, settings)
}

func (h *Handler) updateGlobal(c *gin.Context) {
	var dto UpdateGlobalDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	settings, err := h.svc.UpdateGlobal(c.Request.Context(), &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, settings)
}

func (h *Handler) listSurveys(c *gin.Context) {
	q := pagination.FromContext(c)
	items, pag, err := h.svc.ListSurveys(c.Request.Context(), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) survey(c *gin.Context) {
	surveyID, ok := surveyIDParam(c)
	if !ok {
		return
	}
	row, err := h.svc.Survey(c.Request.Context(), surveyID)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	if row == nil {
		response.NotFound(c)
		return
	}
	response.OK(c, row)
}

func (h *Handler) upsertSurvey(c *gin.Context) {
	surveyID, ok := surveyIDParam(c)
	if !ok {
		return
	}
	var dto UpsertSurveyDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	row, err := h.svc.UpsertSurvey(c.Request.Context(), surveyID, &dto)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, row)
}

func (h *Handler) deleteSurvey(c *gin.Context) {
	surveyID, ok := surveyIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteSurvey(c.Request.Context(), surveyID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}

func surveyIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("surveyId"))
	if err != nil || id <= 0 {
		response.BadRequest(c, "surveyId must be a positive integer")
		return 0, false
	}
	return id, true
}
