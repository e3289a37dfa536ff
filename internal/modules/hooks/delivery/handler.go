package delivery

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/surveykit/hooks/internal/pkg/pagination"
	"github.com/surveykit/hooks/internal/pkg/response"
)

// Handler wires the delivery audit endpoints.
type Handler struct {
	svc  *EventService
	bulk *BulkRedispatcher
}

func NewHandler(svc *EventService, bulk *BulkRedispatcher) *Handler {
	return &Handler{svc: svc, bulk: bulk}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/hooks/events", authMW)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("/redispatch", h.bulkRedispatch)
	g.POST("/redispatch/:id", h.redispatch)
	g.DELETE("/clear/:surveyId", h.clear)
}

func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)

	var surveyID *int
	if raw := c.Query("surveyId"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, "surveyId must be an integer")
			return
		}
		surveyID = &id
	}

	var success *bool
	if raw := c.Query("success"); raw != "" {
		ok, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "success must be a boolean")
			return
		}
		success = &ok
	}

	items, pag, err := h.svc.List(c.Request.Context(), q, surveyID, success)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	ev, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrEventNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, ev)
}

func (h *Handler) redispatch(c *gin.Context) {
	outcomes, err := h.svc.Redispatch(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrEventNotFound) {
		response.NotFound(c)
		return
	}
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, outcomes)
}

func (h *Handler) bulkRedispatch(c *gin.Context) {
	var req BulkRedispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	task, err := h.bulk.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Created(c, task)
}

func (h *Handler) clear(c *gin.Context) {
	surveyID, err := strconv.Atoi(c.Param("surveyId"))
	if err != nil {
		response.BadRequest(c, "surveyId must be an integer")
		return
	}
	if err := h.svc.ClearBySurvey(c.Request.Context(), surveyID); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
