package archive

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/surveykit/hooks/internal/pkg/response"
)

type Handler struct {
	archiver *Archiver
}

func NewHandler(archiver *Archiver) *Handler {
	return &Handler{archiver: archiver}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/archives", authMW)
	g.GET("", h.list)
	g.POST("/run", h.run)
	g.GET("/:filename", h.download)
	g.DELETE("/:filename", h.remove)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, gin.H{"data": h.archiver.List()})
}

func (h *Handler) run(c *gin.Context) {
	report, err := h.archiver.Run(c.Request.Context(), time.Now())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, report)
}

func (h *Handler) download(c *gin.Context) {
	p, err := h.archiver.Path(c.Param("filename"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := os.Stat(p); err != nil {
		response.NotFoundMsg(c, "archive not found")
		return
	}
	c.FileAttachment(p, filepath.Base(p))
}

func (h *Handler) remove(c *gin.Context) {
	p, err := h.archiver.Path(c.Param("filename"))
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := os.Stat(p); err != nil {
		response.NotFoundMsg(c, "archive not found")
		return
	}
	if err := os.Remove(p); err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
