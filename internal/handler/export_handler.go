package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/response"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

type timetableExporter interface {
	Export(ctx context.Context, timetableID string, req dto.ExportTimetableRequest) (*dto.ExportResult, error)
	Resolve(token string) (storage.SignedToken, error)
	Open(relPath string) (*os.File, error)
}

// ExportHandler renders timetables to files and serves signed downloads.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(service *service.ExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// Export godoc
// @Summary Render a timetable version as CSV or PDF
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.ExportTimetableRequest true "Format"
// @Success 201 {object} response.Envelope
// @Router /timetables/{id}/export [post]
func (h *ExportHandler) Export(c *gin.Context) {
	var req dto.ExportTimetableRequest
	if !bindJSON(c, &req, "invalid export payload") {
		return
	}
	result, err := h.service.Export(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a rendered timetable through its signed token
// @Tags Exports
// @Produce application/pdf
// @Produce text/csv
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token, err := h.service.Resolve(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.service.Open(token.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export"))
		return
	}
	name := path.Base(token.Path)
	format := export.Format(strings.TrimPrefix(path.Ext(name), "."))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.DataFromReader(http.StatusOK, info.Size(), format.ContentType(), file, nil)
}
