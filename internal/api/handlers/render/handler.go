package render

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/pixor/internal/api/respond"
	"github.com/aliskhannn/pixor/internal/engine"
	"github.com/aliskhannn/pixor/internal/model"
	"github.com/aliskhannn/pixor/internal/repository/job"
	"github.com/aliskhannn/pixor/internal/service/render"
	"github.com/aliskhannn/pixor/pkg/imagespec"
)

// service defines the interface for render operations.
type service interface {
	Render(ctx context.Context, token, sourceURL, format string) ([]byte, string, error)
	CreateJob(ctx context.Context, j model.RenderJob) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (model.RenderJob, error)
	JobResult(ctx context.Context, id uuid.UUID) (model.RenderJob, io.ReadCloser, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
}

// Handler provides HTTP handlers for render endpoints.
// It depends on a service interface to perform the business logic.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// JobRequest represents an asynchronous render request sent by the client.
type JobRequest struct {
	SourceURL string `json:"source_url"`
	Spec      string `json:"spec"`
	Format    string `json:"format"`
}

// Render handles the synchronous render request: the spec token travels in
// the path, the source image URL in the query. The rendered image is written
// straight to the response.
func (h *Handler) Render(c *ginext.Context) {
	token := c.Param("spec")
	sourceURL := c.Query("source")
	if sourceURL == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("source query parameter is required"))
		return
	}

	out, contentType, err := h.service.Render(c.Request.Context(), token, sourceURL, c.Query("format"))
	if err != nil {
		status := renderErrorStatus(err)
		if status == http.StatusInternalServerError {
			zlog.Logger.Err(err).Msg("failed to render image")
		}
		respond.Fail(c, status, err)
		return
	}

	respond.ImageBytes(c, http.StatusOK, contentType, out)
}

// renderErrorStatus maps pipeline failures onto HTTP statuses. Malformed
// tokens are the client's fault; undecodable or unreachable sources are
// upstream problems.
func renderErrorStatus(err error) int {
	switch {
	case errors.Is(err, imagespec.ErrInvalidBase64),
		errors.Is(err, imagespec.ErrMalformedWireBytes),
		errors.Is(err, render.ErrUnknownOutputFormat):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrOutOfRangeDimensions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrUnsupportedSourceFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

// CreateJob handles the asynchronous render request: the job is persisted and
// enqueued, and the client polls for the result.
func (h *Handler) CreateJob(c *ginext.Context) {
	var req JobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	if req.SourceURL == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("source_url is required"))
		return
	}

	id, err := h.service.CreateJob(c.Request.Context(), model.RenderJob{
		SourceURL: req.SourceURL,
		Spec:      req.Spec,
		Format:    req.Format,
	})
	if err != nil {
		status := renderErrorStatus(err)
		if status == http.StatusInternalServerError {
			zlog.Logger.Err(err).Msg("failed to create render job")
		}
		respond.Fail(c, status, err)
		return
	}

	respond.Accepted(c, map[string]interface{}{"id": id})
}

// GetJob returns metadata about a render job (status, result path) without
// serving the rendered bytes.
func (h *Handler) GetJob(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	j, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("render job not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get render job")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to get render job: %v", err))
		return
	}

	respond.OK(c, j)
}

// JobResult serves the rendered bytes of a processed job.
func (h *Handler) JobResult(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	j, reader, err := h.service.JobResult(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("render job not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to get render job result")
		respond.Fail(c, http.StatusConflict, fmt.Errorf("render job result not available: %v", err))
		return
	}
	defer reader.Close()

	respond.Image(c, http.StatusOK, contentTypeFor(j.Format), reader)
}

// Delete removes a render job and its stored output.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := h.jobID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteJob(c.Request.Context(), id); err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			respond.Fail(c, http.StatusNotFound, fmt.Errorf("render job not found"))
			return
		}

		zlog.Logger.Err(err).Msg("failed to delete render job")
		respond.Fail(c, http.StatusInternalServerError, fmt.Errorf("failed to delete render job: %v", err))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) jobID(c *ginext.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	if idStr == "" {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("missing id"))
		return uuid.Nil, false
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid id: %v", err))
		return uuid.Nil, false
	}

	return id, true
}

func contentTypeFor(format string) string {
	switch format {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}
