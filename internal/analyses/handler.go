package analyses

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cropguard/internal/imagecheck"
	"cropguard/internal/shared/server/middleware"
	"cropguard/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc      *Service
	MaxBytes int64
}

// NewHandler constructs a Handler. maxBytes bounds uploaded photos.
func NewHandler(svc *Service, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = imagecheck.DefaultMaxBytes
	}
	return &Handler{Svc: svc, MaxBytes: maxBytes}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/stats", h.stats)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.GET("/analyses/:id/image", h.getImage)
	rg.PATCH("/analyses/:id/status", h.updateStatus)
}

func (h *Handler) requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}

func (h *Handler) createAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	fh, err := c.FormFile("image")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "multipart field \"image\" is required", respond.Issues("image", "missing"))
		return
	}
	if fh.Size > h.MaxBytes {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "image is too large", respond.Issues("image", "too_large"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "image could not be read", respond.Issues("image", "unreadable"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.MaxBytes+1))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "image could not be read", respond.Issues("image", "unreadable"))
		return
	}

	analysis, err := h.Svc.Create(h.requestContext(c), CreateInput{
		UserID:   userID,
		FileName: fh.Filename,
		Image:    data,
		Location: c.PostForm("location"),
		Notes:    c.PostForm("notes"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Set("analysisId", analysis.ID)
	c.Set("severity", string(analysis.Report.Severity))
	respond.Created(c, analysis)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	analysis, err := h.Svc.Get(h.requestContext(c), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set("analysisId", analysis.ID)
	respond.OK(c, analysis)
}

func (h *Handler) getImage(c *gin.Context) {
	rc, err := h.Svc.OpenImage(h.requestContext(c), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, h.MaxBytes+1))
	if err != nil {
		h.writeError(c, errors.Join(ErrStorage, err))
		return
	}
	info, err := imagecheck.New(h.MaxBytes).Validate(data)
	contentType := info.ContentType
	if err != nil {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, data)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	limit := queryInt(c, "limit", defaultListLimit)
	offset := queryInt(c, "offset", 0)
	limit, offset = clampPage(limit, offset)

	items, err := h.Svc.List(h.requestContext(c), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, respond.Page[Analysis]{Items: items, Limit: limit, Offset: offset})
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "body must be {\"status\": \"...\"}", respond.Issues("status", "missing"))
		return
	}
	updated, err := h.Svc.UpdateStatus(h.requestContext(c), middleware.UserIDFromContext(c), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set("analysisId", updated.ID)
	respond.OK(c, updated)
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.Svc.Stats(h.requestContext(c), middleware.UserIDFromContext(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond.OK(c, stats)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var ae *AnalysisError
	switch {
	case errors.As(err, &ae) && ae.Cause == CauseMissingCredentials:
		respond.Error(c, http.StatusServiceUnavailable, ErrorCodeConfiguration, "analysis service is not configured", gin.H{"missing": ae.Missing})
	case errors.As(err, &ae) && ae.Cause == CauseClassificationFailed:
		respond.Error(c, http.StatusBadGateway, ErrorCodeClassificationFailed, "image classification failed, try again later", nil)
	case errors.Is(err, imagecheck.ErrTooLarge):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "image is too large", respond.Issues("image", "too_large"))
	case errors.Is(err, imagecheck.ErrInvalidImage):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "upload must be an image", respond.Issues("image", "not_an_image"))
	case errors.Is(err, ErrInvalidStatus):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "status must be detected, treating or resolved", respond.Issues("status", "invalid"))
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, ErrorCodeNotFound, "analysis not found", nil)
	case errors.Is(err, ErrMissingUser):
		respond.Error(c, http.StatusBadRequest, ErrorCodeValidation, "caller identity is required", nil)
	case errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusGatewayTimeout, ErrorCodeTimeout, "analysis timed out", nil)
	case errors.Is(err, context.Canceled):
		c.AbortWithStatus(499)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusInternalServerError, ErrorCodeStorage, "failed to store analysis", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, ErrorCodeInternal, "unexpected error", nil)
	}
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
