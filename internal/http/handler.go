package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"plate-service/internal/http/middleware"
	"plate-service/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var errUploadTooLarge = errors.New("upload too large")

type Handler struct {
	plateService   *service.PlateService
	uploadMaxBytes int64
	log            zerolog.Logger
}

func NewHandler(plateService *service.PlateService, uploadMaxBytes int64, log zerolog.Logger) *Handler {
	return &Handler{
		plateService:   plateService,
		uploadMaxBytes: uploadMaxBytes,
		log:            log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := r.Group("/")
	protected.Use(authMiddleware)

	plates := protected.Group("/plates")
	{
		plates.POST("/recognize", h.recognizePlate)
		plates.POST("/read", h.readPlate)
		plates.GET("/:plate/posts", h.plateHistory)
	}

	posts := protected.Group("/posts")
	{
		posts.POST("", h.createPost)
		posts.GET("/:id", h.getPost)
		posts.GET("/:id/image", h.getPostImage)
		posts.DELETE("/:id", h.deletePost)
	}

	garage := protected.Group("/garage")
	{
		garage.GET("", h.listGarage)
		garage.GET("/stats", h.garageStats)
		garage.GET("/export", h.exportGarage)
	}

	protected.GET("/community", h.listCommunity)
}

func (h *Handler) recognizePlate(c *gin.Context) {
	image, contentType, err := h.readUpload(c, "image")
	if err != nil {
		h.handleUploadError(c, err)
		return
	}
	if image == nil {
		c.JSON(http.StatusBadRequest, errorResponse("image is required"))
		return
	}

	result, err := h.plateService.Recognize(c.Request.Context(), image, contentType)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(result))
}

func (h *Handler) readPlate(c *gin.Context) {
	var req struct {
		Texts []string `json:"texts" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, successResponse(h.plateService.ReadText(req.Texts)))
}

func (h *Handler) plateHistory(c *gin.Context) {
	posts, err := h.plateService.PlateHistory(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(posts))
}

func (h *Handler) createPost(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var input service.CreatePostInput
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		image, contentType, err := h.readUpload(c, "image")
		if err != nil {
			h.handleUploadError(c, err)
			return
		}
		input = service.CreatePostInput{
			Plate:            c.PostForm("plate"),
			TagsText:         c.PostForm("tags"),
			Image:            image,
			ImageContentType: contentType,
		}
	} else {
		var req struct {
			Plate string   `json:"plate" binding:"required"`
			Tags  []string `json:"tags"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		input = service.CreatePostInput{
			Plate: req.Plate,
			Tags:  req.Tags,
		}
	}

	post, err := h.plateService.CreatePost(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(post))
}

func (h *Handler) getPost(c *gin.Context) {
	post, err := h.plateService.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(post))
}

func (h *Handler) getPostImage(c *gin.Context) {
	post, err := h.plateService.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	if !post.HasImage() {
		c.JSON(http.StatusNotFound, errorResponse("post has no image"))
		return
	}

	contentType := "application/octet-stream"
	if post.ImageContentType != nil {
		contentType = *post.ImageContentType
	}
	c.Data(http.StatusOK, contentType, post.ImageData)
}

func (h *Handler) deletePost(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	if err := h.plateService.DeletePost(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) listGarage(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	posts, err := h.plateService.ListGarage(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(posts))
}

func (h *Handler) garageStats(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	stats, err := h.plateService.Stats(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) exportGarage(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	blob, err := h.plateService.ExportGarage(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="garage.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, blob)
}

func (h *Handler) listCommunity(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid limit"))
			return
		}
		limit = parsed
	}

	posts, err := h.plateService.Community(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(posts))
}

// readUpload returns the bytes of an optional multipart file field. A missing
// field yields nil without error.
func (h *Handler) readUpload(c *gin.Context, field string) ([]byte, string, error) {
	if h.uploadMaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)
	}

	fileHeader, err := c.FormFile(field)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, "", errUploadTooLarge
		}
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	return data, fileHeader.Header.Get("Content-Type"), nil
}

func (h *Handler) handleUploadError(c *gin.Context, err error) {
	if errors.Is(err, errUploadTooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
		return
	}
	h.handleError(c, err)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, service.ErrUpstream):
		h.log.Warn().Err(err).Msg("upstream error")
		c.JSON(http.StatusBadGateway, errorResponse("OCR engine unavailable"))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
