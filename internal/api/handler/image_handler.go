package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

// ImageHandler serves stored uploads under /uploads/*.
type ImageHandler struct {
	service ports.DiagnosisService
}

func NewImageHandler(service ports.DiagnosisService) *ImageHandler {
	return &ImageHandler{service: service}
}

// Serve streams one stored image.
//
// @Summary      Fetch an uploaded image
// @Tags         diagnosis
// @Produce      image/png,image/jpeg
// @Param        key  path  string  true  "Image key (YYYY/MM/DD/<name>)"
// @Success      200
// @Failure      404  {object}  errorResponse
// @Router       /uploads/{key} [get]
func (h *ImageHandler) Serve(c echo.Context) error {
	img, err := h.service.OpenImage(c.Request().Context(), c.Param("*"))
	if err != nil {
		return err
	}
	defer img.Body.Close()

	hdr := c.Response().Header()
	hdr.Set("Cache-Control", "private, max-age=86400")
	hdr.Set("X-Content-Type-Options", "nosniff")
	if img.Size > 0 {
		hdr.Set(echo.HeaderContentLength, strconv.FormatInt(img.Size, 10))
	}
	return c.Stream(http.StatusOK, img.ContentType, img.Body)
}
