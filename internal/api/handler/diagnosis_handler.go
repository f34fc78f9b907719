package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/diagnosphere/skincheck-api/internal/api/metrics"
	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

// imageField is the multipart form field carrying the upload.
const imageField = "image"

// DiagnosisHandler handles HTTP requests for the diagnosis workflow.
type DiagnosisHandler struct {
	service ports.DiagnosisService
}

func NewDiagnosisHandler(service ports.DiagnosisService) *DiagnosisHandler {
	return &DiagnosisHandler{service: service}
}

// Upload handles POST /diagnosis/upload: stores the image and opens a diagnosis.
//
// @Summary      Upload a skin image
// @Tags         diagnosis
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        image  formData  file  true  "Image file"
// @Success      200    {object}  uploadResponse
// @Failure      400    {object}  errorResponse
// @Failure      401    {object}  errorResponse
// @Failure      413    {object}  errorResponse
// @Failure      500    {object}  errorResponse
// @Router       /diagnosis/upload [post]
func (h *DiagnosisHandler) Upload(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	fh, err := c.FormFile(imageField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return h.fail("upload", domain.NewValidationError("no image uploaded"))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "invalid multipart payload").SetInternal(err)
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := h.service.UploadImage(c.Request().Context(), ports.UploadImageInput{
		OwnerID:     userID,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
	})
	if err != nil {
		return h.fail("upload", err)
	}

	metrics.DiagnosesCreatedTotal.Inc()
	metrics.ImageUploadBytes.Observe(float64(fh.Size))

	return c.JSON(http.StatusOK, uploadResponse{
		DiagnosisID: res.DiagnosisID,
		ImageURL:    res.ImageURL,
		Message:     "Image uploaded successfully",
	})
}

// SubmitSymptoms handles POST /diagnosis/:id/symptoms: stores the
// questionnaire answers verbatim and computes results.
//
// @Summary      Submit symptoms and compute results
// @Tags         diagnosis
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string          true  "Diagnosis ID"
// @Param        body  body      map[string]any  true  "Symptom answers"
// @Success      200   {object}  submitResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /diagnosis/{id}/symptoms [post]
func (h *DiagnosisHandler) SubmitSymptoms(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	// Bind the body only; path params must not leak into the symptom map.
	var symptoms map[string]any
	if err := (&echo.DefaultBinder{}).BindBody(c, &symptoms); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	start := time.Now()
	res, err := h.service.SubmitSymptoms(c.Request().Context(), c.Param("id"), userID, domain.Symptoms(symptoms))
	if err != nil {
		metrics.SubmitDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return h.fail("symptoms", err)
	}
	metrics.SubmitDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	if res.Results != nil {
		metrics.DiagnosesCompletedTotal.WithLabelValues(res.Results.Severity).Inc()
	}

	return c.JSON(http.StatusOK, submitResponse{DiagnosisID: res.DiagnosisID, Results: res.Results})
}

// Results handles GET /diagnosis/:id/results.
//
// @Summary      Get diagnosis results
// @Tags         diagnosis
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Diagnosis ID"
// @Success      200  {object}  domain.Results
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /diagnosis/{id}/results [get]
func (h *DiagnosisHandler) Results(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	results, err := h.service.GetResults(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return h.fail("results", err)
	}
	return c.JSON(http.StatusOK, results)
}

// History handles GET /diagnosis/history: the caller's diagnoses, newest first.
//
// @Summary      Diagnosis history
// @Tags         diagnosis
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   historyItemResponse
// @Failure      401  {object}  errorResponse
// @Router       /diagnosis/history [get]
func (h *DiagnosisHandler) History(c echo.Context) error {
	userID, err := ctxUserID(c)
	if err != nil {
		return err
	}

	items, err := h.service.GetHistory(c.Request().Context(), userID)
	if err != nil {
		return h.fail("history", err)
	}
	return c.JSON(http.StatusOK, toHistoryResponse(items))
}

func (h *DiagnosisHandler) fail(step string, err error) error {
	metrics.DiagnosisErrorsTotal.WithLabelValues(step, errorReason(err)).Inc()
	return err
}
