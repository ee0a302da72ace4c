package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medIkan2024/ml-deployment/service"
)

const maxUploadMemory = 32 << 20

type Handler struct {
	pipeline *service.Pipeline
}

func NewHandler(p *service.Pipeline) *Handler {
	return &Handler{pipeline: p}
}

func (h *Handler) Predict(c *gin.Context) {
	req, err := readRequest(c)
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.pipeline.Predict(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	predictionsTotal.WithLabelValues(resp.Label).Inc()
	outcomesTotal.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, resp)
}

func readRequest(c *gin.Context) (service.Request, error) {
	req := service.Request{
		HistoryName: c.PostForm("historyName"),
		UserID:      c.PostForm("userId"),
	}
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return req, err
	}
	if c.Request.MultipartForm == nil {
		return req, nil
	}
	files := c.Request.MultipartForm.File["image"]
	if len(files) == 0 {
		// mime/multipart files a part with an empty filename under Value
		_, req.HasImage = c.Request.MultipartForm.Value["image"]
		return req, nil
	}

	fh := files[0]
	req.HasImage = true
	req.Filename = fh.Filename
	req.ContentType = fh.Header.Get("Content-Type")
	if fh.Filename == "" {
		return req, nil
	}
	f, err := fh.Open()
	if err != nil {
		return req, err
	}
	defer f.Close()
	req.Image, err = io.ReadAll(f)
	return req, err
}

// statusFor keeps the API's convention of answering validation failures with 200.
func statusFor(kind service.Kind) int {
	if kind == service.KindValidation {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	outcomesTotal.WithLabelValues(kind.String()).Inc()
	if kind != service.KindValidation {
		slog.Error("Prediction failed",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()))
	}
	c.JSON(statusFor(kind), gin.H{"error": err.Error()})
}

func HealthHandler(c *gin.Context) {
	c.JSON(200, gin.H{"status": "healthy"})
}
