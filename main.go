package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medIkan2024/ml-deployment/classifier"
	"github.com/medIkan2024/ml-deployment/config"
	"github.com/medIkan2024/ml-deployment/onnx"
	"github.com/medIkan2024/ml-deployment/server"
	"github.com/medIkan2024/ml-deployment/service"
	"github.com/medIkan2024/ml-deployment/storage"
	"github.com/medIkan2024/ml-deployment/webservice"
	ort "github.com/yalue/onnxruntime_go"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	slog.Info("Starting medikan predict service")

	cfg, err := config.Load("config.toml")
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ort.SetSharedLibraryPath(onnx.LibPath(cfg.Libonnx))
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
	}
	defer ort.DestroyEnvironment()

	labels, err := classifier.LoadLabelTable(cfg.LabelsFile)
	if err != nil {
		return err
	}
	layout := classifier.NHWC
	if strings.EqualFold(cfg.InputLayout, config.LayoutNCHW) {
		layout = classifier.NCHW
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout.Duration}
	// the model can be large; no client timeout for the startup fetch
	model, err := classifier.LoadFromURL(ctx, &http.Client{}, cfg.ModelUrl, classifier.Options{
		Labels:  labels,
		Layout:  layout,
		Workers: cfg.Workers,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	uploader, err := storage.NewGCSUploader(ctx, cfg.CredentialsFile)
	if err != nil {
		return err
	}
	defer uploader.Close()

	pipeline := &service.Pipeline{
		Predictor:           model,
		Uploader:            timeoutUploader{uploader, cfg.RequestTimeout.Duration},
		API:                 webservice.NewClient(cfg.ApiBaseUrl, httpClient),
		Bucket:              cfg.BucketName,
		EarlyFormValidation: cfg.EarlyFormValidation,
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.NewRouter(server.NewHandler(pipeline)),
	}

	slog.Info("Listening on", slog.String("address", srv.Addr))
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	slog.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

type timeoutUploader struct {
	*storage.GCSUploader
	timeout time.Duration
}

func (u timeoutUploader) Upload(ctx context.Context, data []byte, bucket, key, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	return u.GCSUploader.Upload(ctx, data, bucket, key, contentType)
}
