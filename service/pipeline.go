package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/medIkan2024/ml-deployment/storage"
	"github.com/medIkan2024/ml-deployment/webservice"
)

type Pipeline struct {
	Predictor Predictor
	Uploader  Uploader
	API       DiseaseAPI
	Bucket    string

	// EarlyFormValidation rejects requests without historyName/userId before
	// anything is uploaded.
	EarlyFormValidation bool

	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Predict runs one request end to end: upload, classify, look up the disease
// and record history. Errors are *Error for expected failures; anything else
// is internal.
func (p *Pipeline) Predict(ctx context.Context, req Request) (*Response, error) {
	if !req.HasImage {
		return nil, validation(MsgNoFilePart)
	}
	if req.Filename == "" {
		return nil, validation(MsgNoFileSelected)
	}
	if p.EarlyFormValidation && (req.HistoryName == "" || req.UserID == "") {
		return nil, validation(MsgHistoryRequired)
	}

	key := storage.DestinationKey(p.now(), req.Filename)
	imageURL, err := p.Uploader.Upload(ctx, req.Image, p.Bucket, key, req.ContentType)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return nil, fmt.Errorf("cannot identify image file %q: %w", req.Filename, err)
	}
	pred, err := p.Predictor.Predict(ctx, img)
	if err != nil {
		return nil, err
	}

	diseaseID := pred.Index + 1
	info, err := p.API.GetDisease(ctx, diseaseID)
	if err != nil {
		var se *webservice.StatusError
		if errors.As(err, &se) {
			return nil, upstream(MsgDiseaseFetch, err)
		}
		return nil, err
	}

	if req.HistoryName == "" || req.UserID == "" {
		return nil, validation(MsgHistoryRequired)
	}
	userID, err := strconv.Atoi(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, fmt.Errorf("invalid userId %q: %w", req.UserID, err)
	}

	err = p.API.AddHistory(ctx, webservice.HistoryRecord{
		HistoryName: req.HistoryName,
		Image:       imageURL,
		UserID:      userID,
		DiseaseID:   diseaseID,
	})
	if err != nil {
		var se *webservice.StatusError
		if errors.As(err, &se) {
			return nil, upstream(MsgHistoryFailed, err)
		}
		return nil, err
	}
	slog.Info("History recorded",
		slog.String("label", pred.Label),
		slog.Int("disease_id", diseaseID),
		slog.Int("user_id", userID))

	if len(info.Data) == 0 {
		return nil, fmt.Errorf("disease %d: empty data in response", diseaseID)
	}
	d := info.Data[0]
	return &Response{
		Status:   StatusSuccess,
		Message:  MessageSuccess,
		ImageURL: imageURL,
		Data: DiseaseInfo{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Treatment:   d.Treatment,
			Reference:   d.Reference,
		},
		Label: pred.Label,
	}, nil
}
