package service

import (
	"context"
	"encoding/json"
	"image"

	"github.com/medIkan2024/ml-deployment/classifier"
	"github.com/medIkan2024/ml-deployment/webservice"
)

type Predictor interface {
	Predict(ctx context.Context, img image.Image) (*classifier.Prediction, error)
}

type Uploader interface {
	Upload(ctx context.Context, data []byte, bucket, key, contentType string) (string, error)
}

type DiseaseAPI interface {
	GetDisease(ctx context.Context, id int) (*webservice.DiseaseResponse, error)
	AddHistory(ctx context.Context, rec webservice.HistoryRecord) error
}

// Request is one /predict submission. HasImage is false when the multipart
// form carried no image part at all.
type Request struct {
	HasImage    bool
	Filename    string
	ContentType string
	Image       []byte
	HistoryName string
	UserID      string
}

type DiseaseInfo struct {
	ID          json.RawMessage `json:"id"`
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	Treatment   json.RawMessage `json:"treatment"`
	Reference   json.RawMessage `json:"reference"`
}

type Response struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	ImageURL string      `json:"image_url"`
	Data     DiseaseInfo `json:"data"`

	// Label is the classifier output; the API body carries the catalogue name instead.
	Label string `json:"-"`
}

const (
	StatusSuccess  = "Success"
	MessageSuccess = "Successfully predicted image and added to history"

	MsgNoFilePart      = "No file part in the request"
	MsgNoFileSelected  = "No file selected for uploading"
	MsgDiseaseFetch    = "Failed to fetch disease information from external API"
	MsgHistoryRequired = "nameUser and userId are required"
	MsgHistoryFailed   = "Failed to add to history"
)
