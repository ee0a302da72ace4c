package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// Download fetches the serialized model at url into a temporary file and
// returns its path. The caller owns the file.
func Download(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build model request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch model: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch model: unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "model-*.onnx")
	if err != nil {
		return "", fmt.Errorf("failed to create temp model file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write model: %w", err)
	}
	slog.Info("Model downloaded", slog.String("path", f.Name()), slog.Int64("bytes", n))
	return f.Name(), nil
}

type session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// Prediction is the outcome of one forward pass.
type Prediction struct {
	Index         int       `json:"index"`
	Label         string    `json:"label"`
	Probabilities []float32 `json:"probabilities"`
}

// Model is the loaded predictor. It is safe for concurrent use; each call
// borrows one session from the pool.
type Model struct {
	pool   chan *session
	all    []*session
	labels *LabelTable
	layout Layout
}

type Options struct {
	Path    string
	Labels  *LabelTable
	Layout  Layout
	Workers int
}

// Load builds opts.Workers ONNX sessions over the model at opts.Path. The
// model's output width must match the label table.
func Load(opts Options) (*Model, error) {
	if opts.Labels == nil {
		return nil, errors.New("label table is required")
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	inputs, outputs, err := ort.GetInputOutputInfo(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, errors.New("model has no inputs or outputs")
	}
	if err := checkOutputShape(outputs[0].Dimensions, opts.Labels); err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, ImageSize, ImageSize, 3)
	if opts.Layout == NCHW {
		inputShape = ort.NewShape(1, 3, ImageSize, ImageSize)
	}

	sessOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer sessOpts.Destroy()

	m := &Model{
		pool:   make(chan *session, opts.Workers),
		labels: opts.Labels,
		layout: opts.Layout,
	}
	for range opts.Workers {
		s := &session{}
		s.input, err = ort.NewTensor(inputShape, make([]float32, inputShape.FlattenedSize()))
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("failed to create input tensor: %w", err)
		}
		s.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(opts.Labels.Len())))
		if err != nil {
			s.destroy()
			m.Close()
			return nil, fmt.Errorf("failed to create output tensor: %w", err)
		}
		s.session, err = ort.NewAdvancedSession(
			opts.Path,
			[]string{inputs[0].Name},
			[]string{outputs[0].Name},
			[]ort.Value{s.input},
			[]ort.Value{s.output},
			sessOpts,
		)
		if err != nil {
			s.destroy()
			m.Close()
			return nil, fmt.Errorf("failed to create ONNX Runtime session: %w", err)
		}
		m.all = append(m.all, s)
		m.pool <- s
	}
	slog.Info("Model loaded",
		slog.String("input", inputs[0].Name),
		slog.String("output", outputs[0].Name),
		slog.Int("classes", opts.Labels.Len()),
		slog.Int("workers", opts.Workers))
	return m, nil
}

// LoadFromURL downloads the model, loads it and removes the temporary file.
func LoadFromURL(ctx context.Context, client *http.Client, url string, opts Options) (*Model, error) {
	path, err := Download(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)
	opts.Path = path
	return Load(opts)
}

// checkOutputShape requires the last output dimension to equal the label count.
func checkOutputShape(dims ort.Shape, labels *LabelTable) error {
	if len(dims) == 0 || dims[len(dims)-1] != int64(labels.Len()) {
		return fmt.Errorf("model output shape %v does not match %d labels", dims, labels.Len())
	}
	return nil
}

func newPrediction(probs []float32, labels *LabelTable) (*Prediction, error) {
	if len(probs) != labels.Len() {
		return nil, fmt.Errorf("model returned %d scores for %d labels", len(probs), labels.Len())
	}
	idx := ArgMax(probs)
	label, err := labels.Label(idx)
	if err != nil {
		return nil, err
	}
	return &Prediction{Index: idx, Label: label, Probabilities: probs}, nil
}

func (m *Model) Predict(ctx context.Context, img image.Image) (*Prediction, error) {
	input, err := Preprocess(img, m.layout)
	if err != nil {
		return nil, err
	}

	var s *session
	select {
	case s = <-m.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { m.pool <- s }()

	copy(s.input.GetData(), input)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	probs := make([]float32, len(s.output.GetData()))
	copy(probs, s.output.GetData())
	return newPrediction(probs, m.labels)
}

func (m *Model) Close() {
	for _, s := range m.all {
		s.destroy()
	}
	m.all = nil
}
