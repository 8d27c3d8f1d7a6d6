package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-1.5-flash-latest"

	// DefaultGenerateTimeout bounds a single model call.
	DefaultGenerateTimeout = 60 * time.Second
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("model returned no content")

// APIRecorder records Google API call outcomes.
type APIRecorder interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
}

// GeminiModel calls the Gemini generateContent endpoint.
type GeminiModel struct {
	models   *genai.Models
	model    string
	timeout  time.Duration
	recorder APIRecorder
}

// GeminiConfig configures NewGeminiModel.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration

	// Recorder, when set, receives one "gemini"/"generate" record per call.
	Recorder APIRecorder

	// BaseURL and HTTPClient override the Gemini endpoint and transport.
	BaseURL    string
	HTTPClient *http.Client
}

// NewGeminiModel creates a Gemini-backed Model.
func NewGeminiModel(ctx context.Context, cfg GeminiConfig) (*GeminiModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultGenerateTimeout
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiModel{
		models:   client.Models,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		recorder: cfg.Recorder,
	}, nil
}

// Generate submits the instructions and input as one user turn and returns
// the text of the first candidate.
func (m *GeminiModel) Generate(ctx context.Context, instructions string, input Input) (text string, err error) {
	if m.recorder != nil {
		start := time.Now()
		defer func() {
			status := "success"
			if err != nil {
				status = "error"
			}
			m.recorder.RecordGoogleAPIOperation(ctx, "gemini", "generate", status, time.Since(start))
		}()
	}

	parts := []*genai.Part{genai.NewPartFromText(instructions)}
	if input.Image != nil {
		parts = append(parts, genai.NewPartFromBytes(input.Image.Data, input.Image.MimeType))
	} else {
		parts = append(parts, genai.NewPartFromText(input.Text))
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.models.GenerateContent(ctx, m.model,
		[]*genai.Content{{Role: "user", Parts: parts}}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini generateContent failed: %w", err)
	}

	text = resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
