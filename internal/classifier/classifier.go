package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/teemow/inboxintake/internal/logging"
)

const tracerName = "github.com/teemow/inboxintake/internal/classifier"

// Model is the external generative model.
type Model interface {
	Generate(ctx context.Context, instructions string, input Input) (string, error)
}

// TextExtractor pulls the text layer out of a PDF, pages concatenated in order.
type TextExtractor interface {
	ExtractText(pdf []byte) (string, error)
}

// PageRenderer rasterizes the first page of a PDF. It returns nil, nil when
// the document produced no page.
type PageRenderer interface {
	RenderFirstPage(ctx context.Context, pdf []byte) (*Image, error)
}

// MetricsRecorder records classification outcomes.
type MetricsRecorder interface {
	RecordClassification(ctx context.Context, category, result string, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) RecordClassification(context.Context, string, string, time.Duration) {}

// Classifier turns document bytes into a normalized Result.
type Classifier struct {
	model     Model
	extractor TextExtractor
	renderer  PageRenderer
	logger    *slog.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTextExtractor overrides the PDF text extractor.
func WithTextExtractor(e TextExtractor) Option {
	return func(c *Classifier) { c.extractor = e }
}

// WithPageRenderer overrides the PDF first-page renderer.
func WithPageRenderer(r PageRenderer) Option {
	return func(c *Classifier) { c.renderer = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Classifier) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates a Classifier backed by model. PDF text extraction and page
// rendering default to PDFTextExtractor and a pdftoppm renderer.
func New(model Model, opts ...Option) *Classifier {
	c := &Classifier{
		model:     model,
		extractor: PDFTextExtractor{},
		renderer:  NewPdftoppmRenderer(DefaultPdftoppmPath, DefaultRenderTimeout),
		logger:    slog.Default(),
		metrics:   noopMetrics{},
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify summarizes and classifies req. It never panics and never returns
// an error; failures are carried in Result.ErrorMessage.
func (c *Classifier) Classify(ctx context.Context, req Request) (res Result) {
	start := time.Now()
	category := CategoryUnknown
	logger := logging.WithOperation(c.logger, "classifier.classify").With(logging.Filename(req.Filename))

	ctx, span := c.tracer.Start(ctx, "classifier.Classify",
		trace.WithAttributes(attribute.String("document.filename", req.Filename)))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("classification panicked", "panic", r)
			res = errorResult(fmt.Sprintf("An unexpected error occurred: %v", r), actionNotApplicable)
		}

		status := logging.StatusSuccess
		if res.Failed() {
			status = logging.StatusError
			logger.Warn("classification failed", "category", category, logging.Status(status), "reason", res.ErrorMessage)
		} else {
			logger.Info("classification completed",
				"category", category,
				"department", res.Department,
				"priority", res.Priority,
				logging.Status(status),
			)
		}
		span.SetAttributes(attribute.String("document.category", category), attribute.String("classification.status", status))
		span.End()
		c.metrics.RecordClassification(ctx, category, status, time.Since(start))
	}()

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = MimeTypeFor(req.Filename)
	}
	if mimeType == "" {
		return errorResult(fmt.Sprintf("Could not determine the file type for %s", req.Filename), actionNotApplicable)
	}

	instructions := Prompt(req.CustomInstructions)
	mainType, _, _ := strings.Cut(mimeType, "/")

	switch {
	case mainType == "image":
		category = CategoryImage
		img, err := decodeImage(req.Content, mimeType)
		if err != nil {
			return errorResult(fmt.Sprintf("Could not decode image %s: %v", req.Filename, err), actionNotApplicable)
		}
		return c.submit(ctx, instructions, ImageInput(img))

	case mimeType == MimePDF:
		category = CategoryPDF
		return c.classifyPDF(ctx, logger, instructions, req)

	default:
		category = CategoryOther
		return errorResult(fmt.Sprintf("Unsupported file type '%s'.", mimeType), actionNotApplicable)
	}
}

func (c *Classifier) classifyPDF(ctx context.Context, logger *slog.Logger, instructions string, req Request) Result {
	text, err := c.extractor.ExtractText(req.Content)
	if err != nil {
		// An unreadable text layer is handled like a scanned document.
		logger.Debug("pdf text extraction failed", logging.Err(err))
		text = ""
	}

	if strings.TrimSpace(text) != "" {
		return c.submit(ctx, instructions, TextInput(text))
	}

	logger.Debug("pdf has no text layer, rendering first page")
	img, err := c.renderer.RenderFirstPage(ctx, req.Content)
	if err != nil {
		return errorResult(fmt.Sprintf("Could not process image-only PDF: %v", err), actionManualReview)
	}
	if img == nil {
		return errorResult("Could not process image-only PDF: no page could be rendered", actionManualReview)
	}
	return c.submit(ctx, instructions, ImageInput(img))
}

func (c *Classifier) submit(ctx context.Context, instructions string, input Input) Result {
	text, err := c.model.Generate(ctx, instructions, input)
	if err != nil {
		return errorResult(fmt.Sprintf("An unexpected error occurred: %v", err), actionNotApplicable)
	}
	return ParseResponse(text).Result()
}
