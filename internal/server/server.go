package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxintake/internal/classifier"
	"github.com/teemow/inboxintake/internal/importer"
	"github.com/teemow/inboxintake/internal/instrumentation"
	"github.com/teemow/inboxintake/internal/session"
	"github.com/teemow/inboxintake/internal/storage"
)

const (
	// DefaultReadHeaderTimeout bounds reading request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout covers a full import run.
	DefaultWriteTimeout = 10 * time.Minute

	// DefaultIdleTimeout is the keep-alive idle timeout.
	DefaultIdleTimeout = 120 * time.Second

	// MaxUploadBytes caps the analyze-document request body. Base64 adds a
	// third on top of the document itself.
	MaxUploadBytes = 50 << 20
)

// Classifier classifies one uploaded document.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) classifier.Result
}

// Importer runs mailbox imports and diagnostic searches.
type Importer interface {
	ImportAttachments(ctx context.Context, state, query string, maxResults int) (*importer.Report, error)
	TestSearch(ctx context.Context, state, query string) ([]importer.QueryResult, error)
}

// Authorizer drives the OAuth consent flow.
type Authorizer interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// DocumentLister lists stored document metadata.
type DocumentLister interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]storage.Document, error)
}

// Metrics records HTTP and OAuth metrics.
type Metrics interface {
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)
	RecordOAuthAuth(ctx context.Context, result string)
}

// Config holds the collaborators of a Server. Classifier, Sessions and
// Health are required. Without OAuth and Importer the Gmail routes answer
// 503; without Documents so does /api/documents.
type Config struct {
	Classifier  Classifier
	Importer    Importer
	OAuth       Authorizer
	Sessions    session.Store
	Documents   DocumentLister
	Health      *HealthChecker
	Metrics     Metrics
	Audit       *instrumentation.AuditLogger
	Logger      *slog.Logger
	CORSOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	classifier  Classifier
	importer    Importer
	oauth       Authorizer
	sessions    session.Store
	documents   DocumentLister
	health      *HealthChecker
	metrics     Metrics
	audit       *instrumentation.AuditLogger
	logger      *slog.Logger
	corsOrigins []string

	httpServer *http.Server
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	switch {
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case cfg.Health == nil:
		return nil, fmt.Errorf("health checker is required")
	}

	s := &Server{
		classifier:  cfg.Classifier,
		importer:    cfg.Importer,
		oauth:       cfg.OAuth,
		sessions:    cfg.Sessions,
		documents:   cfg.Documents,
		health:      cfg.Health,
		metrics:     cfg.Metrics,
		audit:       cfg.Audit,
		logger:      cfg.Logger,
		corsOrigins: cfg.CORSOrigins,
	}
	if s.metrics == nil {
		s.metrics = &instrumentation.Metrics{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if len(s.corsOrigins) == 0 {
		s.corsOrigins = []string{"*"}
	}
	return s, nil
}

// Handler returns the API routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.RegisterHealthEndpoints(mux)

	mux.HandleFunc("POST /api/analyze-document", s.handleAnalyzeDocument)
	mux.HandleFunc("GET /api/gmail/auth-url", s.handleAuthURL)
	mux.HandleFunc("GET /api/gmail/callback", s.handleCallback)
	mux.HandleFunc("POST /api/gmail/import", s.handleImport)
	mux.HandleFunc("POST /api/gmail/test-search", s.handleTestSearch)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)

	var h http.Handler = mux
	h = s.metricsMiddleware(h)
	h = corsMiddleware(s.corsOrigins, h)
	return otelhttp.NewHandler(h, "inboxintake",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + instrumentation.NormalizePath(r.URL.Path)
		}),
	)
}

// Start serves the API on addr until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	s.logger.Info("starting API server", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
