package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/inboxintake/internal/apperr"
	"github.com/teemow/inboxintake/internal/classifier"
	"github.com/teemow/inboxintake/internal/gmail"
	"github.com/teemow/inboxintake/internal/logging"
	"github.com/teemow/inboxintake/internal/session"
	"github.com/teemow/inboxintake/internal/storage"
)

const tracerName = "github.com/teemow/inboxintake/internal/importer"

const (
	// DefaultQuery is used when the caller gives no query.
	DefaultQuery = "has:attachment newer_than:30d"
	// DefaultMaxResults is used when the caller gives no positive limit.
	DefaultMaxResults = 25
	// DefaultConcurrency bounds parallel downloads and classifications.
	DefaultConcurrency = 4

	// fallbackMaxResults caps every fallback query.
	fallbackMaxResults = 10
	// diagnosticMaxResults caps every TestSearch query.
	diagnosticMaxResults = 5
)

// FallbackQueries are tried in order when the requested query matches nothing.
var FallbackQueries = []string{
	"is:unread has:attachment",
	"has:attachment newer_than:7d",
	"has:attachment newer_than:30d",
	"is:unread",
	"has:attachment",
}

// DiagnosticQueries are the queries TestSearch reports on.
var DiagnosticQueries = []string{
	"has:attachment newer_than:30d",
	"is:unread has:attachment newer_than:30d",
	"is:unread has:attachment",
	"has:attachment",
	"is:unread",
	"",
}

// scannedPatterns mark classification errors of unreadable scans.
var scannedPatterns = []string{"image-only PDF", "Could not extract any text"}

// ErrAuth is returned when the session is unknown or not yet authorized.
var ErrAuth = apperr.New(apperr.AuthError, "importer", "missing or invalid state, authenticate first")

// Classifier classifies one document.
type Classifier interface {
	Classify(ctx context.Context, req classifier.Request) classifier.Result
}

// MetricsRecorder records import metrics.
type MetricsRecorder interface {
	RecordImportOutcome(ctx context.Context, status string)
	RecordImportRun(ctx context.Context, result string, duration time.Duration)
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

type noopMetrics struct{}

func (noopMetrics) RecordImportOutcome(context.Context, string) {}
func (noopMetrics) RecordImportRun(context.Context, string, time.Duration) {}
func (noopMetrics) RecordOAuthTokenRefresh(context.Context, string) {}

// Config holds the collaborators of a Service.
type Config struct {
	Sessions    session.Store
	Locker      session.Locker
	Mailboxes   MailboxFactory
	Classifier  Classifier
	Objects     storage.ObjectStore
	Metadata    storage.MetadataStore
	Logger      *slog.Logger
	Metrics     MetricsRecorder
	Concurrency int
}

// Service runs attachment imports.
type Service struct {
	sessions    session.Store
	locker      session.Locker
	mailboxes   MailboxFactory
	classifier  Classifier
	objects     storage.ObjectStore
	metadata    storage.MetadataStore
	logger      *slog.Logger
	metrics     MetricsRecorder
	tracer      trace.Tracer
	concurrency int
}

// NewService creates a Service. Sessions, Mailboxes, Classifier, Objects and
// Metadata are required.
func NewService(cfg Config) (*Service, error) {
	switch {
	case cfg.Sessions == nil:
		return nil, fmt.Errorf("session store is required")
	case cfg.Mailboxes == nil:
		return nil, fmt.Errorf("mailbox factory is required")
	case cfg.Classifier == nil:
		return nil, fmt.Errorf("classifier is required")
	case cfg.Objects == nil:
		return nil, fmt.Errorf("object store is required")
	case cfg.Metadata == nil:
		return nil, fmt.Errorf("metadata store is required")
	}

	s := &Service{
		sessions:    cfg.Sessions,
		locker:      cfg.Locker,
		mailboxes:   cfg.Mailboxes,
		classifier:  cfg.Classifier,
		objects:     cfg.Objects,
		metadata:    cfg.Metadata,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer(tracerName),
		concurrency: cfg.Concurrency,
	}
	if s.locker == nil {
		s.locker = session.NewKeyedMutex()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	return s, nil
}

// item is one entry of the ordered work list.
type item struct {
	messageID string
	leaf      *gmail.Leaf
	err       error // message-level failure

	// analysis results
	duplicate  bool
	data       []byte
	fetchErr   error
	summary    string
	department string
}

// ImportAttachments imports the attachments of messages matching query for
// the session identified by state.
func (s *Service) ImportAttachments(ctx context.Context, state, query string, maxResults int) (report *Report, err error) {
	start := time.Now()
	if query == "" {
		query = DefaultQuery
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	logger := logging.WithOperation(s.logger, "importer.import")
	ctx, span := s.tracer.Start(ctx, "importer.ImportAttachments",
		trace.WithAttributes(attribute.String("gmail.query", query), attribute.Int("gmail.max_results", maxResults)))
	defer func() {
		result := logging.StatusSuccess
		if err != nil {
			result = logging.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(attribute.Int("import.imported", report.Imported), attribute.Int("import.details", len(report.Details)))
		}
		span.End()
		s.metrics.RecordImportRun(ctx, result, time.Since(start))
	}()

	unlock := s.locker.Lock(state)
	defer unlock()

	sess, mailbox, err := s.open(ctx, state)
	if err != nil {
		return nil, err
	}
	logger = logger.With(logging.UserHash(sess.UserID))

	ids, usedQuery, err := s.listWithFallback(ctx, logger, mailbox, query, maxResults)
	if err != nil {
		return nil, err
	}
	logger.Info("messages listed", logging.Query(usedQuery), "count", len(ids))

	items := s.discover(ctx, logger, mailbox, sess.UserID, ids)
	s.analyze(ctx, logger, mailbox, sess.UserID, items)

	report = &Report{Query: usedQuery, Details: make([]Outcome, 0, len(items))}
	for _, it := range items {
		out := s.store(ctx, sess.UserID, it)
		if out.Status == StatusImported {
			report.Imported++
		}
		s.metrics.RecordImportOutcome(ctx, string(out.Status))
		logOutcome(logger, out)
		report.Details = append(report.Details, out)
	}

	logger.Info("import completed",
		"imported", report.Imported,
		"details", len(report.Details),
		"duration", time.Since(start),
	)
	return report, nil
}

// TestSearch runs the diagnostic queries, plus query when it is not one of
// them, and reports how many messages each matches.
func (s *Service) TestSearch(ctx context.Context, state, query string) ([]QueryResult, error) {
	unlock := s.locker.Lock(state)
	defer unlock()

	_, mailbox, err := s.open(ctx, state)
	if err != nil {
		return nil, err
	}

	queries := DiagnosticQueries
	if query != "" && !contains(queries, query) {
		queries = append([]string{query}, queries...)
	}

	results := make([]QueryResult, 0, len(queries))
	for _, q := range queries {
		r := QueryResult{Query: q}
		ids, err := mailbox.ListMessages(ctx, q, diagnosticMaxResults)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Count = len(ids)
			if len(ids) > 2 {
				ids = ids[:2]
			}
			r.MessageIDs = ids
		}
		results = append(results, r)
	}
	return results, nil
}

// open resolves the session for state and opens its mailbox. Refreshed
// tokens are written back to the session store.
func (s *Service) open(ctx context.Context, state string) (*session.Session, Mailbox, error) {
	if state == "" {
		return nil, nil, ErrAuth
	}
	sess, err := s.sessions.Get(ctx, state)
	if errors.Is(err, session.ErrNotFound) {
		return nil, nil, ErrAuth
	}
	if err != nil {
		return nil, nil, apperr.External("importer.session", err)
	}
	if !sess.Authorized() {
		return nil, nil, apperr.Auth("importer", "not authorized yet, complete the OAuth flow")
	}

	onRefresh := func(t *oauth2.Token) {
		updated := *sess
		updated.Token = t
		bg := context.WithoutCancel(ctx)
		if err := s.sessions.Put(bg, state, &updated); err != nil {
			s.logger.Warn("failed to persist refreshed token", logging.UserHash(sess.UserID), logging.Err(err))
			s.metrics.RecordOAuthTokenRefresh(bg, "failure")
			return
		}
		s.metrics.RecordOAuthTokenRefresh(bg, "success")
	}

	mailbox, err := s.mailboxes.Open(ctx, sess, onRefresh)
	if err != nil {
		return nil, nil, apperr.External("importer.mailbox", err)
	}
	return sess, mailbox, nil
}

// listWithFallback lists messages for query and, when it matches nothing,
// the first fallback query that does. Only a failure of query itself is
// returned.
func (s *Service) listWithFallback(ctx context.Context, logger *slog.Logger, mailbox Mailbox, query string, maxResults int) ([]string, string, error) {
	ids, err := mailbox.ListMessages(ctx, query, int64(maxResults))
	if err != nil {
		return nil, query, apperr.External("importer.list", err)
	}
	if len(ids) > 0 {
		return ids, query, nil
	}

	for _, fq := range FallbackQueries {
		fids, err := mailbox.ListMessages(ctx, fq, fallbackMaxResults)
		if err != nil {
			logger.Warn("fallback query failed", logging.Query(fq), logging.Err(err))
			continue
		}
		if len(fids) > 0 {
			logger.Info("using fallback query", logging.Query(fq), "count", len(fids))
			return fids, fq, nil
		}
	}
	return nil, query, nil
}

// discover fetches each message and flattens its attachments into the
// ordered work list. A leaf whose storage path already appeared earlier in
// the list is marked duplicate so it is neither downloaded nor classified.
func (s *Service) discover(ctx context.Context, logger *slog.Logger, mailbox Mailbox, userID string, ids []string) []*item {
	var items []*item
	seen := make(map[string]bool)
	for _, id := range ids {
		msg, err := mailbox.GetMessage(ctx, id)
		if err != nil {
			logger.Warn("failed to fetch message", logging.MessageID(id), logging.Err(err))
			items = append(items, &item{messageID: id, err: err})
			continue
		}
		leaves := msg.Leaves()
		logger.Debug("message scanned", logging.MessageID(id), "attachments", len(leaves))
		for i := range leaves {
			it := &item{messageID: id, leaf: &leaves[i]}
			path := storage.StoragePath(userID, it.leaf.Filename)
			it.duplicate = seen[path]
			seen[path] = true
			items = append(items, it)
		}
	}
	return items
}

// analyze downloads and classifies attachments that are not already stored.
// Each goroutine writes only its own item.
func (s *Service) analyze(ctx context.Context, logger *slog.Logger, mailbox Mailbox, userID string, items []*item) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, it := range items {
		if it.leaf == nil || it.duplicate {
			continue
		}
		g.Go(func() error {
			path := storage.StoragePath(userID, it.leaf.Filename)
			if exists, err := s.metadata.Exists(ctx, userID, path); err == nil && exists {
				it.duplicate = true
				return nil
			}

			data, err := mailbox.GetAttachment(ctx, it.messageID, it.leaf.AttachmentRef)
			if err != nil {
				it.fetchErr = err
				return nil
			}
			it.data = data
			it.summary, it.department = s.classify(ctx, logger, it.leaf, data)
			return nil
		})
	}
	_ = g.Wait()
}

// classify runs the classifier and maps failures to placeholder summaries.
func (s *Service) classify(ctx context.Context, logger *slog.Logger, leaf *gmail.Leaf, data []byte) (summary, department string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("classifier panicked", logging.Filename(leaf.Filename), "panic", r)
			summary = fmt.Sprintf("Analysis failed: %v", r)
			department = classifier.DefaultDepartment
		}
	}()

	// The media type comes from the filename; the part's declared type is
	// not trusted.
	res := s.classifier.Classify(ctx, classifier.NewRequest(data, leaf.Filename, ""))
	if !res.Failed() {
		return res.Summary, res.Department
	}
	if isScanned(res.ErrorMessage) {
		return fmt.Sprintf("Scanned document: %s (requires manual review)", leaf.Filename), classifier.DefaultDepartment
	}
	return "Analysis failed: " + res.ErrorMessage, classifier.DefaultDepartment
}

// store runs the dedup, upload and insert steps for one item.
func (s *Service) store(ctx context.Context, userID string, it *item) Outcome {
	if it.err != nil {
		return Outcome{MessageID: it.messageID, Status: StatusError, Error: it.err.Error()}
	}

	out := Outcome{MessageID: it.messageID, Filename: it.leaf.Filename}
	if it.duplicate {
		out.Status = StatusSkippedDuplicate
		return out
	}
	if it.fetchErr != nil {
		out.Status = StatusError
		out.Error = it.fetchErr.Error()
		return out
	}

	path := storage.StoragePath(userID, it.leaf.Filename)
	exists, err := s.metadata.Exists(ctx, userID, path)
	if err != nil {
		out.Status = StatusError
		out.Error = err.Error()
		return out
	}
	if exists {
		out.Status = StatusSkippedDuplicate
		return out
	}

	if err := s.objects.Put(ctx, path, it.data, it.leaf.MimeType); err != nil {
		out.Status = StatusUploadFailed
		out.Error = err.Error()
		return out
	}

	out.Department = it.department
	out.Summary = it.summary
	err = s.metadata.Insert(ctx, storage.Document{
		UserID:     userID,
		Name:       it.leaf.Filename,
		Path:       path,
		MimeType:   it.leaf.MimeType,
		SizeBytes:  int64(len(it.data)),
		AISummary:  it.summary,
		Department: it.department,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		return Outcome{MessageID: it.messageID, Filename: it.leaf.Filename, Status: StatusSkippedDuplicate}
	case err != nil:
		out.Status = StatusPartiallyImported
		out.Error = err.Error()
	default:
		out.Status = StatusImported
	}
	return out
}

func logOutcome(logger *slog.Logger, out Outcome) {
	attrs := []any{logging.MessageID(out.MessageID), logging.Filename(out.Filename), "outcome", out.Status}
	switch out.Status {
	case StatusImported, StatusSkippedDuplicate:
		logger.Info("attachment processed", attrs...)
	default:
		logger.Warn("attachment not imported", append(attrs, "reason", out.Error)...)
	}
}

func isScanned(msg string) bool {
	for _, p := range scannedPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
