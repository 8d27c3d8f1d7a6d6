package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxintake/internal/apperr"
	"github.com/teemow/inboxintake/internal/classifier"
	"github.com/teemow/inboxintake/internal/gmail"
	"github.com/teemow/inboxintake/internal/session"
	"github.com/teemow/inboxintake/internal/storage"
)

const testState = "state-1"

type listCall struct {
	query string
	max   int64
}

type fakeMailbox struct {
	mu          sync.Mutex
	results     map[string][]string
	listErrs    map[string]error
	messages    map[string]*gmail.Message
	attachments map[string][]byte
	attachErrs  map[string]error
	listCalls   []listCall
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		results:     map[string][]string{},
		listErrs:    map[string]error{},
		messages:    map[string]*gmail.Message{},
		attachments: map[string][]byte{},
		attachErrs:  map[string]error{},
	}
}

// addMessage registers a message whose attachments are the given filenames,
// each with content "content of NAME".
func (m *fakeMailbox) addMessage(id string, filenames ...string) {
	root := &gmail.AttachmentNode{MimeType: "multipart/mixed"}
	for i, name := range filenames {
		ref := fmt.Sprintf("%s-att-%d", id, i)
		root.Children = append(root.Children, &gmail.AttachmentNode{
			Filename:      name,
			MimeType:      classifier.MimeTypeFor(name),
			AttachmentRef: ref,
		})
		m.attachments[ref] = []byte("content of " + name)
	}
	m.messages[id] = &gmail.Message{ID: id, Root: root}
}

func (m *fakeMailbox) ListMessages(_ context.Context, query string, max int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls = append(m.listCalls, listCall{query, max})
	if err := m.listErrs[query]; err != nil {
		return nil, err
	}
	ids := m.results[query]
	if int64(len(ids)) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (m *fakeMailbox) GetMessage(_ context.Context, id string) (*gmail.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("failed to get message %s: not found", id)
	}
	return msg, nil
}

func (m *fakeMailbox) GetAttachment(_ context.Context, messageID, ref string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.attachErrs[ref]; err != nil {
		return nil, err
	}
	data, ok := m.attachments[ref]
	if !ok || len(data) == 0 {
		return nil, gmail.ErrNoAttachmentData
	}
	return data, nil
}

type fakeFactory struct {
	mailbox   *fakeMailbox
	err       error
	refreshTo *oauth2.Token
}

func (f *fakeFactory) Open(_ context.Context, _ *session.Session, onRefresh func(*oauth2.Token)) (Mailbox, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.refreshTo != nil {
		onRefresh(f.refreshTo)
	}
	return f.mailbox, nil
}

type fakeClassifier struct {
	mu       sync.Mutex
	results  map[string]classifier.Result
	calls    []string
	mimes    map[string]string
	active   int32
	maxSeen  int32
	delay    time.Duration
	panicFor string
}

func (c *fakeClassifier) Classify(_ context.Context, req classifier.Request) classifier.Result {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	for {
		m := atomic.LoadInt32(&c.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&c.maxSeen, m, n) {
			break
		}
	}
	if c.delay > 0 {
		time.Sleep(c.delay)
	}

	c.mu.Lock()
	c.calls = append(c.calls, req.Filename)
	if c.mimes == nil {
		c.mimes = map[string]string{}
	}
	c.mimes[req.Filename] = req.MimeType
	res, ok := c.results[req.Filename]
	c.mu.Unlock()

	if req.Filename == c.panicFor {
		panic("boom")
	}
	if ok {
		return res
	}
	return classifier.Result{
		Summary:        "Summary of " + req.Filename,
		Department:     "Finance",
		Priority:       "Medium",
		ActionRequired: "File it",
	}
}

type fakeObjects struct {
	mu     sync.Mutex
	puts   []string
	failOn map[string]bool
	data   map[string][]byte
}

func (o *fakeObjects) Put(_ context.Context, path string, data []byte, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.puts = append(o.puts, path)
	if o.failOn[path] {
		return errors.New("storage unavailable")
	}
	if o.data == nil {
		o.data = map[string][]byte{}
	}
	o.data[path] = data
	return nil
}

type fakeMetadata struct {
	mu         sync.Mutex
	docs       map[string]storage.Document
	insertFail map[string]bool
	existsErr  error
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{docs: map[string]storage.Document{}, insertFail: map[string]bool{}}
}

func (m *fakeMetadata) Exists(_ context.Context, userID, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, ok := m.docs[userID+"|"+path]
	return ok, nil
}

func (m *fakeMetadata) Insert(_ context.Context, d storage.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertFail[d.Path] {
		return errors.New("insert document: connection refused")
	}
	key := d.UserID + "|" + d.Path
	if _, ok := m.docs[key]; ok {
		return storage.ErrDuplicate
	}
	m.docs[key] = d
	return nil
}

func (m *fakeMetadata) ListByUser(_ context.Context, userID string, _ int) ([]storage.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Document
	for _, d := range m.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	runs     []string
	refresh  []string
}

func (r *recordingMetrics) RecordImportOutcome(_ context.Context, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, status)
}

func (r *recordingMetrics) RecordImportRun(_ context.Context, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, result)
}

func (r *recordingMetrics) RecordOAuthTokenRefresh(_ context.Context, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refresh = append(r.refresh, result)
}

type harness struct {
	svc        *Service
	sessions   *session.MemoryStore
	mailbox    *fakeMailbox
	factory    *fakeFactory
	classifier *fakeClassifier
	objects    *fakeObjects
	metadata   *fakeMetadata
	metrics    *recordingMetrics
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		sessions:   session.NewMemoryStore(time.Hour, nil),
		mailbox:    newFakeMailbox(),
		classifier: &fakeClassifier{results: map[string]classifier.Result{}},
		objects:    &fakeObjects{failOn: map[string]bool{}},
		metadata:   newFakeMetadata(),
		metrics:    &recordingMetrics{},
	}
	t.Cleanup(h.sessions.Stop)
	h.factory = &fakeFactory{mailbox: h.mailbox}

	require.NoError(t, h.sessions.Put(context.Background(), testState, &session.Session{
		UserID: "user-1",
		Token:  &oauth2.Token{AccessToken: "at", RefreshToken: "rt"},
	}))

	svc, err := NewService(Config{
		Sessions:    h.sessions,
		Mailboxes:   h.factory,
		Classifier:  h.classifier,
		Objects:     h.objects,
		Metadata:    h.metadata,
		Metrics:     h.metrics,
		Concurrency: 2,
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func statuses(r *Report) []Status {
	var out []Status
	for _, d := range r.Details {
		out = append(out, d.Status)
	}
	return out
}

func filenames(r *Report) []string {
	var out []string
	for _, d := range r.Details {
		out = append(out, d.Filename)
	}
	return out
}

func TestNewService_RequiresCollaborators(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestImportAttachments_Auth(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sessions.Put(context.Background(), "pending", &session.Session{UserID: "user-2"}))

	tests := []struct {
		name  string
		state string
	}{
		{"empty state", ""},
		{"unknown state", "nope"},
		{"pending session", "pending"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.ImportAttachments(context.Background(), tt.state, "", 0)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.AuthError))
		})
	}
	assert.Empty(t, h.mailbox.listCalls)
}

func TestImportAttachments_MailboxOpenFailure(t *testing.T) {
	h := newHarness(t)
	h.factory.err = errors.New("bad transport")

	_, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ExternalServiceError))
}

func TestImportAttachments_DiscoveryOrder(t *testing.T) {
	h := newHarness(t)
	h.classifier.delay = 5 * time.Millisecond

	h.mailbox.addMessage("m1", "a.pdf", "b.png")
	nested := &gmail.Message{ID: "m2", Root: &gmail.AttachmentNode{
		MimeType: "multipart/mixed",
		Children: []*gmail.AttachmentNode{
			{MimeType: "multipart/related", Children: []*gmail.AttachmentNode{
				{Filename: "c.jpg", MimeType: "image/jpeg", AttachmentRef: "m2-c"},
			}},
			{Filename: "d.pdf", MimeType: "application/pdf", AttachmentRef: "m2-d"},
		},
	}}
	h.mailbox.messages["m2"] = nested
	h.mailbox.attachments["m2-c"] = []byte("c")
	h.mailbox.attachments["m2-d"] = []byte("d")
	h.mailbox.results[DefaultQuery] = []string{"m1", "m2"}

	report, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)

	assert.Equal(t, DefaultQuery, report.Query)
	assert.Equal(t, []string{"a.pdf", "b.png", "c.jpg", "d.pdf"}, filenames(report))
	assert.Equal(t, 4, report.Imported)
	assert.Equal(t, []string{"user-1/a.pdf", "user-1/b.png", "user-1/c.jpg", "user-1/d.pdf"}, h.objects.puts)
	assert.Equal(t, "m2", report.Details[2].MessageID)
	assert.Equal(t, "Finance", report.Details[0].Department)
	assert.Equal(t, "Summary of a.pdf", report.Details[0].Summary)
	assert.LessOrEqual(t, h.classifier.maxSeen, int32(2))

	assert.Equal(t, []listCall{{DefaultQuery, DefaultMaxResults}}, h.mailbox.listCalls)
	assert.Equal(t, []string{"success"}, h.metrics.runs)
	assert.Len(t, h.metrics.outcomes, 4)

	doc := h.metadata.docs["user-1|user-1/a.pdf"]
	assert.Equal(t, "a.pdf", doc.Name)
	assert.Equal(t, "application/pdf", doc.MimeType)
	assert.Equal(t, int64(len("content of a.pdf")), doc.SizeBytes)
	assert.False(t, doc.IsRead)
}

func TestImportAttachments_PartialFailure(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "one.pdf", "two.pdf", "three.pdf")
	h.mailbox.results["has:attachment"] = []string{"m1"}
	h.objects.failOn["user-1/two.pdf"] = true

	report, err := h.svc.ImportAttachments(context.Background(), testState, "has:attachment", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"one.pdf", "two.pdf", "three.pdf"}, filenames(report))
	assert.Equal(t, []Status{StatusImported, StatusUploadFailed, StatusImported}, statuses(report))
	assert.Equal(t, 2, report.Imported)
	assert.NotEmpty(t, report.Details[1].Error)
	assert.NotContains(t, h.metadata.docs, "user-1|user-1/two.pdf")
}

func TestImportAttachments_Idempotent(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "a.pdf", "b.png")
	h.mailbox.results[DefaultQuery] = []string{"m1"}

	first, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)
	calls := len(h.classifier.calls)

	second, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, []Status{StatusSkippedDuplicate, StatusSkippedDuplicate}, statuses(second))
	assert.Len(t, h.classifier.calls, calls)
	assert.Len(t, h.objects.puts, 2)
}

func TestImportAttachments_SameFilenameTwiceInOneRun(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "report.pdf")
	h.mailbox.addMessage("m2", "report.pdf")
	h.mailbox.results[DefaultQuery] = []string{"m1", "m2"}

	report, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusImported, StatusSkippedDuplicate}, statuses(report))
	assert.Len(t, h.objects.puts, 1)
	assert.Equal(t, []string{"report.pdf"}, h.classifier.calls)
}

func TestImportAttachments_MimeTypeFromFilename(t *testing.T) {
	h := newHarness(t)
	h.mailbox.messages["m1"] = &gmail.Message{ID: "m1", Root: &gmail.AttachmentNode{
		MimeType: "multipart/mixed",
		Children: []*gmail.AttachmentNode{
			{Filename: "invoice", MimeType: "application/pdf", AttachmentRef: "r1"},
			{Filename: "scan.png", MimeType: "application/octet-stream", AttachmentRef: "r2"},
		},
	}}
	h.mailbox.attachments["r1"] = []byte("%PDF-1.4")
	h.mailbox.attachments["r2"] = []byte("png")
	h.mailbox.results[DefaultQuery] = []string{"m1"}

	_, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"invoice": "", "scan.png": "image/png"}, h.classifier.mimes)
}

func TestImportAttachments_FallbackQueries(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m9", "late.pdf")
	h.mailbox.listErrs["is:unread has:attachment"] = errors.New("rate limited")
	h.mailbox.results["has:attachment newer_than:7d"] = []string{"m9"}
	h.mailbox.results["has:attachment"] = []string{"m9", "m10"}

	report, err := h.svc.ImportAttachments(context.Background(), testState, "from:boss filename:xlsx", 25)
	require.NoError(t, err)

	assert.Equal(t, "has:attachment newer_than:7d", report.Query)
	assert.Equal(t, []string{"late.pdf"}, filenames(report))
	assert.Equal(t, []listCall{
		{"from:boss filename:xlsx", 25},
		{"is:unread has:attachment", fallbackMaxResults},
		{"has:attachment newer_than:7d", fallbackMaxResults},
	}, h.mailbox.listCalls)
}

func TestImportAttachments_NothingFound(t *testing.T) {
	h := newHarness(t)

	report, err := h.svc.ImportAttachments(context.Background(), testState, "label:empty", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Imported)
	assert.Empty(t, report.Details)
	assert.Len(t, h.mailbox.listCalls, 1+len(FallbackQueries))
}

func TestImportAttachments_PrimaryListingFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.mailbox.listErrs[DefaultQuery] = errors.New("quota exceeded")

	_, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ExternalServiceError))
	assert.Len(t, h.mailbox.listCalls, 1)
	assert.Equal(t, []string{"error"}, h.metrics.runs)
}

func TestImportAttachments_PerItemFailures(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "ok.pdf", "empty.pdf", "broken.png")
	h.mailbox.attachments["m1-att-1"] = nil
	h.mailbox.attachErrs["m1-att-2"] = errors.New("backend error")
	h.mailbox.addMessage("m3", "after.pdf")
	h.mailbox.results[DefaultQuery] = []string{"m1", "missing", "m3"}

	report, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusImported, StatusError, StatusError, StatusError, StatusImported}, statuses(report))
	assert.Equal(t, gmail.ErrNoAttachmentData.Error(), report.Details[1].Error)
	assert.Equal(t, "missing", report.Details[3].MessageID)
	assert.Empty(t, report.Details[3].Filename)
	assert.Equal(t, 2, report.Imported)
}

func TestImportAttachments_ClassificationPlaceholders(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "scan.pdf", "odd.pdf", "crash.png")
	h.mailbox.results[DefaultQuery] = []string{"m1"}
	h.classifier.results["scan.pdf"] = classifier.Result{Priority: "Low", ErrorMessage: "Could not process image-only PDF: no page could be rendered"}
	h.classifier.results["odd.pdf"] = classifier.Result{Priority: "Low", ErrorMessage: "An unexpected error occurred: model overloaded"}
	h.classifier.panicFor = "crash.png"

	report, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)
	require.Len(t, report.Details, 3)

	assert.Equal(t, "Scanned document: scan.pdf (requires manual review)", report.Details[0].Summary)
	assert.Equal(t, "Analysis failed: An unexpected error occurred: model overloaded", report.Details[1].Summary)
	assert.Equal(t, "Analysis failed: boom", report.Details[2].Summary)
	for _, d := range report.Details {
		assert.Equal(t, StatusImported, d.Status)
		assert.Equal(t, classifier.DefaultDepartment, d.Department)
	}
}

func TestImportAttachments_InsertFailureIsPartial(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "a.pdf", "b.pdf")
	h.mailbox.results[DefaultQuery] = []string{"m1"}
	h.metadata.insertFail["user-1/a.pdf"] = true

	report, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)

	assert.Equal(t, []Status{StatusPartiallyImported, StatusImported}, statuses(report))
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, "Summary of a.pdf", report.Details[0].Summary)
	assert.Contains(t, report.Details[0].Error, "connection refused")
	assert.Contains(t, h.objects.data, "user-1/a.pdf")
}

func TestImportAttachments_DedupLookupFailure(t *testing.T) {
	h := newHarness(t)
	h.mailbox.addMessage("m1", "a.pdf")
	h.mailbox.results[DefaultQuery] = []string{"m1"}
	h.metadata.existsErr = errors.New("metadata store down")

	report, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)
	assert.Equal(t, []Status{StatusError}, statuses(report))
	assert.Empty(t, h.objects.puts)
}

func TestImportAttachments_PersistsRefreshedToken(t *testing.T) {
	h := newHarness(t)
	h.factory.refreshTo = &oauth2.Token{AccessToken: "fresh", RefreshToken: "rt"}

	_, err := h.svc.ImportAttachments(context.Background(), testState, "", 0)
	require.NoError(t, err)

	sess, err := h.sessions.Get(context.Background(), testState)
	require.NoError(t, err)
	assert.Equal(t, "fresh", sess.Token.AccessToken)
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, []string{"success"}, h.metrics.refresh)
}

func TestTestSearch(t *testing.T) {
	h := newHarness(t)
	h.mailbox.results["has:attachment"] = []string{"m1", "m2", "m3"}
	h.mailbox.results["from:alice"] = []string{"m4"}
	h.mailbox.listErrs["is:unread"] = errors.New("boom")

	results, err := h.svc.TestSearch(context.Background(), testState, "from:alice")
	require.NoError(t, err)
	require.Len(t, results, len(DiagnosticQueries)+1)

	assert.Equal(t, QueryResult{Query: "from:alice", Count: 1, MessageIDs: []string{"m4"}}, results[0])
	for _, r := range results {
		switch r.Query {
		case "has:attachment":
			assert.Equal(t, 3, r.Count)
			assert.Equal(t, []string{"m1", "m2"}, r.MessageIDs)
		case "is:unread":
			assert.Equal(t, "boom", r.Error)
		}
	}
	for _, c := range h.mailbox.listCalls {
		assert.Equal(t, int64(diagnosticMaxResults), c.max)
	}

	results, err = h.svc.TestSearch(context.Background(), testState, "has:attachment")
	require.NoError(t, err)
	assert.Len(t, results, len(DiagnosticQueries))

	_, err = h.svc.TestSearch(context.Background(), "unknown", "")
	assert.True(t, apperr.Is(err, apperr.AuthError))
}

func TestReportCount(t *testing.T) {
	r := &Report{Details: []Outcome{{Status: StatusImported}, {Status: StatusError}, {Status: StatusImported}}}
	assert.Equal(t, 2, r.Count(StatusImported))
	assert.Equal(t, 0, r.Count(StatusUploadFailed))
}
