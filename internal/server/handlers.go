package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/teemow/inboxintake/internal/apperr"
	"github.com/teemow/inboxintake/internal/classifier"
	"github.com/teemow/inboxintake/internal/importer"
	"github.com/teemow/inboxintake/internal/instrumentation"
	"github.com/teemow/inboxintake/internal/logging"
	"github.com/teemow/inboxintake/internal/session"
	"github.com/teemow/inboxintake/internal/storage"
)

const (
	msgNotConfigured = "Gmail integration is not configured"
	msgInvalidState  = "Invalid OAuth state or missing code"
	msgAuthFirst     = "Missing or invalid state. Authenticate first."
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Input("server.decode", "invalid JSON body: %v", err)
	}
	return nil
}

type analyzeRequest struct {
	FileData     string `json:"file_data"`
	Filename     string `json:"filename"`
	CustomPrompt string `json:"custom_prompt,omitempty"`
}

type analyzeResponse struct {
	Success        bool   `json:"success"`
	Summary        string `json:"summary"`
	Department     string `json:"department"`
	Priority       string `json:"priority"`
	ActionRequired string `json:"action_required"`
}

func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	var req analyzeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, apperr.HTTPStatus(apperr.KindOf(err)), userMessage(err))
		return
	}
	if req.FileData == "" || req.Filename == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields: file_data and filename")
		return
	}

	content, err := decodeFileData(req.FileData)
	if err != nil {
		writeError(w, apperr.HTTPStatus(apperr.KindOf(err)), userMessage(err))
		return
	}

	res := s.classifier.Classify(r.Context(), classifier.NewRequest(content, req.Filename, req.CustomPrompt))
	if res.Failed() {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:        true,
		Summary:        res.Summary,
		Department:     res.Department,
		Priority:       res.Priority,
		ActionRequired: res.ActionRequired,
	})
}

// decodeFileData accepts a data URL ("data:<type>;base64,<payload>") or a
// bare base64 payload, padded or not.
func decodeFileData(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, apperr.Input("server.decode", "malformed data URL")
		}
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
	}
	if err != nil {
		return nil, apperr.Input("server.decode", "file_data is not valid base64")
	}
	if len(data) == 0 {
		return nil, apperr.Input("server.decode", "file_data is empty")
	}
	return data, nil
}

type authURLResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

func (s *Server) handleAuthURL(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user_id")
		return
	}
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	state := session.NewState()
	if err := s.sessions.Put(r.Context(), state, &session.Session{UserID: userID, CreatedAt: time.Now()}); err != nil {
		s.logger.Error("failed to store pending session", logging.UserHash(userID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to start authorization")
		return
	}

	writeJSON(w, http.StatusOK, authURLResponse{AuthURL: s.oauth.AuthCodeURL(state), State: state})
}

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
<title>{{if .Success}}Gmail Authorization Successful{{else}}Gmail Authorization Error{{end}}</title>
<style>
body { font-family: Arial, sans-serif; text-align: center; padding: 50px; margin: 0; color: white;
  background: {{if .Success}}linear-gradient(135deg, #667eea 0%, #764ba2 100%){{else}}#ff6b6b{{end}}; }
.container { background: rgba(255,255,255,0.1); padding: 30px; border-radius: 10px; max-width: 400px; margin: 0 auto; }
.message { font-size: 18px; margin-bottom: 20px; }
.sub-message { font-size: 14px; opacity: 0.8; }
</style>
</head>
<body>
<div class="container">
{{if .Success}}<div class="message">Gmail Authorization Successful!</div>
<div class="sub-message">You can now close this window and return to the application.</div>
{{else}}<div class="message">Authorization Failed</div>
<div class="sub-message">Error: {{.Error}}</div>
{{end}}</div>
<script>setTimeout(() => window.close(), {{if .Success}}2000{{else}}3000{{end}});</script>
</body>
</html>
`))

type callbackData struct {
	Success bool
	Error   string
}

func renderCallback(w http.ResponseWriter, status int, data callbackData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, data)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		renderCallback(w, http.StatusBadRequest, callbackData{Error: e})
		return
	}
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		writeError(w, http.StatusBadRequest, msgInvalidState)
		return
	}

	sess, err := s.sessions.Get(ctx, state)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusBadRequest, msgInvalidState)
		return
	}
	if err != nil {
		s.logger.Error("failed to load pending session", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to load session")
		return
	}

	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.logger.Warn("authorization code exchange failed", logging.UserHash(sess.UserID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to exchange authorization code: %v", err))
		return
	}

	sess.Token = token
	if err := s.sessions.Put(ctx, state, sess); err != nil {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.logger.Error("failed to store token", logging.UserHash(sess.UserID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to store credentials")
		return
	}

	s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	s.logger.Info("gmail authorized", logging.UserHash(sess.UserID))
	renderCallback(w, http.StatusOK, callbackData{Success: true})
}

type importRequest struct {
	State      string `json:"state"`
	Query      string `json:"query,omitempty"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req importRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, apperr.HTTPStatus(apperr.KindOf(err)), userMessage(err))
		return
	}
	if req.State == "" {
		writeError(w, http.StatusBadRequest, msgAuthFirst)
		return
	}
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	audit := instrumentation.NewImportAudit(s.userFor(r, req.State), req.Query).WithSpanContext(ctx)
	report, err := s.importer.ImportAttachments(ctx, req.State, req.Query, req.MaxResults)
	if err != nil {
		s.audit.LogImport(audit.Complete(err))
		writeImportError(w, err)
		return
	}

	counts := make(map[string]int)
	for _, d := range report.Details {
		counts[string(d.Status)]++
	}
	audit.Query = report.Query
	s.audit.LogImport(audit.WithOutcome(report.Imported, counts).Complete(nil))
	writeJSON(w, http.StatusOK, report)
}

type testSearchRequest struct {
	State string `json:"state"`
	Query string `json:"query,omitempty"`
}

type testSearchResponse struct {
	Results []importer.QueryResult `json:"results"`
}

func (s *Server) handleTestSearch(w http.ResponseWriter, r *http.Request) {
	var req testSearchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, apperr.HTTPStatus(apperr.KindOf(err)), userMessage(err))
		return
	}
	if req.State == "" {
		writeError(w, http.StatusBadRequest, msgAuthFirst)
		return
	}
	if s.importer == nil {
		writeError(w, http.StatusServiceUnavailable, msgNotConfigured)
		return
	}

	results, err := s.importer.TestSearch(r.Context(), req.State, req.Query)
	if err != nil {
		writeImportError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, testSearchResponse{Results: results})
}

// writeImportError maps auth failures to 400 and everything else to 500.
func writeImportError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if apperr.Is(err, apperr.AuthError) {
		status = http.StatusBadRequest
	}
	writeError(w, status, userMessage(err))
}

// userMessage strips the operation prefix of classified errors.
func userMessage(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Err != nil {
		return ae.Err.Error()
	}
	return err.Error()
}

// userFor resolves the user of a state for auditing, or "" if unknown.
func (s *Server) userFor(r *http.Request, state string) string {
	sess, err := s.sessions.Get(r.Context(), state)
	if err != nil {
		return ""
	}
	return sess.UserID
}

type documentsResponse struct {
	Documents []storage.Document `json:"documents"`
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "Missing user_id")
		return
	}
	if s.documents == nil {
		writeError(w, http.StatusServiceUnavailable, "Document storage is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	docs, err := s.documents.ListByUser(r.Context(), userID, limit)
	if err != nil {
		s.logger.Error("failed to list documents", logging.UserHash(userID), logging.Err(err))
		writeError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []storage.Document{}
	}
	writeJSON(w, http.StatusOK, documentsResponse{Documents: docs})
}
