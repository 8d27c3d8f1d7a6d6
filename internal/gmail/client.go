package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/inboxintake/internal/instrumentation"
)

const (
	// userID is the Gmail API alias for the authenticated user.
	userID = "me"

	// maxPageSize is the Gmail API cap on messages per list page.
	maxPageSize = 100

	// DefaultCallTimeout bounds a single Gmail API call.
	DefaultCallTimeout = 30 * time.Second

	serviceName = "gmail"
)

// ErrNoAttachmentData is returned when an attachment body is empty.
var ErrNoAttachmentData = errors.New("attachment has no data")

// APIRecorder records Google API call outcomes.
type APIRecorder interface {
	RecordGoogleAPIOperation(ctx context.Context, service, operation, status string, duration time.Duration)
}

type noopRecorder struct{}

func (noopRecorder) RecordGoogleAPIOperation(context.Context, string, string, string, time.Duration) {}

// Client wraps the Gmail Users service
type Client struct {
	svc      *gmail.UsersService
	recorder APIRecorder
	timeout  time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRecorder sets the metrics recorder for API calls.
func WithRecorder(r APIRecorder) ClientOption {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithCallTimeout sets the per-call deadline.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a Gmail client using an HTTP client that already
// carries OAuth credentials. Extra API options (such as an endpoint
// override) may be passed through apiOpts.
func NewClient(ctx context.Context, httpClient *http.Client, apiOpts []option.ClientOption, opts ...ClientOption) (*Client, error) {
	if httpClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	svc, err := gmail.NewService(ctx, append([]option.ClientOption{option.WithHTTPClient(httpClient)}, apiOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	c := &Client{
		svc:      svc.Users,
		recorder: noopRecorder{},
		timeout:  DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListMessages returns the IDs of up to maxResults messages matching q,
// making multiple API calls if necessary.
func (c *Client) ListMessages(ctx context.Context, q string, maxResults int64) ([]string, error) {
	var ids []string
	pageToken := ""

	for {
		remaining := maxResults - int64(len(ids))
		if remaining <= 0 {
			break
		}

		pageSize := remaining
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}

		req := c.svc.Messages.List(userID).Q(q).MaxResults(pageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}

		var res *gmail.ListMessagesResponse
		attrs := instrumentation.NewSpanAttributeBuilder().WithQuery(q)
		err := c.call(ctx, "list", attrs, func(ctx context.Context) error {
			var err error
			res, err = req.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list messages for %q: %w", q, err)
		}

		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}

		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	if int64(len(ids)) > maxResults {
		ids = ids[:maxResults]
	}
	return ids, nil
}

// GetMessage retrieves a full Gmail message and converts its part tree.
func (c *Client) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}

	var msg *gmail.Message
	attrs := instrumentation.NewSpanAttributeBuilder().WithMessage(messageID)
	err := c.call(ctx, "get", attrs, func(ctx context.Context) error {
		var err error
		msg, err = c.svc.Messages.Get(userID, messageID).Format("full").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}

	return &Message{
		ID:      msg.Id,
		Subject: HeaderValue(msg, "Subject"),
		Root:    NodeFromPart(msg.Payload),
	}, nil
}

// GetAttachment retrieves and decodes the content of an attachment.
func (c *Client) GetAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("messageID is required")
	}
	if attachmentID == "" {
		return nil, fmt.Errorf("attachmentID is required")
	}

	var att *gmail.MessagePartBody
	attrs := instrumentation.NewSpanAttributeBuilder().WithMessage(messageID)
	err := c.call(ctx, "attachment", attrs, func(ctx context.Context) error {
		var err error
		att, err = c.svc.Messages.Attachments.Get(userID, messageID, attachmentID).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get attachment %s: %w", attachmentID, err)
	}

	if att.Size > MaxAttachmentSize {
		return nil, fmt.Errorf("attachment size %d exceeds maximum size %d", att.Size, MaxAttachmentSize)
	}
	if att.Data == "" {
		return nil, ErrNoAttachmentData
	}

	return decodeBody(att.Data)
}

// call runs fn in a span under the per-call deadline and records the outcome.
func (c *Client) call(ctx context.Context, operation string, attrs *instrumentation.SpanAttributeBuilder, fn func(context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, serviceName, operation, attrs.Build()...)
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	instrumentation.EndSpan(span, err)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.recorder.RecordGoogleAPIOperation(ctx, serviceName, operation, status, time.Since(start))
	return err
}

// HeaderValue extracts a header value from a Gmail message
func HeaderValue(m *gmail.Message, header string) string {
	mpart := m.Payload
	if mpart == nil {
		return ""
	}
	for _, mph := range mpart.Headers {
		if mph.Name == header {
			return mph.Value
		}
	}
	return ""
}
