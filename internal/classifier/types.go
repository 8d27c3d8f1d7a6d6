package classifier

import (
	"mime"
	"path/filepath"
	"strings"
)

// Departments is the fixed department vocabulary. Order matters: it is the
// tie-break for keyword fallback matching.
var Departments = []string{
	"HR",
	"IT",
	"Finance",
	"Operations",
	"Legal",
	"Safety & Security",
	"Procurement",
}

// Priority levels, in keyword fallback order.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// Priorities is the fixed priority vocabulary in fallback match order.
var Priorities = []string{PriorityHigh, PriorityMedium, PriorityLow}

// Defaults applied when the model omits a field or the response is unparsed.
const (
	DefaultDepartment     = "Unknown"
	DefaultPriority       = PriorityMedium
	DefaultActionRequired = "Review required"
	ManualReviewAction    = "Review and categorize manually"
)

const (
	actionNotApplicable = "N/A"
	actionManualReview  = "Manual review needed"
)

// MimePDF is the only non-image media type the classifier accepts.
const MimePDF = "application/pdf"

// Content categories used in logs and metrics.
const (
	CategoryImage   = "image"
	CategoryPDF     = "pdf"
	CategoryUnknown = "unknown"
	CategoryOther   = "other"
)

// extensionTypes pins common types so results do not depend on the
// platform mime table.
var extensionTypes = map[string]string{
	".txt":  "text/plain",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".webp": "image/webp",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  MimePDF,
}

// Request is the immutable input of a single classification.
type Request struct {
	Content            []byte
	Filename           string
	MimeType           string
	CustomInstructions string
}

// NewRequest builds a Request, deriving the media type from the filename.
func NewRequest(content []byte, filename, customInstructions string) Request {
	return Request{
		Content:            content,
		Filename:           filename,
		MimeType:           MimeTypeFor(filename),
		CustomInstructions: customInstructions,
	}
}

// MimeTypeFor infers a media type from the filename extension.
// It returns "" when the type cannot be determined.
func MimeTypeFor(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return ""
	}
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if t == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(t)
	if err != nil {
		return ""
	}
	return mediaType
}

// Result is the normalized outcome of a classification.
//
// When ErrorMessage is set the other fields are empty or defaulted and the
// result must be treated as failed.
type Result struct {
	Summary        string `json:"summary"`
	Department     string `json:"department"`
	Priority       string `json:"priority"`
	ActionRequired string `json:"action_required"`
	ErrorMessage   string `json:"error,omitempty"`
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.ErrorMessage != ""
}

func errorResult(msg, action string) Result {
	return Result{
		Priority:       PriorityLow,
		ActionRequired: action,
		ErrorMessage:   msg,
	}
}

// Image is an image payload ready to be sent to the model.
type Image struct {
	MimeType string
	Data     []byte
}

// Input is what gets submitted to the model alongside the instructions.
// Exactly one of Text or Image is set.
type Input struct {
	Text  string
	Image *Image
}

// TextInput wraps extracted document text.
func TextInput(text string) Input {
	return Input{Text: text}
}

// ImageInput wraps an image payload.
func ImageInput(img *Image) Input {
	return Input{Image: img}
}
