package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultPdftoppmPath is the poppler rasterizer looked up on PATH.
	DefaultPdftoppmPath = "pdftoppm"

	// DefaultRenderTimeout bounds a single first-page render.
	DefaultRenderTimeout = 30 * time.Second

	// DefaultRenderDPI is the resolution of rendered pages.
	DefaultRenderDPI = 150
)

// PDFTextExtractor reads the text layer of a PDF with ledongthuc/pdf.
type PDFTextExtractor struct{}

// ExtractText returns the text of every page, concatenated in page order.
// The pdf package panics on some malformed inputs; that is reported as an
// error.
func (PDFTextExtractor) ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}
		sb.WriteString(pageText)
	}
	return sb.String(), nil
}

// PdftoppmRenderer renders the first page of a PDF to PNG using poppler's
// pdftoppm binary.
type PdftoppmRenderer struct {
	path    string
	timeout time.Duration
	dpi     int
}

// NewPdftoppmRenderer creates a renderer invoking the binary at path.
func NewPdftoppmRenderer(path string, timeout time.Duration) *PdftoppmRenderer {
	if path == "" {
		path = DefaultPdftoppmPath
	}
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	return &PdftoppmRenderer{path: path, timeout: timeout, dpi: DefaultRenderDPI}
}

// RenderFirstPage writes pdf to a scratch directory, renders page 1 and
// returns the PNG. A run that produces no output file returns nil, nil.
func (r *PdftoppmRenderer) RenderFirstPage(ctx context.Context, data []byte) (*Image, error) {
	dir, err := os.MkdirTemp("", "inboxintake-render-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}
	outRoot := filepath.Join(dir, "page")

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.path, r.args(input, outRoot)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("pdftoppm timed out after %s", r.timeout)
		}
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	png, err := os.ReadFile(outRoot + ".png")
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}
	if len(png) == 0 {
		return nil, nil
	}
	return &Image{MimeType: "image/png", Data: png}, nil
}

func (r *PdftoppmRenderer) args(input, outRoot string) []string {
	return []string{
		"-f", "1",
		"-l", "1",
		"-r", strconv.Itoa(r.dpi),
		"-png",
		"-singlefile",
		input,
		outRoot,
	}
}
