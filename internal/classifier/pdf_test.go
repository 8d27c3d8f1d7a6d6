package classifier

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a minimal PDF with one Helvetica text line per page.
func buildPDF(pages ...string) []byte {
	var objects []string
	kids := make([]string, len(pages))
	fontID := 3 + 2*len(pages)
	for i, text := range pages {
		pageID, contentID := 3+2*i, 4+2*i
		kids[i] = fmt.Sprintf("%d 0 R", pageID)
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, contentID),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects = append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
	}, objects...)
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFTextExtractor_PagesInOrder(t *testing.T) {
	text, err := PDFTextExtractor{}.ExtractText(buildPDF("Invoice overdue", "Second page"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoice", "overdue", "Second", "page"}, strings.Fields(text))
}

func TestPDFTextExtractor_RejectsGarbage(t *testing.T) {
	_, err := PDFTextExtractor{}.ExtractText([]byte("definitely not a pdf"))
	assert.Error(t, err)
}

func TestPDFTextExtractor_EmptyInput(t *testing.T) {
	_, err := PDFTextExtractor{}.ExtractText(nil)
	assert.Error(t, err)
}

func TestNewPdftoppmRenderer_Defaults(t *testing.T) {
	r := NewPdftoppmRenderer("", 0)
	assert.Equal(t, DefaultPdftoppmPath, r.path)
	assert.Equal(t, DefaultRenderTimeout, r.timeout)
	assert.Equal(t, DefaultRenderDPI, r.dpi)
}

func TestPdftoppmRenderer_Args(t *testing.T) {
	r := NewPdftoppmRenderer("pdftoppm", time.Second)
	assert.Equal(t,
		[]string{"-f", "1", "-l", "1", "-r", "150", "-png", "-singlefile", "/tmp/in.pdf", "/tmp/page"},
		r.args("/tmp/in.pdf", "/tmp/page"))
}

func TestPdftoppmRenderer_MissingBinary(t *testing.T) {
	r := NewPdftoppmRenderer("/nonexistent/bin/pdftoppm", time.Second)
	img, err := r.RenderFirstPage(context.Background(), []byte("%PDF-1.4"))
	assert.Error(t, err)
	assert.Nil(t, img)
}
