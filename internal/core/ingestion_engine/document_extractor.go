package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/markdave123-py/ragcrawl/internal/core"
)

// Format is the closed set of document kinds the extractor understands.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatXLSX
	FormatPPTX
	FormatText
)

var knownFormats = []Format{FormatPDF, FormatDOCX, FormatXLSX, FormatPPTX, FormatText}

func (f Format) String() string {
	switch f {
	case FormatPDF:
		return "pdf"
	case FormatDOCX:
		return "docx"
	case FormatXLSX:
		return "xlsx"
	case FormatPPTX:
		return "pptx"
	case FormatText:
		return "text"
	}
	return "unknown"
}

// FormatFromPath resolves a Format from the file extension.
func FormatFromPath(p string) Format {
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf":
		return FormatPDF
	case ".docx":
		return FormatDOCX
	case ".xlsx":
		return FormatXLSX
	case ".pptx":
		return FormatPPTX
	case ".txt", ".md", ".markdown":
		return FormatText
	}
	return FormatUnknown
}

type extractFunc func(content []byte) (string, error)

var _ core.DocumentExtractor = (*DocumentExtractor)(nil)

// DocumentExtractor loads stored files from blob storage and turns them into text.
type DocumentExtractor struct {
	blobs    core.BlobStore
	handlers map[Format]extractFunc
	log      *zap.Logger
}

// NewDocumentExtractor wires the handler table and checks that every known format has a handler.
func NewDocumentExtractor(blobs core.BlobStore, log *zap.Logger) (*DocumentExtractor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	e := &DocumentExtractor{blobs: blobs, log: log}
	e.handlers = map[Format]extractFunc{
		FormatPDF:  extractPDF,
		FormatDOCX: extractDOCX,
		FormatXLSX: extractExcel,
		FormatPPTX: e.extractPPTX,
		FormatText: extractPlain,
	}
	for _, f := range knownFormats {
		if _, ok := e.handlers[f]; !ok {
			return nil, fmt.Errorf("no extractor registered for %s", f)
		}
	}
	return e, nil
}

// ExtractText fetches path from blob storage and extracts its text.
// Failures come back as *core.ExtractionError.
func (e *DocumentExtractor) ExtractText(ctx context.Context, p string) (string, error) {
	format := FormatFromPath(p)
	if format == FormatUnknown {
		return "", &core.ExtractionError{Path: p, Err: fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, path.Ext(p))}
	}

	content, err := e.blobs.Get(ctx, p)
	if err != nil {
		return "", &core.ExtractionError{Path: p, Err: fmt.Errorf("load: %w", err)}
	}
	return e.ExtractBytes(p, content)
}

// ExtractBytes runs the handler for p's format over content.
func (e *DocumentExtractor) ExtractBytes(p string, content []byte) (string, error) {
	format := FormatFromPath(p)
	handler, ok := e.handlers[format]
	if !ok {
		return "", &core.ExtractionError{Path: p, Err: fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, path.Ext(p))}
	}
	text, err := handler(content)
	if err != nil {
		return "", &core.ExtractionError{Path: p, Err: fmt.Errorf("%s: %w", format, err)}
	}
	e.log.Debug("extracted text", zap.String("path", p), zap.Stringer("format", format), zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteString("\n\n")
		}
	}
	return buf.String(), nil
}

// extractDOCX walks paragraphs and runs, including those nested in tables and lists.
func extractDOCX(content []byte) (string, error) {
	text, _, err := docconv.ConvertDocx(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("convert docx: %w", err)
	}
	return text, nil
}

// extractExcel emits a "Sheet: <name>" heading per sheet and tab-joined cells per row.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("sheet %q: %w", name, err)
		}
		lines := []string{"Sheet: " + name}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		sheets = append(sheets, strings.Join(lines, "\n"))
	}
	return strings.Join(sheets, "\n\n"), nil
}

// extractPPTX is not supported yet; the document ingests as empty.
func (e *DocumentExtractor) extractPPTX(content []byte) (string, error) {
	e.log.Warn("pptx extraction not implemented, returning empty text", zap.Int("bytes", len(content)))
	return "", nil
}

func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return string(content), nil
}
