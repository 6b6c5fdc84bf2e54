// Package pdf extracts text from PDF documents via poppler's command
// line tools.
package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/shokudev/kura/internal/core/domain"
	"github.com/shokudev/kura/internal/core/ports/driven"
	"github.com/shokudev/kura/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// pagesPattern matches the page count line of pdfinfo output.
var pagesPattern = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)

// Extractor handles PDF documents. It shells out to pdftotext and
// pdfinfo rather than linking a PDF library.
type Extractor struct {
	runner driven.CommandRunner
}

// New creates a PDF extractor using the system's poppler tools.
func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(runner driven.CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Extensions returns the extensions this extractor handles.
func (e *Extractor) Extensions() []string {
	return []string{"pdf"}
}

// Extract runs pdftotext page by page, prefixing each page's text with
// a [ページ N] marker. A page whose extraction fails contributes an
// empty string rather than aborting the document.
func (e *Extractor) Extract(
	ctx context.Context, content []byte, _ string,
) (string, *domain.StructuredData, error) {
	path, cleanup, err := writeTempPDF(content)
	if err != nil {
		return "", nil, err
	}
	defer cleanup()

	pageCount, err := e.pageCount(ctx, path)
	if err != nil {
		return "", nil, err
	}

	var allText []string
	structured := &domain.StructuredData{}

	for page := 1; page <= pageCount; page++ {
		text, err := e.pageText(ctx, path, page)
		if err != nil {
			logger.Warn("pdf: page %d extraction failed: %v", page, err)
			text = ""
		}

		structured.Pages = append(structured.Pages, domain.PageData{
			Number:  page,
			Content: text,
		})
		allText = append(allText, fmt.Sprintf("[ページ %d]", page))
		if text != "" {
			allText = append(allText, text)
		}
	}

	return strings.Join(allText, "\n"), structured, nil
}

// pageCount reads the document's page count from pdfinfo.
func (e *Extractor) pageCount(ctx context.Context, path string) (int, error) {
	out, err := e.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return 0, fmt.Errorf("%w: pdfinfo: %v", domain.ErrInvalidInput, err)
	}

	m := pagesPattern.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("%w: pdfinfo reported no page count", domain.ErrInvalidInput)
	}
	count, err := strconv.Atoi(string(m[1]))
	if err != nil || count < 1 {
		return 0, fmt.Errorf("%w: pdfinfo reported no page count", domain.ErrInvalidInput)
	}
	return count, nil
}

// pageText extracts one page's text with layout preserved.
func (e *Extractor) pageText(ctx context.Context, path string, page int) (string, error) {
	out, err := e.runner.Run(ctx, "pdftotext",
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		"-layout", path, "-")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// writeTempPDF stages the document on disk for the poppler tools, which
// only read files.
func writeTempPDF(content []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "kura-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("stage pdf: %w", err)
	}
	path := f.Name()
	cleanup := func() { os.Remove(path) }

	if _, err := f.Write(content); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("stage pdf: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("stage pdf: %w", err)
	}
	return path, cleanup, nil
}

// execRunner runs commands on the host.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// InstallInstructions returns setup guidance for the poppler tools.
func InstallInstructions() string {
	return `PDF extraction requires poppler's pdftotext and pdfinfo:
  macOS:         brew install poppler
  Debian/Ubuntu: apt install poppler-utils`
}
