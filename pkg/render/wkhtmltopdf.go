// Package render turns campaign permalinks into PDF documents using the
// wkhtmltopdf binary.
package render

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	wkhtmltopdf "github.com/SebastiaanKlippert/go-wkhtmltopdf"
	"github.com/rs/zerolog"
)

// pathMu guards the package-global binary path of go-wkhtmltopdf.
var pathMu sync.Mutex

// Config holds renderer configuration.
type Config struct {
	// BinaryPath overrides wkhtmltopdf lookup on PATH.
	BinaryPath string

	// PageSize is a wkhtmltopdf page size name (default: Letter).
	PageSize string

	// LoadErrorHandling is passed as --load-error-handling (default: ignore),
	// so a missing image does not fail the whole campaign.
	LoadErrorHandling string
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{
		PageSize:          wkhtmltopdf.PageSizeLetter,
		LoadErrorHandling: "ignore",
	}
}

// PDFRenderer renders URLs with wkhtmltopdf.
type PDFRenderer struct {
	config Config
	logger zerolog.Logger
}

// New creates a renderer, failing early when the binary cannot be found.
func New(cfg Config, logger zerolog.Logger) (*PDFRenderer, error) {
	if cfg.PageSize == "" {
		cfg.PageSize = wkhtmltopdf.PageSizeLetter
	}

	if cfg.BinaryPath == "" {
		path, err := exec.LookPath("wkhtmltopdf")
		if err != nil {
			return nil, fmt.Errorf("missing dependency: wkhtmltopdf is not installed or not on PATH")
		}
		cfg.BinaryPath = path
	}

	return &PDFRenderer{
		config: cfg,
		logger: logger,
	}, nil
}

// Render fetches sourceURL and returns the rendered PDF bytes.
func (r *PDFRenderer) Render(ctx context.Context, sourceURL string) ([]byte, error) {
	pathMu.Lock()
	wkhtmltopdf.SetPath(r.config.BinaryPath)
	pdfg, err := wkhtmltopdf.NewPDFGenerator()
	pathMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("create pdf generator: %w", err)
	}

	pdfg.PageSize.Set(r.config.PageSize)
	pdfg.Quiet.Set(true)

	page := wkhtmltopdf.NewPage(sourceURL)
	if r.config.LoadErrorHandling != "" {
		page.LoadErrorHandling.Set(r.config.LoadErrorHandling)
		page.LoadMediaErrorHandling.Set(r.config.LoadErrorHandling)
	}
	pdfg.AddPage(page)

	r.logger.Debug().
		Str("source_url", sourceURL).
		Msg("Rendering PDF")

	if err := pdfg.CreateContext(ctx); err != nil {
		return nil, fmt.Errorf("wkhtmltopdf: %w", err)
	}

	return pdfg.Bytes(), nil
}
