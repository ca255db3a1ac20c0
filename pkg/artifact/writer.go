package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// Renderer turns a web page into a PDF document.
type Renderer interface {
	Render(ctx context.Context, sourceURL string) ([]byte, error)
}

// Entry identifies the item an artifact is written for.
type Entry struct {
	ID   string
	Name string

	// Folder is the optional upstream folder label (library files).
	Folder string

	// Date is the YYYY-MM-DD disambiguator (campaign artifacts).
	Date string
}

// Writer persists artifacts of one category. It is safe for concurrent use.
type Writer struct {
	dir      string
	renderer Renderer
	logger   zerolog.Logger

	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewWriter creates a writer rooted at <baseDir>/<category>. The renderer is
// only needed for PDF artifacts and may be nil otherwise.
func NewWriter(baseDir, category string, renderer Renderer, logger zerolog.Logger) *Writer {
	return &Writer{
		dir:      filepath.Join(baseDir, category),
		renderer: renderer,
		logger:   logger,
		claimed:  make(map[string]struct{}),
	}
}

// Dir returns the category directory.
func (w *Writer) Dir() string {
	return w.dir
}

// EnsureDir creates the category directory if needed.
func (w *Writer) EnsureDir() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", w.dir, err)
	}
	return nil
}

// WriteJSON stores a campaign record as <date>_<slug>.json, indented by four
// spaces.
func (w *Writer) WriteJSON(ctx context.Context, e Entry, raw []byte) Outcome {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "    "); err != nil {
		return Failed(ReasonInvalidRecord, fmt.Errorf("indent record %s: %w", e.ID, err))
	}
	buf.WriteByte('\n')

	if err := ctx.Err(); err != nil {
		return Failed(ReasonWriteFailed, fmt.Errorf("write record %s: %w", e.ID, err))
	}
	path, err := w.claimDated(e, ".json")
	if err != nil {
		return Failed(ReasonWriteFailed, err)
	}

	if err := writeAtomic(path, buf.Bytes()); err != nil {
		w.release(path)
		return Failed(ReasonWriteFailed, err)
	}
	return Written(path)
}

// WritePDF renders sourceURL and stores it as <date>_<slug>.pdf. An empty
// sourceURL fails with ReasonNoContentSource without invoking the renderer.
func (w *Writer) WritePDF(ctx context.Context, e Entry, sourceURL string) Outcome {
	if sourceURL == "" {
		return Failed(ReasonNoContentSource, fmt.Errorf("campaign %s: %w", e.ID, ErrNoContentSource))
	}
	if w.renderer == nil {
		return Failed(ReasonRenderFailed, errors.New("no PDF renderer configured"))
	}

	doc, err := w.renderer.Render(ctx, sourceURL)
	if err != nil {
		return Failed(ReasonRenderFailed, fmt.Errorf("render campaign %s: %w", e.ID, err))
	}

	if err := ctx.Err(); err != nil {
		return Failed(ReasonWriteFailed, fmt.Errorf("write campaign %s: %w", e.ID, err))
	}
	path, err := w.claimDated(e, ".pdf")
	if err != nil {
		return Failed(ReasonWriteFailed, err)
	}

	if err := writeAtomic(path, doc); err != nil {
		w.release(path)
		return Failed(ReasonWriteFailed, err)
	}
	return Written(path)
}

// WriteStream copies r into [<folder>/]<slug><ext>. Existing files are never
// overwritten; the first free _N suffix is used instead. A failure while
// copying, including ctx ending mid-copy, may leave a partial file behind.
func (w *Writer) WriteStream(ctx context.Context, e Entry, r io.Reader) Outcome {
	if err := ctx.Err(); err != nil {
		return Failed(ReasonWriteFailed, fmt.Errorf("write file %s: %w", e.ID, err))
	}

	dir := w.dir
	if folder := folderSegment(e.Folder); folder != "" {
		dir = filepath.Join(dir, folder)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Failed(ReasonWriteFailed, fmt.Errorf("create %s: %w", dir, err))
	}

	stem, ext := splitName(e.Name)
	f, path, err := w.reserveFile(dir, stem, ext)
	if err != nil {
		return Failed(ReasonWriteFailed, err)
	}

	if base := stem + ext; filepath.Base(path) != base {
		w.logger.Info().
			Str("item_name", e.Name).
			Str("path", path).
			Msg("File name duplicated, renamed")
	}

	if _, err := io.Copy(f, ctxReader{ctx: ctx, r: r}); err != nil {
		f.Close()
		return Failed(ReasonWriteFailed, fmt.Errorf("write %s: %w", path, err))
	}
	if err := f.Close(); err != nil {
		return Failed(ReasonWriteFailed, fmt.Errorf("close %s: %w", path, err))
	}
	return Written(path)
}

// claimDated reserves <date>_<slug><ext> for this run, suffixing it when an
// earlier item of the same run already took the name.
func (w *Writer) claimDated(e Entry, ext string) (string, error) {
	if e.Date == "" {
		return "", fmt.Errorf("item %s has no date", e.ID)
	}
	if err := w.EnsureDir(); err != nil {
		return "", err
	}

	stem := e.Date + "_" + Slugify(e.Name)

	w.mu.Lock()
	defer w.mu.Unlock()

	for n := 0; ; n++ {
		path := candidate(w.dir, stem, ext, n)
		if _, taken := w.claimed[path]; taken {
			continue
		}
		w.claimed[path] = struct{}{}
		return path, nil
	}
}

// reserveFile creates the first candidate path that exists neither on disk
// nor in this run's claims. O_EXCL makes the probe safe across workers.
func (w *Writer) reserveFile(dir, stem, ext string) (*os.File, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for n := 0; ; n++ {
		path := candidate(dir, stem, ext, n)
		if _, taken := w.claimed[path]; taken {
			continue
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}

		w.claimed[path] = struct{}{}
		return f, path, nil
	}
}

// release drops a claim whose write failed so the name can be reused.
func (w *Writer) release(path string) {
	w.mu.Lock()
	delete(w.claimed, path)
	w.mu.Unlock()
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
