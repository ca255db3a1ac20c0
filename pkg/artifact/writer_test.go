package artifact

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// stubRenderer records calls and returns a fixed document or error.
type stubRenderer struct {
	mu    sync.Mutex
	calls []string
	doc   []byte
	err   error
}

func (r *stubRenderer) Render(ctx context.Context, sourceURL string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, sourceURL)
	if r.err != nil {
		return nil, r.err
	}
	return r.doc, nil
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestWriteStream_CollisionSuffixes(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "Library", nil, zerolog.Nop())
	ctx := context.Background()

	contents := []string{"first", "second", "third"}
	var paths []string
	for _, c := range contents {
		out := w.WriteStream(ctx, Entry{Name: "Logo.png", Folder: "Brand"}, strings.NewReader(c))
		if !out.OK() {
			t.Fatalf("WriteStream() = %v", out)
		}
		paths = append(paths, out.Path)
	}

	dir := filepath.Join(base, "Library", "Brand")
	want := []string{
		filepath.Join(dir, "logo.png"),
		filepath.Join(dir, "logo_1.png"),
		filepath.Join(dir, "logo_2.png"),
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("path[%d] = %q, want %q", i, paths[i], want[i])
		}
		if got := readFile(t, want[i]); got != contents[i] {
			t.Errorf("content of %s = %q, want %q", want[i], got, contents[i])
		}
	}
}

func TestWriteStream_NormalizedNamesCollide(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "Library", nil, zerolog.Nop())
	ctx := context.Background()

	first := w.WriteStream(ctx, Entry{Name: "Spring Flyer.pdf"}, strings.NewReader("a"))
	second := w.WriteStream(ctx, Entry{Name: "spring  flyer.pdf"}, strings.NewReader("b"))

	if !first.OK() || !second.OK() {
		t.Fatalf("outcomes = %v, %v", first, second)
	}
	if first.Path == second.Path {
		t.Fatalf("distinct files share path %q", first.Path)
	}
	if filepath.Base(second.Path) != "spring-flyer_1.pdf" {
		t.Errorf("second path = %q, want spring-flyer_1.pdf", filepath.Base(second.Path))
	}
}

func TestWriteStream_SuffixKeepsExtension(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "Library", nil, zerolog.Nop())
	ctx := context.Background()

	first := w.WriteStream(ctx, Entry{Name: "Q3 Report.PDF"}, strings.NewReader("a"))
	second := w.WriteStream(ctx, Entry{Name: "Q3 Report.PDF"}, strings.NewReader("b"))
	if !first.OK() || !second.OK() {
		t.Fatalf("outcomes = %v, %v", first, second)
	}

	if got := filepath.Base(first.Path); got != "q3-report.PDF" {
		t.Errorf("first path = %q, want q3-report.PDF", got)
	}
	if got := filepath.Base(second.Path); got != "q3-report_1.PDF" {
		t.Errorf("second path = %q, want q3-report_1.PDF", got)
	}
}

// Re-running a library export is documented as non-idempotent: the second
// run must add suffixed copies rather than overwrite.
func TestWriteStream_RerunDuplicates(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	run1 := NewWriter(base, "Library", nil, zerolog.Nop())
	out1 := run1.WriteStream(ctx, Entry{Name: "logo.png"}, strings.NewReader("v1"))

	run2 := NewWriter(base, "Library", nil, zerolog.Nop())
	out2 := run2.WriteStream(ctx, Entry{Name: "logo.png"}, strings.NewReader("v1"))

	if !out1.OK() || !out2.OK() {
		t.Fatalf("outcomes = %v, %v", out1, out2)
	}
	if filepath.Base(out2.Path) != "logo_1.png" {
		t.Errorf("re-run path = %q, want logo_1.png", filepath.Base(out2.Path))
	}

	entries, err := os.ReadDir(filepath.Join(base, "Library"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("Library has %d files after two runs, want 2", len(entries))
	}
}

func TestWriteStream_SkipsTakenSuffixOnDisk(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "Library")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"logo.png", "logo_1.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	w := NewWriter(base, "Library", nil, zerolog.Nop())
	out := w.WriteStream(context.Background(), Entry{Name: "logo.png"}, strings.NewReader("new"))
	if filepath.Base(out.Path) != "logo_2.png" {
		t.Errorf("path = %q, want logo_2.png", out.Path)
	}
	if got := readFile(t, filepath.Join(dir, "logo.png")); got != "old" {
		t.Errorf("existing file overwritten: %q", got)
	}
}

func TestWriteStream_ConcurrentWritersGetDistinctPaths(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "Library", nil, zerolog.Nop())
	ctx := context.Background()

	const n = 8
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := w.WriteStream(ctx, Entry{Name: "same.txt"}, strings.NewReader("x"))
			paths[i] = out.Path
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range paths {
		if p == "" {
			t.Fatal("a concurrent write failed")
		}
		if seen[p] {
			t.Errorf("path %q used twice", p)
		}
		seen[p] = true
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestWriteStream_CopyFailure(t *testing.T) {
	w := NewWriter(t.TempDir(), "Library", nil, zerolog.Nop())

	out := w.WriteStream(context.Background(), Entry{Name: "big.zip"}, failingReader{})
	if out.OK() {
		t.Fatal("expected failure")
	}
	if out.Reason != ReasonWriteFailed {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonWriteFailed)
	}
}

// cancellingReader returns one chunk and then cancels the copy's context.
type cancellingReader struct {
	cancel context.CancelFunc
}

func (r cancellingReader) Read(p []byte) (int, error) {
	r.cancel()
	return copy(p, "partial"), nil
}

func TestWriter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name     string
		category string
		write    func(w *Writer) Outcome
	}{
		{
			name:     "json",
			category: "CampaignData",
			write: func(w *Writer) Outcome {
				return w.WriteJSON(ctx, Entry{ID: "1", Name: "a", Date: "2023-01-01"}, []byte(`{}`))
			},
		},
		{
			name:     "pdf",
			category: "Campaigns",
			write: func(w *Writer) Outcome {
				return w.WritePDF(ctx, Entry{ID: "1", Name: "a", Date: "2023-01-01"}, "https://example.com/c")
			},
		},
		{
			name:     "stream",
			category: "Library",
			write: func(w *Writer) Outcome {
				return w.WriteStream(ctx, Entry{ID: "1", Name: "a.txt"}, strings.NewReader("a"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			w := NewWriter(base, tt.category, &stubRenderer{doc: []byte("%PDF")}, zerolog.Nop())

			out := tt.write(w)
			if out.OK() {
				t.Fatalf("expected failure, got %v", out)
			}
			if out.Reason != ReasonWriteFailed {
				t.Errorf("Reason = %q, want %q", out.Reason, ReasonWriteFailed)
			}
			if !errors.Is(out.Err, context.Canceled) {
				t.Errorf("Err = %v, want context.Canceled", out.Err)
			}
			if _, err := os.Stat(filepath.Join(base, tt.category)); !os.IsNotExist(err) {
				t.Errorf("category dir should not be created: %v", err)
			}
		})
	}
}

func TestWriteStream_CancelledMidCopy(t *testing.T) {
	w := NewWriter(t.TempDir(), "Library", nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := w.WriteStream(ctx, Entry{ID: "1", Name: "big.zip"}, cancellingReader{cancel: cancel})
	if out.OK() {
		t.Fatal("expected failure")
	}
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, want context.Canceled", out.Err)
	}
}

func TestWriteJSON(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "CampaignData", nil, zerolog.Nop())
	ctx := context.Background()

	raw := []byte(`{"id":"1","name":"Spring Sale","created_date":"2023-05-01T10:00:00.000Z"}`)
	out := w.WriteJSON(ctx, Entry{ID: "1", Name: "Spring Sale", Date: "2023-05-01"}, raw)
	if !out.OK() {
		t.Fatalf("WriteJSON() = %v", out)
	}

	want := filepath.Join(base, "CampaignData", "2023-05-01_spring-sale.json")
	if out.Path != want {
		t.Errorf("Path = %q, want %q", out.Path, want)
	}

	got := readFile(t, want)
	if !strings.Contains(got, "\n    \"name\": \"Spring Sale\"") {
		t.Errorf("record not indented by four spaces:\n%s", got)
	}

	// Same name and date within one run gets a suffix.
	dup := w.WriteJSON(ctx, Entry{ID: "2", Name: "Spring Sale", Date: "2023-05-01"}, []byte(`{"id":"2"}`))
	if filepath.Base(dup.Path) != "2023-05-01_spring-sale_1.json" {
		t.Errorf("duplicate path = %q", dup.Path)
	}

	// A later run overwrites instead of suffixing.
	rerun := NewWriter(base, "CampaignData", nil, zerolog.Nop())
	again := rerun.WriteJSON(ctx, Entry{ID: "1", Name: "Spring Sale", Date: "2023-05-01"}, []byte(`{"id":"1","v":2}`))
	if again.Path != want {
		t.Errorf("re-run path = %q, want %q", again.Path, want)
	}
	if got := readFile(t, want); !strings.Contains(got, `"v": 2`) {
		t.Errorf("re-run did not overwrite: %s", got)
	}
}

func TestWriteJSON_InvalidRecord(t *testing.T) {
	w := NewWriter(t.TempDir(), "CampaignData", nil, zerolog.Nop())

	out := w.WriteJSON(context.Background(), Entry{ID: "1", Name: "x", Date: "2023-01-01"}, []byte(`{broken`))
	if out.Reason != ReasonInvalidRecord {
		t.Errorf("Reason = %q, want %q", out.Reason, ReasonInvalidRecord)
	}
}

func TestWriteJSON_NoLeftoverTempFiles(t *testing.T) {
	base := t.TempDir()
	w := NewWriter(base, "CampaignData", nil, zerolog.Nop())

	out := w.WriteJSON(context.Background(), Entry{ID: "1", Name: "a", Date: "2023-01-01"}, []byte(`{}`))
	if !out.OK() {
		t.Fatalf("WriteJSON() = %v", out)
	}

	entries, err := os.ReadDir(filepath.Join(base, "CampaignData"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only the artifact", names)
	}
}

func TestWritePDF(t *testing.T) {
	t.Run("no content source never renders", func(t *testing.T) {
		r := &stubRenderer{doc: []byte("%PDF")}
		w := NewWriter(t.TempDir(), "Campaigns", r, zerolog.Nop())

		out := w.WritePDF(context.Background(), Entry{ID: "7", Name: "Draft", Date: "2023-01-01"}, "")
		if out.OK() {
			t.Fatal("expected failure")
		}
		if out.Reason != ReasonNoContentSource {
			t.Errorf("Reason = %q, want %q", out.Reason, ReasonNoContentSource)
		}
		if !errors.Is(out.Err, ErrNoContentSource) {
			t.Errorf("Err = %v, want ErrNoContentSource", out.Err)
		}
		if len(r.calls) != 0 {
			t.Errorf("renderer called %d times, want 0", len(r.calls))
		}
	})

	t.Run("render failure", func(t *testing.T) {
		r := &stubRenderer{err: errors.New("wkhtmltopdf exited 1")}
		w := NewWriter(t.TempDir(), "Campaigns", r, zerolog.Nop())

		out := w.WritePDF(context.Background(), Entry{ID: "7", Name: "News", Date: "2023-01-01"}, "http://example.com/p")
		if out.Reason != ReasonRenderFailed {
			t.Errorf("Reason = %q, want %q", out.Reason, ReasonRenderFailed)
		}
	})

	t.Run("success", func(t *testing.T) {
		base := t.TempDir()
		r := &stubRenderer{doc: []byte("%PDF-1.4")}
		w := NewWriter(base, "Campaigns", r, zerolog.Nop())

		out := w.WritePDF(context.Background(), Entry{ID: "7", Name: "News Letter", Date: "2023-02-03"}, "http://example.com/p")
		if !out.OK() {
			t.Fatalf("WritePDF() = %v", out)
		}
		want := filepath.Join(base, "Campaigns", "2023-02-03_news-letter.pdf")
		if out.Path != want {
			t.Errorf("Path = %q, want %q", out.Path, want)
		}
		if got := readFile(t, want); got != "%PDF-1.4" {
			t.Errorf("content = %q", got)
		}
		if len(r.calls) != 1 || r.calls[0] != "http://example.com/p" {
			t.Errorf("renderer calls = %v", r.calls)
		}
	})
}

func TestOutcome_String(t *testing.T) {
	if s := Written("/a/b.json").String(); s != "written /a/b.json" {
		t.Errorf("String() = %q", s)
	}
	if s := Failed(ReasonNoContentSource, nil).String(); s != "failed (no_content_source)" {
		t.Errorf("String() = %q", s)
	}
}
