package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.PageSize == "" {
		t.Error("PageSize should have a default")
	}
	if cfg.LoadErrorHandling != "ignore" {
		t.Errorf("LoadErrorHandling = %q, want ignore", cfg.LoadErrorHandling)
	}
}

func TestNew_ExplicitBinaryPath(t *testing.T) {
	r, err := New(Config{BinaryPath: "/opt/wkhtmltopdf/bin/wkhtmltopdf"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if r.config.PageSize == "" {
		t.Error("PageSize should default when unset")
	}
}

func TestRender(t *testing.T) {
	if _, err := exec.LookPath("wkhtmltopdf"); err != nil {
		t.Skip("wkhtmltopdf not installed")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><h1>Spring Sale</h1></body></html>"))
	}))
	defer server.Close()

	r, err := New(DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	doc, err := r.Render(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Render() failed: %v", err)
	}
	if len(doc) < 4 || string(doc[:4]) != "%PDF" {
		t.Errorf("output does not look like a PDF (%d bytes)", len(doc))
	}
}
