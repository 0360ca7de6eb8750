package ingest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

const sampleNewsletter = `<!DOCTYPE html>
<html>
<head><title>The AI Capex Supercycle</title></head>
<body>
<article>
<h1>The AI Capex Supercycle</h1>
<p>Hyperscaler spending on accelerators keeps climbing, and $NVDA remains
the clearest beneficiary of the build-out. The second-order winners are the
power and cooling suppliers nobody talks about yet.</p>
<p>Meanwhile the market treats $INTC as roadkill, which is exactly when the
contrarian case gets interesting for anyone with a long enough horizon.</p>
</article>
</body>
</html>`

func writeDrop(t *testing.T, dir, rel string) string {
	t.Helper()

	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte(sampleNewsletter), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestInboxScan(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()
	writeDrop(t, dir, "the-diff/2026-08-24-ai-capex.html")

	inbox := NewInbox(dir, &logger)

	candidates, err := inbox.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}

	item := candidates[0].Item
	if item.SourceType != domain.SourceNewsletter {
		t.Errorf("source type = %q, want newsletter", item.SourceType)
	}

	if item.SourceName != "the-diff" {
		t.Errorf("source name = %q, want the-diff", item.SourceName)
	}

	if item.Title != "The AI Capex Supercycle" {
		t.Errorf("title = %q", item.Title)
	}

	if item.Body == "" {
		t.Error("body empty, want readable text")
	}

	want := time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)
	if item.PublishedAt.Year() != want.Year() || item.PublishedAt.Month() != want.Month() ||
		item.PublishedAt.Day() != want.Day() {
		t.Errorf("published = %v, want filename date 2026-08-24", item.PublishedAt)
	}
}

func TestInboxScanSkipsNonHTML(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a drop"), 0o644); err != nil {
		t.Fatal(err)
	}

	inbox := NewInbox(dir, &logger)

	candidates, err := inbox.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if len(candidates) != 0 {
		t.Errorf("got %d candidates, want 0", len(candidates))
	}
}

func TestInboxArchive(t *testing.T) {
	logger := zerolog.Nop()
	dir := t.TempDir()
	path := writeDrop(t, dir, "the-diff/2026-08-24-ai-capex.html")

	inbox := NewInbox(dir, &logger)

	if err := inbox.Archive(path); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original file still present after archive")
	}

	moved := filepath.Join(dir, "the-diff", ingestedDirName, "2026-08-24-ai-capex.html")
	if _, err := os.Stat(moved); err != nil {
		t.Errorf("archived file missing: %v", err)
	}

	// A re-scan must not pick up archived files.
	candidates, err := inbox.Scan()
	if err != nil {
		t.Fatal(err)
	}

	if len(candidates) != 0 {
		t.Errorf("got %d candidates after archive, want 0", len(candidates))
	}
}

func TestFilenameDate(t *testing.T) {
	if _, ok := filenameDate("/inbox/src/ai-capex.html"); ok {
		t.Error("non-dated filename parsed as date")
	}

	ts, ok := filenameDate("/inbox/src/2026-08-24-ai-capex.html")
	if !ok || ts.Day() != 24 {
		t.Errorf("filenameDate = (%v, %v), want 2026-08-24", ts, ok)
	}
}

func TestTitleFromFilename(t *testing.T) {
	if got := titleFromFilename("/inbox/src/2026-08-24-ai-capex.html"); got != "ai capex" {
		t.Errorf("title = %q, want %q", got, "ai capex")
	}
}
