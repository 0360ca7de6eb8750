package ingest

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"
	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
)

const (
	maxNewsletterBody = 100_000
	ingestedDirName   = ".ingested"
)

// Inbox reads newsletter HTML drops from a directory tree laid out as
// inbox/<source-name>/<file>.html. Files directly under the inbox root fall
// back to the "newsletter" source name. Readable text is extracted with the
// reader-mode algorithm so boilerplate and unsubscribe footers do not reach
// the extraction collaborator.
type Inbox struct {
	dir    string
	logger *zerolog.Logger
}

// Candidate pairs a parsed source item with the file it came from so the
// caller can archive the file once the item is stored.
type Candidate struct {
	Item domain.SourceItem
	Path string
}

func NewInbox(dir string, logger *zerolog.Logger) *Inbox {
	return &Inbox{dir: dir, logger: logger}
}

// Scan parses every HTML file in the inbox into a candidate. A file that
// fails to parse is logged and skipped; one broken drop never blocks the
// rest of the batch.
func (in *Inbox) Scan() ([]Candidate, error) {
	var candidates []Candidate

	err := filepath.WalkDir(in.dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if entry.Name() == ingestedDirName {
				return filepath.SkipDir
			}

			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".html" && ext != ".htm" {
			return nil
		}

		candidate, err := in.parseFile(path)
		if err != nil {
			in.logger.Warn().Err(err).Str("path", path).Msg("skipping unreadable newsletter drop")
			return nil
		}

		candidates = append(candidates, *candidate)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan inbox: %w", err)
	}

	return candidates, nil
}

// Archive moves an ingested file into the .ingested subdirectory next to it
// so re-scans stay cheap. Dedup still protects against a re-dropped copy.
func (in *Inbox) Archive(path string) error {
	dest := filepath.Join(filepath.Dir(path), ingestedDirName)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create ingested dir: %w", err)
	}

	if err := os.Rename(path, filepath.Join(dest, filepath.Base(path))); err != nil {
		return fmt.Errorf("archive newsletter drop: %w", err)
	}

	return nil
}

func (in *Inbox) parseFile(path string) (*Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}

	pageURL := &url.URL{Scheme: "file", Path: path}

	article, err := readability.FromReader(f, pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract readable text: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = titleFromFilename(path)
	}

	body := article.TextContent
	if len(body) > maxNewsletterBody {
		body = body[:maxNewsletterBody]
	}

	item := domain.SourceItem{
		SourceType:  domain.SourceNewsletter,
		SourceName:  in.sourceName(path),
		Title:       title,
		Body:        body,
		PublishedAt: newsletterDate(article.PublishedTime, path, info.ModTime()),
	}

	return &Candidate{Item: item, Path: path}, nil
}

// sourceName is the subdirectory the file was dropped in.
func (in *Inbox) sourceName(path string) string {
	rel, err := filepath.Rel(in.dir, path)
	if err != nil {
		return "newsletter"
	}

	dir := filepath.Dir(rel)
	if dir == "." {
		return "newsletter"
	}

	return filepath.Base(dir)
}

// newsletterDate prefers the article's own published time, then a leading
// date token in the filename (the drop convention is YYYY-MM-DD-slug.html),
// then the file modification time.
func newsletterDate(published *time.Time, path string, modTime time.Time) time.Time {
	if published != nil && !published.IsZero() {
		return *published
	}

	if ts, ok := filenameDate(path); ok {
		return ts
	}

	return modTime
}

func filenameDate(path string) (time.Time, bool) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "" || !unicode.IsDigit(rune(name[0])) {
		return time.Time{}, false
	}

	const dateTokenLen = len("2006-01-02")
	if len(name) < dateTokenLen {
		return time.Time{}, false
	}

	ts, err := dateparse.ParseAny(name[:dateTokenLen])
	if err != nil {
		return time.Time{}, false
	}

	return ts, true
}

func titleFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if _, ok := filenameDate(path); ok {
		name = strings.TrimLeft(name[len("2006-01-02"):], "-_ ")
	}

	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(name, "-", " "), "_", " "))
}
