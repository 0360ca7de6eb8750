// Package export materializes the site's data artifacts from storage. The
// projector never computes scores or filters content itself: storage hands
// it pre-ordered, pre-filtered reads and it only shapes them into JSON.
// Files are written atomically so the site never serves a torn snapshot.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/platform/observability"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

const (
	scoresFile  = "ticker_scores.json"
	contentFile = "main_content.json"
	archiveFile = "archive.json"

	dateLayout = "2006-01-02"
)

// Repository is the storage surface the projector needs.
type Repository interface {
	GetDailyScores(ctx context.Context, date time.Time) ([]db.DailyScore, error)
	GetMainPageContent(ctx context.Context, contentType domain.ContentType, limit int) ([]db.ContentItem, error)
	GetAllContent(ctx context.Context, contentType domain.ContentType) ([]db.ContentItem, error)
}

var _ Repository = (*db.DB)(nil)

// Limits caps the per-section item counts in the main content artifact.
type Limits struct {
	Insights      int
	Definitions   int
	EmergentTerms int
}

type Projector struct {
	database Repository
	dir      string
	limits   Limits
	logger   *zerolog.Logger
}

func NewProjector(database Repository, dir string, limits Limits, logger *zerolog.Logger) *Projector {
	return &Projector{database: database, dir: dir, limits: limits, logger: logger}
}

type scoreRow struct {
	Rank               int     `json:"rank"`
	Ticker             string  `json:"ticker"`
	TotalScore         float64 `json:"total_score"`
	PodcastMentions    int     `json:"podcast_mentions"`
	NewsletterMentions int     `json:"newsletter_mentions"`
	DisruptionSignals  int     `json:"disruption_signals"`
	UniqueSources      int     `json:"unique_sources"`
	ConvictionLevel    string  `json:"conviction_level"`
	ContrarianSignal   string  `json:"contrarian_signal"`
	Timeframe          string  `json:"timeframe"`
}

type scoresArtifact struct {
	Date        string     `json:"date"`
	GeneratedAt time.Time  `json:"generated_at"`
	Scores      []scoreRow `json:"scores"`
}

type contentRow struct {
	Title          string   `json:"title"`
	Body           string   `json:"body"`
	SourceName     string   `json:"source_name,omitempty"`
	SourceDate     string   `json:"source_date,omitempty"`
	Tickers        []string `json:"tickers,omitempty"`
	VoteCount      int      `json:"vote_count,omitempty"`
	MentionCount   int      `json:"mention_count,omitempty"`
	Status         string   `json:"status,omitempty"`
	ArchivedDate   string   `json:"archived_date,omitempty"`
	ArchivedReason string   `json:"archived_reason,omitempty"`
}

type contentArtifact struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	Insights      []contentRow `json:"insights"`
	Definitions   []contentRow `json:"definitions"`
	EmergentTerms []contentRow `json:"emergent_terms"`
}

type archiveArtifact struct {
	GeneratedAt   time.Time    `json:"generated_at"`
	Insights      []contentRow `json:"insights"`
	EmergentTerms []contentRow `json:"emergent_terms"`
}

// WriteSnapshot writes all three artifacts for the date. A zero date exports
// the latest scored date. Each file lands via temp + rename; a crashed
// export leaves the previous files intact.
func (p *Projector) WriteSnapshot(ctx context.Context, date time.Time) error {
	if err := p.writeScores(ctx, date); err != nil {
		observability.ExportSnapshots.WithLabelValues("failed").Inc()
		return err
	}

	if err := p.writeMainContent(ctx); err != nil {
		observability.ExportSnapshots.WithLabelValues("failed").Inc()
		return err
	}

	if err := p.writeArchive(ctx); err != nil {
		observability.ExportSnapshots.WithLabelValues("failed").Inc()
		return err
	}

	observability.ExportSnapshots.WithLabelValues("success").Inc()
	p.logger.Info().Str("dir", p.dir).Msg("site snapshot exported")

	return nil
}

func (p *Projector) writeScores(ctx context.Context, date time.Time) error {
	scores, err := p.database.GetDailyScores(ctx, date)
	if err != nil {
		return fmt.Errorf("read daily scores: %w", err)
	}

	artifact := scoresArtifact{
		GeneratedAt: time.Now().UTC(),
		Scores:      make([]scoreRow, 0, len(scores)),
	}

	for _, s := range scores {
		artifact.Date = s.Date.Format(dateLayout)
		artifact.Scores = append(artifact.Scores, scoreRow{
			Rank:               s.Rank,
			Ticker:             s.Ticker,
			TotalScore:         s.TotalScore,
			PodcastMentions:    s.PodcastMentions,
			NewsletterMentions: s.NewsletterMentions,
			DisruptionSignals:  s.DisruptionSignals,
			UniqueSources:      s.UniqueSources,
			ConvictionLevel:    s.ConvictionLevel,
			ContrarianSignal:   s.ContrarianSignal,
			Timeframe:          string(s.Timeframe),
		})
	}

	return p.writeFile(scoresFile, artifact)
}

func (p *Projector) writeMainContent(ctx context.Context) error {
	insights, err := p.database.GetMainPageContent(ctx, domain.ContentInsight, p.limits.Insights)
	if err != nil {
		return fmt.Errorf("read insights: %w", err)
	}

	definitions, err := p.database.GetMainPageContent(ctx, domain.ContentDefinition, p.limits.Definitions)
	if err != nil {
		return fmt.Errorf("read definitions: %w", err)
	}

	terms, err := p.database.GetMainPageContent(ctx, domain.ContentEmergentTerm, p.limits.EmergentTerms)
	if err != nil {
		return fmt.Errorf("read emergent terms: %w", err)
	}

	artifact := contentArtifact{
		GeneratedAt:   time.Now().UTC(),
		Insights:      contentRows(insights),
		Definitions:   contentRows(definitions),
		EmergentTerms: contentRows(terms),
	}

	return p.writeFile(contentFile, artifact)
}

func (p *Projector) writeArchive(ctx context.Context) error {
	insights, err := p.database.GetAllContent(ctx, domain.ContentInsight)
	if err != nil {
		return fmt.Errorf("read insight archive: %w", err)
	}

	terms, err := p.database.GetAllContent(ctx, domain.ContentEmergentTerm)
	if err != nil {
		return fmt.Errorf("read term archive: %w", err)
	}

	artifact := archiveArtifact{
		GeneratedAt:   time.Now().UTC(),
		Insights:      contentRows(archivedOnly(insights)),
		EmergentTerms: contentRows(archivedOnly(terms)),
	}

	return p.writeFile(archiveFile, artifact)
}

func archivedOnly(items []db.ContentItem) []db.ContentItem {
	var out []db.ContentItem

	for _, item := range items {
		if !item.DisplayOnMain {
			out = append(out, item)
		}
	}

	return out
}

func contentRows(items []db.ContentItem) []contentRow {
	rows := make([]contentRow, 0, len(items))

	for _, item := range items {
		row := contentRow{
			Title:          item.Title,
			Body:           item.Body,
			SourceName:     item.SourceName,
			Tickers:        item.Tickers,
			VoteCount:      item.VoteCount,
			MentionCount:   item.MentionCount,
			Status:         item.Status,
			ArchivedReason: item.ArchivedReason,
		}

		if !item.SourceDate.IsZero() {
			row.SourceDate = item.SourceDate.Format(dateLayout)
		}

		if !item.ArchivedDate.IsZero() {
			row.ArchivedDate = item.ArchivedDate.Format(dateLayout)
		}

		rows = append(rows, row)
	}

	return rows
}

// writeFile serializes to a temp file in the target directory and renames
// it into place. Rename within one directory is atomic on POSIX.
func (p *Projector) writeFile(name string, payload interface{}) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(p.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("write %s: %w", name, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", name, err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(p.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("publish %s: %w", name, err)
	}

	return nil
}
