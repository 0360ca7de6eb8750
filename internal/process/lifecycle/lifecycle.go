// Package lifecycle manages displayable content: promotion onto the main
// page, capacity windows, auto-curation of emergent terms, and archival.
// Archival is soft everywhere: an item leaves the main page with a recorded
// reason, and restore is an explicit operator override.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/quietrade/ticker-digest/internal/core/domain"
	"github.com/quietrade/ticker-digest/internal/platform/observability"
	db "github.com/quietrade/ticker-digest/internal/storage"
)

// Auto-curation thresholds for emergent terms.
const (
	promoteRelevanceFloor = 70
	promoteSourceFloor    = 2
	promoteMentionFloor   = 3
	reviewRelevanceFloor  = 40
)

// Age cutoffs for automatic archival.
const (
	insightMaxAge      = 14 * 24 * time.Hour
	emergentTermMaxAge = 90 * 24 * time.Hour
)

const (
	agedOutReason   = "Auto-archived: Aged out (>14 days)"
	termAgedReason  = "Auto-archived: Aged out (>90 days)"
	graduatedReason = "Graduated to mainstream"
)

// ErrReasonRequired rejects an archive call without a reason. Every archived
// item must be explainable later.
var ErrReasonRequired = errors.New("archive reason required")

// Limits caps how many items of each type stay on the main page.
type Limits struct {
	Insights      int
	Definitions   int
	EmergentTerms int
}

// DefaultLimits mirror the site layout: the page renders exactly this many
// slots per section.
var DefaultLimits = Limits{Insights: 8, Definitions: 10, EmergentTerms: 8}

// Repository is the storage surface the manager needs.
type Repository interface {
	SaveContentItem(ctx context.Context, item *db.ContentItem) error
	FindContentByTitle(ctx context.Context, contentType domain.ContentType, title string) (*db.ContentItem, error)
	GetActiveContent(ctx context.Context, contentType domain.ContentType) ([]db.ContentItem, error)
	ArchiveContentItem(ctx context.Context, id int64, reason string) error
	RestoreContentItem(ctx context.Context, id int64) error
	UpdateContentStatus(ctx context.Context, id int64, status string) error
	ReinforceTerm(ctx context.Context, id int64) (*db.ContentItem, error)
}

var _ Repository = (*db.DB)(nil)

type Manager struct {
	database Repository
	limits   Limits
	logger   *zerolog.Logger
}

func New(database Repository, limits Limits, logger *zerolog.Logger) *Manager {
	if limits.Insights <= 0 {
		limits.Insights = DefaultLimits.Insights
	}

	if limits.Definitions <= 0 {
		limits.Definitions = DefaultLimits.Definitions
	}

	if limits.EmergentTerms <= 0 {
		limits.EmergentTerms = DefaultLimits.EmergentTerms
	}

	return &Manager{database: database, limits: limits, logger: logger}
}

// Promote puts an item on the main page. The (type, title) pair is the
// uniqueness key: promoting an existing title is a no-op that returns false,
// never an error and never a second row.
func (m *Manager) Promote(ctx context.Context, item *db.ContentItem) (bool, error) {
	existing, err := m.database.FindContentByTitle(ctx, item.ContentType, item.Title)
	if err != nil && !errors.Is(err, db.ErrContentNotFound) {
		return false, fmt.Errorf("check existing content: %w", err)
	}

	if existing != nil {
		m.logger.Debug().
			Str("type", string(item.ContentType)).
			Str("title", item.Title).
			Msg("content already promoted")

		return false, nil
	}

	item.DisplayOnMain = true
	item.DisplayOrder = 0
	item.Status = domain.ContentActive

	if err := m.database.SaveContentItem(ctx, item); err != nil {
		return false, fmt.Errorf("promote content: %w", err)
	}

	observability.ContentPromoted.WithLabelValues(string(item.ContentType)).Inc()

	// Every insight promotion enforces the capacity window immediately, so
	// the main page never holds more than the configured slots between
	// maintenance runs.
	if item.ContentType == domain.ContentInsight {
		if _, err := m.EnforceInsightWindow(ctx); err != nil {
			return true, err
		}
	}

	return true, nil
}

// EnforceInsightWindow archives active insights beyond the newest K, by the
// canonical display ordering. Newly promoted insights evict the oldest;
// restores do not retroactively evict anything because the window is only
// enforced on promotion cycles.
func (m *Manager) EnforceInsightWindow(ctx context.Context) (int, error) {
	items, err := m.database.GetActiveContent(ctx, domain.ContentInsight)
	if err != nil {
		return 0, fmt.Errorf("list active insights: %w", err)
	}

	if len(items) <= m.limits.Insights {
		return 0, nil
	}

	reason := fmt.Sprintf("Auto-archived: keep %d most recent on main", m.limits.Insights)
	archived := 0

	for _, item := range items[m.limits.Insights:] {
		if err := m.database.ArchiveContentItem(ctx, item.ID, reason); err != nil {
			return archived, fmt.Errorf("archive insight %d: %w", item.ID, err)
		}

		observability.ContentArchived.WithLabelValues("capacity").Inc()
		m.logger.Info().Int64("id", item.ID).Str("title", item.Title).Msg("insight evicted by capacity window")

		archived++
	}

	return archived, nil
}

// Verdict is the auto-curation outcome for an emergent-term candidate.
type Verdict string

const (
	VerdictPromote Verdict = "promote"
	VerdictReview  Verdict = "review"
	VerdictDiscard Verdict = "discard"
)

// EvaluateTerm applies the auto-curation thresholds: strong corroborated
// terms go straight to the main page, borderline relevance goes to a human
// review queue, and the rest is discarded.
func EvaluateTerm(relevance, sourceCount, mentionCount int) Verdict {
	if relevance >= promoteRelevanceFloor && sourceCount >= promoteSourceFloor && mentionCount >= promoteMentionFloor {
		return VerdictPromote
	}

	if relevance >= reviewRelevanceFloor {
		return VerdictReview
	}

	return VerdictDiscard
}

// CurateTerm routes one emergent-term candidate by its verdict. A re-mention
// of a known term reinforces its counters first, and a reinforced term that
// crosses the promotion thresholds moves onto the main page. New candidates
// either promote, queue for review off-main, or are discarded unsaved.
func (m *Manager) CurateTerm(ctx context.Context, item *db.ContentItem) (Verdict, error) {
	existing, err := m.database.FindContentByTitle(ctx, item.ContentType, item.Title)
	if err != nil && !errors.Is(err, db.ErrContentNotFound) {
		return "", fmt.Errorf("check existing term: %w", err)
	}

	if existing != nil {
		return m.reinforceExistingTerm(ctx, existing)
	}

	verdict := EvaluateTerm(item.RelevanceScore, item.SourceCount, item.MentionCount)

	switch verdict {
	case VerdictPromote:
		if _, err := m.Promote(ctx, item); err != nil {
			return verdict, err
		}
	case VerdictReview:
		item.DisplayOnMain = false
		item.Status = domain.ContentReview

		if err := m.database.SaveContentItem(ctx, item); err != nil {
			return verdict, fmt.Errorf("queue term for review: %w", err)
		}
	case VerdictDiscard:
	}

	return verdict, nil
}

// reinforceExistingTerm counts a re-mention and re-checks the promotion
// thresholds. Archived and graduated terms are left alone; a re-mention
// never resurrects a term an operator or the graduation pass removed.
func (m *Manager) reinforceExistingTerm(ctx context.Context, existing *db.ContentItem) (Verdict, error) {
	if existing.Status != domain.ContentActive && existing.Status != domain.ContentReview {
		return VerdictDiscard, nil
	}

	updated, err := m.database.ReinforceTerm(ctx, existing.ID)
	if err != nil {
		return "", fmt.Errorf("reinforce term %d: %w", existing.ID, err)
	}

	verdict := EvaluateTerm(updated.RelevanceScore, updated.SourceCount, updated.MentionCount)

	if verdict == VerdictPromote && !updated.DisplayOnMain {
		if err := m.database.RestoreContentItem(ctx, updated.ID); err != nil {
			return verdict, fmt.Errorf("promote reinforced term %d: %w", updated.ID, err)
		}

		observability.ContentPromoted.WithLabelValues(string(updated.ContentType)).Inc()
		m.logger.Info().Int64("id", updated.ID).Str("title", updated.Title).Msg("reinforced term promoted")
	}

	return verdict, nil
}

// GraduateTerm marks an emergent term as having entered the mainstream
// vocabulary. The next maintenance pass archives it with the graduation
// reason, keeping the archive trail in one place.
func (m *Manager) GraduateTerm(ctx context.Context, id int64) error {
	if err := m.database.UpdateContentStatus(ctx, id, string(domain.ContentGraduated)); err != nil {
		return fmt.Errorf("graduate term %d: %w", id, err)
	}

	return nil
}

// Archive takes an item off the main page. The reason is mandatory.
func (m *Manager) Archive(ctx context.Context, id int64, reason string) error {
	if reason == "" {
		return ErrReasonRequired
	}

	if err := m.database.ArchiveContentItem(ctx, id, reason); err != nil {
		return err
	}

	observability.ContentArchived.WithLabelValues("manual").Inc()

	return nil
}

// Restore puts an archived item back on the main page. It never triggers
// eviction of other items; an operator override may temporarily exceed the
// window until the next promotion cycle.
func (m *Manager) Restore(ctx context.Context, id int64) error {
	return m.database.RestoreContentItem(ctx, id)
}

// RunMaintenance performs the periodic housekeeping that runs after each
// aggregation cycle: graduated terms leave the page, stale content ages
// out, and the insight window is enforced. Returns the number of items
// archived.
func (m *Manager) RunMaintenance(ctx context.Context, now time.Time) (int, error) {
	archived := 0

	n, err := m.archiveGraduatedTerms(ctx)
	if err != nil {
		return archived, err
	}

	archived += n

	n, err = m.archiveAged(ctx, domain.ContentInsight, now.Add(-insightMaxAge), agedOutReason)
	if err != nil {
		return archived, err
	}

	archived += n

	n, err = m.archiveAged(ctx, domain.ContentEmergentTerm, now.Add(-emergentTermMaxAge), termAgedReason)
	if err != nil {
		return archived, err
	}

	archived += n

	n, err = m.EnforceInsightWindow(ctx)
	if err != nil {
		return archived, err
	}

	return archived + n, nil
}

func (m *Manager) archiveGraduatedTerms(ctx context.Context) (int, error) {
	items, err := m.database.GetActiveContent(ctx, domain.ContentEmergentTerm)
	if err != nil {
		return 0, fmt.Errorf("list active terms: %w", err)
	}

	archived := 0

	for _, item := range items {
		if item.Status != domain.ContentGraduated {
			continue
		}

		if err := m.database.ArchiveContentItem(ctx, item.ID, graduatedReason); err != nil {
			return archived, fmt.Errorf("archive graduated term %d: %w", item.ID, err)
		}

		observability.ContentArchived.WithLabelValues("graduated").Inc()

		archived++
	}

	return archived, nil
}

func (m *Manager) archiveAged(ctx context.Context, contentType domain.ContentType, cutoff time.Time, reason string) (int, error) {
	items, err := m.database.GetActiveContent(ctx, contentType)
	if err != nil {
		return 0, fmt.Errorf("list active %s: %w", contentType, err)
	}

	archived := 0

	for _, item := range items {
		if item.SourceDate.IsZero() || !item.SourceDate.Before(cutoff) {
			continue
		}

		if err := m.database.ArchiveContentItem(ctx, item.ID, reason); err != nil {
			return archived, fmt.Errorf("archive aged %s %d: %w", contentType, item.ID, err)
		}

		observability.ContentArchived.WithLabelValues("aged").Inc()
		m.logger.Info().
			Int64("id", item.ID).
			Str("type", string(contentType)).
			Str("title", item.Title).
			Msg("content aged out")

		archived++
	}

	return archived, nil
}
