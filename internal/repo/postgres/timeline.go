package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type TimelineStore struct {
	db DB
}

func NewTimelineStore(db DB) *TimelineStore {
	if db == nil {
		return nil
	}
	return &TimelineStore{db: db}
}

// SiteTimeline merges crawl and plan history for a site, newest first.
func (s *TimelineStore) SiteTimeline(ctx context.Context, siteID, envID string, limit int) ([]domain.TimelineEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("timeline store not initialized")
	}
	limit = clampLimit(limit, 50, 200)

	events := []domain.TimelineEvent{}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, status, post_count, page_count, started_at
		 FROM crawl_snapshots
		 WHERE site_id = $1 AND env_id = $2
		 ORDER BY started_at DESC LIMIT $3`,
		siteID,
		envID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("timeline crawls: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var event domain.TimelineEvent
		var postCount, pageCount int
		if err := rows.Scan(&event.ID, &event.Status, &postCount, &pageCount, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Type = "crawl"
		event.Summary = fmt.Sprintf("Crawled %d posts, %d pages", postCount, pageCount)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	planRows, err := s.db.QueryContext(
		ctx,
		`SELECT id, status, strategy_summary, created_at
		 FROM seo_plans
		 WHERE site_id = $1 AND env_id = $2
		 ORDER BY created_at DESC LIMIT $3`,
		siteID,
		envID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("timeline plans: %w", err)
	}
	defer planRows.Close()
	for planRows.Next() {
		var event domain.TimelineEvent
		var summary string
		if err := planRows.Scan(&event.ID, &event.Status, &summary, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Type = "plan"
		event.Summary = truncate(summary, 100)
		if event.Summary == "" {
			event.Summary = "Optimization plan"
		}
		events = append(events, event)
	}
	if err := planRows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
