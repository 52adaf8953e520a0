package domain

import "time"

// TimelineEvent is a summarized read-path row merging a site's crawl and
// plan history, newest first.
type TimelineEvent struct {
	Type      string
	ID        string
	Summary   string
	Status    string
	CreatedAt time.Time
}
