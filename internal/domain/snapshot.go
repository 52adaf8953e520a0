package domain

import (
	"errors"
	"strings"
	"time"
)

type CrawlStatus string

const (
	CrawlRunning   CrawlStatus = "running"
	CrawlCompleted CrawlStatus = "completed"
	CrawlFailed    CrawlStatus = "failed"
)

// CrawlSnapshot is one gather of a live site's content and SEO metadata.
// Immutable once status is completed or failed; re-crawling creates a
// new snapshot.
type CrawlSnapshot struct {
	ID          string
	SiteID      string
	EnvID       string
	CrawlData   *CrawlData
	PostCount   int
	PageCount   int
	Status      CrawlStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

type CrawlData struct {
	SiteURL            string     `json:"site_url"`
	SiteTitle          string     `json:"site_title"`
	Posts              []WPPost   `json:"posts"`
	Pages              []WPPost   `json:"pages"`
	Categories         []WPTerm   `json:"categories"`
	Tags               []WPTerm   `json:"tags"`
	Plugins            []WPPlugin `json:"plugins"`
	Theme              string     `json:"theme"`
	PermalinkStructure string     `json:"permalink_structure"`
}

type WPPost struct {
	ID       int64             `json:"ID"`
	Title    string            `json:"post_title"`
	Name     string            `json:"post_name"`
	Status   string            `json:"post_status"`
	Type     string            `json:"post_type"`
	Date     string            `json:"post_date"`
	Modified string            `json:"post_modified"`
	Content  string            `json:"post_content"`
	Excerpt  string            `json:"post_excerpt"`
	URL      string            `json:"url"`
	Meta     map[string]string `json:"meta"`
}

type WPTerm struct {
	TermID      int64  `json:"term_id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Taxonomy    string `json:"taxonomy"`
	Count       int    `json:"count"`
	Description string `json:"description"`
}

type WPPlugin struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s CrawlSnapshot) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("snapshot id is required")
	}
	if strings.TrimSpace(s.SiteID) == "" {
		return errors.New("site id is required")
	}
	if strings.TrimSpace(s.EnvID) == "" {
		return errors.New("env id is required")
	}
	switch s.Status {
	case CrawlRunning, CrawlCompleted, CrawlFailed:
	default:
		return errors.New("invalid crawl status")
	}
	return nil
}

// Terminal reports whether the snapshot may no longer be mutated.
func (s CrawlSnapshot) Terminal() bool {
	return s.Status == CrawlCompleted || s.Status == CrawlFailed
}
