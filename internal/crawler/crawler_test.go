package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
	"github.com/wpops-labs/wpops-go/internal/tasks"
)

type fakeSnapshots struct {
	created    domain.CrawlSnapshot
	completed  *domain.CrawlData
	postCount  int
	pageCount  int
	failedWith string
}

func (f *fakeSnapshots) CreateSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	f.created = domain.CrawlSnapshot{ID: "snap-1", SiteID: siteID, EnvID: envID, Status: domain.CrawlRunning}
	return f.created, nil
}
func (f *fakeSnapshots) CompleteSnapshot(ctx context.Context, id string, data domain.CrawlData, postCount, pageCount int) error {
	f.completed = &data
	f.postCount = postCount
	f.pageCount = pageCount
	return nil
}
func (f *fakeSnapshots) FailSnapshot(ctx context.Context, id, message string) error {
	f.failedWith = message
	return nil
}
func (f *fakeSnapshots) GetSnapshot(ctx context.Context, id string) (domain.CrawlSnapshot, error) {
	snapshot := f.created
	if f.completed != nil {
		snapshot.Status = domain.CrawlCompleted
		snapshot.CrawlData = f.completed
		snapshot.PostCount = f.postCount
		snapshot.PageCount = f.pageCount
	}
	if f.failedWith != "" {
		snapshot.Status = domain.CrawlFailed
		snapshot.Error = f.failedWith
	}
	return snapshot, nil
}
func (f *fakeSnapshots) LatestCompletedSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	return domain.CrawlSnapshot{}, errors.New("not used")
}
func (f *fakeSnapshots) ListSnapshots(ctx context.Context, siteID, envID string, limit int) ([]domain.CrawlSnapshot, error) {
	return nil, errors.New("not used")
}

type fakeResolver struct {
	err error
}

func (f fakeResolver) Resolve(ctx context.Context, envID string) (sshexec.ConnectionInfo, error) {
	if f.err != nil {
		return sshexec.ConnectionInfo{}, f.err
	}
	return sshexec.ConnectionInfo{Host: "10.0.0.1", Port: 22, Username: "site", Password: "pw"}, nil
}

type fakeReader struct {
	posts   []domain.WPPost
	pages   []domain.WPPost
	plugins []domain.WPPlugin
	meta    map[int64]map[string]string
	listErr error

	mu       sync.Mutex
	metaKeys [][]string
}

func (f *fakeReader) SiteURL(ctx context.Context) (string, error)   { return "https://example.com", nil }
func (f *fakeReader) SiteTitle(ctx context.Context) (string, error) { return "Example", nil }
func (f *fakeReader) PermalinkStructure(ctx context.Context) (string, error) {
	return "/%postname%/", nil
}
func (f *fakeReader) ActiveTheme(ctx context.Context) (string, error) { return "astra", nil }
func (f *fakeReader) ListPlugins(ctx context.Context) ([]domain.WPPlugin, error) {
	return f.plugins, nil
}
func (f *fakeReader) ListPosts(ctx context.Context, postType string, limit int) ([]domain.WPPost, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if postType == "page" {
		return f.pages, nil
	}
	return f.posts, nil
}
func (f *fakeReader) ListCategories(ctx context.Context) ([]domain.WPTerm, error) {
	return []domain.WPTerm{{TermID: 1, Name: "News"}}, nil
}
func (f *fakeReader) ListTags(ctx context.Context) ([]domain.WPTerm, error) {
	return []domain.WPTerm{}, nil
}
func (f *fakeReader) GetPostMeta(ctx context.Context, postID int64, metaKeys []string) (map[string]string, error) {
	f.mu.Lock()
	f.metaKeys = append(f.metaKeys, metaKeys)
	f.mu.Unlock()
	if meta, ok := f.meta[postID]; ok {
		return meta, nil
	}
	return map[string]string{}, nil
}

func newTestService(snapshots *fakeSnapshots, reader *fakeReader, resolver fakeResolver, opts ...Option) *Service {
	return NewService(snapshots, resolver, func(sshexec.ConnectionInfo) SiteReader {
		return reader
	}, tasks.NewTracker(), nil, opts...)
}

func TestCrawlCompletesWithCounts(t *testing.T) {
	snapshots := &fakeSnapshots{}
	reader := &fakeReader{
		posts: []domain.WPPost{{ID: 1, Title: "A", Type: "post"}, {ID: 2, Title: "B", Type: "post"}},
		pages: []domain.WPPost{{ID: 10, Title: "Home", Type: "page"}},
		plugins: []domain.WPPlugin{
			{Name: "wordpress-seo", Status: "active"},
		},
		meta: map[int64]map[string]string{
			1: {"_yoast_wpseo_title": "A | Example"},
		},
	}

	snapshot, err := newTestService(snapshots, reader, fakeResolver{}).Crawl(context.Background(), "site-1", "env-1")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if snapshot.Status != domain.CrawlCompleted {
		t.Fatalf("status = %s", snapshot.Status)
	}
	if snapshot.PostCount != 2 || snapshot.PageCount != 1 {
		t.Fatalf("counts = %d/%d", snapshot.PostCount, snapshot.PageCount)
	}
	if snapshot.CrawlData.SiteURL != "https://example.com" {
		t.Fatalf("site url = %q", snapshot.CrawlData.SiteURL)
	}
	if got := snapshot.CrawlData.Posts[0].Meta["_yoast_wpseo_title"]; got != "A | Example" {
		t.Fatalf("post meta not gathered: %q", got)
	}
	// Yoast is active, so only its keys should be fetched.
	for _, keys := range reader.metaKeys {
		if len(keys) != 3 || keys[0] != "_yoast_wpseo_title" {
			t.Fatalf("unexpected meta keys: %v", keys)
		}
	}
}

func TestCrawlEmptySiteCompletes(t *testing.T) {
	snapshots := &fakeSnapshots{}
	reader := &fakeReader{}

	snapshot, err := newTestService(snapshots, reader, fakeResolver{}).Crawl(context.Background(), "site-1", "env-1")
	if err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if snapshot.Status != domain.CrawlCompleted {
		t.Fatalf("an empty site is still a successful crawl, got %s", snapshot.Status)
	}
	if snapshot.PostCount != 0 || snapshot.PageCount != 0 {
		t.Fatalf("counts = %d/%d", snapshot.PostCount, snapshot.PageCount)
	}
}

func TestCrawlFailureMarksSnapshotFailed(t *testing.T) {
	snapshots := &fakeSnapshots{}
	reader := &fakeReader{listErr: errors.New("wp-cli list posts failed (exit 255): connection refused")}

	_, err := newTestService(snapshots, reader, fakeResolver{}).Crawl(context.Background(), "site-1", "env-1")
	if err == nil {
		t.Fatal("expected crawl failure")
	}
	if snapshots.failedWith == "" {
		t.Fatal("snapshot should be marked failed with the error message")
	}
	if snapshots.completed != nil {
		t.Fatal("failed crawl must not complete the snapshot")
	}
}

func TestCrawlResolverFailure(t *testing.T) {
	snapshots := &fakeSnapshots{}
	_, err := newTestService(snapshots, &fakeReader{}, fakeResolver{err: errors.New("kinsta: credential unavailable")}).
		Crawl(context.Background(), "site-1", "env-1")
	if err == nil {
		t.Fatal("expected resolver failure to fail the crawl")
	}
	if snapshots.failedWith == "" {
		t.Fatal("snapshot should be marked failed")
	}
}

func TestCrawlMetaKeyOverride(t *testing.T) {
	snapshots := &fakeSnapshots{}
	reader := &fakeReader{
		posts: []domain.WPPost{{ID: 1, Title: "A"}},
	}
	svc := newTestService(snapshots, reader, fakeResolver{}, WithMetaKeys([]string{"_custom_seo_title"}))

	if _, err := svc.Crawl(context.Background(), "site-1", "env-1"); err != nil {
		t.Fatalf("Crawl: %v", err)
	}
	if len(reader.metaKeys) != 1 || reader.metaKeys[0][0] != "_custom_seo_title" {
		t.Fatalf("override ignored: %v", reader.metaKeys)
	}
}

func TestStartCrawlRunsInBackground(t *testing.T) {
	snapshots := &fakeSnapshots{}
	reader := &fakeReader{posts: []domain.WPPost{{ID: 1}}}
	tracker := tasks.NewTracker()
	svc := NewService(snapshots, fakeResolver{}, func(sshexec.ConnectionInfo) SiteReader {
		return reader
	}, tracker, nil)

	snapshot, err := svc.StartCrawl(context.Background(), "site-1", "env-1")
	if err != nil {
		t.Fatalf("StartCrawl: %v", err)
	}
	if snapshot.Status != domain.CrawlRunning {
		t.Fatalf("status = %s", snapshot.Status)
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracker.Wait(waitCtx, "crawl:"+snapshot.ID); err != nil {
		t.Fatalf("background crawl failed: %v", err)
	}
	if snapshots.completed == nil {
		t.Fatal("background crawl did not complete the snapshot")
	}
}
