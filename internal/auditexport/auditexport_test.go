package auditexport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/platform/objectstore"
)

type fakeStore struct {
	bucket      string
	key         string
	payload     []byte
	contentType string
}

func (f *fakeStore) Put(ctx context.Context, bucket, key string, payload []byte, contentType string) error {
	f.bucket = bucket
	f.key = key
	f.payload = payload
	f.contentType = contentType
	return nil
}

type fakeExecLog struct {
	entries []domain.ExecutionLogEntry
}

func (f *fakeExecLog) Append(ctx context.Context, entry domain.ExecutionLogEntry) (domain.ExecutionLogEntry, error) {
	return entry, nil
}
func (f *fakeExecLog) ListByPlan(ctx context.Context, planID string) ([]domain.ExecutionLogEntry, error) {
	return f.entries, nil
}
func (f *fakeExecLog) ListByChange(ctx context.Context, changeID string) ([]domain.ExecutionLogEntry, error) {
	return f.entries, nil
}

type fakeSnapshots struct {
	snapshot domain.CrawlSnapshot
	err      error
}

func (f *fakeSnapshots) CreateSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	return domain.CrawlSnapshot{}, errors.New("not used")
}
func (f *fakeSnapshots) CompleteSnapshot(ctx context.Context, id string, data domain.CrawlData, postCount, pageCount int) error {
	return errors.New("not used")
}
func (f *fakeSnapshots) FailSnapshot(ctx context.Context, id, message string) error {
	return errors.New("not used")
}
func (f *fakeSnapshots) GetSnapshot(ctx context.Context, id string) (domain.CrawlSnapshot, error) {
	if f.err != nil {
		return domain.CrawlSnapshot{}, f.err
	}
	return f.snapshot, nil
}
func (f *fakeSnapshots) LatestCompletedSnapshot(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	return domain.CrawlSnapshot{}, errors.New("not used")
}
func (f *fakeSnapshots) ListSnapshots(ctx context.Context, siteID, envID string, limit int) ([]domain.CrawlSnapshot, error) {
	return nil, errors.New("not used")
}

func testConfig() objectstore.Config {
	return objectstore.Config{
		Endpoint:      "localhost:9000",
		AccessKey:     "a",
		SecretKey:     "s",
		Region:        "us-east-1",
		BucketCrawls:  "crawl-archives",
		BucketExports: "execution-exports",
	}
}

func TestExportPlanLogNDJSON(t *testing.T) {
	execLog := &fakeExecLog{entries: []domain.ExecutionLogEntry{
		{PlanID: "plan-1", ChangeID: "c1", Command: "title_rewrite on post 42: post_title", ExitCode: 0, DurationMS: 120, ExecutedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)},
		{PlanID: "plan-1", ChangeID: "c2", Command: "slug_change on post 42: post_name", ExitCode: 1, Stderr: "Error", ExecutedAt: time.Date(2026, 8, 1, 12, 0, 1, 0, time.UTC)},
	}}
	store := &fakeStore{}
	svc := NewService(execLog, &fakeSnapshots{}, store, testConfig(), nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 1, 12, 30, 0, 0, time.UTC) }

	key, err := svc.ExportPlanLog(context.Background(), "plan-1")
	if err != nil {
		t.Fatalf("ExportPlanLog: %v", err)
	}
	if key != "plans/plan-1/execution-log-20260801T123000Z.ndjson" {
		t.Fatalf("key = %q", key)
	}
	if store.bucket != "execution-exports" || store.contentType != "application/x-ndjson" {
		t.Fatalf("bucket/type = %q/%q", store.bucket, store.contentType)
	}

	scanner := bufio.NewScanner(bytes.NewReader(store.payload))
	var lines []exportLine
	for scanner.Scan() {
		var line exportLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("line is not valid JSON: %v", err)
		}
		lines = append(lines, line)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].ChangeID != "c1" || lines[1].ExitCode != 1 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestArchiveSnapshot(t *testing.T) {
	snapshot := domain.CrawlSnapshot{
		ID:     "snap-1",
		SiteID: "site-1",
		EnvID:  "env-1",
		Status: domain.CrawlCompleted,
		CrawlData: &domain.CrawlData{
			SiteURL: "https://example.com",
			Posts:   []domain.WPPost{{ID: 42, Title: "Home"}},
		},
	}
	store := &fakeStore{}
	svc := NewService(&fakeExecLog{}, &fakeSnapshots{snapshot: snapshot}, store, testConfig(), nil)

	key, err := svc.ArchiveSnapshot(context.Background(), "snap-1")
	if err != nil {
		t.Fatalf("ArchiveSnapshot: %v", err)
	}
	if key != "sites/site-1/env-1/snap-1.json" {
		t.Fatalf("key = %q", key)
	}
	if store.bucket != "crawl-archives" {
		t.Fatalf("bucket = %q", store.bucket)
	}
	if !strings.Contains(string(store.payload), `"site_url":"https://example.com"`) {
		t.Fatalf("payload missing crawl data: %s", store.payload)
	}
}

func TestArchiveSnapshotRejectsRunning(t *testing.T) {
	snapshot := domain.CrawlSnapshot{ID: "snap-1", Status: domain.CrawlRunning}
	svc := NewService(&fakeExecLog{}, &fakeSnapshots{snapshot: snapshot}, &fakeStore{}, testConfig(), nil)

	if _, err := svc.ArchiveSnapshot(context.Background(), "snap-1"); err == nil {
		t.Fatal("expected running snapshot to be rejected")
	}
}
