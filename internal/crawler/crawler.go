// Package crawler gathers a site's content and SEO metadata into an
// immutable snapshot.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/repo"
	"github.com/wpops-labs/wpops-go/internal/sshexec"
	"github.com/wpops-labs/wpops-go/internal/tasks"
	"github.com/wpops-labs/wpops-go/internal/wpcli"
)

const (
	defaultPostLimit = 100
	defaultPageLimit = 100

	// metaBatchSize bounds concurrent per-post meta reads so a large
	// site does not flood the remote host with ssh sessions.
	metaBatchSize = 5
)

// SiteReader is the subset of WP-CLI reads a crawl needs.
type SiteReader interface {
	SiteURL(ctx context.Context) (string, error)
	SiteTitle(ctx context.Context) (string, error)
	PermalinkStructure(ctx context.Context) (string, error)
	ActiveTheme(ctx context.Context) (string, error)
	ListPlugins(ctx context.Context) ([]domain.WPPlugin, error)
	ListPosts(ctx context.Context, postType string, limit int) ([]domain.WPPost, error)
	ListCategories(ctx context.Context) ([]domain.WPTerm, error)
	ListTags(ctx context.Context) ([]domain.WPTerm, error)
	GetPostMeta(ctx context.Context, postID int64, metaKeys []string) (map[string]string, error)
}

// ConnectionResolver yields SSH connection details for an environment.
type ConnectionResolver interface {
	Resolve(ctx context.Context, envID string) (sshexec.ConnectionInfo, error)
}

// ReaderFactory binds a reader to a resolved connection.
type ReaderFactory func(conn sshexec.ConnectionInfo) SiteReader

type Option func(*Service)

// WithMetaKeys overrides the meta keys gathered per post regardless of
// the detected SEO plugin.
func WithMetaKeys(keys []string) Option {
	return func(s *Service) { s.metaKeys = keys }
}

func WithLimits(postLimit, pageLimit int) Option {
	return func(s *Service) {
		if postLimit > 0 {
			s.postLimit = postLimit
		}
		if pageLimit > 0 {
			s.pageLimit = pageLimit
		}
	}
}

type Service struct {
	snapshots repo.SnapshotRepository
	resolver  ConnectionResolver
	readers   ReaderFactory
	tracker   *tasks.Tracker
	logger    *slog.Logger

	metaKeys  []string
	postLimit int
	pageLimit int
}

func NewService(snapshots repo.SnapshotRepository, resolver ConnectionResolver, readers ReaderFactory, tracker *tasks.Tracker, logger *slog.Logger, opts ...Option) *Service {
	if snapshots == nil || resolver == nil || readers == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		snapshots: snapshots,
		resolver:  resolver,
		readers:   readers,
		tracker:   tracker,
		logger:    logger,
		postLimit: defaultPostLimit,
		pageLimit: defaultPageLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCrawl creates a running snapshot and gathers the site in the
// background. The returned snapshot carries the id a caller polls.
func (s *Service) StartCrawl(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	snapshot, err := s.snapshots.CreateSnapshot(ctx, siteID, envID)
	if err != nil {
		return domain.CrawlSnapshot{}, fmt.Errorf("create snapshot: %w", err)
	}

	run := func(taskCtx context.Context) error {
		return s.runCrawl(taskCtx, snapshot)
	}
	if s.tracker != nil {
		if err := s.tracker.Start(context.WithoutCancel(ctx), "crawl:"+snapshot.ID, run); err != nil {
			_ = s.snapshots.FailSnapshot(ctx, snapshot.ID, err.Error())
			return domain.CrawlSnapshot{}, err
		}
	} else {
		go func() { _ = run(context.WithoutCancel(ctx)) }()
	}
	return snapshot, nil
}

// Crawl runs a crawl synchronously and returns the completed snapshot.
func (s *Service) Crawl(ctx context.Context, siteID, envID string) (domain.CrawlSnapshot, error) {
	snapshot, err := s.snapshots.CreateSnapshot(ctx, siteID, envID)
	if err != nil {
		return domain.CrawlSnapshot{}, fmt.Errorf("create snapshot: %w", err)
	}
	if err := s.runCrawl(ctx, snapshot); err != nil {
		return domain.CrawlSnapshot{}, err
	}
	return s.snapshots.GetSnapshot(ctx, snapshot.ID)
}

// CancelCrawl stops an in-flight crawl; the snapshot is marked failed
// by the unwinding task.
func (s *Service) CancelCrawl(snapshotID string) error {
	if s.tracker == nil {
		return fmt.Errorf("background crawls are not tracked")
	}
	return s.tracker.Cancel("crawl:" + snapshotID)
}

func (s *Service) runCrawl(ctx context.Context, snapshot domain.CrawlSnapshot) error {
	start := time.Now()
	data, err := s.gather(ctx, snapshot.EnvID)
	if err != nil {
		s.logger.Error("crawl failed",
			"snapshot_id", snapshot.ID,
			"site_id", snapshot.SiteID,
			"env_id", snapshot.EnvID,
			"error", err,
		)
		// Record the failure even when ctx itself was cancelled.
		failCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if failErr := s.snapshots.FailSnapshot(failCtx, snapshot.ID, err.Error()); failErr != nil {
			s.logger.Error("mark snapshot failed", "snapshot_id", snapshot.ID, "error", failErr)
		}
		return err
	}

	if err := s.snapshots.CompleteSnapshot(ctx, snapshot.ID, *data, len(data.Posts), len(data.Pages)); err != nil {
		return fmt.Errorf("complete snapshot: %w", err)
	}
	s.logger.Info("crawl completed",
		"snapshot_id", snapshot.ID,
		"site_id", snapshot.SiteID,
		"posts", len(data.Posts),
		"pages", len(data.Pages),
		"duration", time.Since(start),
	)
	return nil
}

func (s *Service) gather(ctx context.Context, envID string) (*domain.CrawlData, error) {
	conn, err := s.resolver.Resolve(ctx, envID)
	if err != nil {
		return nil, err
	}
	reader := s.readers(conn)

	data := &domain.CrawlData{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.SiteURL, err = reader.SiteURL(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data.SiteTitle, err = reader.SiteTitle(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data.PermalinkStructure, err = reader.PermalinkStructure(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data.Theme, err = reader.ActiveTheme(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data.Plugins, err = reader.ListPlugins(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data.Posts, err = reader.ListPosts(gctx, "post", s.postLimit)
		return err
	})
	g.Go(func() error {
		var err error
		data.Pages, err = reader.ListPosts(gctx, "page", s.pageLimit)
		return err
	})
	g.Go(func() error {
		var err error
		data.Categories, err = reader.ListCategories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		data.Tags, err = reader.ListTags(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	metaKeys := s.metaKeys
	if len(metaKeys) == 0 {
		metaKeys = wpcli.MetaKeysFor(wpcli.DetectPlugin(data.Plugins))
	}
	if err := s.fillMeta(ctx, reader, data.Posts, metaKeys); err != nil {
		return nil, err
	}
	if err := s.fillMeta(ctx, reader, data.Pages, metaKeys); err != nil {
		return nil, err
	}
	return data, nil
}

// fillMeta fetches per-post meta in batches of metaBatchSize concurrent
// reads.
func (s *Service) fillMeta(ctx context.Context, reader SiteReader, posts []domain.WPPost, metaKeys []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metaBatchSize)
	for i := range posts {
		post := &posts[i]
		g.Go(func() error {
			meta, err := reader.GetPostMeta(gctx, post.ID, metaKeys)
			if err != nil {
				return err
			}
			post.Meta = meta
			return nil
		})
	}
	return g.Wait()
}
