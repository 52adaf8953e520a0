package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wpops-labs/wpops-go/internal/domain"
)

type RankingStore struct {
	db DB
}

func NewRankingStore(db DB) *RankingStore {
	if db == nil {
		return nil
	}
	return &RankingStore{db: db}
}

func (s *RankingStore) CreateRankingSnapshot(ctx context.Context, snapshot domain.RankingSnapshot) (domain.RankingSnapshot, error) {
	if s == nil || s.db == nil {
		return domain.RankingSnapshot{}, fmt.Errorf("ranking store not initialized")
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = time.Now().UTC()
	}
	if err := snapshot.Validate(); err != nil {
		return domain.RankingSnapshot{}, err
	}
	keywordsJSON, err := encodeJSON(snapshot.Keywords)
	if err != nil {
		return domain.RankingSnapshot{}, fmt.Errorf("encode keywords: %w", err)
	}
	var traffic sql.NullInt64
	if snapshot.OrganicTraffic != nil {
		traffic = sql.NullInt64{Int64: int64(*snapshot.OrganicTraffic), Valid: true}
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO semrush_snapshots (id, site_id, env_id, domain, keyword_data, organic_traffic, fetched_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		snapshot.ID,
		snapshot.SiteID,
		snapshot.EnvID,
		snapshot.Domain,
		keywordsJSON,
		traffic,
		snapshot.FetchedAt,
	)
	if err != nil {
		return domain.RankingSnapshot{}, fmt.Errorf("insert ranking snapshot: %w", err)
	}
	return snapshot, nil
}

func (s *RankingStore) LatestRankingSnapshot(ctx context.Context, siteID, envID string) (domain.RankingSnapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, site_id, env_id, domain, keyword_data, organic_traffic, fetched_at
		 FROM semrush_snapshots
		 WHERE site_id = $1 AND env_id = $2
		 ORDER BY fetched_at DESC LIMIT 1`,
		siteID,
		envID,
	)
	var (
		snapshot    domain.RankingSnapshot
		keywordsRaw []byte
		traffic     sql.NullInt64
	)
	if err := row.Scan(
		&snapshot.ID,
		&snapshot.SiteID,
		&snapshot.EnvID,
		&snapshot.Domain,
		&keywordsRaw,
		&traffic,
		&snapshot.FetchedAt,
	); err != nil {
		return domain.RankingSnapshot{}, handleNotFound(err)
	}
	if len(keywordsRaw) > 0 && string(keywordsRaw) != "null" {
		if err := json.Unmarshal(keywordsRaw, &snapshot.Keywords); err != nil {
			return domain.RankingSnapshot{}, fmt.Errorf("decode keywords: %w", err)
		}
	}
	if traffic.Valid {
		v := int(traffic.Int64)
		snapshot.OrganicTraffic = &v
	}
	return snapshot, nil
}
