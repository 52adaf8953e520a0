package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/wpops-labs/wpops-go/internal/auditexport"
	"github.com/wpops-labs/wpops-go/internal/crawler"
	"github.com/wpops-labs/wpops-go/internal/domain"
	"github.com/wpops-labs/wpops-go/internal/executor"
	"github.com/wpops-labs/wpops-go/internal/ledger"
	"github.com/wpops-labs/wpops-go/internal/planner"
	"github.com/wpops-labs/wpops-go/internal/repo"
	"github.com/wpops-labs/wpops-go/internal/rollback"
	"github.com/wpops-labs/wpops-go/internal/semrush"
	"github.com/wpops-labs/wpops-go/internal/tasks"
)

type consoleDeps struct {
	logger       *slog.Logger
	environments repo.EnvironmentRepository
	snapshots    repo.SnapshotRepository
	plans        repo.PlanRepository
	changes      repo.ChangeRepository
	timeline     repo.TimelineRepository
	crawls       *crawler.Service
	planner      *planner.Service
	ledger       *ledger.Service
	executor     *executor.Service
	rollback     *rollback.Service
	semrush      *semrush.Service
	exports      *auditexport.Service
}

type consoleAPI struct {
	consoleDeps
}

func newConsoleAPI(deps consoleDeps) *consoleAPI {
	return &consoleAPI{consoleDeps: deps}
}

func (api *consoleAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("PUT /environments/{env_id}", api.handleUpsertEnvironment)

	mux.HandleFunc("POST /crawls", api.handleStartCrawl)
	mux.HandleFunc("GET /crawls", api.handleListCrawls)
	mux.HandleFunc("GET /crawls/{snapshot_id}", api.handleGetCrawl)
	mux.HandleFunc("POST /crawls/{snapshot_id}/cancel", api.handleCancelCrawl)
	mux.HandleFunc("POST /crawls/{snapshot_id}/archive", api.handleArchiveCrawl)

	mux.HandleFunc("POST /plans", api.handleGeneratePlan)
	mux.HandleFunc("GET /plans", api.handleListPlans)
	mux.HandleFunc("GET /plans/{plan_id}", api.handleGetPlan)
	mux.HandleFunc("POST /plans/{plan_id}/approve-all", api.handleApproveAll)
	mux.HandleFunc("POST /plans/{plan_id}/execute", api.handleExecutePlan)
	mux.HandleFunc("POST /plans/{plan_id}/rollback", api.handleRollbackPlan)
	mux.HandleFunc("POST /plans/{plan_id}/export", api.handleExportPlanLog)

	mux.HandleFunc("POST /changes/{change_id}/approve", api.handleApproveChange)
	mux.HandleFunc("POST /changes/{change_id}/skip", api.handleSkipChange)
	mux.HandleFunc("POST /changes/{change_id}/rollback", api.handleRollbackChange)

	mux.HandleFunc("POST /rankings", api.handleSnapshotRankings)
	mux.HandleFunc("GET /timeline", api.handleTimeline)
}

func (api *consoleAPI) handleUpsertEnvironment(w http.ResponseWriter, r *http.Request) {
	envID := strings.TrimSpace(r.PathValue("env_id"))

	var body struct {
		SiteID      string `json:"site_id"`
		Name        string `json:"name"`
		SSHHost     string `json:"ssh_host"`
		SSHIP       string `json:"ssh_ip"`
		SSHPort     int    `json:"ssh_port"`
		SSHUsername string `json:"ssh_username"`
	}
	if !api.decode(w, r, &body) {
		return
	}
	if body.SSHPort == 0 {
		body.SSHPort = 22
	}
	environment := domain.Environment{
		ID:          envID,
		SiteID:      body.SiteID,
		Name:        body.Name,
		SSHHost:     body.SSHHost,
		SSHIP:       body.SSHIP,
		SSHPort:     body.SSHPort,
		SSHUsername: body.SSHUsername,
	}
	if err := environment.Validate(); err != nil {
		api.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := api.environments.UpsertEnvironment(r.Context(), environment); err != nil {
		api.serverError(w, r, "upsert environment", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"env_id": envID})
}

func (api *consoleAPI) handleStartCrawl(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SiteID string `json:"site_id"`
		EnvID  string `json:"env_id"`
	}
	if !api.decode(w, r, &body) {
		return
	}
	if body.SiteID == "" || body.EnvID == "" {
		api.writeError(w, r, http.StatusBadRequest, "site_id and env_id are required")
		return
	}
	snapshot, err := api.crawls.StartCrawl(r.Context(), body.SiteID, body.EnvID)
	if err != nil {
		api.serverError(w, r, "start crawl", err)
		return
	}
	api.writeJSON(w, http.StatusAccepted, snapshotView(snapshot, false))
}

func (api *consoleAPI) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	siteID, envID, ok := api.siteScope(w, r)
	if !ok {
		return
	}
	limit := parseIntQuery(r, "limit", 20)
	snapshots, err := api.snapshots.ListSnapshots(r.Context(), siteID, envID, limit)
	if err != nil {
		api.serverError(w, r, "list crawls", err)
		return
	}
	views := make([]map[string]any, 0, len(snapshots))
	for _, snapshot := range snapshots {
		views = append(views, snapshotView(snapshot, false))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"crawls": views})
}

func (api *consoleAPI) handleGetCrawl(w http.ResponseWriter, r *http.Request) {
	snapshotID := strings.TrimSpace(r.PathValue("snapshot_id"))
	snapshot, err := api.snapshots.GetSnapshot(r.Context(), snapshotID)
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "crawl not found")
		return
	}
	if err != nil {
		api.serverError(w, r, "get crawl", err)
		return
	}
	api.writeJSON(w, http.StatusOK, snapshotView(snapshot, true))
}

func (api *consoleAPI) handleCancelCrawl(w http.ResponseWriter, r *http.Request) {
	snapshotID := strings.TrimSpace(r.PathValue("snapshot_id"))
	if err := api.crawls.CancelCrawl(snapshotID); err != nil {
		if errors.Is(err, tasks.ErrUnknownTask) {
			api.writeError(w, r, http.StatusNotFound, "no running crawl for this snapshot")
			return
		}
		api.serverError(w, r, "cancel crawl", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"snapshot_id": snapshotID, "cancelled": true})
}

func (api *consoleAPI) handleArchiveCrawl(w http.ResponseWriter, r *http.Request) {
	if api.exports == nil {
		api.writeError(w, r, http.StatusNotImplemented, "exports are disabled")
		return
	}
	snapshotID := strings.TrimSpace(r.PathValue("snapshot_id"))
	key, err := api.exports.ArchiveSnapshot(r.Context(), snapshotID)
	if err != nil {
		api.serverError(w, r, "archive crawl", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"snapshot_id": snapshotID, "object_key": key})
}

func (api *consoleAPI) handleGeneratePlan(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SiteID     string `json:"site_id"`
		EnvID      string `json:"env_id"`
		SnapshotID string `json:"snapshot_id"`
	}
	if !api.decode(w, r, &body) {
		return
	}
	if body.SiteID == "" || body.EnvID == "" {
		api.writeError(w, r, http.StatusBadRequest, "site_id and env_id are required")
		return
	}
	plan, changes, err := api.planner.GeneratePlan(r.Context(), planner.GenerateRequest{
		SiteID:     body.SiteID,
		EnvID:      body.EnvID,
		SnapshotID: body.SnapshotID,
	})
	if err != nil {
		api.serverError(w, r, "generate plan", err)
		return
	}
	api.writeJSON(w, http.StatusCreated, map[string]any{
		"plan":    planView(plan),
		"changes": changeViews(changes),
	})
}

func (api *consoleAPI) handleListPlans(w http.ResponseWriter, r *http.Request) {
	siteID, envID, ok := api.siteScope(w, r)
	if !ok {
		return
	}
	limit := parseIntQuery(r, "limit", 20)
	plans, err := api.plans.ListPlans(r.Context(), siteID, envID, limit)
	if err != nil {
		api.serverError(w, r, "list plans", err)
		return
	}
	views := make([]map[string]any, 0, len(plans))
	for _, plan := range plans {
		views = append(views, planView(plan))
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"plans": views})
}

func (api *consoleAPI) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(r.PathValue("plan_id"))
	plan, err := api.plans.GetPlan(r.Context(), planID)
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		api.serverError(w, r, "get plan", err)
		return
	}
	changes, err := api.changes.ListByPlan(r.Context(), planID)
	if err != nil {
		api.serverError(w, r, "list plan changes", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{
		"plan":    planView(plan),
		"changes": changeViews(changes),
	})
}

func (api *consoleAPI) handleApproveAll(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(r.PathValue("plan_id"))
	approved, err := api.ledger.ApproveAll(r.Context(), planID)
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		api.serverError(w, r, "approve all", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"plan_id": planID, "approved": approved})
}

func (api *consoleAPI) handleExecutePlan(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(r.PathValue("plan_id"))
	var body struct {
		DryRun bool `json:"dry_run"`
	}
	if !api.decode(w, r, &body) {
		return
	}
	result, err := api.executor.ExecutePlan(r.Context(), planID, executor.Options{DryRun: body.DryRun})
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		api.serverError(w, r, "execute plan", err)
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

func (api *consoleAPI) handleRollbackPlan(w http.ResponseWriter, r *http.Request) {
	planID := strings.TrimSpace(r.PathValue("plan_id"))
	result, err := api.rollback.RollbackPlan(r.Context(), planID)
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		api.serverError(w, r, "rollback plan", err)
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

func (api *consoleAPI) handleExportPlanLog(w http.ResponseWriter, r *http.Request) {
	if api.exports == nil {
		api.writeError(w, r, http.StatusNotImplemented, "exports are disabled")
		return
	}
	planID := strings.TrimSpace(r.PathValue("plan_id"))
	key, err := api.exports.ExportPlanLog(r.Context(), planID)
	if err != nil {
		api.serverError(w, r, "export plan log", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"plan_id": planID, "object_key": key})
}

func (api *consoleAPI) handleApproveChange(w http.ResponseWriter, r *http.Request) {
	api.reviewChange(w, r, api.ledger.Approve)
}

func (api *consoleAPI) handleSkipChange(w http.ResponseWriter, r *http.Request) {
	api.reviewChange(w, r, api.ledger.Skip)
}

func (api *consoleAPI) reviewChange(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, changeID string) (domain.PlanChange, error)) {
	changeID := strings.TrimSpace(r.PathValue("change_id"))
	change, err := apply(r.Context(), changeID)
	if errors.Is(err, repo.ErrNotFound) {
		api.writeError(w, r, http.StatusNotFound, "change not found")
		return
	}
	if err != nil {
		api.writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	api.writeJSON(w, http.StatusOK, changeView(change))
}

func (api *consoleAPI) handleRollbackChange(w http.ResponseWriter, r *http.Request) {
	changeID := strings.TrimSpace(r.PathValue("change_id"))
	result, err := api.rollback.RollbackChange(r.Context(), changeID)
	if err != nil {
		api.writeError(w, r, http.StatusConflict, err.Error())
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

func (api *consoleAPI) handleSnapshotRankings(w http.ResponseWriter, r *http.Request) {
	if api.semrush == nil {
		api.writeError(w, r, http.StatusNotImplemented, "ranking snapshots are disabled")
		return
	}
	var body struct {
		SiteID string `json:"site_id"`
		EnvID  string `json:"env_id"`
		Domain string `json:"domain"`
	}
	if !api.decode(w, r, &body) {
		return
	}
	if body.SiteID == "" || body.EnvID == "" || body.Domain == "" {
		api.writeError(w, r, http.StatusBadRequest, "site_id, env_id and domain are required")
		return
	}
	snapshot, err := api.semrush.SnapshotRankings(r.Context(), body.SiteID, body.EnvID, body.Domain)
	if err != nil {
		api.serverError(w, r, "snapshot rankings", err)
		return
	}
	api.writeJSON(w, http.StatusCreated, map[string]any{
		"snapshot_id": snapshot.ID,
		"keywords":    len(snapshot.Keywords),
	})
}

func (api *consoleAPI) handleTimeline(w http.ResponseWriter, r *http.Request) {
	siteID, envID, ok := api.siteScope(w, r)
	if !ok {
		return
	}
	limit := parseIntQuery(r, "limit", 50)
	events, err := api.timeline.SiteTimeline(r.Context(), siteID, envID, limit)
	if err != nil {
		api.serverError(w, r, "site timeline", err)
		return
	}
	api.writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func snapshotView(snapshot domain.CrawlSnapshot, includeData bool) map[string]any {
	view := map[string]any{
		"id":         snapshot.ID,
		"site_id":    snapshot.SiteID,
		"env_id":     snapshot.EnvID,
		"status":     snapshot.Status,
		"post_count": snapshot.PostCount,
		"page_count": snapshot.PageCount,
		"started_at": snapshot.StartedAt,
	}
	if snapshot.Error != "" {
		view["error"] = snapshot.Error
	}
	if snapshot.CompletedAt != nil {
		view["completed_at"] = snapshot.CompletedAt
	}
	if includeData && snapshot.CrawlData != nil {
		view["crawl_data"] = snapshot.CrawlData
	}
	return view
}

func planView(plan domain.SEOPlan) map[string]any {
	view := map[string]any{
		"id":                plan.ID,
		"site_id":           plan.SiteID,
		"env_id":            plan.EnvID,
		"crawl_snapshot_id": plan.CrawlSnapshotID,
		"model_used":        plan.ModelUsed,
		"strategy_summary":  plan.StrategySummary,
		"keyword_clusters":  plan.KeywordClusters,
		"status":            plan.Status,
		"created_at":        plan.CreatedAt,
	}
	if plan.SEMrushSnapshotID != "" {
		view["semrush_snapshot_id"] = plan.SEMrushSnapshotID
	}
	return view
}

func changeView(change domain.PlanChange) map[string]any {
	view := map[string]any{
		"id":              change.ID,
		"plan_id":         change.PlanID,
		"change_type":     change.ChangeType,
		"field_name":      change.FieldName,
		"old_value":       change.OldValue,
		"new_value":       change.NewValue,
		"reasoning":       change.Reasoning,
		"priority":        change.Priority,
		"status":          change.Status,
		"execution_order": change.ExecutionOrder,
	}
	if change.PostID != nil {
		view["post_id"] = *change.PostID
	}
	return view
}

func changeViews(changes []domain.PlanChange) []map[string]any {
	views := make([]map[string]any, 0, len(changes))
	for _, change := range changes {
		views = append(views, changeView(change))
	}
	return views
}

func (api *consoleAPI) siteScope(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	siteID := strings.TrimSpace(r.URL.Query().Get("site_id"))
	envID := strings.TrimSpace(r.URL.Query().Get("env_id"))
	if siteID == "" || envID == "" {
		api.writeError(w, r, http.StatusBadRequest, "site_id and env_id query params are required")
		return "", "", false
	}
	return siteID, envID, true
}

func (api *consoleAPI) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(into); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (api *consoleAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func (api *consoleAPI) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	api.writeJSON(w, status, map[string]any{
		"error":      message,
		"request_id": r.Header.Get("X-Request-Id"),
	})
}

func (api *consoleAPI) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	api.logger.Error(op, "error", err, "request_id", r.Header.Get("X-Request-Id"))
	api.writeError(w, r, http.StatusInternalServerError, "internal_error")
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}
