// Package jobs implements the job lifecycle manager: job creation, sync and
// async execution modes, status projection, and TTL eviction (spec.md §4.8).
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/scrapeworker/cache"
	"github.com/use-agent/scrapeworker/config"
	"github.com/use-agent/scrapeworker/enrich"
	"github.com/use-agent/scrapeworker/models"
	"github.com/use-agent/scrapeworker/pipeline"
	"github.com/use-agent/scrapeworker/webhook"
)

// Router is the subset of pipeline.EngineRouter the manager depends on,
// seamed out so tests can inject a fake without a live browser.
type Router interface {
	Run(ctx context.Context, req *models.ScrapeRequest) (*models.SuccessResponse, error)
}

// Manager owns the in-memory job store, the TTL sweeper, and the two
// execution entrypoints (spec.md §4.8).
type Manager struct {
	router Router
	cache  *cache.Cache
	cfg    config.JobConfig

	mu    sync.RWMutex
	store map[string]*models.Job

	stop chan struct{}
}

// New constructs a Manager and starts its TTL sweeper goroutine. cache may
// be nil to disable response caching entirely.
func New(router Router, respCache *cache.Cache, cfg config.JobConfig) *Manager {
	m := &Manager{
		router: router,
		cache:  respCache,
		cfg:    cfg,
		store:  make(map[string]*models.Job),
		stop:   make(chan struct{}),
	}
	go m.sweepLoop()
	return m
}

// CreateJob allocates a UUIDv4 job id and stores the job in the queued
// state. The caller decides whether to execute it synchronously or via
// StartJobAsync.
func (m *Manager) CreateJob(req models.ScrapeRequest) *models.Job {
	job := &models.Job{
		ID:        uuid.NewString(),
		Request:   req,
		Status:    models.JobQueued,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	m.store[job.ID] = job
	m.mu.Unlock()
	return job
}

// ExecuteJob runs job synchronously: marks it processing, invokes the
// EngineRouter, and marks it completed or failed per spec.md §4.8/§7. It
// returns the same success/error split the HTTP handler needs to answer the
// request.
func (m *Manager) ExecuteJob(ctx context.Context, job *models.Job) (*models.SuccessResponse, *models.ErrorDetail) {
	m.setStatus(job.ID, models.JobProcessing)

	var cacheKey string
	if job.Request.MaxAgeMs > 0 && m.cache != nil {
		cacheKey = cache.Key(job.Request.URL, job.Request.Engine)
		if cached, ok := m.cache.Get(cacheKey, job.Request.MaxAgeMs); ok {
			hit := *cached
			hit.CacheHit = true
			m.complete(job, &hit)
			return &hit, nil
		}
	}

	maxTime := time.Duration(pipeline.GetEngineMaxTime(&job.Request)) * time.Millisecond
	runCtx, cancel := context.WithTimeout(ctx, maxTime)
	defer cancel()

	result, err := m.router.Run(runCtx, &job.Request)
	if err != nil {
		detail := errorDetail(err)
		m.fail(job, detail)
		m.notifyWebhook(job, nil, detail)
		return nil, detail
	}

	if result.PageError != "" && result.Content == "" {
		detail := &models.ErrorDetail{Code: models.ErrCodeNavigation, Message: result.PageError}
		m.fail(job, detail)
		m.notifyWebhook(job, nil, detail)
		return nil, detail
	}

	if job.Request.OutputFormat != "" && job.Request.OutputFormat != "html" && result.Content != "" {
		cleaned, err := enrich.Transform(result.Content, job.Request.URL, job.Request.OutputFormat)
		if err != nil {
			slog.Warn("enrichment failed, keeping raw content", "jobId", job.ID, "error", err)
		} else {
			result.CleanedContent = cleaned
		}
	}

	if cacheKey != "" && m.cache != nil {
		m.cache.Set(cacheKey, result)
	}
	m.complete(job, result)
	m.notifyWebhook(job, result, nil)
	return result, nil
}

// StartJobAsync runs ExecuteJob in the background; failures are logged but
// never surfaced to any caller (spec.md §4.8, "instant return").
func (m *Manager) StartJobAsync(ctx context.Context, job *models.Job) {
	go func() {
		if _, errDetail := m.ExecuteJob(ctx, job); errDetail != nil {
			slog.Warn("async job failed", "jobId", job.ID, "code", errDetail.Code, "message", errDetail.Message)
		}
	}()
}

// GetJobStatus projects a stored job per spec.md §4.8: (nil, false) if
// missing; a JobStatusResponse with Processing=true if still queued or
// running; otherwise the terminal success/error payload.
func (m *Manager) GetJobStatus(id string) (status *models.JobStatusResponse, success *models.SuccessResponse, errDetail *models.ErrorDetail, found bool) {
	m.mu.RLock()
	job, ok := m.store[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, nil, false
	}

	if job.Status == models.JobQueued || job.Status == models.JobProcessing {
		s := job.ToStatusResponse()
		return &s, nil, nil, true
	}
	if job.Status == models.JobFailed {
		return nil, nil, job.Err, true
	}
	return nil, job.Result, nil, true
}

// DeleteJob removes a job unconditionally; idempotent (spec.md §4.8, §6).
func (m *Manager) DeleteJob(id string) {
	m.mu.Lock()
	delete(m.store, id)
	m.mu.Unlock()
}

// Counts reports per-status job tallies for the health endpoint.
func (m *Manager) Counts() models.JobCounts {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var c models.JobCounts
	c.Total = len(m.store)
	for _, job := range m.store {
		switch job.Status {
		case models.JobQueued:
			c.Queued++
		case models.JobProcessing:
			c.Processing++
		case models.JobCompleted:
			c.Completed++
		case models.JobFailed:
			c.Failed++
		}
	}
	return c
}

// Close stops the TTL sweeper. Call once on process shutdown.
func (m *Manager) Close() {
	close(m.stop)
}

func (m *Manager) setStatus(id string, status models.JobStatus) {
	m.mu.Lock()
	if job, ok := m.store[id]; ok {
		job.Status = status
	}
	m.mu.Unlock()
}

func (m *Manager) complete(job *models.Job, result *models.SuccessResponse) {
	m.mu.Lock()
	job.Status = models.JobCompleted
	job.Result = result
	job.CompletedAt = time.Now()
	m.mu.Unlock()
}

func (m *Manager) fail(job *models.Job, detail *models.ErrorDetail) {
	m.mu.Lock()
	job.Status = models.JobFailed
	job.Err = detail
	job.CompletedAt = time.Now()
	m.mu.Unlock()
}

func (m *Manager) notifyWebhook(job *models.Job, result *models.SuccessResponse, errDetail *models.ErrorDetail) {
	if job.Request.WebhookURL == "" {
		return
	}
	event := &webhook.Event{JobID: job.ID, Timestamp: time.Now().Unix()}
	if errDetail != nil {
		event.Type = webhook.EventScrapeFailed
		event.Data = errDetail
	} else {
		event.Type = webhook.EventScrapeCompleted
		event.Data = result
	}
	webhook.DeliverAsync(job.Request.WebhookURL, "", event)
}

func (m *Manager) sweepLoop() {
	interval := time.Duration(m.cfg.CleanupIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweep()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweep() {
	ttl := time.Duration(m.cfg.TTLMs) * time.Millisecond
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, job := range m.store {
		if now.Sub(job.CreatedAt) > ttl {
			delete(m.store, id)
		}
	}
}

func errorDetail(err error) *models.ErrorDetail {
	if se, ok := err.(*models.ScrapeError); ok {
		return se.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}
