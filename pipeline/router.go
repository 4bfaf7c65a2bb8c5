package pipeline

import (
	"context"
	"log/slog"

	"github.com/use-agent/scrapeworker/browser"
	"github.com/use-agent/scrapeworker/models"
	"github.com/use-agent/scrapeworker/proxyresolve"
)

// EngineRouter dispatches a ScrapeRequest to the browser or HTTP pipeline by
// its engine field (spec.md §4.7).
type EngineRouter struct {
	BrowserPipeline *BrowserScrapePipeline
	HTTPPipeline    *HttpScrapePipeline
}

// NewEngineRouter wires a router against the shared page pool and proxy env.
func NewEngineRouter(pool *browser.Pool, env proxyresolve.Env) *EngineRouter {
	return &EngineRouter{
		BrowserPipeline: NewBrowserScrapePipeline(pool, env),
		HTTPPipeline:    NewHttpScrapePipeline(env),
	}
}

// Run dispatches req to the matching pipeline. chrome-cdp and playwright are
// identical in this implementation; any other value is routed to the
// browser pipeline with a warning (spec.md §4.7).
func (r *EngineRouter) Run(ctx context.Context, req *models.ScrapeRequest) (*models.SuccessResponse, error) {
	switch req.Engine {
	case models.EngineTLSClient:
		return r.HTTPPipeline.Run(ctx, req), nil
	case models.EngineChromeCDP, models.EnginePlaywright:
		return r.BrowserPipeline.Run(ctx, req)
	default:
		slog.Warn("unrecognized engine, routing to browser pipeline", "engine", req.Engine)
		return r.BrowserPipeline.Run(ctx, req)
	}
}

// getEngineMaxTime returns a best-effort upper bound on how long a request
// may take, for outer-timeout bookkeeping (spec.md §4.7).
func getEngineMaxTime(req *models.ScrapeRequest) int {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = 300000
	}

	switch req.Engine {
	case models.EngineTLSClient:
		return min(15000, timeout)
	case models.EnginePlaywright:
		return min(req.Wait+30000, timeout)
	default: // chrome-cdp and any unrecognized value, which routes here too
		actionsMs := 0
		for _, a := range req.Actions {
			if a.Type == models.ActionWait {
				actionsMs += a.Milliseconds
			} else {
				actionsMs += 250
			}
		}
		return min(req.Wait+actionsMs+30000, timeout)
	}
}

// GetEngineMaxTime exports getEngineMaxTime for callers outside this package
// (job timeout bookkeeping in the jobs package).
func GetEngineMaxTime(req *models.ScrapeRequest) int {
	return getEngineMaxTime(req)
}
