// Package actions executes a scripted page-interaction sequence against a
// live rod page, collecting per-step results. Grounded on the teacher's
// scraper/actions.go, generalized to all eight action variants named in
// spec.md §4.3 (the teacher only implemented wait/click/scroll/execute_js).
package actions

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/use-agent/scrapeworker/models"
)

const (
	elementWaitTimeout = 10 * time.Second
	maxWaitMs          = 30000
)

// Run executes actions strictly in sequence against page, sharing one page
// across all steps. It returns the collected per-step results, any
// additional PNG screenshots captured by screenshot actions (base64), and
// an error identifying the failing index+type if any step fails.
func Run(ctx context.Context, page *rod.Page, acts []models.Action) ([]models.ActionResult, []string, error) {
	results := make([]models.ActionResult, 0, len(acts))
	var screenshots []string

	for i, act := range acts {
		res, shot, err := execOne(ctx, page, act)
		if err != nil {
			return results, screenshots, models.NewScrapeError(
				models.ErrCodeActionFailed,
				fmt.Sprintf("action %d (%s) failed: %v", i, act.Type, err),
				err,
			)
		}
		if res != nil {
			res.Index = i
			res.Type = string(act.Type)
			results = append(results, *res)
		}
		if shot != "" {
			screenshots = append(screenshots, shot)
		}
	}
	return results, screenshots, nil
}

func execOne(ctx context.Context, page *rod.Page, act models.Action) (*models.ActionResult, string, error) {
	switch act.Type {
	case models.ActionWait:
		return nil, "", execWait(ctx, page, act)
	case models.ActionClick:
		return nil, "", execClick(page, act)
	case models.ActionTypeText:
		return nil, "", execType(page, act)
	case models.ActionScroll:
		return nil, "", execScroll(page, act)
	case models.ActionScreenshot:
		res, shot, err := execScreenshot(page, act)
		return res, shot, err
	case models.ActionScrape:
		res, err := execScrape(page, act)
		return res, "", err
	case models.ActionExecuteJS:
		res, err := execJS(page, act)
		return res, "", err
	case models.ActionPDF:
		return execPDF(), "", nil
	default:
		return nil, "", fmt.Errorf("unknown action type: %s", act.Type)
	}
}

// execWait sleeps for min(ms, 30000); ms defaults to 1000 via Action.Defaults.
func execWait(ctx context.Context, page *rod.Page, act models.Action) error {
	ms := act.Milliseconds
	if ms > maxWaitMs {
		ms = maxWaitMs
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execClick waits up to 10s for the selector then clicks it.
func execClick(page *rod.Page, act models.Action) error {
	p := page.Timeout(elementWaitTimeout)
	el, err := p.Element(act.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", act.Selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// execType waits up to 10s for the selector then fills it (replacing any
// existing value, not appending).
func execType(page *rod.Page, act models.Action) error {
	p := page.Timeout(elementWaitTimeout)
	el, err := p.Element(act.Selector)
	if err != nil {
		return fmt.Errorf("element %q not found: %w", act.Selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	if err := el.Input(""); err != nil {
		return err
	}
	return el.Input(act.Text)
}

// execScroll scrolls an element into view, or the window by ±amount.
func execScroll(page *rod.Page, act models.Action) error {
	if act.Selector != "" {
		el, err := page.Timeout(elementWaitTimeout).Element(act.Selector)
		if err != nil {
			return fmt.Errorf("element %q not found: %w", act.Selector, err)
		}
		return el.ScrollIntoView()
	}

	amount := act.Amount
	if amount == 0 {
		amount = 500
	}
	delta := amount
	if act.Direction == models.ScrollUp {
		delta = -delta
	}
	return page.Mouse.Scroll(0, float64(delta), 1)
}

// execScreenshot optionally sets the viewport, captures a PNG, base64
// encodes it, and returns both an ActionResult and the raw base64 payload
// for the aggregate screenshots list.
func execScreenshot(page *rod.Page, act models.Action) (*models.ActionResult, string, error) {
	if act.Viewport != nil {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  act.Viewport.Width,
			Height: act.Viewport.Height,
		}); err != nil {
			return nil, "", fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	data, err := page.Screenshot(act.FullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, "", fmt.Errorf("screenshot failed: %w", err)
	}

	b64 := base64.StdEncoding.EncodeToString(data)
	return &models.ActionResult{Result: models.ActionResultData{Base64: b64}}, b64, nil
}

// execScrape returns innerHTML of the first selector match (empty string
// if missing) or the full document content, alongside the page URL.
func execScrape(page *rod.Page, act models.Action) (*models.ActionResult, error) {
	var html string
	if act.Selector != "" {
		if has, el, err := page.Has(act.Selector); err == nil && has {
			if inner, err := el.Property("innerHTML"); err == nil {
				html = inner.Str()
			}
		}
	} else {
		var err error
		html, err = page.HTML()
		if err != nil {
			return nil, fmt.Errorf("failed to read document content: %w", err)
		}
	}

	pageURL := page.MustInfo().URL
	return &models.ActionResult{Result: models.ActionResultData{URL: pageURL, HTML: html}}, nil
}

// execJS evaluates script inside the page and serializes the return value.
// A script error is folded into a serialized {"error": message} payload
// rather than failing the action (spec.md §4.3, §9 open question).
func execJS(page *rod.Page, act models.Action) (*models.ActionResult, error) {
	res, err := page.Eval(act.Script)
	if err != nil {
		errPayload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return &models.ActionResult{Result: models.ActionResultData{Return: string(errPayload)}}, nil
	}
	return &models.ActionResult{Result: models.ActionResultData{Return: res.Value.String()}}, nil
}

// execPDF emits the self-hosted placeholder (PDF generation is an explicit
// spec.md §1 non-goal) and logs a warning without failing the sequence.
func execPDF() *models.ActionResult {
	slog.Warn("pdf action requested but not supported in self-hosted deployment")
	return &models.ActionResult{Result: models.ActionResultData{Link: "pdf-not-supported-in-self-hosted"}}
}
