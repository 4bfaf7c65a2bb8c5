package actions

import (
	"context"
	"testing"
	"time"

	"github.com/use-agent/scrapeworker/models"
)

func TestExecWait_SleepsForRequestedDuration(t *testing.T) {
	start := time.Now()
	act := models.Action{Type: models.ActionWait, Milliseconds: 20}
	if err := execWait(context.Background(), nil, act); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("returned before the requested wait elapsed: %v", elapsed)
	}
}

func TestExecWait_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	act := models.Action{Type: models.ActionWait, Milliseconds: 5000}
	if err := execWait(ctx, nil, act); err == nil {
		t.Fatalf("expected context cancellation error")
	}
}

func TestExecPDF_ReturnsPlaceholderWithoutFailing(t *testing.T) {
	res := execPDF()
	if res.Result.Link != "pdf-not-supported-in-self-hosted" {
		t.Fatalf("unexpected placeholder: %+v", res)
	}
}
