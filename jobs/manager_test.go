package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/use-agent/scrapeworker/config"
	"github.com/use-agent/scrapeworker/models"
)

type fakeRouter struct {
	result *models.SuccessResponse
	err    error
	calls  int
}

func (f *fakeRouter) Run(_ context.Context, _ *models.ScrapeRequest) (*models.SuccessResponse, error) {
	f.calls++
	return f.result, f.err
}

func testCfg() config.JobConfig {
	return config.JobConfig{TTLMs: 600000, CleanupIntervalMs: 3600000}
}

func TestExecuteJob_MarksCompletedOnSuccess(t *testing.T) {
	router := &fakeRouter{result: &models.SuccessResponse{Content: "hello", PageStatusCode: 200}}
	m := New(router, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	result, errDetail := m.ExecuteJob(context.Background(), job)
	if errDetail != nil {
		t.Fatalf("unexpected error: %+v", errDetail)
	}
	if result.Content != "hello" {
		t.Errorf("Content = %q, want hello", result.Content)
	}

	_, success, _, found := m.GetJobStatus(job.ID)
	if !found || success == nil || success.Content != "hello" {
		t.Errorf("GetJobStatus did not return the completed result")
	}
}

func TestExecuteJob_MarksFailedOnTransportErrorWithEmptyContent(t *testing.T) {
	router := &fakeRouter{result: &models.SuccessResponse{PageError: "dns failure", Content: ""}}
	m := New(router, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	_, errDetail := m.ExecuteJob(context.Background(), job)
	if errDetail == nil {
		t.Fatal("expected a failure when pageError is set and content is empty")
	}

	_, _, gotErr, found := m.GetJobStatus(job.ID)
	if !found || gotErr == nil {
		t.Fatal("GetJobStatus did not return the failure detail")
	}
}

func TestExecuteJob_TransportErrorWithContentStillCompletes(t *testing.T) {
	router := &fakeRouter{result: &models.SuccessResponse{PageError: "partial", Content: "some body"}}
	m := New(router, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	result, errDetail := m.ExecuteJob(context.Background(), job)
	if errDetail != nil {
		t.Fatalf("unexpected failure: %+v", errDetail)
	}
	if result.Content != "some body" {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestExecuteJob_ActionErrorMarksFailed(t *testing.T) {
	router := &fakeRouter{err: models.NewScrapeError(models.ErrCodeActionFailed, "action 0 (click) failed", errors.New("no element"))}
	m := New(router, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	_, errDetail := m.ExecuteJob(context.Background(), job)
	if errDetail == nil || errDetail.Code != models.ErrCodeActionFailed {
		t.Fatalf("expected ACTION_FAILED detail, got %+v", errDetail)
	}
}

func TestGetJobStatus_ReturnsProcessingWhileQueued(t *testing.T) {
	m := New(&fakeRouter{}, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	status, success, errDetail, found := m.GetJobStatus(job.ID)
	if !found || status == nil || !status.Processing || success != nil || errDetail != nil {
		t.Errorf("expected a processing status before execution, got status=%+v success=%+v err=%+v", status, success, errDetail)
	}
}

func TestGetJobStatus_UnknownJobNotFound(t *testing.T) {
	m := New(&fakeRouter{}, nil, testCfg())
	defer m.Close()

	_, _, _, found := m.GetJobStatus("does-not-exist")
	if found {
		t.Error("expected found=false for an unknown job id")
	}
}

func TestDeleteJob_IsIdempotent(t *testing.T) {
	m := New(&fakeRouter{}, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	m.DeleteJob(job.ID)
	m.DeleteJob(job.ID) // second call must not panic or error

	_, _, _, found := m.GetJobStatus(job.ID)
	if found {
		t.Error("job should be gone after deletion")
	}
}

func TestStartJobAsync_CompletesInBackground(t *testing.T) {
	router := &fakeRouter{result: &models.SuccessResponse{Content: "async", PageStatusCode: 200}}
	m := New(router, nil, testCfg())
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	m.StartJobAsync(context.Background(), job)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, success, _, found := m.GetJobStatus(job.ID); found && success != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("async job never completed")
}

func TestCounts_TallyByStatus(t *testing.T) {
	router := &fakeRouter{result: &models.SuccessResponse{Content: "ok", PageStatusCode: 200}}
	m := New(router, nil, testCfg())
	defer m.Close()

	done := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	m.ExecuteJob(context.Background(), done)
	m.CreateJob(models.ScrapeRequest{URL: "https://example.com/2"})

	counts := m.Counts()
	if counts.Total != 2 || counts.Completed != 1 || counts.Queued != 1 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestSweep_RemovesExpiredJobs(t *testing.T) {
	m := New(&fakeRouter{}, nil, config.JobConfig{TTLMs: 1, CleanupIntervalMs: 3600000})
	defer m.Close()

	job := m.CreateJob(models.ScrapeRequest{URL: "https://example.com"})
	time.Sleep(5 * time.Millisecond)
	m.sweep()

	if _, _, _, found := m.GetJobStatus(job.ID); found {
		t.Error("expired job should have been swept")
	}
}
