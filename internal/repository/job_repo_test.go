package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/panodent/pano-gateway/internal/config"
	"github.com/panodent/pano-gateway/internal/domain"
)

func newTestJobRepo(t *testing.T) *JobRepository {
	t.Helper()
	db, err := InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "jobs.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return NewJobRepository(db)
}

func testJob(id string, status domain.JobStatus) *domain.Job {
	return &domain.Job{
		ID:          id,
		Status:      status,
		SubmittedAt: time.Now().UTC(),
		Input: domain.JobInput{
			ImageLocator:   "https://images.test/" + id + ".png",
			DebugRequested: true,
		},
	}
}

func TestJobRepoUpsertAndGet(t *testing.T) {
	repo := newTestJobRepo(t)
	ctx := context.Background()

	job := testJob("j-1", domain.JobStatusQueued)
	if err := repo.Upsert(ctx, job); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "j-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.JobStatusQueued {
		t.Errorf("status = %q, want QUEUED", got.Status)
	}
	if got.Input.ImageLocator != job.Input.ImageLocator {
		t.Errorf("image locator = %q, want %q", got.Input.ImageLocator, job.Input.ImageLocator)
	}

	job.Status = domain.JobStatusRunning
	if err := repo.Upsert(ctx, job); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	got, err = repo.GetByID(ctx, "j-1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.JobStatusRunning {
		t.Errorf("status after upsert = %q, want RUNNING", got.Status)
	}
}

func TestJobRepoGetByIDNotFound(t *testing.T) {
	repo := newTestJobRepo(t)

	_, err := repo.GetByID(context.Background(), "missing")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *domain.NotFoundError, got %T: %v", err, err)
	}
}

func TestJobRepoResultRoundTrip(t *testing.T) {
	repo := newTestJobRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	job := testJob("j-2", domain.JobStatusSucceeded)
	job.TerminalAt = &now
	job.Result = &domain.Result{
		Findings: []domain.Finding{
			{ToothPosition: "11", FindingType: domain.FindingCaries, ConfidenceScore: 0.95},
		},
		NumFindings: 1,
		CSVText:     "file_name,fdi,finding,score\nj-2,11,CARIES,0.95\n",
		VisualizationArtifacts: map[string]string{
			"overlay": "https://store.test/temp/j-2/overlay",
		},
		PartialArtifactFailure: true,
		DroppedFindings:        2,
	}

	if err := repo.Upsert(ctx, job); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	got, err := repo.GetByID(ctx, "j-2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Result == nil {
		t.Fatal("result did not survive the round trip")
	}
	if got.Result.NumFindings != 1 || got.Result.DroppedFindings != 2 {
		t.Errorf("result counters = %d/%d, want 1/2", got.Result.NumFindings, got.Result.DroppedFindings)
	}
	if !got.Result.PartialArtifactFailure {
		t.Error("PartialArtifactFailure flag lost")
	}
	if got.Result.VisualizationArtifacts["overlay"] == "" {
		t.Error("artifact locator lost")
	}
	if got.Result.CSVText != job.Result.CSVText {
		t.Errorf("CSV text = %q, want %q", got.Result.CSVText, job.Result.CSVText)
	}
}

func TestSaveObservedCreatesWhenMissing(t *testing.T) {
	repo := newTestJobRepo(t)
	ctx := context.Background()

	if err := repo.SaveObserved(ctx, testJob("j-3", domain.JobStatusRunning)); err != nil {
		t.Fatalf("SaveObserved failed: %v", err)
	}
	got, err := repo.GetByID(ctx, "j-3")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != domain.JobStatusRunning {
		t.Errorf("status = %q, want RUNNING", got.Status)
	}
}

func TestSaveObservedTerminalProtection(t *testing.T) {
	testCases := []struct {
		name     string
		stored   domain.JobStatus
		incoming domain.JobStatus
		want     domain.JobStatus
	}{
		{"non-terminal advances", domain.JobStatusQueued, domain.JobStatusRunning, domain.JobStatusRunning},
		{"succeeded blocks running", domain.JobStatusSucceeded, domain.JobStatusRunning, domain.JobStatusSucceeded},
		{"succeeded blocks failed", domain.JobStatusSucceeded, domain.JobStatusFailed, domain.JobStatusSucceeded},
		{"timed out blocks running", domain.JobStatusTimedOut, domain.JobStatusRunning, domain.JobStatusTimedOut},
		{"timed out overturned by succeeded", domain.JobStatusTimedOut, domain.JobStatusSucceeded, domain.JobStatusSucceeded},
		{"timed out overturned by failed", domain.JobStatusTimedOut, domain.JobStatusFailed, domain.JobStatusFailed},
		{"cancelled blocks succeeded", domain.JobStatusCancelled, domain.JobStatusSucceeded, domain.JobStatusCancelled},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newTestJobRepo(t)
			ctx := context.Background()

			if err := repo.Upsert(ctx, testJob("j-x", tc.stored)); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			if err := repo.SaveObserved(ctx, testJob("j-x", tc.incoming)); err != nil {
				t.Fatalf("SaveObserved failed: %v", err)
			}
			got, err := repo.GetByID(ctx, "j-x")
			if err != nil {
				t.Fatalf("GetByID failed: %v", err)
			}
			if got.Status != tc.want {
				t.Errorf("stored %s + observed %s = %s, want %s", tc.stored, tc.incoming, got.Status, tc.want)
			}
		})
	}
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	repo := newTestJobRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		job := testJob(id, domain.JobStatusQueued)
		job.SubmittedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Upsert(ctx, job); err != nil {
			t.Fatalf("seed %s failed: %v", id, err)
		}
	}

	jobs, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "new" || jobs[1].ID != "mid" {
		t.Errorf("order = [%s %s], want [new mid]", jobs[0].ID, jobs[1].ID)
	}
}
