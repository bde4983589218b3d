package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/panodent/pano-gateway/internal/config"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/repository"
	"github.com/panodent/pano-gateway/internal/storage"
)

func newTestRepo(t *testing.T) *repository.JobRepository {
	t.Helper()
	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "jobs.db"),
		AutoMigrate: true,
	})
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	return repository.NewJobRepository(db)
}

func seedSucceededJob(t *testing.T, repo *repository.JobRepository, store storage.ObjectStorage, jobID string) {
	t.Helper()
	keys := storage.NewKeys("temp", "permanent")
	now := time.Now().UTC()

	tempKey := keys.Temp(jobID, "overlay")
	switch s := store.(type) {
	case *memStorage:
		s.put(tempKey, []byte("overlay bytes"))
	case *copyingMemStorage:
		s.put(tempKey, []byte("overlay bytes"))
	}

	job := &domain.Job{
		ID:          jobID,
		Status:      domain.JobStatusSucceeded,
		SubmittedAt: now,
		TerminalAt:  &now,
		Input:       domain.JobInput{ImageLocator: "https://x/p.png", DebugRequested: true},
		Result: &domain.Result{
			Findings:    []domain.Finding{{ToothPosition: "11", FindingType: domain.FindingCaries, ConfidenceScore: 0.9}},
			NumFindings: 1,
			CSVText:     "file_name,fdi,finding,score\np,11,CARIES,0.9\n",
			VisualizationArtifacts: map[string]string{
				"overlay": "https://store.test/" + tempKey,
			},
		},
	}
	if err := repo.Upsert(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
}

func TestPromoteRequiresSucceededJob(t *testing.T) {
	repo := newTestRepo(t)
	store := newCopyingMemStorage()
	promoter := NewPromoter(repo, store, storage.NewKeys("temp", "permanent"), nil)

	job := &domain.Job{ID: "running-job", Status: domain.JobStatusRunning, SubmittedAt: time.Now().UTC()}
	if err := repo.Upsert(context.Background(), job); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := promoter.Promote(context.Background(), "running-job", []string{"overlay"}, "patients/42")
	if !errors.Is(err, ErrJobNotSucceeded) {
		t.Fatalf("expected ErrJobNotSucceeded, got %v", err)
	}
}

func TestPromoteUnknownJob(t *testing.T) {
	repo := newTestRepo(t)
	promoter := NewPromoter(repo, newCopyingMemStorage(), storage.NewKeys("temp", "permanent"), nil)

	_, err := promoter.Promote(context.Background(), "no-such-job", []string{"overlay"}, "p")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *domain.NotFoundError, got %T: %v", err, err)
	}
}

func TestPromoteCopiesAndIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	store := newCopyingMemStorage()
	keys := storage.NewKeys("temp", "permanent")
	promoter := NewPromoter(repo, store, keys, nil)
	seedSucceededJob(t, repo, store, "job-p1")

	outcomes, err := promoter.Promote(context.Background(), "job-p1", []string{"overlay"}, "patients/42")
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	first := outcomes[0]
	if first.Error != "" {
		t.Fatalf("unexpected outcome error: %s", first.Error)
	}
	if first.AlreadyThere {
		t.Error("first promotion reported AlreadyThere")
	}

	dstKey := keys.Permanent("patients/42", "overlay")
	if data, ok := store.get(dstKey); !ok || string(data) != "overlay bytes" {
		t.Fatalf("destination object = %q, ok=%v", data, ok)
	}
	// temporary original stays; expiry is the store's business
	if _, ok := store.get(keys.Temp("job-p1", "overlay")); !ok {
		t.Error("promotion must not delete the temporary original")
	}

	again, err := promoter.Promote(context.Background(), "job-p1", []string{"overlay"}, "patients/42")
	if err != nil {
		t.Fatalf("second Promote failed: %v", err)
	}
	second := again[0]
	if !second.AlreadyThere {
		t.Error("second promotion did not report AlreadyThere")
	}
	if second.Locator != first.Locator {
		t.Errorf("locator changed across promotions: %q vs %q", second.Locator, first.Locator)
	}
	if store.copyCount != 1 {
		t.Errorf("copy performed %d times, want 1", store.copyCount)
	}
}

func TestPromotePartialSuccessWithExpiredArtifact(t *testing.T) {
	repo := newTestRepo(t)
	store := newCopyingMemStorage()
	keys := storage.NewKeys("temp", "permanent")
	promoter := NewPromoter(repo, store, keys, nil)
	seedSucceededJob(t, repo, store, "job-p2")

	// record a second artifact on the job whose temp object has expired
	job, err := repo.GetByID(context.Background(), "job-p2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	job.Result.VisualizationArtifacts["heatmap"] = "https://store.test/temp/job-p2/heatmap"
	if err := repo.Upsert(context.Background(), job); err != nil {
		t.Fatalf("reseed failed: %v", err)
	}

	outcomes, err := promoter.Promote(context.Background(), "job-p2", []string{"overlay", "heatmap"}, "p")
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Error != "" || outcomes[0].Locator == "" {
		t.Errorf("overlay outcome = %+v, want success", outcomes[0])
	}
	if outcomes[1].ErrorKind != domain.ErrKindExpiredArtifact {
		t.Errorf("heatmap error kind = %q, want %q", outcomes[1].ErrorKind, domain.ErrKindExpiredArtifact)
	}
}

func TestPromoteRejectsUnknownArtifactName(t *testing.T) {
	repo := newTestRepo(t)
	store := newCopyingMemStorage()
	promoter := NewPromoter(repo, store, storage.NewKeys("temp", "permanent"), nil)
	seedSucceededJob(t, repo, store, "job-p3")

	outcomes, err := promoter.Promote(context.Background(), "job-p3", []string{"nonexistent"}, "p")
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if outcomes[0].ErrorKind != domain.ErrKindValidation {
		t.Errorf("error kind = %q, want %q", outcomes[0].ErrorKind, domain.ErrKindValidation)
	}
	if store.copyCount != 0 {
		t.Error("unknown artifact name must not trigger a copy")
	}
}

func TestListArtifacts(t *testing.T) {
	repo := newTestRepo(t)
	store := newCopyingMemStorage()
	keys := storage.NewKeys("temp", "permanent")
	promoter := NewPromoter(repo, store, keys, nil)
	seedSucceededJob(t, repo, store, "job-l1")

	artifacts, err := promoter.ListArtifacts(context.Background(), "job-l1")
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(artifacts))
	}
	a := artifacts[0]
	if a.Key != "temp/job-l1/overlay" {
		t.Errorf("key = %q", a.Key)
	}
	if a.Scope != domain.ScopeTemporary {
		t.Errorf("scope = %q, want TEMPORARY", a.Scope)
	}
	if a.SourceJobID != "job-l1" {
		t.Errorf("source job = %q", a.SourceJobID)
	}
}

func TestListArtifactsRequiresSucceededJob(t *testing.T) {
	repo := newTestRepo(t)
	promoter := NewPromoter(repo, newCopyingMemStorage(), storage.NewKeys("temp", "permanent"), nil)

	job := &domain.Job{ID: "job-l2", Status: domain.JobStatusRunning, SubmittedAt: time.Now().UTC()}
	if err := repo.Upsert(context.Background(), job); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	if _, err := promoter.ListArtifacts(context.Background(), "job-l2"); !errors.Is(err, ErrJobNotSucceeded) {
		t.Fatalf("expected ErrJobNotSucceeded, got %v", err)
	}
}

func TestPromoteFallsBackWithoutServerSideCopy(t *testing.T) {
	repo := newTestRepo(t)
	store := newMemStorage() // no Copier
	keys := storage.NewKeys("temp", "permanent")
	promoter := NewPromoter(repo, store, keys, nil)
	seedSucceededJob(t, repo, store, "job-p4")

	outcomes, err := promoter.Promote(context.Background(), "job-p4", []string{"overlay"}, "p")
	if err != nil {
		t.Fatalf("Promote failed: %v", err)
	}
	if outcomes[0].Error != "" {
		t.Fatalf("outcome error: %s", outcomes[0].Error)
	}
	data, ok := store.get(keys.Permanent("p", "overlay"))
	if !ok || string(data) != "overlay bytes" {
		t.Errorf("fallback copy produced %q, ok=%v", data, ok)
	}
	if store.uploadCount != 1 {
		t.Errorf("uploadCount = %d, want 1 (download+reupload path)", store.uploadCount)
	}
}
