package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/logger"
	"github.com/panodent/pano-gateway/internal/repository"
	"github.com/panodent/pano-gateway/internal/storage"
)

// Promoter copies approved artifacts from the temporary namespace into
// permanent storage. It never mutates job records and never deletes the
// temporary originals; those expire under the store's own TTL policy, so
// a promoted artifact and its temporary source can coexist for a while.
type Promoter struct {
	jobs   *repository.JobRepository
	store  storage.ObjectStorage
	keys   storage.Keys
	logger *logger.Logger
}

// NewPromoter creates a new lifecycle promoter.
func NewPromoter(jobs *repository.JobRepository, store storage.ObjectStorage, keys storage.Keys, log *logger.Logger) *Promoter {
	return &Promoter{
		jobs:   jobs,
		store:  store,
		keys:   keys,
		logger: log,
	}
}

// Promote copies the named artifacts of a SUCCEEDED job to permanent
// storage under destPrefix, reporting a per-artifact outcome. Artifacts
// whose temporary copy has expired fail individually while the rest of
// the call still succeeds.
//
// Promotion is idempotent: an artifact already present at the
// destination is reported with its existing locator and no second copy
// is made.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - jobID: id of the SUCCEEDED job whose artifacts are promoted.
//   - artifactNames: names as recorded in the job result.
//   - destPrefix: caller-chosen destination path inside the permanent namespace.
// Returns:
//   - []domain.PromotionOutcome: one entry per requested artifact, in request order.
//   - error: whole-call error when the job is unknown or not SUCCEEDED.
func (p *Promoter) Promote(ctx context.Context, jobID string, artifactNames []string, destPrefix string) ([]domain.PromotionOutcome, error) {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusSucceeded {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotSucceeded, jobID, job.Status)
	}

	known := map[string]bool{}
	if job.Result != nil {
		for name := range job.Result.VisualizationArtifacts {
			known[name] = true
		}
	}

	outcomes := make([]domain.PromotionOutcome, 0, len(artifactNames))
	for _, name := range artifactNames {
		outcomes = append(outcomes, p.promoteOne(ctx, jobID, name, destPrefix, known[name]))
	}
	return outcomes, nil
}

// ListArtifacts describes the stored visualization artifacts of a
// SUCCEEDED job, so a caller can inspect what exists in the temporary
// namespace before deciding what to promote. Expiry is governed by the
// store's bucket policy, so ExpiresAt is not populated here; an artifact
// may already be gone by the time it is promoted.
func (p *Promoter) ListArtifacts(ctx context.Context, jobID string) ([]domain.StoredArtifact, error) {
	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.JobStatusSucceeded {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobNotSucceeded, jobID, job.Status)
	}

	var names []string
	if job.Result != nil {
		for name := range job.Result.VisualizationArtifacts {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	createdAt := job.SubmittedAt
	if job.TerminalAt != nil {
		createdAt = *job.TerminalAt
	}

	artifacts := make([]domain.StoredArtifact, 0, len(names))
	for _, name := range names {
		artifacts = append(artifacts, domain.StoredArtifact{
			Key:         p.keys.Temp(jobID, name),
			Scope:       domain.ScopeTemporary,
			SourceJobID: jobID,
			CreatedAt:   createdAt,
		})
	}
	return artifacts, nil
}

// promoteOne handles a single artifact and reports its outcome.
func (p *Promoter) promoteOne(ctx context.Context, jobID, name, destPrefix string, known bool) domain.PromotionOutcome {
	outcome := domain.PromotionOutcome{ArtifactName: name}

	if !known {
		verr := &domain.ValidationError{Field: "artifact_names", Message: "artifact not recorded on job result: " + name}
		outcome.Error = verr.Error()
		outcome.ErrorKind = verr.Kind()
		return outcome
	}

	srcKey := p.keys.Temp(jobID, name)
	dstKey := p.keys.Permanent(destPrefix, name)

	// Idempotence: a previous promotion to the same destination wins.
	exists, err := p.store.Exists(ctx, dstKey)
	if err != nil {
		uerr := &domain.ArtifactUploadError{Artifact: name, Err: err}
		outcome.Error = uerr.Error()
		outcome.ErrorKind = uerr.Kind()
		return outcome
	}
	if exists {
		outcome.Locator = p.store.GetURL(dstKey)
		outcome.AlreadyThere = true
		return outcome
	}

	srcExists, err := p.store.Exists(ctx, srcKey)
	if err != nil {
		uerr := &domain.ArtifactUploadError{Artifact: name, Err: err}
		outcome.Error = uerr.Error()
		outcome.ErrorKind = uerr.Kind()
		return outcome
	}
	if !srcExists {
		xerr := &domain.ExpiredArtifactError{Artifact: name, Key: srcKey}
		outcome.Error = xerr.Error()
		outcome.ErrorKind = xerr.Kind()
		return outcome
	}

	if err := p.copyObject(ctx, srcKey, dstKey); err != nil {
		uerr := &domain.ArtifactUploadError{Artifact: name, Err: err}
		outcome.Error = uerr.Error()
		outcome.ErrorKind = uerr.Kind()
		return outcome
	}

	logger.CtxInfo(ctx, "Promoted artifact %s of job %s to %s", name, jobID, dstKey)
	outcome.Locator = p.store.GetURL(dstKey)
	return outcome
}

// copyObject uses the gateway's server-side copy when available and
// falls back to download + reupload otherwise.
func (p *Promoter) copyObject(ctx context.Context, srcKey, dstKey string) error {
	if copier, ok := p.store.(storage.Copier); ok {
		return copier.Copy(ctx, srcKey, dstKey)
	}

	rc, err := p.store.Download(ctx, srcKey)
	if err != nil {
		return err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(data)
	return p.store.Upload(ctx, dstKey, bytes.NewReader(data), int64(len(data)), contentType)
}
