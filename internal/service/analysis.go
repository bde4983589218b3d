package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/panodent/pano-gateway/internal/domain"
	"github.com/panodent/pano-gateway/internal/logger"
	"github.com/panodent/pano-gateway/internal/repository"
	"github.com/panodent/pano-gateway/internal/storage"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

// ErrJobNotSucceeded is returned when an operation requires a SUCCEEDED job.
var ErrJobNotSucceeded = errors.New("job has not succeeded")

// ErrNotAnImage is returned when a staged upload is not a decodable image.
var ErrNotAnImage = errors.New("uploaded file is not a decodable image")

// AnalysisService is the single entry point translating one caller
// request into one job lifecycle, in fast or sync mode. Both modes run
// through the same Tracker, so the state-transition invariants hold
// identically in either.
type AnalysisService struct {
	tracker *Tracker
	jobs    *repository.JobRepository
	store   storage.ObjectStorage
	keys    storage.Keys
	remote  RemoteClient
	logger  *logger.Logger

	syncWait       time.Duration
	maxUploadBytes int64

	// refresh collapses concurrent status polls for the same job id
	refresh singleflight.Group
}

// AnalysisConfig holds request-handling parameters.
type AnalysisConfig struct {
	// SyncWait bounds how long a sync-mode request blocks.
	SyncWait time.Duration
	// MaxUploadBytes bounds staged image uploads.
	MaxUploadBytes int64
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(
	tracker *Tracker,
	jobs *repository.JobRepository,
	store storage.ObjectStorage,
	keys storage.Keys,
	remote RemoteClient,
	log *logger.Logger,
	cfg *AnalysisConfig,
) *AnalysisService {
	syncWait := cfg.SyncWait
	if syncWait <= 0 {
		syncWait = 900 * time.Second
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 20 << 20
	}
	return &AnalysisService{
		tracker:        tracker,
		jobs:           jobs,
		store:          store,
		keys:           keys,
		remote:         remote,
		logger:         log,
		syncWait:       syncWait,
		maxUploadBytes: maxUpload,
	}
}

// AnalyzeRequest describes one caller request.
type AnalyzeRequest struct {
	ImageURL      string
	ImageName     string
	Debug         bool
	WaitForResult bool
}

// Analyze submits a job and, depending on the mode, returns immediately
// with the QUEUED handle (fast mode) or blocks until a terminal state or
// the sync wait bound (sync mode). Each request produces exactly one job.
//
// The sync-mode deadline cancels only the waiting, never the remote job:
// a TIMED_OUT return still carries the job id, and a later status lookup
// can observe the true outcome.
func (s *AnalysisService) Analyze(ctx context.Context, req *AnalyzeRequest) (*domain.Job, error) {
	input := domain.JobInput{
		ImageLocator:   req.ImageURL,
		ImageName:      req.ImageName,
		DebugRequested: req.Debug,
	}

	job, err := s.tracker.Submit(ctx, input)
	if err != nil {
		return nil, err
	}
	ctx = logger.SetJobID(ctx, job.ID)

	if err := s.jobs.Upsert(ctx, job); err != nil {
		// the remote job exists even if the local record write failed
		logger.CtxError(ctx, "Failed to persist job record: %v", err)
	}

	if !req.WaitForResult {
		return job, nil
	}

	terminal, err := s.tracker.AwaitTerminal(ctx, job, s.syncWait)
	if err != nil {
		return nil, err
	}
	if err := s.jobs.SaveObserved(ctx, terminal); err != nil {
		logger.CtxError(ctx, "Failed to persist observed job state: %v", err)
	}
	return terminal, nil
}

// GetJob returns the current view of a job. Records in an authoritative
// terminal state are served from the registry untouched. Anything else
// triggers one remote poll, collapsed across concurrent callers of the
// same id; a transient poll failure falls back to the last observed
// record rather than surfacing as a job failure.
func (s *AnalysisService) GetJob(ctx context.Context, jobID string) (*domain.Job, error) {
	stored, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if stored.Status.Authoritative() {
		return stored, nil
	}

	v, err, _ := s.refresh.Do(jobID, func() (interface{}, error) {
		next, perr := s.tracker.Poll(ctx, stored)
		if perr != nil {
			return nil, perr
		}
		if serr := s.jobs.SaveObserved(ctx, next); serr != nil {
			logger.CtxError(ctx, "Failed to persist observed job state: %v", serr)
		}
		return next, nil
	})
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			return nil, err
		}
		logger.CtxWarn(ctx, "Status refresh failed for job %s, serving last observed record: %v", jobID, err)
		return stored, nil
	}
	return v.(*domain.Job), nil
}

// ListJobs returns the most recently submitted jobs.
func (s *AnalysisService) ListJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	return s.jobs.ListRecent(ctx, limit)
}

// Cancel asks the remote to cancel a job and marks the record CANCELLED
// once the remote accepts. Jobs already in an authoritative terminal
// state are returned unchanged.
func (s *AnalysisService) Cancel(ctx context.Context, jobID string) (*domain.Job, error) {
	stored, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if stored.Status.Authoritative() {
		return stored, nil
	}

	if err := s.remote.Cancel(ctx, jobID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	next := stored.Clone()
	next.Status = domain.JobStatusCancelled
	next.TerminalAt = &now
	next.Result = nil
	next.Failure = nil
	if err := s.jobs.SaveObserved(ctx, next); err != nil {
		logger.CtxError(ctx, "Failed to persist cancelled job state: %v", err)
	}
	logger.CtxInfo(ctx, "Job %s cancelled", jobID)
	return next, nil
}

// StagedUpload describes an input image staged into temporary storage.
type StagedUpload struct {
	Locator string
	Name    string
	Width   int
	Height  int
}

// StageUpload validates an uploaded file as a decodable image (png, jpg,
// gif, webp) and stages it into the temporary namespace so the remote
// worker can fetch it by URL. The staged copy expires with the store's
// TTL like any other temporary object.
func (s *AnalysisService) StageUpload(ctx context.Context, fileName string, r io.Reader) (*StagedUpload, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return nil, fmt.Errorf("upload exceeds the %d byte limit", s.maxUploadBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}

	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".png"
	}
	key := s.keys.Upload(uuid.New().String() + ext)
	contentType := http.DetectContentType(data)
	if err := s.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}

	logger.CtxInfo(ctx, "Staged uploaded image %s (%dx%d, %d bytes) at %s",
		fileName, cfg.Width, cfg.Height, len(data), key)

	return &StagedUpload{
		Locator: s.store.GetURL(key),
		Name:    fileName,
		Width:   cfg.Width,
		Height:  cfg.Height,
	}, nil
}
