package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/panodent/pano-gateway/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JobRepository persists job records so job state can be looked up
// across requests. The remote system stays the source of truth for
// non-terminal state; this table caches the last observed record.
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *JobRepository: repository instance bound to db.
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job record.
func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// Upsert creates or updates a job record keyed by id.
func (r *JobRepository) Upsert(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(job).Error
}

// SaveObserved stores a freshly observed job record under a per-key
// row lock, preserving the terminal-state invariant when concurrent
// pollers race: a stored terminal record may only be replaced by an
// authoritative observation (so TIMED_OUT can be overturned by the true
// remote outcome, but never regress to QUEUED or RUNNING).
func (r *JobRepository) SaveObserved(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.Job
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", job.ID).First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(job).Error
			}
			return err
		}
		if existing.Status.IsTerminal() && !job.Status.Authoritative() {
			return nil
		}
		if existing.Status.Authoritative() && job.Status != existing.Status {
			return nil
		}
		return tx.Save(job).Error
	})
}

// GetByID retrieves a job by its remote-assigned id.
// Returns domain.NotFoundError when no record exists.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{JobID: id}
		}
		return nil, fmt.Errorf("failed to get job %s: %w", id, err)
	}
	return &job, nil
}

// ListRecent returns the most recently submitted jobs, newest first.
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []domain.Job
	err := r.db.WithContext(ctx).
		Order("submitted_at DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}
