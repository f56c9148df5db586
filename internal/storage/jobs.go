package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/voyantlabs/codectx/internal/models"
)

const (
	bucketJobs   = "jobs"
	bucketActive = "active"
)

// BoltJobStore keeps index jobs in an embedded bbolt database. The
// active bucket maps repo_id to its running job id and backs the
// one-active-job-per-repo rule.
type BoltJobStore struct {
	db     *bolt.DB
	logger *slog.Logger
}

// NewBoltJobStore opens (creating if needed) the job database at path
func NewBoltJobStore(path string) (*BoltJobStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create job database directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open job database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketJobs)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(bucketActive))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create job buckets: %w", err)
	}

	return &BoltJobStore{
		db:     db,
		logger: slog.Default().With("component", "job_store"),
	}, nil
}

// Create registers a new job. A repository with a non-terminal job is a
// conflict; a stale active marker left by a crash is healed in passing.
func (s *BoltJobStore) Create(job *models.Job) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		jobs := tx.Bucket([]byte(bucketJobs))
		active := tx.Bucket([]byte(bucketActive))

		if existingID := active.Get([]byte(job.RepoID)); existingID != nil {
			if data := jobs.Get(existingID); data != nil {
				var existing models.Job
				if err := json.Unmarshal(data, &existing); err == nil && !terminal(existing.Status) {
					return fmt.Errorf("repository %s already has job %s in progress: %w",
						job.RepoID, existing.ID, ErrConflict)
				}
			}
		}

		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		if err := jobs.Put([]byte(job.ID), data); err != nil {
			return err
		}
		return active.Put([]byte(job.RepoID), []byte(job.ID))
	})
}

// Get returns a job by id
func (s *BoltJobStore) Get(id string) (*models.Job, error) {
	var job models.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketJobs)).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Active returns the repository's in-progress job, if any
func (s *BoltJobStore) Active(repoID string) (*models.Job, error) {
	var job models.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(bucketActive)).Get([]byte(repoID))
		if id == nil {
			return ErrNotFound
		}
		data := tx.Bucket([]byte(bucketJobs)).Get(id)
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &job)
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Start marks a job running and stamps its start time
func (s *BoltJobStore) Start(id string) error {
	return s.mutate(id, func(job *models.Job) error {
		if terminal(job.Status) {
			return fmt.Errorf("job %s already finished with status %s", id, job.Status)
		}
		job.Status = models.JobRunning
		if job.StartedAt == nil {
			now := time.Now().UTC()
			job.StartedAt = &now
		}
		return nil
	})
}

// UpdateProgress advances a job's progress. Progress never regresses;
// a lower percentage than the stored one is rejected.
func (s *BoltJobStore) UpdateProgress(id string, current, total int) error {
	return s.mutate(id, func(job *models.Job) error {
		if terminal(job.Status) {
			return fmt.Errorf("job %s already finished with status %s", id, job.Status)
		}

		percentage := percent(current, total)
		if percentage < job.Progress.Percentage {
			return fmt.Errorf("job %s progress cannot regress: %.1f%% -> %.1f%%",
				id, job.Progress.Percentage, percentage)
		}

		job.Progress = models.JobProgress{
			Current:    current,
			Total:      total,
			Percentage: percentage,
		}
		return nil
	})
}

// Complete marks a job successful and releases the active marker
func (s *BoltJobStore) Complete(id string) error {
	return s.mutate(id, func(job *models.Job) error {
		job.Status = models.JobCompleted
		now := time.Now().UTC()
		job.CompletedAt = &now
		job.Progress.Current = job.Progress.Total
		job.Progress.Percentage = 100
		return nil
	})
}

// Fail marks a job failed with an error message and releases the
// active marker
func (s *BoltJobStore) Fail(id string, message string) error {
	return s.mutate(id, func(job *models.Job) error {
		job.Status = models.JobFailed
		now := time.Now().UTC()
		job.CompletedAt = &now
		job.Error = message
		return nil
	})
}

// List returns jobs, newest first. An empty repoID lists all jobs.
func (s *BoltJobStore) List(repoID string) ([]*models.Job, error) {
	var out []*models.Job
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketJobs)).ForEach(func(_, data []byte) error {
			var job models.Job
			if err := json.Unmarshal(data, &job); err != nil {
				return err
			}
			if repoID != "" && job.RepoID != repoID {
				return nil
			}
			out = append(out, &job)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return startedAt(out[i]).After(startedAt(out[j]))
	})
	return out, nil
}

// DeleteByRepo removes all of a repository's jobs and its active marker
func (s *BoltJobStore) DeleteByRepo(repoID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		jobs := tx.Bucket([]byte(bucketJobs))

		var doomed [][]byte
		err := jobs.ForEach(func(key, data []byte) error {
			var job models.Job
			if err := json.Unmarshal(data, &job); err != nil {
				return err
			}
			if job.RepoID == repoID {
				doomed = append(doomed, append([]byte(nil), key...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range doomed {
			if err := jobs.Delete(key); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(bucketActive)).Delete([]byte(repoID))
	})
}

// Close closes the job database
func (s *BoltJobStore) Close() error {
	return s.db.Close()
}

// mutate loads a job, applies fn, persists the result, and clears the
// active marker when the job reaches a terminal state
func (s *BoltJobStore) mutate(id string, fn func(*models.Job) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		jobs := tx.Bucket([]byte(bucketJobs))

		data := jobs.Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}

		var job models.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}

		if err := fn(&job); err != nil {
			return err
		}

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		if err := jobs.Put([]byte(id), out); err != nil {
			return err
		}

		if terminal(job.Status) {
			active := tx.Bucket([]byte(bucketActive))
			if current := active.Get([]byte(job.RepoID)); string(current) == job.ID {
				return active.Delete([]byte(job.RepoID))
			}
		}
		return nil
	})
}

func terminal(status models.JobStatus) bool {
	return status == models.JobCompleted || status == models.JobFailed
}

func percent(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

func startedAt(job *models.Job) time.Time {
	if job.StartedAt != nil {
		return *job.StartedAt
	}
	return time.Time{}
}
