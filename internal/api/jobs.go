package api

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/mfcc-go/internal/errors"
	"github.com/tphakala/mfcc-go/internal/logger"
	"github.com/tphakala/mfcc-go/internal/mqtt"
	"github.com/tphakala/mfcc-go/internal/pipeline"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

var (
	ErrJobNotFound  = errors.NewStd("job not found")
	ErrTooManyJobs  = errors.NewStd("too many running jobs")
	ErrShuttingDown = errors.NewStd("server is shutting down")
)

// JobView is the JSON representation of a job.
type JobView struct {
	ID         string                `json:"id"`
	Source     string                `json:"source"`
	Status     JobStatus             `json:"status"`
	Progress   float64               `json:"progress"`
	RowCount   int                   `json:"row_count"`
	Rows       []pipeline.FeatureRow `json:"rows,omitempty"`
	Kind       string                `json:"kind,omitempty"`
	Error      string                `json:"error,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	FinishedAt *time.Time            `json:"finished_at,omitempty"`
}

// job is the mutable state of one extraction.
type job struct {
	id        string
	source    string
	createdAt time.Time
	cancel    context.CancelFunc

	mu         sync.Mutex
	status     JobStatus
	progress   float64
	rows       []pipeline.FeatureRow
	err        error
	finishedAt time.Time
}

func (j *job) setProgress(fraction float64) {
	j.mu.Lock()
	j.progress = fraction
	j.mu.Unlock()
}

func (j *job) finish(err error, rows []pipeline.FeatureRow, at time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.finishedAt = at
	j.err = err
	switch {
	case err == nil:
		j.status = JobCompleted
		j.rows = rows
		j.progress = 1
	case errors.Is(err, pipeline.ErrCancelled):
		j.status = JobCancelled
	default:
		j.status = JobFailed
	}
}

func (j *job) view(withRows bool) JobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	v := JobView{
		ID:        j.id,
		Source:    j.source,
		Status:    j.status,
		Progress:  j.progress,
		RowCount:  len(j.rows),
		CreatedAt: j.createdAt,
	}
	if withRows {
		v.Rows = j.rows
	}
	if j.err != nil {
		v.Kind = pipeline.Kind(j.err)
		v.Error = j.err.Error()
	}
	if !j.finishedAt.IsZero() {
		finished := j.finishedAt
		v.FinishedAt = &finished
	}
	return v
}

// JobManager runs extractions in the background and keeps their state in
// an expiring store. Running jobs never expire; finished jobs expire after
// the configured TTL.
type JobManager struct {
	extractor *pipeline.Extractor
	publisher *mqtt.Publisher
	store     *cache.Cache
	ttl       time.Duration
	maxJobs   int

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	running  int
	closed   bool
	inflight sync.WaitGroup
}

// NewJobManager returns a JobManager that runs at most maxJobs extractions
// at a time. publisher may be nil.
func NewJobManager(extractor *pipeline.Extractor, publisher *mqtt.Publisher, ttl time.Duration, maxJobs int) *JobManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobManager{
		extractor: extractor,
		publisher: publisher,
		store:     cache.New(ttl, 2*ttl),
		ttl:       ttl,
		maxJobs:   maxJobs,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit starts an extraction of path and returns its initial view.
func (m *JobManager) Submit(path string, cfg pipeline.Config) (JobView, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return JobView{}, ErrShuttingDown
	}
	if m.running >= m.maxJobs {
		m.mu.Unlock()
		return JobView{}, ErrTooManyJobs
	}
	m.running++
	m.inflight.Add(1)
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(m.ctx)
	j := &job{
		id:        uuid.NewString(),
		source:    path,
		createdAt: time.Now(),
		cancel:    cancel,
		status:    JobRunning,
	}
	m.store.Set(j.id, j, cache.NoExpiration)

	log := GetLogger().With(logger.String("job_id", j.id), logger.String("path", path))
	log.Info("job submitted")

	var publish pipeline.ProgressFunc
	if m.publisher != nil {
		publish = m.publisher.ProgressFunc(ctx, j.id, path)
	}
	onProgress := func(fraction float64) {
		j.setProgress(fraction)
		if publish != nil {
			publish(fraction)
		}
	}

	onComplete := func(err error, rows []pipeline.FeatureRow) {
		defer m.inflight.Done()
		defer cancel()

		finished := time.Now()
		j.finish(err, rows, finished)
		m.store.Set(j.id, j, m.ttl)

		m.mu.Lock()
		m.running--
		m.mu.Unlock()

		if m.publisher != nil {
			// ctx may already be cancelled; the result is still reported.
			if perr := m.publisher.PublishResult(context.Background(), j.id, path, len(rows), err, finished.Sub(j.createdAt)); perr != nil {
				log.Warn("failed to publish job result", logger.Error(perr))
			}
		}

		if err != nil {
			log.Warn("job finished with error",
				logger.String("kind", pipeline.Kind(err)),
				logger.Error(err))
			return
		}
		log.Info("job completed", logger.Int("rows", len(rows)))
	}

	view := j.view(false)
	m.extractor.ExtractFeatures(ctx, path, cfg, onProgress, onComplete)
	return view, nil
}

func (m *JobManager) lookup(id string) (*job, bool) {
	v, ok := m.store.Get(id)
	if !ok {
		return nil, false
	}
	j, ok := v.(*job)
	return j, ok
}

func jobNotFound(id string) error {
	return errors.New(ErrJobNotFound).
		Component("api").
		Category(errors.CategoryNotFound).
		Context("job_id", id).
		Build()
}

// Get returns the view of job id. Rows are included when withRows is set.
func (m *JobManager) Get(id string, withRows bool) (JobView, error) {
	j, ok := m.lookup(id)
	if !ok {
		return JobView{}, jobNotFound(id)
	}
	return j.view(withRows), nil
}

// List returns all known jobs, newest first.
func (m *JobManager) List() []JobView {
	items := m.store.Items()
	views := make([]JobView, 0, len(items))
	for _, item := range items {
		if j, ok := item.Object.(*job); ok {
			views = append(views, j.view(false))
		}
	}
	slices.SortFunc(views, func(a, b JobView) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return views
}

// Cancel requests cancellation of job id. Cancelling a finished job is a no-op.
func (m *JobManager) Cancel(id string) (JobView, error) {
	j, ok := m.lookup(id)
	if !ok {
		return JobView{}, jobNotFound(id)
	}
	j.cancel()
	return j.view(false), nil
}

// Running returns the number of running jobs.
func (m *JobManager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Shutdown cancels all running jobs and waits until they have finished.
func (m *JobManager) Shutdown() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	m.inflight.Wait()
}
