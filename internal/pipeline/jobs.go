package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/local/cardforge/internal/analyzer"
	"github.com/local/cardforge/internal/document"
)

// Status is the lifecycle state of a generation job.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job tracks one document-to-deck generation run.
type Job struct {
	mu sync.Mutex

	ID       string
	Status   Status
	Phase    string
	Error    string
	Progress Progress

	Deck         *document.Deck
	Diagnostics  []analyzer.Downgrade
	ArtifactPath string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Progress is the running tally exposed to pollers.
type Progress struct {
	TotalChunks     int `json:"total_chunks"`
	ChunksProcessed int `json:"chunks_processed"`
	CardsDrafted    int `json:"cards_drafted"`
	CardsAccepted   int `json:"cards_accepted"`
	CardsRejected   int `json:"cards_rejected"`
}

func NewJob(id string) *Job {
	now := time.Now()
	return &Job{ID: id, Status: StatusPending, CreatedAt: now, UpdatedAt: now}
}

func (j *Job) SetStatus(status Status, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

func (j *Job) Fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusFailed
	j.Error = err.Error()
	j.UpdatedAt = time.Now()
}

func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

func (j *Job) IncrChunksProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksProcessed++
	j.UpdatedAt = time.Now()
}

func (j *Job) AddCards(drafted, accepted, rejected int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.CardsDrafted += drafted
	j.Progress.CardsAccepted += accepted
	j.Progress.CardsRejected += rejected
	j.UpdatedAt = time.Now()
}

func (j *Job) Finish(deck *document.Deck, diagnostics []analyzer.Downgrade, artifact string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = StatusDone
	j.Phase = "done"
	j.Deck = deck
	j.Diagnostics = diagnostics
	j.ArtifactPath = artifact
	j.UpdatedAt = time.Now()
}

// Snapshot is a read-only, JSON-safe copy of job state.
type Snapshot struct {
	ID          string               `json:"job_id"`
	Status      Status               `json:"status"`
	Phase       string               `json:"phase,omitempty"`
	Error       string               `json:"error,omitempty"`
	Progress    Progress             `json:"progress"`
	Cards       int                  `json:"cards"`
	Diagnostics []analyzer.Downgrade `json:"diagnostics"`
	Artifact    string               `json:"artifact,omitempty"`
}

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()

	diags := j.Diagnostics
	if diags == nil {
		diags = []analyzer.Downgrade{}
	}
	cards := 0
	if j.Deck != nil {
		cards = len(j.Deck.Cards)
	}
	return Snapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Error:       j.Error,
		Progress:    j.Progress,
		Cards:       cards,
		Diagnostics: diags,
		Artifact:    j.ArtifactPath,
	}
}

// DeckCopy returns the finished deck, or nil while the job is unfinished.
func (j *Job) DeckCopy() *document.Deck {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Deck == nil {
		return nil
	}
	d := *j.Deck
	return &d
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{jobs: make(map[string]*Job), ttl: ttl}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes jobs idle past the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		idle := now.Sub(job.UpdatedAt)
		job.mu.Unlock()
		if idle > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// StartCleanup evicts expired jobs periodically until ctx is done.
func (s *JobStore) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}
