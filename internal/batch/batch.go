// Package batch is the in-memory batch job registry: one job per APL sweep,
// cooperative cancellation via a flag checked between iterations, progress
// notification, and age/count-bounded pruning.
package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/c0lormem/apltestgen/internal/config"
	"github.com/c0lormem/apltestgen/internal/logging"
	"github.com/c0lormem/apltestgen/internal/models"
	"github.com/c0lormem/apltestgen/pkg/export"
)

// ProgressCallback is notified on every status change.
type ProgressCallback func(batchID string, status models.BatchStatus)

// Registry owns the job table. It is an ordinary value a caller constructs
// and injects; there is no hidden global state.
type Registry struct {
	mu           sync.Mutex
	jobs         map[string]*models.BatchStatus
	cancelFlags  map[string]bool
	createdAt    map[string]time.Time
	onProgress   ProgressCallback
	maxJobs      int
	maxJobAge    time.Duration
	idGen        func() string
}

// NewRegistry builds a Registry using cfg's bounds. idGen is injectable for
// deterministic tests; pass nil to use a process-local 8-char hex counter.
func NewRegistry(cfg config.Config, idGen func() string) *Registry {
	if idGen == nil {
		idGen = defaultIDGen
	}
	return &Registry{
		jobs:        make(map[string]*models.BatchStatus),
		cancelFlags: make(map[string]bool),
		createdAt:   make(map[string]time.Time),
		maxJobs:     cfg.BatchMaxJobs,
		maxJobAge:   time.Duration(cfg.BatchMaxAgeSeconds) * time.Second,
		idGen:       idGen,
	}
}

var idCounter uint64
var idCounterMu sync.Mutex

func defaultIDGen() string {
	idCounterMu.Lock()
	idCounter++
	n := idCounter
	idCounterMu.Unlock()
	return fmt.Sprintf("%08x", n)
}

// SetProgressCallback installs the notification hook.
func (r *Registry) SetProgressCallback(cb ProgressCallback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onProgress = cb
}

// Status returns a copy of the job's current status, or false if unknown.
func (r *Registry) Status(batchID string) (models.BatchStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.jobs[batchID]
	if !ok {
		return models.BatchStatus{}, false
	}
	return *s, true
}

// Cancel requests cooperative cancellation of a running job. Returns false
// if the job is unknown or already finished.
func (r *Registry) Cancel(batchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cancelFlags[batchID]; !ok {
		return false
	}
	r.cancelFlags[batchID] = true
	return true
}

// Create starts a batch export job and returns immediately with its ID; the
// sweep runs on a background goroutine.
func (r *Registry) Create(req models.BatchRequest) models.BatchResponse {
	aplValues := req.APLValues()
	batchID := r.idGen()

	status := &models.BatchStatus{
		BatchID:   batchID,
		Status:    models.StatusRunning,
		Total:     len(aplValues),
		Completed: 0,
		Failed:    0,
	}

	r.mu.Lock()
	r.jobs[batchID] = status
	r.cancelFlags[batchID] = false
	r.createdAt[batchID] = time.Now()
	r.prune()
	r.mu.Unlock()

	go r.execute(batchID, req, aplValues)

	return models.BatchResponse{BatchID: batchID}
}

func (r *Registry) execute(batchID string, req models.BatchRequest, aplValues []int) {
	for _, apl := range aplValues {
		if r.cancelled(batchID) {
			r.mu.Lock()
			r.jobs[batchID].Status = models.StatusCancelled
			r.notifyLocked(batchID)
			r.mu.Unlock()
			break
		}

		r.mu.Lock()
		r.jobs[batchID].CurrentAPL = &apl
		r.notifyLocked(batchID)
		r.mu.Unlock()

		genReq := models.GenerateRequest{
			Width:           req.Width,
			Height:          req.Height,
			APLPercent:      apl,
			Shape:           req.Shape,
			ColorSpace:      req.ColorSpace,
			HdrMode:         req.HdrMode,
			HdrPeakNits:     req.HdrPeakNits,
			ExportFormat:    req.ExportFormat,
			OutputDirectory: req.OutputDirectory,
		}.WithDefaults()

		_, err := export.Export(genReq.ToExportRequest())

		r.mu.Lock()
		if err != nil {
			r.jobs[batchID].Failed++
			logging.L().Errorw("batch export failed", "batch_id", batchID, "apl", apl, "error", err)
		} else {
			r.jobs[batchID].Completed++
		}
		r.notifyLocked(batchID)
		r.mu.Unlock()
	}

	r.mu.Lock()
	status := r.jobs[batchID]
	if status.Status == models.StatusRunning {
		if status.Failed == 0 {
			status.Status = models.StatusCompleted
		} else {
			status.Status = models.StatusFailed
		}
	}
	status.CurrentAPL = nil
	r.notifyLocked(batchID)
	delete(r.cancelFlags, batchID)
	r.prune()
	r.mu.Unlock()
}

func (r *Registry) cancelled(batchID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelFlags[batchID]
}

// notifyLocked invokes the progress callback; caller must hold r.mu.
func (r *Registry) notifyLocked(batchID string) {
	if r.onProgress == nil {
		return
	}
	status := *r.jobs[batchID]
	cb := r.onProgress
	// Best-effort notification: never hold the lock across user code, and
	// never let a panicking callback take down the sweep goroutine.
	go func() {
		defer func() { recover() }()
		cb(batchID, status)
	}()
}

// prune removes finished jobs older than maxJobAge, then caps total job
// count, preferring to keep running jobs. Caller must hold r.mu.
func (r *Registry) prune() {
	now := time.Now()
	for batchID, created := range r.createdAt {
		status, ok := r.jobs[batchID]
		if !ok {
			delete(r.createdAt, batchID)
			delete(r.cancelFlags, batchID)
			continue
		}
		if status.Status != models.StatusRunning && now.Sub(created) > r.maxJobAge {
			delete(r.jobs, batchID)
			delete(r.cancelFlags, batchID)
			delete(r.createdAt, batchID)
		}
	}

	if len(r.jobs) <= r.maxJobs {
		return
	}
	for batchID, status := range r.jobs {
		if status.Status != models.StatusRunning {
			delete(r.jobs, batchID)
			delete(r.cancelFlags, batchID)
			delete(r.createdAt, batchID)
			if len(r.jobs) <= r.maxJobs {
				break
			}
		}
	}
}
