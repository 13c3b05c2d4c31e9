// Package job owns the lifecycle of the single current analysis job:
// submission, poll-until-terminal, cancellation, and deletion.
package job

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/racmlabs/racm-int/internal/api"
	"github.com/racmlabs/racm-int/internal/constants"
	"github.com/racmlabs/racm-int/internal/logging"
	"github.com/racmlabs/racm-int/internal/models"
)

// FailedError reports that the server moved the job to phase "failed". It
// carries the server's own message.
type FailedError struct {
	Message string
}

func (e *FailedError) Error() string {
	return "job failed: " + e.Message
}

// ActivityKind classifies activity log entries for display.
type ActivityKind string

const (
	ActivitySystem   ActivityKind = "system"
	ActivityPhase    ActivityKind = "phase"
	ActivityProgress ActivityKind = "progress"
	ActivityDetail   ActivityKind = "detail"
	ActivityError    ActivityKind = "error"
	ActivityComplete ActivityKind = "complete"
)

// ActivityEntry is one append-only line of the job activity log.
type ActivityEntry struct {
	Time    time.Time    `json:"time"`
	Phase   string       `json:"phase"`
	Message string       `json:"message"`
	Kind    ActivityKind `json:"kind"`
}

// Controller drives at most one job at a time. It is not safe for concurrent
// use; every method is called from the single command path.
type Controller struct {
	client      *api.Client
	log         *logging.Logger
	interval    time.Duration
	maxFailures int

	job      *models.Job
	activity []ActivityEntry

	// Previous observed values; only their change produces a log entry.
	lastPhase       models.Phase
	lastProgressMsg string
	lastDetailMsg   string

	onTick func(*models.Job)
}

// NewController creates a controller polling at the given interval
// (constants.DefaultPollInterval when zero).
func NewController(client *api.Client, log *logging.Logger, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	return &Controller{
		client:      client,
		log:         log,
		interval:    interval,
		maxFailures: constants.MaxPollFailures,
	}
}

// OnTick registers a callback invoked after every applied status snapshot,
// used by the CLI to drive the progress bar.
func (c *Controller) OnTick(fn func(*models.Job)) {
	c.onTick = fn
}

// Job returns the current job, nil when none exists.
func (c *Controller) Job() *models.Job {
	return c.job
}

// Activity returns the append-only activity log.
func (c *Controller) Activity() []ActivityEntry {
	return c.activity
}

// Resume attaches the controller to a job restored from the session, so a
// later invocation can keep watching it.
func (c *Controller) Resume(j *models.Job, activity []ActivityEntry) {
	c.job = j
	c.activity = activity
	c.lastPhase = j.Phase
	c.lastProgressMsg = j.ProgressMsg
	c.lastDetailMsg = j.DetailMsg
}

// AcceptedFile reports whether the path has an extension the service accepts.
func AcceptedFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, accepted := range constants.AcceptedExtensions {
		if ext == accepted {
			return true
		}
	}
	return false
}

// Submit sends the document to the service and establishes a new current job
// in phase queued. On any failure no job is created and prior state is left
// alone.
func (c *Controller) Submit(ctx context.Context, path, prompt string) (*models.Job, error) {
	if !AcceptedFile(path) {
		return nil, fmt.Errorf("unsupported file type %q (accepted: %s)",
			filepath.Ext(path), strings.Join(constants.AcceptedExtensions, ", "))
	}

	jobID, err := c.client.SubmitJob(ctx, path, prompt)
	if err != nil {
		return nil, err
	}

	c.job = &models.Job{
		ID:          jobID,
		SourceFile:  filepath.Base(path),
		Prompt:      prompt,
		Phase:       models.PhaseQueued,
		SubmittedAt: time.Now(),
	}
	c.activity = nil
	c.lastPhase = ""
	c.lastProgressMsg = ""
	c.lastDetailMsg = ""

	c.append(ActivitySystem, "system", "Job submitted: "+jobID)
	c.append(ActivitySystem, "system", "File: "+c.job.SourceFile)
	return c.job, nil
}

// Watch polls the job at a fixed interval until it reaches a terminal phase.
// Each response is a full snapshot and is applied unconditionally; phase,
// progress-message, and detail-message changes each append at most one
// activity entry per tick. Transport failures on a single poll keep the loop
// going (continuation is the retry), bounded by maxFailures consecutive
// misses. The loop is non-reentrant: each tick's request completes before the
// next tick is taken.
func (c *Controller) Watch(ctx context.Context) error {
	if c.job == nil {
		return fmt.Errorf("no current job to watch")
	}
	if c.job.Phase.IsTerminal() {
		return nil
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := c.client.GetJobStatus(ctx, c.job.ID)
			if err != nil {
				failures++
				c.append(ActivityError, "poll", fmt.Sprintf("Status poll failed: %v", err))
				c.log.Warn().Err(err).Int("consecutive", failures).Msg("Status poll failed")
				if failures >= c.maxFailures {
					return fmt.Errorf("giving up after %d consecutive poll failures: %w", failures, err)
				}
				continue
			}
			failures = 0

			c.apply(status)
			if c.onTick != nil {
				c.onTick(c.job)
			}

			switch c.job.Phase {
			case models.PhaseCompleted:
				c.append(ActivityComplete, "done", "Job completed successfully")
				return nil
			case models.PhaseFailed:
				c.append(ActivityError, "error", "Job failed: "+c.job.ProgressMsg)
				return &FailedError{Message: c.job.ProgressMsg}
			}
		}
	}
}

// apply folds a status snapshot into the job and records change events.
func (c *Controller) apply(status *models.JobStatus) {
	c.job.ApplyStatus(status)

	phase := c.job.Phase
	if phase != c.lastPhase && phase != "unknown" {
		c.append(ActivityPhase, string(phase), "Phase started: "+string(phase))
		c.lastPhase = phase
	}
	if c.job.ProgressMsg != "" && c.job.ProgressMsg != c.lastProgressMsg {
		c.append(ActivityProgress, string(phase), c.job.ProgressMsg)
		c.lastProgressMsg = c.job.ProgressMsg
	}
	if c.job.DetailMsg != "" && c.job.DetailMsg != c.lastDetailMsg {
		c.append(ActivityDetail, string(phase), c.job.DetailMsg)
		c.lastDetailMsg = c.job.DetailMsg
	}
}

// FetchResult retrieves the result set for the completed job.
func (c *Controller) FetchResult(ctx context.Context) (*models.ResultSet, error) {
	if c.job == nil {
		return nil, fmt.Errorf("no current job")
	}
	result, err := c.client.GetJobResult(ctx, c.job.ID)
	if err != nil {
		return nil, err
	}
	c.append(ActivitySystem, "result", fmt.Sprintf("Loaded %d detailed + %d summary entries",
		len(result.DetailedEntries), len(result.SummaryEntries)))
	return result, nil
}

// Cancel stops the running analysis. The local phase moves to cancelled
// whether or not the server acknowledges: the user's intent is to disengage,
// so a transport failure on the DELETE is returned for surfacing but does
// not keep the job alive locally.
func (c *Controller) Cancel(ctx context.Context) error {
	if c.job == nil {
		return fmt.Errorf("no current job to cancel")
	}
	if c.job.Phase.IsTerminal() {
		return fmt.Errorf("job %s already reached phase %s", c.job.ID, c.job.Phase)
	}

	err := c.client.DeleteJob(ctx, c.job.ID)
	c.job.Phase = models.PhaseCancelled
	c.append(ActivitySystem, "system", "Job cancelled by user")
	if err != nil {
		return fmt.Errorf("server-side cancel failed (job marked cancelled locally): %w", err)
	}
	return nil
}

// Delete removes a terminated job server-side. Local state is the caller's
// (session's) to clear, and only on success.
func (c *Controller) Delete(ctx context.Context) error {
	if c.job == nil {
		return fmt.Errorf("no current job to delete")
	}
	if !c.job.Phase.IsTerminal() {
		return fmt.Errorf("job %s is still %s; cancel it instead", c.job.ID, c.job.Phase)
	}
	return c.client.DeleteJob(ctx, c.job.ID)
}

func (c *Controller) append(kind ActivityKind, phase, msg string) {
	c.activity = append(c.activity, ActivityEntry{
		Time:    time.Now(),
		Phase:   phase,
		Message: msg,
		Kind:    kind,
	})
}
