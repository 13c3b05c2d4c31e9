// Package progress renders job watch progress as a terminal progress bar.
package progress

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/racmlabs/racm-int/internal/models"
)

// Reporter receives job status snapshots during a watch.
type Reporter interface {
	Update(j *models.Job)
	Finish()
	Error(err error)
}

// CLIProgress renders job progress as a single percentage bar on stderr.
type CLIProgress struct {
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{}
}

func (p *CLIProgress) start() {
	p.bar = progressbar.NewOptions64(100,
		progressbar.OptionSetDescription("waiting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update moves the bar to the job's reported percentage and refreshes the
// phase description and ETA.
func (p *CLIProgress) Update(j *models.Job) {
	if p.bar == nil {
		p.start()
	}
	p.bar.Describe(describe(j))
	pct := j.ProgressPct
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	_ = p.bar.Set64(int64(pct))
}

// Finish completes the bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error prints the error below the bar.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}
}

func describe(j *models.Job) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(j.Phase))
	b.WriteString("]")
	if j.ProgressMsg != "" {
		b.WriteString(" ")
		b.WriteString(j.ProgressMsg)
	}
	if j.ETASeconds > 0 {
		eta := time.Duration(j.ETASeconds) * time.Second
		b.WriteString(fmt.Sprintf(" (ETA %s)", eta))
	}
	return b.String()
}

// NoOpProgress discards all progress updates.
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Update does nothing.
func (p *NoOpProgress) Update(j *models.Job) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}
