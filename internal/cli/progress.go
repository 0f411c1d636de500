package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// stepProgress counts completed pipeline steps. A disabled one is a no-op.
type stepProgress struct {
	bar     *progressbar.ProgressBar
	started bool
}

func newStepProgress(enabled bool, total int) *stepProgress {
	if !enabled || total <= 0 {
		return &stepProgress{}
	}

	return &stepProgress{
		bar: progressbar.NewOptions(
			total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(20),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// Step marks the previous step done and labels the next one.
func (p *stepProgress) Step(description string) {
	if p.bar == nil {
		return
	}
	if p.started {
		_ = p.bar.Add(1)
	}
	p.started = true
	p.bar.Describe(description)
}

func (p *stepProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}
