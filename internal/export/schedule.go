package export

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xtxerr/soilwatch/internal/errors"
)

// ValidateSchedule checks a standard cron expression or descriptor such
// as "@daily".
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return errors.NewInvalidValue("export.schedule", spec, err.Error())
	}
	return nil
}

// Scheduler runs an Exporter on a cron schedule. Runs never overlap.
type Scheduler struct {
	exporter *Exporter
	cron     *cron.Cron
	timeout  time.Duration

	mu   sync.Mutex
	last Result
	err  error
	runs int
}

// NewScheduler creates a scheduler for spec, evaluated in UTC.
func NewScheduler(e *Exporter, spec string, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		exporter: e,
		timeout:  timeout,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("export schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	res, err := s.exporter.Run(ctx)
	if err != nil {
		log.Error("scheduled export failed", "error", err)
	}

	s.mu.Lock()
	s.last, s.err = res, err
	s.runs++
	s.mu.Unlock()
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		log.Info("export scheduled", "next", e.Next)
	}
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// a running export to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// Last returns the most recent run's result, the number of completed
// runs and the most recent run's error.
func (s *Scheduler) Last() (Result, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.runs, s.err
}
