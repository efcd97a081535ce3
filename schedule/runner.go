// Package schedule runs conversations unattended on recurring schedules. A
// Runner owns a cron table of named jobs; each firing builds a fresh chat
// session from the factory and drives its function-calling loop to the end.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/parleyhq/parley/chat"
)

// DefaultRunTimeout bounds one scheduled conversation when the Runner is
// built with no timeout.
const DefaultRunTimeout = 5 * time.Minute

// Factory builds the chat session for one firing. Every firing gets a fresh
// session so runs never share history.
type Factory func(ctx context.Context) (*chat.Chat, error)

// Job is one recurring conversation.
type Job struct {
	// Name identifies the job in the table and in logs.
	Name string
	// Spec is the schedule, in any form ParseSpec accepts.
	Spec string
	// Prompt is the user message each firing opens with.
	Prompt string
}

// Runner schedules and executes jobs. Methods are safe for concurrent use.
type Runner struct {
	cron    *cron.Cron
	factory Factory
	timeout time.Duration
	logger  zerolog.Logger

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// NewRunner creates a stopped runner over a session factory. A zero timeout
// means DefaultRunTimeout per firing.
func NewRunner(factory Factory, timeout time.Duration, logger zerolog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Runner{
		cron:    cron.New(),
		factory: factory,
		timeout: timeout,
		logger:  logger.With().Str("component", "schedule").Logger(),
		jobs:    make(map[string]cron.EntryID),
	}
}

// Add places a job on the table. Names are unique; scheduling an existing
// name is an error. Jobs may be added before or after Start.
func (r *Runner) Add(job Job) error {
	if job.Name == "" {
		return fmt.Errorf("job has no name")
	}
	if job.Prompt == "" {
		return fmt.Errorf("job %s has no prompt", job.Name)
	}
	sched, err := ParseSpec(job.Spec)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("job %s is already scheduled", job.Name)
	}
	r.jobs[job.Name] = r.cron.Schedule(sched, cron.FuncJob(func() { r.run(job) }))
	r.logger.Info().Str("job", job.Name).Str("spec", job.Spec).Msg("Scheduled recurring conversation")
	return nil
}

// Remove takes a job off the table and reports whether the name was
// scheduled. A firing already in flight finishes.
func (r *Runner) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.jobs[name]
	if !ok {
		return false
	}
	delete(r.jobs, name)
	r.cron.Remove(id)
	r.logger.Info().Str("job", name).Msg("Unscheduled recurring conversation")
	return true
}

// Jobs returns the scheduled names in no particular order.
func (r *Runner) Jobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	return names
}

// Next reports when a job fires next. The zero time means the runner has
// not been started.
func (r *Runner) Next(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(id).Next, true
}

// Start begins firing jobs. It returns immediately; firings run on the
// scheduler's own goroutine.
func (r *Runner) Start() {
	r.logger.Info().Int("jobs", len(r.Jobs())).Msg("Starting scheduler")
	r.cron.Start()
}

// Stop ends scheduling. The returned context is done once in-flight firings
// have finished.
func (r *Runner) Stop() context.Context {
	r.logger.Info().Msg("Stopping scheduler")
	return r.cron.Stop()
}

// run executes one firing to completion.
func (r *Runner) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	logger := r.logger.With().Str("job", job.Name).Logger()
	logger.Info().Msg("Starting scheduled conversation")

	session, err := r.factory(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build chat session")
		return
	}

	conv := session.Run(job.Prompt)
	surfaced := 0
	for conv.Next(ctx) {
		surfaced++
	}
	if err := conv.Err(); err != nil {
		logger.Error().Err(err).Msg("Scheduled conversation failed")
		return
	}
	logger.Info().Int("messages", surfaced).Msg("Scheduled conversation finished")
}
