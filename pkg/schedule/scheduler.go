// Package schedule runs registered actions on cron expressions, feeding
// them through the same single-flight execution queue as chat-driven runs.
package schedule

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/opsdeck/opsdeck/pkg/queue"
)

// Binding ties one registered action to a cron expression.
type Binding struct {
	ActionID string `json:"action_id" validate:"required"`
	CronExpr string `json:"cron"      validate:"required"`
	Enabled  bool   `json:"enabled"`
}

// Scheduler enqueues bound actions when their cron expressions fire.
// Scheduled runs carry no chat transcript; the queue uses its no-op
// transcript and the audit trail records them like any other attempt.
type Scheduler struct {
	queue  *queue.Queue
	logger *slog.Logger
	cron   *cron.Cron

	mu       sync.Mutex
	jobs     map[string]cron.EntryID
	bindings map[string]Binding
}

// NewScheduler creates a scheduler draining into the given queue.
func NewScheduler(q *queue.Queue, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		queue:  q,
		logger: logger.With("module", "scheduler"),
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		jobs:     make(map[string]cron.EntryID),
		bindings: make(map[string]Binding),
	}
}

// Bind registers a cron job for the binding. Disabled bindings are
// accepted and skipped.
func (s *Scheduler) Bind(binding Binding) error {
	if _, err := cron.ParseStandard(binding.CronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q for action %s: %w", binding.CronExpr, binding.ActionID, err)
	}

	if !binding.Enabled {
		s.logger.Info("Schedule binding is disabled, skipping", "action_id", binding.ActionID)

		s.mu.Lock()
		s.bindings[binding.ActionID] = binding
		s.mu.Unlock()

		return nil
	}

	entryID, err := s.cron.AddFunc(binding.CronExpr, func() {
		s.logger.Debug("Schedule fired", "action_id", binding.ActionID, "cron", binding.CronExpr)
		s.queue.Enqueue(binding.ActionID, "")
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for action %s: %w", binding.ActionID, err)
	}

	s.mu.Lock()
	s.jobs[binding.ActionID] = entryID
	s.bindings[binding.ActionID] = binding
	s.mu.Unlock()

	s.logger.Info("Added cron job for action", "action_id", binding.ActionID, "cron", binding.CronExpr, "entry_id", entryID)

	return nil
}

// Unbind removes the cron job for the action, if one exists.
func (s *Scheduler) Unbind(actionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[actionID]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, actionID)
	}

	delete(s.bindings, actionID)
}

// Bindings returns the registered bindings sorted by action id.
func (s *Scheduler) Bindings() []Binding {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Binding, 0, len(s.bindings))
	for _, b := range s.bindings {
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ActionID < out[j].ActionID })

	return out
}

// Start begins firing bound jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started", "jobs", len(s.jobs))
}

// Stop halts the cron scheduler. In-flight queue entries finish on their
// own.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("Scheduler stopped")
}
