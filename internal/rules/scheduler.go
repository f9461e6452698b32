package rules

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/neomind/edge/internal/neoerr"
)

const (
	defaultTickInterval = 5 * time.Second
	maxExecutionHistory = 100
)

// Scheduler runs a single evaluation loop over a live rule set: every tick
// it refreshes each Active rule's condition (applying FOR-duration
// debouncing) and runs the action list for every rule that fires.
type Scheduler struct {
	mu    sync.RWMutex
	rules map[string]*Rule

	history   map[string][]ExecutionRecord
	vp        ValueProvider
	executor  *Executor
	tick      time.Duration
	log       *zap.SugaredLogger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(vp ValueProvider, executor *Executor, tick time.Duration, log *zap.SugaredLogger) *Scheduler {
	if tick <= 0 {
		tick = defaultTickInterval
	}
	return &Scheduler{
		rules:    map[string]*Rule{},
		history:  map[string][]ExecutionRecord{},
		vp:       vp,
		executor: executor,
		tick:     tick,
		log:      log,
	}
}

func (s *Scheduler) AddRule(r *Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.Metadata.ID] = r
}

func (s *Scheduler) RemoveRule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	delete(s.history, id)
}

func (s *Scheduler) SetState(id string, state RuleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return neoerr.NotFoundf("rule %q not found", id)
	}
	r.State = state
	return nil
}

func (s *Scheduler) Rule(id string) (*Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	return r, ok
}

func (s *Scheduler) History(id string) []ExecutionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ExecutionRecord(nil), s.history[id]...)
}

// Rules returns every registered rule, unordered.
func (s *Scheduler) Rules() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out
}

// Start returns an error if the scheduler is already running; it does not
// silently no-op a double start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return neoerr.AlreadyExists("scheduler is already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(runCtx)
	return nil
}

// Stop returns an error if the scheduler is not running; it does not
// silently no-op a double stop.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return neoerr.NotFoundf("scheduler is not running")
	}
	cancel()
	if done != nil {
		<-done
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.evaluateAll(ctx, now)
		}
	}
}

func (s *Scheduler) snapshot() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out
}

func (s *Scheduler) evaluateAll(ctx context.Context, now time.Time) {
	for _, r := range s.snapshot() {
		if r.State != StateActive {
			continue
		}
		s.evaluateOne(ctx, r, now)
	}
}

func (s *Scheduler) evaluateOne(ctx context.Context, r *Rule, now time.Time) {
	fire, err := ShouldTrigger(r, now, s.vp)
	if err != nil {
		if s.log != nil {
			s.log.Warnw("rule condition evaluation failed", "rule_id", r.Metadata.ID, "error", err)
		}
		return
	}
	if !fire {
		return
	}

	s.mu.Lock()
	r.TriggerCount++
	ts := now.Unix()
	r.LastTriggered = &ts
	s.mu.Unlock()

	var execErr error
	if s.executor != nil {
		execErr = s.executor.Run(ctx, r.Metadata.ID, r.Actions)
	}

	rec := ExecutionRecord{RuleID: r.Metadata.ID, Timestamp: ts, Success: execErr == nil}
	if execErr != nil {
		rec.Error = execErr.Error()
		if s.log != nil {
			s.log.Warnw("rule action execution failed", "rule_id", r.Metadata.ID, "error", execErr)
		}
	}
	s.appendHistory(r.Metadata.ID, rec)
}

func (s *Scheduler) appendHistory(ruleID string, rec ExecutionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := append(s.history[ruleID], rec)
	if len(h) > maxExecutionHistory {
		h = h[len(h)-maxExecutionHistory:]
	}
	s.history[ruleID] = h
}
