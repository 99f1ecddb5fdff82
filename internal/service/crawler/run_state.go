package crawler

import (
	"sync"
	"time"

	"github.com/LouYuanbo1/catalogsync/internal/service/catalog"
)

type Phase string

const (
	PhaseIdle               Phase = "IDLE"
	PhaseLaunching          Phase = "LAUNCHING"
	PhaseScanningNav        Phase = "SCANNING_NAV"
	PhaseNavigating         Phase = "NAVIGATING"
	PhaseStabilizing        Phase = "STABILIZING"
	PhaseCollectingProducts Phase = "COLLECTING_PRODUCTS"
	PhaseExpanding          Phase = "EXPANDING"
	PhaseSelecting          Phase = "SELECTING"
	PhaseExtracting         Phase = "EXTRACTING"
	PhaseSaving             Phase = "SAVING"
	PhaseShutdown           Phase = "SHUTDOWN"
)

type Scope string

const (
	ScopeCollection Scope = "collection"
	ScopeProduct    Scope = "product"
	ScopeVariant    Scope = "variant"
)

type ScopeCounts struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// RunSnapshot is a point-in-time copy of a RunState.
type RunSnapshot struct {
	Running     bool                    `json:"running"`
	Phase       Phase                   `json:"phase"`
	StartedAt   time.Time               `json:"started_at,omitzero"`
	FinishedAt  time.Time               `json:"finished_at,omitzero"`
	Collections ScopeCounts             `json:"collections"`
	Products    ScopeCounts             `json:"products"`
	Variants    ScopeCounts             `json:"variants"`
	Synced      map[catalog.Outcome]int `json:"synced"`
	LastError   string                  `json:"last_error,omitempty"`
}

// RunState tracks the progress of a single run. It is safe for concurrent
// use: the driver writes while status readers take snapshots.
type RunState struct {
	mu     sync.Mutex
	phase  Phase
	start  time.Time
	end    time.Time
	counts map[Scope]*ScopeCounts
	synced map[catalog.Outcome]int
	last   string
	done   bool
}

func NewRunState(startedAt time.Time) *RunState {
	return &RunState{
		phase: PhaseIdle,
		start: startedAt,
		counts: map[Scope]*ScopeCounts{
			ScopeCollection: {},
			ScopeProduct:    {},
			ScopeVariant:    {},
		},
		synced: make(map[catalog.Outcome]int),
	}
}

func (s *RunState) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

func (s *RunState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Record counts one finished scope. A nil error is a success.
func (s *RunState) Record(scope Scope, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.counts[scope]
	c.Processed++
	if err != nil {
		c.Failed++
		s.last = err.Error()
		return
	}
	c.Succeeded++
}

// RecordDiscarded counts a scope that ran cleanly but produced nothing to
// keep, such as a variant rejected by the price check.
func (s *RunState) RecordDiscarded(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[scope].Processed++
}

func (s *RunState) RecordOutcome(o catalog.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[o]++
}

// Finish stamps the end of the run. A non-nil err is kept as LastError.
func (s *RunState) Finish(at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseShutdown
	s.end = at
	s.done = true
	if err != nil {
		s.last = err.Error()
	}
}

func (s *RunState) Snapshot() RunSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	synced := make(map[catalog.Outcome]int, len(s.synced))
	for k, v := range s.synced {
		synced[k] = v
	}
	return RunSnapshot{
		Running:     !s.done,
		Phase:       s.phase,
		StartedAt:   s.start,
		FinishedAt:  s.end,
		Collections: *s.counts[ScopeCollection],
		Products:    *s.counts[ScopeProduct],
		Variants:    *s.counts[ScopeVariant],
		Synced:      synced,
		LastError:   s.last,
	}
}
